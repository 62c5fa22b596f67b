package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"auto_course_generator/document"
	"auto_course_generator/extract"
	"auto_course_generator/generator"
	"auto_course_generator/pipeline"
	"auto_course_generator/publisher"
)

const maxUploadBytes = 20 << 20

type createReq struct {
	Name          string `json:"name" binding:"required"`
	AudienceLevel string `json:"audience_level" binding:"required"`
	Difficulty    string `json:"difficulty" binding:"required"`
	ModuleCount   int    `json:"module_count" binding:"required"`
	Duration      string `json:"duration"`
	Credit        string `json:"credit"`
}

type reviseReq struct {
	Modifications string            `json:"modifications"`
	ModuleChanges map[string]string `json:"module_changes"`
}

type acceptReq struct {
	Lessons extract.ModuleLessonMap `json:"lessons"`
}

type scheduleReq struct {
	StartDate string `json:"start_date" binding:"required"`
}

type courseResp struct {
	pipeline.Run
	CurrentDocument string `json:"current_document"`
}

type exportResp struct {
	Course   courseResp         `json:"course"`
	Artifact publisher.Artifact `json:"artifact"`
}

func newCourseResp(run pipeline.Run) courseResp {
	return courseResp{Run: run, CurrentDocument: run.CurrentDocument()}
}

// withSession runs fn under the session lock and keeps whatever run it returns, so a failed
// stage still records the exchanges that completed.
func (s *Server) withSession(c *gin.Context, fn func(ctx context.Context, run pipeline.Run) (pipeline.Run, error)) (pipeline.Run, bool) {
	sess, ok := s.store.get(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "not_found", errors.New("session not found"))
		return pipeline.Run{}, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.stageTimeout)
	defer cancel()
	next, err := fn(ctx, sess.run)
	sess.run = next
	if err != nil {
		respondPipelineError(c, err)
		return next, false
	}
	return next, true
}

func (s *Server) respondRun(c *gin.Context, fn func(ctx context.Context, run pipeline.Run) (pipeline.Run, error)) {
	if run, ok := s.withSession(c, fn); ok {
		c.JSON(http.StatusOK, newCourseResp(run))
	}
}

func (s *Server) handleCreate(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	level, err := generator.ParseAudienceLevel(req.AudienceLevel)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	difficulty, err := generator.ParseDifficulty(req.Difficulty)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	params := generator.CourseParameters{
		Name:          req.Name,
		AudienceLevel: level,
		Difficulty:    difficulty,
		ModuleCount:   req.ModuleCount,
		Duration:      req.Duration,
		Credit:        req.Credit,
	}
	s.create(c, func(ctx context.Context, run pipeline.Run) (pipeline.Run, error) {
		return s.pipeline.GenerateOutline(ctx, run, params)
	})
}

func (s *Server) handleCreateFromPDF(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("file is required: %w", err))
		return
	}
	if fh.Size > maxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "too_large", fmt.Errorf("file exceeds %d bytes", maxUploadBytes))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	s.create(c, func(ctx context.Context, run pipeline.Run) (pipeline.Run, error) {
		return s.pipeline.GenerateFromPDF(ctx, run, data)
	})
}

// create registers a session only when its first stage succeeds. Turns persisted by a
// partly completed first call are deleted.
func (s *Server) create(c *gin.Context, fn func(ctx context.Context, run pipeline.Run) (pipeline.Run, error)) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.stageTimeout)
	defer cancel()
	id := newSessionID()
	run, err := fn(ctx, pipeline.NewRun(id))
	if err != nil {
		if len(run.History) > 0 {
			if _, cerr := s.pipeline.ClearHistory(context.WithoutCancel(ctx), run); cerr != nil {
				s.log.Warn("failed create left history behind", "session_id", id, "error", cerr)
			}
		}
		respondPipelineError(c, err)
		return
	}
	s.store.set(id, &session{run: run})
	s.log.Info("course session created", "session_id", id, "source", run.Source)
	c.JSON(http.StatusCreated, newCourseResp(run))
}

func (s *Server) handleGet(c *gin.Context) {
	s.respondRun(c, passthrough)
}

func (s *Server) handleRequestChanges(c *gin.Context) {
	s.respondRun(c, func(_ context.Context, run pipeline.Run) (pipeline.Run, error) {
		return s.pipeline.RequestChanges(run)
	})
}

func (s *Server) handleRevise(c *gin.Context) {
	var req reviseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	s.respondRun(c, func(ctx context.Context, run pipeline.Run) (pipeline.Run, error) {
		return s.pipeline.Revise(ctx, run, pipeline.RevisionRequest(run, req.ModuleChanges, req.Modifications))
	})
}

func (s *Server) handleAccept(c *gin.Context) {
	var req acceptReq
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	s.respondRun(c, func(ctx context.Context, run pipeline.Run) (pipeline.Run, error) {
		if len(req.Lessons) > 0 {
			return s.pipeline.AcceptLessons(run, req.Lessons)
		}
		return s.pipeline.Accept(ctx, run)
	})
}

func (s *Server) handleExpand(c *gin.Context) {
	s.respondRun(c, s.pipeline.Expand)
}

func (s *Server) handleSchedule(c *gin.Context) {
	var req scheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	start, err := time.Parse(generator.DateLayout, req.StartDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("start_date must be YYYY-MM-DD: %w", err))
		return
	}
	s.respondRun(c, func(ctx context.Context, run pipeline.Run) (pipeline.Run, error) {
		return s.pipeline.BuildSchedule(ctx, run, start)
	})
}

func (s *Server) handleExport(c *gin.Context) {
	run, ok := s.withSession(c, func(_ context.Context, run pipeline.Run) (pipeline.Run, error) {
		if run.State == pipeline.Exported {
			return s.pipeline.Regenerate(run)
		}
		return s.pipeline.Export(run)
	})
	if !ok {
		return
	}
	artifact, err := s.publisher.Publish(run.Title(), run.Document)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "publish_failed", err)
		return
	}
	c.JSON(http.StatusOK, exportResp{Course: newCourseResp(run), Artifact: artifact})
}

func (s *Server) handleReset(c *gin.Context) {
	s.respondRun(c, func(_ context.Context, run pipeline.Run) (pipeline.Run, error) {
		return s.pipeline.Reset(run), nil
	})
}

// handleHistory returns the stored conversation, which is what survives a restart.
func (s *Server) handleHistory(c *gin.Context) {
	run, ok := s.withSession(c, s.pipeline.LoadHistory)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": run.ID, "turns": run.History})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	s.respondRun(c, s.pipeline.ClearHistory)
}

func (s *Server) handleDocument(c *gin.Context) {
	run, ok := s.withSession(c, passthrough)
	if !ok {
		return
	}
	if run.Document == nil {
		respondError(c, http.StatusNotFound, "not_exported", errors.New("course has not been exported"))
		return
	}
	writePDF(c, publisher.FileName(run.Title()), run.Document)
}

func (s *Server) handleOutlinePDF(c *gin.Context) {
	run, ok := s.withSession(c, passthrough)
	if !ok {
		return
	}
	rendered, err := s.pipeline.OutlineDocument(run)
	if err != nil {
		respondPipelineError(c, err)
		return
	}
	writePDF(c, "outline_"+publisher.FileName(run.Title()), rendered)
}

func (s *Server) handleSchedulePDF(c *gin.Context) {
	run, ok := s.withSession(c, passthrough)
	if !ok {
		return
	}
	if run.ScheduleDocument == nil {
		respondError(c, http.StatusNotFound, "no_schedule", errors.New("schedule has not been built"))
		return
	}
	writePDF(c, "schedule_"+publisher.FileName(run.Title()), run.ScheduleDocument)
}

func (s *Server) handlePreview(c *gin.Context) {
	run, ok := s.withSession(c, passthrough)
	if !ok {
		return
	}
	md := run.CurrentDocument()
	if md == "" {
		respondError(c, http.StatusNotFound, "no_document", errors.New("nothing generated yet"))
		return
	}
	html, err := document.PreviewHTML(run.Title(), md)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "render_failed", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func passthrough(_ context.Context, run pipeline.Run) (pipeline.Run, error) {
	return run, nil
}

func writePDF(c *gin.Context, name string, r *document.Rendered) {
	c.Header("Content-Disposition", publisher.ContentDisposition(name))
	c.Data(http.StatusOK, document.MIMEType, r.Bytes)
}

func bindOptionalJSON(c *gin.Context, v any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
