// Package server exposes the course pipeline over HTTP.
package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"auto_course_generator/logger"
	"auto_course_generator/pipeline"
	"auto_course_generator/publisher"
)

const defaultStageTimeout = 5 * time.Minute

type Server struct {
	pipeline     *pipeline.Pipeline
	publisher    *publisher.Publisher
	log          *logger.Logger
	store        *sessionStore
	stageTimeout time.Duration
}

// session serializes every operation on one run.
type session struct {
	mu  sync.Mutex
	run pipeline.Run
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (s *sessionStore) set(id string, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
}

func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func New(p *pipeline.Pipeline, pub *publisher.Publisher, log *logger.Logger) (*Server, error) {
	if p == nil {
		return nil, errors.New("pipeline required")
	}
	if pub == nil {
		return nil, errors.New("publisher required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		pipeline:     p,
		publisher:    pub,
		log:          log.With("service", "Server"),
		store:        newStore(),
		stageTimeout: defaultStageTimeout,
	}, nil
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.logMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/courses")
	{
		api.POST("", s.handleCreate)
		api.POST("/pdf", s.handleCreateFromPDF)
		api.GET("/:id", s.handleGet)
		api.POST("/:id/changes", s.handleRequestChanges)
		api.POST("/:id/revise", s.handleRevise)
		api.POST("/:id/accept", s.handleAccept)
		api.POST("/:id/expand", s.handleExpand)
		api.POST("/:id/schedule", s.handleSchedule)
		api.POST("/:id/export", s.handleExport)
		api.POST("/:id/reset", s.handleReset)
		api.GET("/:id/document", s.handleDocument)
		api.GET("/:id/outline.pdf", s.handleOutlinePDF)
		api.GET("/:id/schedule.pdf", s.handleSchedulePDF)
		api.GET("/:id/preview", s.handlePreview)
		api.GET("/:id/history", s.handleHistory)
		api.DELETE("/:id/history", s.handleClearHistory)
	}
	return r
}

func newSessionID() string {
	return uuid.NewString()
}

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}
