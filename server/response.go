package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"auto_course_generator/document"
	"auto_course_generator/extract"
	"auto_course_generator/generator"
	"auto_course_generator/pipeline"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// respondPipelineError maps pipeline failures onto statuses. Decode failures carry the
// raw model text so the operator can correct it.
func respondPipelineError(c *gin.Context, err error) {
	status, code := classify(err)
	apiErr := APIError{Message: err.Error(), Code: code}
	var se *pipeline.StageError
	if errors.As(err, &se) {
		apiErr.Stage = string(se.Stage)
		apiErr.Excerpt = se.Excerpt
	}
	c.JSON(status, ErrorEnvelope{Error: apiErr})
}

func classify(err error) (int, string) {
	var (
		te *generator.TransportError
		se *pipeline.StageError
	)
	switch {
	case errors.Is(err, pipeline.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.As(err, &te):
		if te.RateLimited {
			return http.StatusTooManyRequests, "rate_limited"
		}
		return http.StatusBadGateway, "model_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case extract.IsDecodeError(err):
		return http.StatusUnprocessableEntity, "decode_failed"
	case document.IsValidationError(err):
		return http.StatusBadRequest, "validation_failed"
	case document.IsRenderError(err):
		return http.StatusInternalServerError, "render_failed"
	case errors.As(err, &se):
		switch se.Stage {
		case pipeline.StagePersist:
			return http.StatusInternalServerError, "persistence_failed"
		case pipeline.StageIngest:
			return http.StatusBadRequest, "invalid_pdf"
		}
		return http.StatusBadRequest, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
