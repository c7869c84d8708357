package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mathprep/taskforge/internal/logger"
	"github.com/mathprep/taskforge/internal/progress"
	"github.com/mathprep/taskforge/internal/snapdiff"
	"github.com/mathprep/taskforge/internal/taskgen"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// User-facing messages shown by the client.
const (
	messageGenerationFailed = "Не удалось сгенерировать задание. Попробуйте ещё раз позже."
	messageBadRequest       = "Некорректный запрос."
	messageInternal         = "Внутренняя ошибка сервера."
)

// ErrorResponse is the error envelope returned to clients.
type ErrorResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generator runs the task-generation pipeline.
type Generator interface {
	Generate(ctx context.Context, req taskgen.Request) (*taskgen.Result, error)
}

// ProgressReader serves a student's progress data.
type ProgressReader interface {
	Progress(ctx context.Context, userID, courseID string) (progress.Vector, error)
	ProgressDiff(ctx context.Context, userID, courseID string) snapdiff.Result
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the API endpoints.
type Handler struct {
	generator Generator
	progress  ProgressReader
	health    Pinger
	validator *bodyValidator
	log       *logger.Logger
}

// GenerateTask handles a task-generation request.
func (h *Handler) GenerateTask(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.validator.Validate(body); err != nil {
		badRequest(c, err)
		return
	}
	var req taskgen.Request
	if err := json.Unmarshal(body, &req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.generator.Generate(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, taskgen.ErrInvalidRequest):
		badRequest(c, err)
	default:
		h.log.Error("task request failed",
			"request_id", c.GetString(requestIDKey),
			"user_id", req.UserID,
			"course_id", req.CourseID.String(),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Response: messageGenerationFailed,
			Error:    err.Error(),
		})
	}
}

// Progress returns the student's current mastery vector.
func (h *Handler) Progress(c *gin.Context) {
	userID, courseID, ok := progressParams(c)
	if !ok {
		return
	}
	v, err := h.progress.Progress(c.Request.Context(), userID, courseID)
	if err != nil {
		h.log.Error("progress request failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Response: messageInternal, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, v)
}

// ProgressDiff returns the diff of the student's two latest snapshots.
func (h *Handler) ProgressDiff(c *gin.Context) {
	userID, courseID, ok := progressParams(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.progress.ProgressDiff(c.Request.Context(), userID, courseID))
}

// Health reports liveness and database reachability.
func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func progressParams(c *gin.Context) (userID, courseID string, ok bool) {
	userID = strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		badRequest(c, errors.New("user_id is required"))
		return "", "", false
	}
	return userID, strings.TrimSpace(c.Query("course_id")), true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Response: messageBadRequest, Error: err.Error()})
}
