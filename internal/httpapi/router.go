// Package httpapi exposes the task-generation pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mathprep/taskforge/internal/logger"
)

// Options wires the router's dependencies.
type Options struct {
	Generator Generator
	Progress  ProgressReader
	// Health is optional.
	Health Pinger
	Log    *logger.Logger
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(opts Options) (*gin.Engine, error) {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	validator, err := newBodyValidator()
	if err != nil {
		return nil, err
	}
	h := &Handler{
		generator: opts.Generator,
		progress:  opts.Progress,
		health:    opts.Health,
		validator: validator,
		log:       log,
	}

	r := gin.New()
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(Recovery(log))
	r.Use(CORS())

	r.GET("/healthz", h.Health)

	// Path kept for existing clients of the edge function.
	r.POST("/openrouter-task-call", h.GenerateTask)

	api := r.Group("/api/v1")
	{
		api.POST("/tasks", h.GenerateTask)
		api.GET("/progress/:user_id", h.Progress)
		api.GET("/progress/:user_id/diff", h.ProgressDiff)
	}

	return r, nil
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration, log *logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("http server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
