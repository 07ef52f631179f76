// Package server exposes the HTTP control surface: start, stop, and
// query the watch session, plus health and history endpoints.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weberkan/raywatch/internal/history"
	"github.com/weberkan/raywatch/internal/session"
)

// Opts holds configuration for the control API server.
type Opts struct {
	Controller *session.Controller
	Recorder   *history.Recorder
	Port       int
	Out        io.Writer
}

// Start launches the control API server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts Opts) error {
	if opts.Controller == nil {
		return fmt.Errorf("server: controller is required")
	}
	if opts.Port <= 0 {
		opts.Port = 5000
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(opts.Controller, opts.Recorder)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Control API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the Gin router with all control routes registered.
func NewRouter(controller *session.Controller, recorder *history.Recorder) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, controller, recorder)
	return router
}
