package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rohankatakam/devpulse/internal/config"
)

// NewRouter wires middleware and routes. The admin warm route is only
// registered when warmer is non-nil.
func NewRouter(cfg config.ServerConfig, svc Service, warmer Warmer, logger *slog.Logger) *gin.Engine {
	switch cfg.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(AccessLog(logger))

	h := NewHandlers(svc, warmer, logger)
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/api/v1")
	v1.Use(RateLimit(cfg.RateLimit, cfg.RateBurst))

	d := v1.Group("/dashboard")
	d.GET("/kpis", chart(h, svc.KPIs))
	d.GET("/developer-activity", chart(h, svc.DeveloperActivity))
	d.GET("/commits-by-dev-type", chart(h, svc.CommitsByDevType))
	d.GET("/monthly-commits", chart(h, svc.MonthlyCommits))
	d.GET("/monthly-prs-merged", chart(h, svc.MonthlyPRsMerged))
	d.GET("/dev-activity", chart(h, svc.DevActivity))
	d.GET("/cadence", chart(h, svc.Cadence))
	d.GET("/overview", chart(h, svc.Overview))

	s := v1.Group("/segments")
	s.GET("", h.ListSegments)
	s.POST("", h.CreateSegment)
	s.GET("/:id", h.GetSegment)
	s.DELETE("/:id", h.DeleteSegment)
	s.POST("/:id/repos", h.AddSegmentRepos)
	s.DELETE("/:id/repos/:repoID", h.RemoveSegmentRepo)

	v1.GET("/repositories", h.ListRepositories)
	if warmer != nil {
		v1.POST("/admin/warm", h.Warm)
	}

	return r
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down gracefully
func Serve(ctx context.Context, cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
