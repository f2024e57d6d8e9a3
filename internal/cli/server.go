package cli

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/GoPolymarket/attestgate/internal/middleware"
	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/GoPolymarket/attestgate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRouter installs the middleware shared by every service plus the
// health and metrics routes.
func newRouter(ctx context.Context, name string, d *deps) (*gin.Engine, *service.AuditService, error) {
	if !strings.EqualFold(d.cfg.Log.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	auditSvc, err := d.auditService(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware(name, auditSvc))
	r.Use(middleware.RateLimitMiddleware(middleware.NewClientLimiter(d.cfg.RateLimit.RPS, d.cfg.RateLimit.Burst)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": name})
	})
	if d.cfg.Metrics.Enabled {
		r.GET(d.cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}
	return r, auditSvc, nil
}

// serve runs handler on port until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func serve(ctx context.Context, name, port string, handler http.Handler, shutdownTTL time.Duration) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log := logger.With("service", name)
	errCh := make(chan error, 1)
	go func() {
		log.Info("Service started", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	if shutdownTTL <= 0 {
		shutdownTTL = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTTL)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("Server exiting")
	return nil
}
