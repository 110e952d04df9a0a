package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/auth"
	"portfolioexecutor/src/handler"
)

// Handlers are the audit endpoints mounted behind the token guard.
type Handlers struct {
	Orders  http.HandlerFunc
	Blocked http.HandlerFunc
}

// DefaultHandlers binds the endpoints to the database-backed repositories.
func DefaultHandlers() Handlers {
	return Handlers{
		Orders:  handler.DefaultSearchOrdersHandler(),
		Blocked: handler.DefaultListBlockedHandler(),
	}
}

// NewRouter builds the audit API router.
func NewRouter(cfg *Config, h Handlers) http.Handler {
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireToken(cfg.APIToken))
		r.Get("/orders", h.Orders)
		r.Get("/blocked", h.Blocked)
	})

	return r
}

// StartServer serves the audit API until ctx is done or the process gets
// SIGINT/SIGTERM, then shuts down gracefully.
func StartServer(ctx context.Context, cfg *Config, h Handlers) error {
	if cfg.APIToken == "" {
		logger.Warn("AUDIT_API_TOKEN not set, audit endpoints are open")
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: NewRouter(cfg, h),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Shutdown on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.WithError(err).Error("Server crashed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
