// Package server exposes stored extraction runs and their comparisons over
// a read-only JSON API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bid-cli/internal/chat"
	"github.com/sells-group/bid-cli/internal/config"
	"github.com/sells-group/bid-cli/internal/model"
	"github.com/sells-group/bid-cli/internal/store"
)

// RunReader is the part of the store the API reads from.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error)
	LatestRun(ctx context.Context) (*model.ExtractionRun, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.ExtractionRun, error)
}

// Deps are the collaborators the handlers need. Asker may be nil, in which
// case the ask endpoint answers 503.
type Deps struct {
	Runs          RunReader
	Asker         chat.Asker
	ZeroAsMissing bool
}

// Server wraps the HTTP server with its routes.
type Server struct {
	srv *http.Server
}

// New creates a Server listening on cfg.Port.
func New(deps Deps, cfg config.ServerConfig) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewRouter(deps, cfg.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("server shutdown error", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}
