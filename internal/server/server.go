// Package server exposes the extractor to the web portal over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"castgrab/internal/auth"
	"castgrab/internal/config"
	"castgrab/internal/extract"
)

const (
	toolPath    = "/mp3-tools"
	extractPath = "/mp3-tools/extract"

	shutdownTimeout = 30 * time.Second
)

// Authenticator resolves bearer tokens to users.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.User, error)
}

// Server is the portal's extraction endpoint.
type Server struct {
	cfg       config.ServerConfig
	extractor extract.Extractor
	users     Authenticator
	limiter   *clientLimiter
	log       zerolog.Logger
	handler   http.Handler
}

// New builds the endpoint. A nil users disables authentication.
func New(cfg config.ServerConfig, extractor extract.Extractor, users Authenticator, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		extractor: extractor,
		users:     users,
		limiter:   newClientLimiter(cfg.RateLimit, cfg.RateBurst),
		log:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET "+toolPath, s.requirePermission(auth.UseMP3Tools, http.HandlerFunc(s.handleDescriptor)))
	mux.Handle("POST "+extractPath, s.requirePermission(auth.UseMP3Tools, s.rateLimit(http.HandlerFunc(s.handleExtract))))

	s.handler = s.withRequestID(s.accessLog(s.recoverPanics(mux)))
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe listens on the configured address until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout.Duration,
		WriteTimeout:      s.cfg.WriteTimeout.Duration,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("serving extraction endpoint")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
