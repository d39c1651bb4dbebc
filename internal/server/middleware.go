package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"castgrab/internal/auth"
)

const requestIDHeader = "X-Request-ID"

type ctxKey int

const userKey ctxKey = iota

// UserFrom returns the authenticated user, if any.
func UserFrom(ctx context.Context) (*auth.User, bool) {
	u, ok := ctx.Value(userKey).(*auth.User)
	return u, ok
}

// withRequestID tags each request with an id and a logger carrying it.
// A well-formed id supplied by the portal is kept.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logger := s.log.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				zerolog.Ctx(r.Context()).Error().Interface("panic", p).Msg("handler panicked")
				writeJSON(w, http.StatusInternalServerError, ExtractResponse{Message: "Internal server error."})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requirePermission authenticates the bearer token and checks the user's
// role grants perm. It passes everything through when auth is disabled.
func (s *Server) requirePermission(perm auth.Permission, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.users == nil {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="castgrab"`)
			writeJSON(w, http.StatusUnauthorized, ExtractResponse{Message: "Unauthenticated."})
			return
		}

		user, err := s.users.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="castgrab", error="invalid_token"`)
				writeJSON(w, http.StatusUnauthorized, ExtractResponse{Message: "Unauthenticated."})
				return
			}
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("authenticating request")
			writeJSON(w, http.StatusInternalServerError, ExtractResponse{Message: "Internal server error."})
			return
		}

		if !user.Role.Can(perm) {
			zerolog.Ctx(r.Context()).Warn().
				Str("user", user.Email).
				Str("role", string(user.Role)).
				Str("permission", string(perm)).
				Msg("permission denied")
			writeJSON(w, http.StatusForbidden, ExtractResponse{Message: "This action is unauthorized."})
			return
		}

		logger := zerolog.Ctx(r.Context()).With().Str("user", user.Email).Logger()
		ctx := context.WithValue(logger.WithContext(r.Context()), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// rateLimit applies the per-client token bucket.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, ExtractResponse{Message: "Too many requests. Try again shortly."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller: the authenticated user when known,
// otherwise the remote IP.
func clientKey(r *http.Request) string {
	if u, ok := UserFrom(r.Context()); ok {
		return "user:" + u.Email
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
