package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/server/auth"
)

type claimsKey struct{}

func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *loggingResponseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *loggingResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *loggingResponseWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *loggingResponseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(r.Method, route, rw.Status(), elapsed)

		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			return
		}
		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", rw.Status(),
			"duration_ms", elapsed.Milliseconds(),
			"response_bytes", rw.bytes,
			"remote_addr", r.RemoteAddr,
		}
		if rw.Status() >= http.StatusInternalServerError {
			s.logger.Error(r.Context(), "request complete", fields...)
			return
		}
		s.logger.Info(r.Context(), "request complete", fields...)
	})
}

// authenticate reads the bearer token from the Authorization header.
func (s *Server) authenticate(r *http.Request) (*auth.Claims, error) {
	token, ok := strings.CutPrefix(r.Header.Get(common.AuthorizationHeaderName), common.BearerPrefix)
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return nil, common.ErrorUnauthorized
	}
	return auth.ParseToken(token, s.jwtSecret)
}

func (s *Server) withClaims(allow func(*auth.Claims, *http.Request) bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.authenticate(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !allow(claims, r) {
			s.writeError(w, r, common.ErrorForbidden)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	}
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return s.withClaims(func(c *auth.Claims, _ *http.Request) bool {
		return c.Role == common.RoleAdmin
	}, next)
}

// ownerOrAdmin lets a user act on their own {id} and admins on any.
func (s *Server) ownerOrAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.withClaims(func(c *auth.Claims, r *http.Request) bool {
		return c.Role == common.RoleAdmin || (c.Role == common.RoleUser && c.UserID == r.PathValue("id"))
	}, next)
}

// withUploadSlot bounds concurrent uploads and the request body size. A
// request may carry up to files uploads of MaxUploadBytes each.
func (s *Server) withUploadSlot(files int64, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.uploads.TryAcquire(1) {
			w.Header().Set("Retry-After", retryAfter)
			s.writeJSON(w, http.StatusTooManyRequests, envelope{Message: "too many concurrent uploads"})
			return
		}
		defer s.uploads.Release(1)

		s.metrics.UploadStarted()
		defer s.metrics.UploadFinished()

		r.Body = http.MaxBytesReader(w, r.Body, files*s.opts.MaxUploadBytes+formOverhead)
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn(r.Context(), "health check failed", "err", err)
			s.writeJSON(w, http.StatusServiceUnavailable, envelope{Message: "unhealthy"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Message: "ok"})
}
