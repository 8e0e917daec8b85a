package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// instance stamps every response with the serving instance name.
func (s *Server) instance(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.info.Instance != "" {
			w.Header().Set(HeaderInstance, s.info.Instance)
		}
		next.ServeHTTP(w, r)
	})
}

// requestLog writes one line per request.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
			"instance", s.info.Instance,
		)
	})
}
