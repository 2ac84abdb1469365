package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"docsearch/pkg/logger"
)

// Timeout cancels the request context after the given duration and replies
// with the service's JSON error shape if the handler has not written yet.
// Queries are index-bound and fast, so a fired deadline usually points at a
// stalled cache or analytics dependency; the reply carries the request ID
// for correlation.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			dw := &deadlineWriter{ResponseWriter: w}
			go func() {
				next.ServeHTTP(dw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if dw.replied.Load() {
					return
				}
				logger.FromContext(r.Context()).Warn("request deadline exceeded",
					"method", r.Method,
					"path", r.URL.Path,
					"timeout", timeout,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusGatewayTimeout)
				json.NewEncoder(w).Encode(map[string]string{
					"error":      "request timed out",
					"request_id": GetRequestID(r.Context()),
				})
			}
		})
	}
}

// deadlineWriter records whether the handler replied before the deadline so
// the timeout response is only written to an untouched connection.
type deadlineWriter struct {
	http.ResponseWriter
	replied atomic.Bool
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.replied.Store(true)
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.replied.Store(true)
	return dw.ResponseWriter.Write(b)
}
