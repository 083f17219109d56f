package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// Middleware records HTTP request duration and count.
func (r *Recorder) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if r == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, req)

			status := strconv.Itoa(ww.status)
			path := "unknown"
			if rc := chi.RouteContext(req.Context()); rc != nil && rc.RoutePattern() != "" {
				// route patterns keep label cardinality bounded
				path = rc.RoutePattern()
			}

			r.httpRequestDuration.WithLabelValues(req.Method, path, status).Observe(time.Since(start).Seconds())
			r.httpRequestsTotal.WithLabelValues(req.Method, path, status).Inc()
		})
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}
