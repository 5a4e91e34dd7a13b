package webkit

import (
	"log/slog"
	"net/http"
	"time"
)

// CORS adds permissive CORS headers for the checkout front end.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// RequestLog returns middleware that logs each request. At verbose level
// every request is logged; otherwise only server errors are.
func RequestLog(logger *slog.Logger, verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: 200}

			next.ServeHTTP(rec, r)

			switch {
			case rec.statusCode >= 500:
				logger.Error("request failed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.statusCode,
					"duration", time.Since(start),
				)
			case verbose:
				logger.Debug("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.statusCode,
					"duration", time.Since(start),
				)
			}
		})
	}
}
