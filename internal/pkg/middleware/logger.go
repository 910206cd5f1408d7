package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gamma-omg/partyparty/internal/pkg/router"
)

type httpStatusWriter struct {
	Status int
	Bytes  int
	inner  http.ResponseWriter
}

func (sw *httpStatusWriter) Header() http.Header {
	return sw.inner.Header()
}

func (sw *httpStatusWriter) WriteHeader(status int) {
	if sw.Status == 0 {
		sw.Status = status
	}
	sw.inner.WriteHeader(status)
}

func (sw *httpStatusWriter) Write(b []byte) (int, error) {
	if sw.Status == 0 {
		sw.Status = http.StatusOK
	}
	n, err := sw.inner.Write(b)
	sw.Bytes += n
	return n, err
}

// levelFor logs client errors as warnings and server errors as errors.
func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Log writes one line per request to the default logger.
func Log() router.Middleware {
	return LogWith(slog.Default())
}

func LogWith(l *slog.Logger) router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			statusWriter := &httpStatusWriter{inner: w}
			t := time.Now()

			next.ServeHTTP(statusWriter, r)
			if statusWriter.Status == 0 {
				statusWriter.Status = http.StatusOK
			}

			l.Log(r.Context(), levelFor(statusWriter.Status), "request handled",
				"duration", time.Since(t),
				"method", r.Method,
				"url", r.URL.String(),
				"ip", r.RemoteAddr,
				"status", statusWriter.Status,
				"bytes", statusWriter.Bytes,
				"agent", r.UserAgent(),
				"request_id", RequestIDFromContext(r.Context()))
		})
	}
}
