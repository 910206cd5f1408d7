package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gamma-omg/partyparty/internal/pkg/router"
	"github.com/gamma-omg/partyparty/internal/pkg/serr"
)

// Recover turns a panicking handler into a 500 response. http.ErrAbortHandler is passed
// through so the server can drop the connection.
func Recover() router.Middleware {
	return RecoverWith(slog.Default())
}

func RecoverWith(l *slog.Logger) router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				l.Error("handler panicked",
					"panic", v,
					"method", r.Method,
					"url", r.URL.String(),
					"remote_addr", r.RemoteAddr,
					"request_id", RequestIDFromContext(r.Context()),
					"stack_trace", string(debug.Stack()),
				)
				writeError(w, serr.KindInternal, "Internal Server Error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
