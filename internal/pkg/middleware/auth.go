package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gamma-omg/partyparty/internal/pkg/httpx"
	"github.com/gamma-omg/partyparty/internal/pkg/router"
	"github.com/gamma-omg/partyparty/internal/pkg/serr"
)

var ErrInvalidToken = errors.New("invalid token")

// Principal is the caller proven by a bearer token. Token is the raw credential so that it
// can be forwarded to downstream services.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Token  string
}

// TokenVerifier checks a raw bearer token and returns its principal.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (Principal, error)
}

type ctxKey struct{}

var principalKey ctxKey

func Auth(v TokenVerifier) router.Middleware {
	return func(next http.Handler) http.Handler {
		return authMiddleware(next, v)
	}
}

func authMiddleware(next http.Handler, v TokenVerifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, serr.KindNotAuthenticated, "Unauthorized")
			return
		}

		p, err := v.Verify(r.Context(), raw)
		if err != nil {
			authError("failed to verify token", w, r, err)
			return
		}
		if p.UserID == "" {
			authError("token has no subject", w, r, ErrInvalidToken)
			return
		}

		p.Token = raw
		ctx := context.WithValue(r.Context(), principalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken accepts both "Bearer <token>" and a bare token.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(tok)
	}
	return h
}

func authError(msg string, w http.ResponseWriter, r *http.Request, err error) {
	slog.Error(msg,
		"error", err,
		"method", r.Method,
		"url", r.URL.String(),
		"remote_addr", r.RemoteAddr,
		"request_id", RequestIDFromContext(r.Context()),
	)
	writeError(w, serr.KindNotAuthenticated, "Unauthorized")
}

// writeError answers with the same JSON body the handlers use for failures.
func writeError(w http.ResponseWriter, kind serr.Kind, msg string) {
	resp := httpx.ErrorResponse{Error: kind, Message: msg}
	if err := httpx.WriteJSON(w, httpx.StatusOf(kind), resp); err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
