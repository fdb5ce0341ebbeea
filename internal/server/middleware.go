package server

import (
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/maruel/treksync/internal/errors"
	"github.com/maruel/treksync/internal/server/reqctx"
)

// ClientIPMiddleware records the client IP in the request context.
func ClientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := reqctx.WithClientIP(r.Context(), reqctx.GetClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthMiddleware validates JWT tokens and adds the trekker name to the
// context.
//
// The token comes from the Authorization header, or from the token query
// parameter for browsers opening a WebSocket. Requests without a token are
// rejected only when required is set; an invalid token is always rejected.
func AuthMiddleware(jwtSecret []byte, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/v1/health" || !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			tokenString, ok := bearerToken(r)
			if !ok {
				WriteError(w, apierrors.Unauthorized().WithDetail("reason", "invalid authorization header"))
				return
			}
			if tokenString == "" {
				if required {
					WriteError(w, apierrors.Unauthorized())
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			name, err := ParseToken(jwtSecret, tokenString)
			if err != nil {
				slog.WarnContext(r.Context(), "Rejected token", "err", err, "ip", reqctx.ClientIP(r.Context()))
				WriteError(w, apierrors.Unauthorized().Wrap(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(reqctx.WithSubject(r.Context(), name)))
		})
	}
}

// bearerToken returns the token of r, "" when there is none. ok is false
// for a malformed Authorization header.
func bearerToken(r *http.Request) (token string, ok bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", false
		}
		return token, true
	}
	return r.URL.Query().Get("token"), true
}
