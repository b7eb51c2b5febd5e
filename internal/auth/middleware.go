package auth

import (
	"net/http"
	"strings"

	"github.com/lexpilot/lexpilot/internal/platform/httpx"
	"github.com/lexpilot/lexpilot/internal/shared"
)

// TokenParser resolves bearer tokens into principals.
type TokenParser interface {
	ParseToken(raw string) (*shared.Principal, error)
}

// Bearer attaches the principal named by a valid Authorization header. A
// missing or invalid token leaves the request anonymous.
func Bearer(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" || parser == nil {
				next.ServeHTTP(w, r)
				return
			}
			principal, err := parser.ParseToken(raw)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdmin rejects anonymous callers with 401 and non-admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := shared.PrincipalFromContext(r.Context())
		switch {
		case principal == nil:
			w.Header().Set("WWW-Authenticate", `Bearer realm="lexpilot"`)
			httpx.RespondError(w, httpx.ErrUnauthorized)
		case !principal.IsAdmin():
			httpx.RespondError(w, httpx.ErrForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
