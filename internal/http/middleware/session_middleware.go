package middleware

import (
	"context"
	"net/http"

	"github.com/casimir/freon/internal/http/response"
	"github.com/casimir/freon/internal/observability"
	"github.com/casimir/freon/internal/security"
)

// SessionCookieName carries the control-surface JWT.
const SessionCookieName = "freon_session"

const ClaimsContextKey contextKey = "claims"

// ControlSession guards the web control surface with the session cookie.
func ControlSession(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := security.GetCookie(r, SessionCookieName)
			if raw == "" {
				observability.RecordControlSessionValidation(r.Context(), "missing")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
				return
			}
			claims, err := jwtMgr.ParseSessionToken(raw)
			if err != nil {
				observability.RecordControlSessionValidation(r.Context(), "invalid")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session", nil)
				return
			}
			observability.RecordControlSessionValidation(r.Context(), "valid")
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSuperuser allows only superuser sessions through. It must run after
// ControlSession.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
			return
		}
		if !claims.IsSuperuser {
			response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "superuser required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}
