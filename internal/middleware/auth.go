package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shiva/ticketqueue/internal/apierror"
	"github.com/shiva/ticketqueue/internal/auth"
	"github.com/shiva/ticketqueue/internal/domain"
)

type contextKey string

const claimsKey contextKey = "claims"

// Authenticate parses the bearer token from the Authorization header (or,
// for the websocket upgrade which cannot set headers from a browser, the
// "token" query parameter per spec §4.7) and attaches its claims to the
// request context. Requests without a valid token are rejected with 401.
func Authenticate(jwtSvc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				apierror.Write(w, r, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
				return
			}

			claims, err := jwtSvc.Parse(token)
			if err != nil {
				apierror.Write(w, r, http.StatusUnauthorized, "unauthenticated", "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose authenticated claims are not an
// admin. Must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok || claims.Role != domain.RoleAdmin {
			apierror.Write(w, r, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}

// ClaimsFrom extracts the authenticated claims set by Authenticate.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}
