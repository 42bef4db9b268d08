package httpx

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/oggyb/kinnect/internal/db"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/logger"
	"github.com/oggyb/kinnect/internal/token"
)

type principalKey struct{}

// Principal is the authenticated caller of a request.
type Principal struct {
	ID   string
	Role db.Role
}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored by Authenticate.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// CallerID returns the authenticated caller id, or "" outside an authenticated route.
func CallerID(r *http.Request) string {
	p, _ := PrincipalFrom(r.Context())
	return p.ID
}

// Authenticate verifies the bearer access token and admits only the given roles.
func Authenticate(tokens *token.Issuer, roles ...db.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				Error(w, r, svcErr.Unauthorized("TOKEN_MISSING", "missing bearer token"))
				return
			}

			claims, err := tokens.ParseAccess(raw)
			if err != nil {
				Error(w, r, svcErr.Unauthorized("TOKEN_INVALID", "invalid or expired token"))
				return
			}

			role := db.Role(claims.Role)
			if len(roles) > 0 && !slices.Contains(roles, role) {
				Error(w, r, svcErr.Forbidden("ROLE_FORBIDDEN", "not allowed for this role"))
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{ID: claims.Subject, Role: role})
			ctx = logger.ContextWith(ctx, logger.FromContext(ctx, logger.L()).With("caller", claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
