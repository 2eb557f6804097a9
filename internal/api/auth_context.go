package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/stagehand/internal/auth"
	domainerrors "github.com/listenupapp/stagehand/internal/errors"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// principalKey is the context key for the authenticated principal.
const principalKey ctxKey = "principal"

// GetPrincipal returns the authenticated caller from context.
// Returns 401 error if the request carried no valid token.
func GetPrincipal(ctx context.Context) (auth.Principal, error) {
	p, ok := ctx.Value(principalKey).(auth.Principal)
	if !ok || p.UserID == "" || p.SessionID == "" {
		return auth.Principal{}, huma.Error401Unauthorized("Authentication required")
	}
	return p, nil
}

// RequireAdmin returns the caller when it holds an admin token.
func RequireAdmin(ctx context.Context) (auth.Principal, error) {
	p, err := GetPrincipal(ctx)
	if err != nil {
		return auth.Principal{}, err
	}
	if !p.Admin {
		return auth.Principal{}, domainerrors.Forbidden("Admin access required")
	}
	return p, nil
}

// setPrincipal stores the principal in context.
func setPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// authMiddleware validates Bearer tokens and stores the principal in context.
// Requests without a valid token continue anonymously; handlers use
// GetPrincipal to reject them.
func authMiddleware(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok || tokens == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.VerifyAccessToken(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(setPrincipal(r.Context(), claims.Principal())))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}
