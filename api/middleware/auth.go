package middleware

import (
	"net/http"
	"strings"

	"github.com/hotmess/hotmess-backend/api/responses"
	pkgAuth "github.com/hotmess/hotmess-backend/pkg/auth"
	"github.com/hotmess/hotmess-backend/pkg/config"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/logger"
)

// Auth verifies a Supabase access token and seeds the request context with the
// caller's id and email.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token, found := strings.CutPrefix(raw, "Bearer ")
			if !found {
				token, found = strings.CutPrefix(raw, "bearer ")
			}
			token = strings.TrimSpace(token)
			if !found || token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.Role != pkgAuth.AuthenticatedRole {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required"))
				return
			}

			userID := claims.Subject
			ctx := WithUserID(r.Context(), userID)
			ctx = WithEmail(ctx, claims.Email)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
