package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rolodex/pkg/auth"
	"github.com/platinummonkey/rolodex/pkg/contextkeys"
	"github.com/platinummonkey/rolodex/pkg/httputil"
	"github.com/platinummonkey/rolodex/pkg/observability"
)

// CredentialsErrorMessage is the single message returned for every bearer failure
const CredentialsErrorMessage = "Could not validate credentials"

// IdentityResolver turns an access token into the user it was issued to
type IdentityResolver interface {
	CurrentUser(ctx context.Context, accessToken string) (*auth.User, error)
}

// AuthMiddleware provides bearer authentication middleware
type AuthMiddleware struct {
	resolver IdentityResolver
	logger   logrus.FieldLogger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(resolver IdentityResolver, logger logrus.FieldLogger) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		logger:   logger,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			httputil.WriteUnauthorized(w, CredentialsErrorMessage)
			return
		}

		user, err := m.resolver.CurrentUser(r.Context(), token)
		if err != nil || user == nil {
			observability.LoggerFromContext(r.Context(), m.logger).
				WithError(err).
				Debug("bearer authentication failed")
			httputil.WriteUnauthorized(w, CredentialsErrorMessage)
			return
		}

		ctx := contextkeys.WithUser(r.Context(), user)
		ctx = contextkeys.WithUserID(ctx, user.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// UserFromContext returns the authenticated user set by AuthMiddleware
func UserFromContext(ctx context.Context) (*auth.User, bool) {
	user, ok := ctx.Value(contextkeys.UserKey).(*auth.User)
	return user, ok && user != nil
}
