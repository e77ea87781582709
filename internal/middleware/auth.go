package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "moneyminder/internal/errors"
	"moneyminder/internal/security"
)

// Session cookie and context keys shared with the handlers.
const (
	SessionCookieName = "auth_token"
	ContextUserID     = "userID"
	ContextEmail      = "email"
)

// SessionAuthenticator verifies a session token.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*security.SessionClaims, error)
}

// sessionToken reads the session cookie, falling back to a Bearer
// Authorization header for API clients.
func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthMiddleware verifies the session token and sets the user in the context.
func AuthMiddleware(auth SessionAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.Authenticate(c.Request.Context(), sessionToken(c))
		if err != nil {
			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) {
				appErr = apperrors.ErrUnauthorized
			}
			abortWithError(c, appErr)
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}
