package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// Context keys, shared with pkg/log so request logs carry the caller.
const (
	UserIDKey   = "user_id"
	UsernameKey = "username"

	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// ValidateFunc checks a bearer token and returns the caller identity.
type ValidateFunc func(ctx context.Context, token string) (userID, username string, err error)

type AuthMiddleware struct {
	validate ValidateFunc
}

func NewAuthMiddleware(validate ValidateFunc) *AuthMiddleware {
	return &AuthMiddleware{validate: validate}
}

// RequireAuth rejects requests without a valid bearer token. Rejections
// never say why the token was refused.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader(AuthHeaderKey), BearerPrefix)
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			response.Unauthorized(c, "bearer token required")
			return
		}

		userID, username, err := m.validate(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(UsernameKey, username)
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func GetUsername(c *gin.Context) string {
	return c.GetString(UsernameKey)
}
