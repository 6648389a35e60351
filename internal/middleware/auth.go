package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/todo-api/internal/auth"
	"github.com/yukikurage/todo-api/internal/constants"
	apierrors "github.com/yukikurage/todo-api/internal/errors"
)

const bearerPrefix = "Bearer "

// RequireAuth checks the bearer access token of the request
func RequireAuth(verifier auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			apierrors.Unauthorized(c, "")
			return
		}
		if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			apierrors.Unauthorized(c, "Invalid authorization header format. Use: Bearer <token>")
			return
		}

		token := strings.TrimSpace(header[len(bearerPrefix):])
		identity, err := verifier.VerifyAccessToken(token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				apierrors.Unauthorized(c, "Token has expired")
				return
			}
			apierrors.Unauthorized(c, "Invalid token")
			return
		}

		// Store identity in context for easy access in handlers
		c.Set(constants.ContextKeyUserID, identity.UserID)
		c.Set(constants.ContextKeyUsername, identity.Username)
		c.Next()
	}
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}

	switch v := userID.(type) {
	case uint64:
		return v, v != 0
	case uint:
		return uint64(v), v != 0
	case int:
		if v <= 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}
