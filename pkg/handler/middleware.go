package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/parlor/parlor/pkg/models"
	"github.com/parlor/parlor/pkg/service"
)

const userIDKey = "user_id"

// RequireAuth rejects requests without a valid bearer token: 401 when the
// header is missing, 403 when the token does not verify. On success the
// user id is stored on the request context.
func RequireAuth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		userID, err := auth.ParseToken(token)
		if err != nil {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// OptionalAuth establishes the caller's identity when a valid token is
// present but lets anonymous requests through; those act as the
// placeholder owner. The message endpoints use this.
func OptionalAuth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if userID, err := auth.ParseToken(token); err == nil {
				c.Set(userIDKey, userID)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user id, or the placeholder owner
// when the request carried no identity.
func CurrentUser(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return models.PlaceholderOwner
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
