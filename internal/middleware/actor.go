package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/medvault/medvault-api/internal/handler"
)

// Actor copies the caller-supplied X-User-Code header into the request
// context. The header is trusted as-is; there is no verification that the
// caller actually is that user.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if code := c.GetHeader("X-User-Code"); code != "" {
			c.Set(handler.ActorKey, code)
		}
		c.Next()
	}
}
