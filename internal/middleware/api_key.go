package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "derroche/internal/errors"
)

// apiKeyHeader is the header ops clients authenticate with.
const apiKeyHeader = "X-API-Key"

// APIKeyAuth creates a Gin middleware that validates the X-API-Key header
// against the configured ops key. With no key configured the ops API is closed.
func APIKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, apperrors.ErrNotConfigured)
			return
		}
		key := c.GetHeader(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}

func abortWithError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"error": gin.H{"code": appErr.Code, "message": appErr.Message},
	})
}
