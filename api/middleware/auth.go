package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/berserkarray/webscraperv2/models"
)

// APIKeyKey is the gin context key holding the authenticated API key.
const APIKeyKey = "api_key"

// Auth returns API-key authentication middleware.
//
// Accepted headers:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// With no configured keys every request is rejected, so enabling auth
// without keys fails closed.
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Detail: "missing API key: provide X-API-Key header or Authorization: Bearer <key>",
				Code:   models.ErrCodeUnauthorized,
			})
			return
		}

		if !validKey(keys, []byte(key)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Detail: "invalid API key",
				Code:   models.ErrCodeUnauthorized,
			})
			return
		}

		c.Set(APIKeyKey, key)
		c.Next()
	}
}

// validKey compares against every key so timing does not reveal which
// prefix matched.
func validKey(keys [][]byte, candidate []byte) bool {
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare(k, candidate)
	}
	return ok == 1
}

func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
