package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// Unauthorized renders a rejected request. Adapters supply their envelope.
type Unauthorized func(c *gin.Context, message string)

// LecturerAuth enforces bearer session tokens issued by iss.
func LecturerAuth(iss *Issuer, reject Unauthorized) gin.HandlerFunc {
	if reject == nil {
		reject = func(c *gin.Context, message string) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
		}
	}
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
			reject(c, "missing bearer token")
			return
		}
		claims, err := iss.Parse(strings.TrimSpace(authz[len("bearer "):]))
		if err != nil {
			reject(c, "invalid token")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by LecturerAuth.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}
