package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const identityKey = "auth.identity"

// Verifier checks a raw bearer token.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// RejectHook observes a rejected credential before the 401 is written.
type RejectHook func(c *gin.Context, err error)

// Middleware rejects unauthenticated requests with 401 and stores the Identity on the gin context.
func Middleware(v Verifier, hooks ...RejectHook) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := v.Verify(TokenFromRequest(c.Request))
		if err != nil {
			for _, h := range hooks {
				h(c, err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// IdentityFrom returns the Identity stored by Middleware.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
