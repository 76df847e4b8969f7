package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tripdesk/backend/internal/apperr"
	"github.com/tripdesk/backend/internal/auth"
)

const principalKey = "principal"

// Auth requires a valid bearer token and stores the caller's principal on the
// gin context and on the request context.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			_ = c.Error(apperr.Unauthorized("Missing bearer token"))
			c.Abort()
			return
		}
		p, err := auth.ParseToken(secret, strings.TrimSpace(token))
		if err != nil {
			_ = c.Error(apperr.Unauthorized("Invalid or expired token").Wrap(err))
			c.Abort()
			return
		}
		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			_ = c.Error(apperr.Unauthorized("Authentication required"))
			c.Abort()
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		_ = c.Error(apperr.Forbidden("Insufficient role"))
		c.Abort()
	}
}

// RequirePermission checks the caller against the static role grants and any
// permissions listed in the token.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			_ = c.Error(apperr.Unauthorized("Authentication required"))
			c.Abort()
			return
		}
		if !p.Has(permission) {
			_ = c.Error(apperr.Forbidden("Missing permission " + permission))
			c.Abort()
			return
		}
		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}
