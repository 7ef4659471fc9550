package auth

import (
	"strings"

	"svgforge-go/internal/apierr"

	"github.com/gin-gonic/gin"
)

// TokenFromRequest pulls the session token from the Authorization header
// or the X-Session-Token header.
func TokenFromRequest(c *gin.Context) string {
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return strings.TrimSpace(c.GetHeader("X-Session-Token"))
}

// RequireSession rejects requests without a valid session and stores the
// session on the context for handlers downstream.
func RequireSession(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			apierr.Unauthorized(c, "Missing session token")
			return
		}
		session, ok := m.Validate(token)
		if !ok {
			apierr.Unauthorized(c, "Invalid or expired session")
			return
		}
		c.Set("session", session)
		c.Set("user_email", session.User.Email)
		c.Next()
	}
}

// SessionFrom returns the session set by RequireSession.
func SessionFrom(c *gin.Context) (*Session, bool) {
	v, ok := c.Get("session")
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}
