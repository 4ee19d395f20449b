package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/auth"
)

// SessionKey is the context key for the verified caller.
const SessionKey = "session"

// Authenticate verifies the bearer token and stores the session in both the
// Gin context and the request context. Requests without a valid token get 401.
func Authenticate(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		var session *auth.Session
		if err == nil {
			session, err = verifier.Verify(token)
		}
		if err != nil {
			if log := GetLogger(c); log != nil {
				log.Warn("Rejected token", map[string]interface{}{
					"path":   c.Request.URL.Path,
					"reason": err.Error(),
				})
			}

			message := "A valid bearer token is required"
			if errors.Is(err, auth.ErrExpiredToken) {
				message = "The session has expired, sign in again"
			}
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
			return
		}

		c.Set(SessionKey, session)
		c.Request = c.Request.WithContext(auth.WithSession(c.Request.Context(), session))
		c.Next()
	}
}

// RequireAdmin rejects authenticated callers without back office access.
// It must run after Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := GetSession(c)
		if session == nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "A valid bearer token is required")
			return
		}
		if err := auth.RequireAdmin(session); err != nil {
			if log := GetLogger(c); log != nil {
				log.Warn("Admin access denied", map[string]interface{}{
					"subject": session.Subject,
					"path":    c.Request.URL.Path,
				})
			}
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Admin access is required")
			return
		}
		c.Next()
	}
}

// GetSession returns the verified caller, or nil for anonymous requests.
func GetSession(c *gin.Context) *auth.Session {
	if v, exists := c.Get(SessionKey); exists {
		if s, ok := v.(*auth.Session); ok {
			return s
		}
	}
	return nil
}
