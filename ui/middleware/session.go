package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionKey = "riskscore.session"

// EnsureSession makes sure every request carries a browser session id.
// Missing or malformed cookies are replaced with a fresh uuid.
func EnsureSession(cookie string, maxAge int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(cookie); err == nil {
			if id, err := uuid.Parse(raw); err == nil {
				c.Set(sessionKey, id.String())
				c.Next()
				return
			}
			log.Printf("[EnsureSession] discarding malformed session cookie")
		}

		id := uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookie, id, maxAge, "/", "", false, true)
		c.Set(sessionKey, id)
		c.Next()
	}
}

// SessionID returns the id set by EnsureSession, or "" outside of it
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
