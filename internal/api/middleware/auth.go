// Package middleware holds the request-scoped checks that run before
// handler bodies: session authentication, the staff/admin guards, and
// the submission rate limit.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"banappeals/backend/internal/api/flash"
	"banappeals/backend/internal/api/session"
)

const identityKey = "identity"

// RequireAuth validates the session cookie and stores the caller's
// identity in the request context. Requests without a valid session are
// sent to the login flow.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(session.CookieName)
		if err != nil || token == "" {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		identity, err := session.Parse(token, secret)
		if err != nil {
			// Stale or forged cookie: drop it and start over.
			c.SetCookie(session.CookieName, "", -1, "/", "", false, true)
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// Identity returns the authenticated caller stored by RequireAuth, or
// nil when the request is anonymous.
func Identity(c *gin.Context) *session.Identity {
	value, exists := c.Get(identityKey)
	if !exists {
		return nil
	}
	identity, ok := value.(*session.Identity)
	if !ok {
		return nil
	}
	return identity
}

// StaffOnly refuses callers whose Discord id is not on the staff
// allow-list. Must run after RequireAuth.
func StaffOnly(staff map[int64]struct{}) gin.HandlerFunc {
	return requireMembership(staff)
}

// AdminOnly refuses callers whose Discord id is not on the admin
// allow-list. Must run after RequireAuth.
func AdminOnly(admins map[int64]struct{}) gin.HandlerFunc {
	return requireMembership(admins)
}

func requireMembership(allowed map[int64]struct{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := Identity(c)
		if identity == nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		if _, ok := allowed[identity.DiscordID]; !ok {
			flash.Set(c, "danger", "You do not have permission to access that.")
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}
