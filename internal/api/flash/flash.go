// Package flash implements one-shot notices carried across a redirect in
// a short-lived cookie.
package flash

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const cookieName = "appeal_flash"

// Notice is a single user-visible message with a display level
// ("info" or "danger").
type Notice struct {
	Level   string
	Message string
}

// Set stores a notice for the next rendered page.
func Set(c *gin.Context, level, message string) {
	value := url.QueryEscape(level + "|" + message)
	c.SetCookie(cookieName, value, 60, "/", "", false, true)
}

// Pop returns the pending notice, if any, and clears it.
func Pop(c *gin.Context) *Notice {
	raw, err := c.Cookie(cookieName)
	if err != nil || raw == "" {
		return nil
	}
	c.SetCookie(cookieName, "", -1, "/", "", false, true)

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return nil
	}

	level, message, found := strings.Cut(decoded, "|")
	if !found {
		return &Notice{Level: "info", Message: decoded}
	}
	return &Notice{Level: level, Message: message}
}

// Redirect sets a notice and sends the user to target in one step.
func Redirect(c *gin.Context, level, message, target string) {
	Set(c, level, message)
	c.Redirect(http.StatusFound, target)
}
