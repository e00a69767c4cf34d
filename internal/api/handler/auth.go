package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"banappeals/backend/internal/api/flash"
	"banappeals/backend/internal/api/session"
)

// Login starts the Discord OAuth flow with a one-time state nonce.
func (h *Handler) Login(c *gin.Context) {
	state := uuid.NewString()
	if err := h.Storage.SetOAuthState(state); err != nil {
		log.Printf("ERROR: Failed to store OAuth state: %v", err)
		flash.Redirect(c, "danger", "Login is unavailable right now. Please try again later.", "/")
		return
	}

	c.Redirect(http.StatusFound, h.OAuth.AuthCodeURL(state))
}

// Callback completes the OAuth flow: the state must match one we issued,
// and the code is exchanged for the caller's Discord identity, which is
// then sealed into the session cookie.
func (h *Handler) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		// The user declined the consent screen.
		c.Redirect(http.StatusFound, "/")
		return
	}

	state := c.Query("state")
	valid, err := h.Storage.ConsumeOAuthState(state)
	if err != nil {
		log.Printf("ERROR: Failed to verify OAuth state: %v", err)
		flash.Redirect(c, "danger", "Login failed. Please try again later.", "/")
		return
	}
	if !valid {
		flash.Redirect(c, "danger", "Your login session expired. Please try again.", "/")
		return
	}

	identity, err := h.OAuth.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		log.Printf("ERROR: OAuth code exchange failed: %v", err)
		flash.Redirect(c, "danger", "Login failed. Please try again later.", "/")
		return
	}

	token, err := session.Identity{
		DiscordID:   identity.User.ID,
		Username:    identity.User.Username,
		Avatar:      identity.User.Avatar,
		AccessToken: identity.AccessToken,
	}.Issue([]byte(h.Config.Server.SessionSecret))
	if err != nil {
		log.Printf("ERROR: Failed to issue session token: %v", err)
		flash.Redirect(c, "danger", "Login failed. Please try again later.", "/")
		return
	}

	c.SetCookie(session.CookieName, token, int(session.Lifetime.Seconds()), "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

// Logout clears the session cookie.
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie(session.CookieName, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}
