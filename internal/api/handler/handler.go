package handler

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gin-gonic/gin"

	"banappeals/backend/internal/api/middleware"
	"banappeals/backend/internal/appeal"
	"banappeals/backend/internal/config"
	"banappeals/backend/internal/discord"
	"banappeals/backend/internal/storage"
)

// OAuthFlow is the part of the Discord login flow the handlers drive.
type OAuthFlow interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*discord.Identity, error)
}

// Handler wires the HTTP surface to the appeal service and storage.
type Handler struct {
	Config  *config.Config
	Storage storage.Storage
	Appeals *appeal.Service
	Discord appeal.Directory
	OAuth   OAuthFlow
}

func NewHandler(cfg *config.Config, s storage.Storage, appeals *appeal.Service, d appeal.Directory, oauth OAuthFlow) *Handler {
	return &Handler{
		Config:  cfg,
		Storage: s,
		Appeals: appeals,
		Discord: d,
		OAuth:   oauth,
	}
}

// RegisterRoutes attaches every endpoint and its middleware chain.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	secret := []byte(h.Config.Server.SessionSecret)
	staff := h.Config.Roles.StaffSet()
	admins := h.Config.Roles.AdminSet()

	r.GET("/", h.Index)

	r.GET("/login", h.Login)
	r.GET("/callback", h.Callback)
	r.GET("/logout", middleware.RequireAuth(secret), h.Logout)

	authed := r.Group("/", middleware.RequireAuth(secret))
	authed.POST("/submit", middleware.SubmitRateLimit(h.Config.Submissions.RatePerMinute), h.Submit)
	authed.GET("/status", h.Status)
	authed.GET("/join", h.Join)

	staffOnly := r.Group("/", middleware.RequireAuth(secret), middleware.StaffOnly(staff))
	staffOnly.GET("/review", h.Review)
	staffOnly.GET("/review/:id", h.Review)
	staffOnly.GET("/review/approve/:id", h.ReviewOperation("approve"))
	staffOnly.GET("/review/reject/:id", h.ReviewOperation("reject"))
	staffOnly.GET("/approve/:id", h.ReviewOperation("approve"))
	staffOnly.GET("/reject/:id", h.ReviewOperation("reject"))
	staffOnly.GET("/search/id/:id", h.SearchByDiscordID)
	staffOnly.GET("/overview", h.Overview)

	r.GET("/admin", middleware.RequireAuth(secret), middleware.AdminOnly(admins), h.Admin)
}

// lookupProfile resolves a Discord profile for display, going through the
// redis cache before the Discord API. Lookup failures degrade to a bare
// id rather than failing the page.
func (h *Handler) lookupProfile(discordID int64) discord.User {
	if cached, err := h.Storage.CachedUserProfile(discordID); err == nil && cached != "" {
		var user discord.User
		if err := json.Unmarshal([]byte(cached), &user); err == nil {
			return user
		}
	}

	user, err := h.Discord.FetchUser(discordID)
	if err != nil {
		log.Printf("ERROR: Failed to fetch Discord profile for %d: %v", discordID, err)
		return discord.User{ID: discordID, Username: "unknown"}
	}

	if encoded, err := json.Marshal(user); err == nil {
		if err := h.Storage.CacheUserProfile(discordID, string(encoded)); err != nil {
			log.Printf("ERROR: Failed to cache Discord profile for %d: %v", discordID, err)
		}
	}
	return *user
}
