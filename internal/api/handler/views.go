package handler

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"banappeals/backend/internal/api/flash"
	"banappeals/backend/internal/api/middleware"
	"banappeals/backend/internal/api/session"
	"banappeals/backend/internal/models"
)

// Index renders the landing page: a login button for anonymous visitors,
// the appeal form for authenticated users without a submission, and a
// pointer to their status otherwise.
func (h *Handler) Index(c *gin.Context) {
	data := gin.H{
		"Flash":         flash.Pop(c),
		"Accepting":     h.Config.Submissions.Open,
		"ClosedMessage": h.Config.Submissions.ClosedMessage,
	}

	// The landing page works logged out, so the session check is
	// best-effort here instead of going through RequireAuth.
	if token, err := c.Cookie(session.CookieName); err == nil && token != "" {
		if identity, err := session.Parse(token, []byte(h.Config.Server.SessionSecret)); err == nil {
			data["User"] = identity

			staff := h.Config.Roles.StaffSet()
			_, isStaff := staff[identity.DiscordID]
			data["IsStaff"] = isStaff

			existing, err := h.Storage.GetAppealByDiscordID(identity.DiscordID)
			if err != nil {
				log.Printf("ERROR: Failed to look up appeal for %d: %v", identity.DiscordID, err)
			}
			data["HasAppeal"] = existing != nil
		}
	}

	c.HTML(http.StatusOK, "index.htm", data)
}

// Review renders one appeal for decision. Without an id it shows the
// oldest pending appeal, the head of the review queue.
func (h *Handler) Review(c *gin.Context) {
	identity := middleware.Identity(c)

	var target *models.Appeal
	var err error
	if raw := c.Param("id"); raw != "" {
		id, parseErr := strconv.ParseUint(raw, 10, 64)
		if parseErr != nil {
			flash.Redirect(c, "danger", "Invalid appeal id.", "/overview")
			return
		}
		target, err = h.Storage.GetAppealByID(uint(id))
	} else {
		target, err = h.Storage.GetOldestPendingAppeal()
	}
	if err != nil {
		log.Printf("ERROR: Failed to load appeal for review: %v", err)
		flash.Redirect(c, "danger", "Something went wrong. Please try again later.", "/overview")
		return
	}
	if target == nil {
		flash.Redirect(c, "info", "There are no appeals to review.", "/overview")
		return
	}

	previous, next, err := h.Storage.GetSurroundingAppeals(target.ID)
	if err != nil {
		log.Printf("ERROR: Failed to load surrounding appeals for %d: %v", target.ID, err)
	}

	stats, err := h.Storage.GetStats()
	if err != nil {
		log.Printf("ERROR: Failed to load stats: %v", err)
	}

	c.HTML(http.StatusOK, "review.htm", gin.H{
		"Flash":     flash.Pop(c),
		"Reviewer":  identity,
		"Applicant": h.lookupProfile(target.DiscordID),
		"Appeal":    target,
		"Previous":  previous,
		"Next":      next,
		"Stats":     stats,
	})
}

// Status shows the caller their own appeal and its outcome.
func (h *Handler) Status(c *gin.Context) {
	identity := middleware.Identity(c)

	target, err := h.Storage.GetAppealByDiscordID(identity.DiscordID)
	if err != nil {
		log.Printf("ERROR: Failed to load appeal for %d: %v", identity.DiscordID, err)
		flash.Redirect(c, "danger", "Something went wrong. Please try again later.", "/")
		return
	}
	if target == nil {
		flash.Redirect(c, "danger", "You have not submitted an appeal.", "/")
		return
	}

	c.HTML(http.StatusOK, "status.htm", gin.H{
		"Flash":  flash.Pop(c),
		"User":   identity,
		"Appeal": target,
	})
}

// Overview lists every decided appeal together with aggregate stats.
func (h *Handler) Overview(c *gin.Context) {
	identity := middleware.Identity(c)

	stats, err := h.Storage.GetStats()
	if err != nil {
		log.Printf("ERROR: Failed to load stats: %v", err)
		flash.Redirect(c, "danger", "Something went wrong. Please try again later.", "/")
		return
	}

	reviewed, err := h.Storage.GetReviewedAppeals()
	if err != nil {
		log.Printf("ERROR: Failed to load reviewed appeals: %v", err)
		flash.Redirect(c, "danger", "Something went wrong. Please try again later.", "/")
		return
	}

	// Reviewer ids on decided appeals resolve to display names through
	// the reviewers cache.
	reviewerNames := make(map[int64]string)
	for _, item := range reviewed {
		if item.Reviewer == nil {
			continue
		}
		if _, seen := reviewerNames[*item.Reviewer]; seen {
			continue
		}
		reviewer, err := h.Storage.GetReviewer(*item.Reviewer)
		if err != nil || reviewer == nil {
			reviewerNames[*item.Reviewer] = strconv.FormatInt(*item.Reviewer, 10)
			continue
		}
		reviewerNames[*item.Reviewer] = reviewer.Username
	}

	c.HTML(http.StatusOK, "overview.htm", gin.H{
		"Flash":         flash.Pop(c),
		"Reviewer":      identity,
		"Stats":         stats,
		"Appeals":       reviewed,
		"ReviewerNames": reviewerNames,
	})
}

// Admin renders the admin panel with aggregate stats.
func (h *Handler) Admin(c *gin.Context) {
	identity := middleware.Identity(c)

	stats, err := h.Storage.GetStats()
	if err != nil {
		log.Printf("ERROR: Failed to load stats: %v", err)
		flash.Redirect(c, "danger", "Something went wrong. Please try again later.", "/")
		return
	}

	c.HTML(http.StatusOK, "admin.htm", gin.H{
		"Flash":    flash.Pop(c),
		"Reviewer": identity,
		"Stats":    stats,
	})
}
