package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"banappeals/backend/internal/api/flash"
	"banappeals/backend/internal/api/middleware"
	"banappeals/backend/internal/appeal"
	"banappeals/backend/internal/storage"
)

// Submit accepts the appeal form and creates the caller's pending appeal.
func (h *Handler) Submit(c *gin.Context) {
	identity := middleware.Identity(c)

	form := appeal.Submission{
		BanExplanation:     c.PostForm("whyWereYouBanned"),
		UnbanExplanation:   c.PostForm("whyShouldYouBeUnbanned"),
		AdditionalComments: c.PostForm("anythingElseToAdd"),
	}

	ip := c.GetHeader("X-Real-IP")
	if ip == "" {
		ip = c.ClientIP()
	}

	_, err := h.Appeals.Submit(identity.User(), form, ip)
	switch {
	case err == nil:
		flash.Redirect(c, "info", "Your appeal has been successfully submitted.", "/")
	case errors.Is(err, appeal.ErrSubmissionsClosed):
		flash.Redirect(c, "danger", h.Config.Submissions.ClosedMessage, "/")
	case errors.Is(err, appeal.ErrEmptySubmission):
		flash.Redirect(c, "danger", "Your submission was empty.", "/")
	case errors.Is(err, appeal.ErrAlreadySubmitted):
		flash.Redirect(c, "danger", "You already submitted an appeal.", "/")
	case errors.Is(err, appeal.ErrNotBanned):
		flash.Redirect(c, "danger", "We could not find a ban on record for your account.", "/")
	default:
		log.Printf("ERROR: Failed to submit appeal for %d: %v", identity.DiscordID, err)
		flash.Redirect(c, "danger", "Something went wrong. Please try again later.", "/")
	}
}

// pastTense maps a review operation to the word shown in notices.
func pastTense(operation string) string {
	if operation == "approve" {
		return "approved"
	}
	return "rejected"
}

// ReviewOperation returns the handler that applies the given review
// operation to the appeal named in the path.
func (h *Handler) ReviewOperation(operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.Identity(c)

		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			flash.Redirect(c, "danger", "Invalid appeal id.", "/overview")
			return
		}

		err = h.Appeals.Decide(uint(id), operation, identity.User())
		switch {
		case err == nil:
			flash.Redirect(c, "info", fmt.Sprintf("Appeal #%d has been %s.", id, pastTense(operation)), "/review")
		case errors.Is(err, appeal.ErrInvalidOperation):
			flash.Redirect(c, "danger", "An invalid operation was provided for the appeal review.", "/overview")
		case errors.Is(err, storage.ErrAppealNotFound):
			flash.Redirect(c, "danger", "No appeal exists with that id.", "/overview")
		default:
			log.Printf("ERROR: Failed to %s appeal %d: %v", operation, id, err)
			flash.Redirect(c, "danger", "Something went wrong. Please try again later.", "/overview")
		}
	}
}

// SearchByDiscordID resolves a Discord snowflake to the matching appeal
// and forwards the reviewer to it.
func (h *Handler) SearchByDiscordID(c *gin.Context) {
	discordID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		flash.Redirect(c, "info", "Unable to find an appeal for that Discord ID.", "/overview")
		return
	}

	target, err := h.Storage.GetAppealByDiscordID(discordID)
	if err != nil {
		log.Printf("ERROR: Failed to search appeal for %d: %v", discordID, err)
		flash.Redirect(c, "danger", "Something went wrong. Please try again later.", "/overview")
		return
	}
	if target == nil {
		flash.Redirect(c, "info", "Unable to find an appeal for that Discord ID.", "/overview")
		return
	}

	c.Redirect(http.StatusFound, fmt.Sprintf("/review/%d", target.ID))
}

// Join lifts the caller's ban and joins them to the guild once their
// appeal has been approved.
func (h *Handler) Join(c *gin.Context) {
	identity := middleware.Identity(c)

	err := h.Appeals.JoinServer(identity.DiscordID, identity.AccessToken)
	switch {
	case err == nil:
		c.Redirect(http.StatusFound, "https://discord.com/channels/"+h.Discord.GuildID())
	case errors.Is(err, appeal.ErrNotEligible):
		c.Redirect(http.StatusFound, "/status")
	default:
		log.Printf("ERROR: Failed to join %d to the guild: %v", identity.DiscordID, err)
		flash.Redirect(c, "danger", "Something went wrong. Please try again later.", "/status")
	}
}
