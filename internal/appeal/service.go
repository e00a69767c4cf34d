// Package appeal implements the appeal lifecycle: submission with its
// validation rules, the approve/reject review transitions, and the
// post-approval guild join.
package appeal

import (
	"errors"
	"log"
	"strings"
	"time"

	"banappeals/backend/internal/config"
	"banappeals/backend/internal/discord"
	"banappeals/backend/internal/ipcheck"
	"banappeals/backend/internal/models"
	"banappeals/backend/internal/storage"

	"gorm.io/gorm"
)

var (
	ErrSubmissionsClosed = errors.New("submissions are closed")
	ErrEmptySubmission   = errors.New("submission has no content")
	ErrAlreadySubmitted  = errors.New("an appeal already exists for this user")
	ErrNotBanned         = errors.New("user has no ban on record")
	ErrInvalidOperation  = errors.New("invalid review operation")
	ErrNotEligible       = errors.New("appeal is not approved")
)

// Directory is the slice of the Discord API the lifecycle needs.
type Directory interface {
	FetchUser(id int64) (*discord.User, error)
	GetBan(userID int64) (reason string, found bool, err error)
	RemoveBan(userID int64) error
	AddGuildMember(userID int64, accessToken string) error
	GuildID() string
}

// Submission carries the free-text fields from the appeal form.
type Submission struct {
	BanExplanation     string
	UnbanExplanation   string
	AdditionalComments string
}

// Service handles the business logic for appeals.
type Service struct {
	Storage     storage.Storage
	Discord     Directory
	IPCheck     ipcheck.Checker
	Submissions config.SubmissionsConfig
}

// NewService creates a new appeal service. checker may be nil when the
// reputation lookup is disabled.
func NewService(s storage.Storage, d Directory, checker ipcheck.Checker, cfg config.SubmissionsConfig) *Service {
	return &Service{
		Storage:     s,
		Discord:     d,
		IPCheck:     checker,
		Submissions: cfg,
	}
}

// Submit validates and persists a new pending appeal for the user.
// Free-text fields are truncated to the form limit before storage.
func (s *Service) Submit(user discord.User, form Submission, ip string) (*models.Appeal, error) {
	if !s.Submissions.Open {
		return nil, ErrSubmissionsClosed
	}

	if strings.TrimSpace(form.BanExplanation) == "" &&
		strings.TrimSpace(form.UnbanExplanation) == "" &&
		strings.TrimSpace(form.AdditionalComments) == "" {
		return nil, ErrEmptySubmission
	}

	existing, err := s.Storage.GetAppealByDiscordID(user.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadySubmitted
	}

	banReason, banned, err := s.Discord.GetBan(user.ID)
	if err != nil {
		return nil, err
	}
	if !banned {
		return nil, ErrNotBanned
	}

	if s.IPCheck != nil {
		// Lookup failures admit the submission; a positive verdict only
		// annotates the stored address for the reviewer.
		flagged, err := s.IPCheck.IsProxy(ip)
		if err != nil {
			log.Printf("ERROR: Proxy check for %s failed, admitting submission: %v", ip, err)
		} else if flagged {
			ip += " (proxy)"
		}
	}

	appeal := &models.Appeal{
		DiscordUser:        user.Username,
		DiscordID:          user.ID,
		BanReason:          banReason,
		BanExplanation:     models.Truncate(form.BanExplanation),
		UnbanExplanation:   models.Truncate(form.UnbanExplanation),
		AdditionalComments: models.Truncate(form.AdditionalComments),
		Timestamp:          time.Now().Unix(),
		IPAddress:          ip,
	}

	if err := s.Storage.CreateAppeal(appeal); err != nil {
		// Two submissions racing past the existence check: the unique
		// index on discord_id rejects the loser.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadySubmitted
		}
		return nil, err
	}

	return appeal, nil
}

// Decide applies a review operation to an appeal and records who decided.
// operation must be "approve" or "reject"; anything else changes nothing.
func (s *Service) Decide(id uint, operation string, reviewer discord.User) error {
	var status bool
	switch operation {
	case "approve":
		status = true
	case "reject":
		status = false
	default:
		return ErrInvalidOperation
	}

	if err := s.Storage.UpdateAppealStatus(id, status, reviewer.ID); err != nil {
		return err
	}

	// Display cache only; a failure here must not undo the decision.
	if err := s.Storage.SaveReviewer(&models.Reviewer{
		DiscordID: reviewer.ID,
		Username:  reviewer.Username,
		AvatarURL: reviewer.AvatarURL(),
	}); err != nil {
		log.Printf("ERROR: Failed to cache reviewer profile for %d: %v", reviewer.ID, err)
	}

	return nil
}

// JoinServer lifts the user's ban and joins them to the guild, provided
// their appeal was approved.
func (s *Service) JoinServer(userID int64, accessToken string) error {
	appeal, err := s.Storage.GetAppealByDiscordID(userID)
	if err != nil {
		return err
	}
	if appeal == nil || !appeal.IsApproved() {
		return ErrNotEligible
	}

	if err := s.Discord.RemoveBan(userID); err != nil {
		return err
	}
	return s.Discord.AddGuildMember(userID, accessToken)
}
