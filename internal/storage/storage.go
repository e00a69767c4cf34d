package storage

import (
	"context"
	"errors"
	"log"

	"banappeals/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrAppealNotFound is returned by status updates targeting an id that
// does not exist.
var ErrAppealNotFound = errors.New("appeal not found")

// Stats aggregates the appeals table by review outcome.
// Total always equals Pending + Accepted + Rejected.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

type Storage interface {
	CreateAppeal(appeal *models.Appeal) error
	GetAppealByID(id uint) (*models.Appeal, error)
	GetAppealByDiscordID(discordID int64) (*models.Appeal, error)
	UpdateAppealStatus(id uint, status bool, reviewerID int64) error
	GetAllAppeals() ([]models.Appeal, error)
	GetReviewedAppeals() ([]models.Appeal, error)
	GetOldestPendingAppeal() (*models.Appeal, error)
	GetSurroundingAppeals(id uint) (*models.Appeal, *models.Appeal, error)
	GetStats() (*Stats, error)

	SaveReviewer(reviewer *models.Reviewer) error
	GetReviewer(discordID int64) (*models.Reviewer, error)

	SetOAuthState(state string) error
	ConsumeOAuthState(state string) (bool, error)
	CacheUserProfile(discordID int64, profile string) error
	CachedUserProfile(discordID int64) (string, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewService Constructor
func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// CreateAppeal inserts a full appeal record. The unique index on
// discord_id makes a concurrent double-submission surface as
// gorm.ErrDuplicatedKey rather than a second row.
func (s *Service) CreateAppeal(appeal *models.Appeal) error {
	if err := s.DB.Create(appeal).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Printf("ERROR: Failed to create appeal for %d: %v", appeal.DiscordID, err)
		}
		return err
	}
	return nil
}

// GetAppealByID returns the appeal with the given row id, or nil when no
// such row exists.
func (s *Service) GetAppealByID(id uint) (*models.Appeal, error) {
	var appeal models.Appeal
	err := s.DB.First(&appeal, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appeal, nil
}

// GetAppealByDiscordID returns the appeal submitted by the given Discord
// user, or nil when they have not submitted one.
func (s *Service) GetAppealByDiscordID(discordID int64) (*models.Appeal, error) {
	var appeal models.Appeal
	err := s.DB.Where("discord_id = ?", discordID).First(&appeal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appeal, nil
}

// UpdateAppealStatus stamps the review outcome and the deciding reviewer
// onto an appeal. Last writer wins; there is no optimistic locking.
func (s *Service) UpdateAppealStatus(id uint, status bool, reviewerID int64) error {
	result := s.DB.Model(&models.Appeal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   status,
			"reviewer": reviewerID,
		})
	if result.Error != nil {
		log.Printf("ERROR: Failed to update status of appeal %d: %v", id, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAppealNotFound
	}
	return nil
}

// GetAllAppeals returns every appeal ordered by id.
func (s *Service) GetAllAppeals() ([]models.Appeal, error) {
	var appeals []models.Appeal
	if err := s.DB.Order("id asc").Find(&appeals).Error; err != nil {
		return nil, err
	}
	return appeals, nil
}

// GetReviewedAppeals returns every appeal that already has a decision.
func (s *Service) GetReviewedAppeals() ([]models.Appeal, error) {
	var appeals []models.Appeal
	if err := s.DB.Where("status IS NOT NULL").Order("id asc").Find(&appeals).Error; err != nil {
		return nil, err
	}
	return appeals, nil
}

// GetOldestPendingAppeal returns the head of the review queue: the
// lowest-id appeal that has no decision yet. Nil when the queue is empty.
func (s *Service) GetOldestPendingAppeal() (*models.Appeal, error) {
	var appeal models.Appeal
	err := s.DB.Where("status IS NULL").Order("id asc").First(&appeal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appeal, nil
}

// GetSurroundingAppeals returns the nearest pending appeals on either
// side of the given id, so a reviewer can step through the queue.
// Either side may be nil.
func (s *Service) GetSurroundingAppeals(id uint) (*models.Appeal, *models.Appeal, error) {
	var previous, next models.Appeal

	err := s.DB.Where("id < ? AND status IS NULL", id).Order("id desc").First(&previous).Error
	hasPrevious := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	err = s.DB.Where("id > ? AND status IS NULL", id).Order("id asc").First(&next).Error
	hasNext := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	var prevPtr, nextPtr *models.Appeal
	if hasPrevious {
		prevPtr = &previous
	}
	if hasNext {
		nextPtr = &next
	}
	return prevPtr, nextPtr, nil
}

// GetStats walks the whole table and classifies every row by its
// tri-state status. The table stays small enough for a full scan.
func (s *Service) GetStats() (*Stats, error) {
	appeals, err := s.GetAllAppeals()
	if err != nil {
		return nil, err
	}

	stats := &Stats{Total: len(appeals)}
	for _, appeal := range appeals {
		switch {
		case appeal.Status == nil:
			stats.Pending++
		case *appeal.Status:
			stats.Accepted++
		default:
			stats.Rejected++
		}
	}
	return stats, nil
}

// SaveReviewer upserts the cached profile of a staff member keyed by
// their Discord id.
func (s *Service) SaveReviewer(reviewer *models.Reviewer) error {
	var existing models.Reviewer
	err := s.DB.Where("discord_id = ?", reviewer.DiscordID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.DB.Create(reviewer).Error
	}
	if err != nil {
		return err
	}

	existing.Username = reviewer.Username
	existing.AvatarURL = reviewer.AvatarURL
	return s.DB.Save(&existing).Error
}

// GetReviewer returns the cached profile for a reviewer, or nil when the
// reviewer has never decided an appeal.
func (s *Service) GetReviewer(discordID int64) (*models.Reviewer, error) {
	var reviewer models.Reviewer
	err := s.DB.Where("discord_id = ?", discordID).First(&reviewer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reviewer, nil
}
