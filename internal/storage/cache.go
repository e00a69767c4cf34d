package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	oauthStateTTL  = 5 * time.Minute
	userProfileTTL = 15 * time.Minute
)

// SetOAuthState stores a login state nonce so the OAuth callback can
// verify it was issued by us.
func (s *Service) SetOAuthState(state string) error {
	key := "oauth_state:" + state
	return s.Redis.Set(s.Ctx, key, "1", oauthStateTTL).Err()
}

// ConsumeOAuthState checks a state nonce and deletes it in one step, so
// each nonce authorizes exactly one callback.
func (s *Service) ConsumeOAuthState(state string) (bool, error) {
	key := "oauth_state:" + state
	_, err := s.Redis.GetDel(s.Ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CacheUserProfile caches the raw Discord profile JSON for a user so the
// review panel does not hit the Discord API on every page load.
func (s *Service) CacheUserProfile(discordID int64, profile string) error {
	key := fmt.Sprintf("profile:%d", discordID)
	return s.Redis.Set(s.Ctx, key, profile, userProfileTTL).Err()
}

// CachedUserProfile returns the cached profile JSON for a user, or the
// empty string on a cache miss.
func (s *Service) CachedUserProfile(discordID int64) (string, error) {
	key := fmt.Sprintf("profile:%d", discordID)
	profile, err := s.Redis.Get(s.Ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return profile, nil
}
