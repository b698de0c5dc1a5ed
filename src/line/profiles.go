package line

import (
	"context"
	"line_chatbot/src/logger"
	"line_chatbot/src/model"
	"line_chatbot/src/storage"
	"time"

	"github.com/bytedance/sonic"
)

// ProfileTTL is how long a fetched profile is served from the cache
const ProfileTTL = 5 * time.Minute

// ProfileFetcher loads a LINE profile
type ProfileFetcher interface {
	Profile(ctx context.Context, userID string) (*model.Profile, error)
}

// CachedProfiles caches profiles under line:profile:{user_id}
type CachedProfiles struct {
	next  ProfileFetcher
	store storage.SessionStore
	ttl   time.Duration
}

func NewCachedProfiles(next ProfileFetcher, store storage.SessionStore) *CachedProfiles {
	return &CachedProfiles{next: next, store: store, ttl: ProfileTTL}
}

// Profile serves from the cache and falls back to the API. Cache failures are logged only.
func (c *CachedProfiles) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	log := logger.Ctx(ctx)
	key := storage.ProfileKey(userID)

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Profile cache read failed")
	}
	if ok {
		var p model.Profile
		if err := sonic.UnmarshalString(raw, &p); err == nil {
			return &p, nil
		}
		log.Warn().Str("user_id", userID).Msg("Discarding unreadable cached profile")
	}

	p, err := c.next.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := sonic.MarshalString(p); err == nil {
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Profile cache write failed")
		}
	}
	return p, nil
}
