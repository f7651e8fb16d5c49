package speaker

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
)

const activeProfilesKey = "active"

// ProfileSource lists the active voice profiles.
type ProfileSource interface {
	ActiveVoiceProfiles(ctx context.Context) ([]entities.VoiceProfile, error)
}

// profileCache keeps the active profile list for a short TTL so a burst
// of jobs does not reload every embedding.
type profileCache struct {
	src   ProfileSource
	cache *cache.Cache // nil when caching is disabled
}

func newProfileCache(src ProfileSource, ttl time.Duration) *profileCache {
	pc := &profileCache{src: src}
	if ttl > 0 {
		pc.cache = cache.New(ttl, 2*ttl)
	}
	return pc
}

func (pc *profileCache) Active(ctx context.Context) ([]Profile, error) {
	if pc.cache != nil {
		if v, ok := pc.cache.Get(activeProfilesKey); ok {
			return v.([]Profile), nil
		}
	}

	rows, err := pc.src.ActiveVoiceProfiles(ctx)
	if err != nil {
		return nil, err
	}
	profiles := make([]Profile, 0, len(rows))
	for _, r := range rows {
		profiles = append(profiles, Profile{ID: r.ID, UserID: r.UserID, Embedding: r.EmbeddingVector})
	}

	if pc.cache != nil {
		pc.cache.SetDefault(activeProfilesKey, profiles)
	}
	return profiles, nil
}

func (pc *profileCache) Invalidate() {
	if pc.cache != nil {
		pc.cache.Delete(activeProfilesKey)
	}
}
