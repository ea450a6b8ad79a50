package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	cacheport "github.com/360john360/childnur-sub000/internal/infrastructure/cache/port"
	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"

	"go.uber.org/zap"
)

// CachedDirectoryRepository puts a read-through cache in front of profile
// lookups, which the delivery path performs for every recipient of every
// message. Cache failures degrade to the underlying repository.
type CachedDirectoryRepository struct {
	next  repository.DirectoryRepository
	cache cacheport.Cache
	ttl   time.Duration
	log   *zap.Logger
}

var _ repository.DirectoryRepository = (*CachedDirectoryRepository)(nil)

func NewCachedDirectoryRepository(next repository.DirectoryRepository, cache cacheport.Cache, ttl time.Duration, log *zap.Logger) *CachedDirectoryRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedDirectoryRepository{next: next, cache: cache, ttl: ttl, log: log}
}

// cachedProfile is the cache wire form of chat.Profile.
type cachedProfile struct {
	UserID     string `json:"userId"`
	TenantID   string `json:"tenantId"`
	TimeZone   string `json:"timeZone"`
	QuietStart *int   `json:"quietStart,omitempty"`
	QuietEnd   *int   `json:"quietEnd,omitempty"`
}

func profileKey(tenantID, userID string) string {
	return fmt.Sprintf("chat:profile:%s:%s", tenantID, userID)
}

func (r *CachedDirectoryRepository) GetProfile(ctx context.Context, tenantID string, userID string) (chat.Profile, error) {
	key := profileKey(tenantID, userID)

	raw, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cp cachedProfile
		if jerr := json.Unmarshal([]byte(raw), &cp); jerr == nil {
			return cp.toProfile(), nil
		}
		r.log.Warn("discarding undecodable cached profile", zap.String("key", key))
	case !errors.Is(err, cacheport.ErrMiss):
		r.log.Warn("profile cache read failed", zap.String("key", key), zap.Error(err))
	}

	p, err := r.next.GetProfile(ctx, tenantID, userID)
	if err != nil {
		return chat.Profile{}, err
	}

	if b, jerr := json.Marshal(fromProfile(p)); jerr == nil {
		if serr := r.cache.Set(ctx, key, string(b), r.ttl); serr != nil {
			r.log.Warn("profile cache write failed", zap.String("key", key), zap.Error(serr))
		}
	}
	return p, nil
}

// ChildExists is not cached; it only runs when a conversation is opened.
func (r *CachedDirectoryRepository) ChildExists(ctx context.Context, tenantID string, childID string) (bool, error) {
	return r.next.ChildExists(ctx, tenantID, childID)
}

func fromProfile(p chat.Profile) cachedProfile {
	cp := cachedProfile{UserID: p.UserID, TenantID: p.TenantID, TimeZone: "UTC"}
	if p.Location != nil {
		cp.TimeZone = p.Location.String()
	}
	if p.QuietHours != nil {
		start, end := int(p.QuietHours.Start), int(p.QuietHours.End)
		cp.QuietStart, cp.QuietEnd = &start, &end
	}
	return cp
}

func (cp cachedProfile) toProfile() chat.Profile {
	p := chat.Profile{UserID: cp.UserID, TenantID: cp.TenantID, Location: loadLocation(cp.TimeZone)}
	if cp.QuietStart != nil && cp.QuietEnd != nil {
		p.QuietHours = &chat.QuietHours{Start: chat.TimeOfDay(*cp.QuietStart), End: chat.TimeOfDay(*cp.QuietEnd)}
	}
	return p
}
