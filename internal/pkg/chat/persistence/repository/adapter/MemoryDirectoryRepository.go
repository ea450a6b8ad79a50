package adapter

import (
	"context"
	"sync"
	"time"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"
)

// MemoryDirectoryRepository holds profiles and children in memory for
// development and tests.
type MemoryDirectoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]chat.Profile        // userID -> profile
	children map[string]map[string]struct{} // tenantID -> childIDs

	// open answers lookups of unknown users and children positively.
	open bool
}

var _ repository.DirectoryRepository = (*MemoryDirectoryRepository)(nil)

func NewMemoryDirectoryRepository() *MemoryDirectoryRepository {
	return &MemoryDirectoryRepository{
		profiles: make(map[string]chat.Profile),
		children: make(map[string]map[string]struct{}),
	}
}

// NewOpenMemoryDirectoryRepository returns a directory that treats unknown
// users as UTC profiles without quiet hours and every child as existing.
// It backs STORE_DRIVER=memory, where no platform directory is available.
func NewOpenMemoryDirectoryRepository() *MemoryDirectoryRepository {
	r := NewMemoryDirectoryRepository()
	r.open = true
	return r
}

// PutProfile inserts or replaces a profile.
func (r *MemoryDirectoryRepository) PutProfile(p chat.Profile) {
	r.mu.Lock()
	r.profiles[p.UserID] = p
	r.mu.Unlock()
}

// AddChild registers a child in a tenant.
func (r *MemoryDirectoryRepository) AddChild(tenantID, childID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.children[tenantID]
	if set == nil {
		set = make(map[string]struct{})
		r.children[tenantID] = set
	}
	set[childID] = struct{}{}
}

func (r *MemoryDirectoryRepository) GetProfile(_ context.Context, tenantID string, userID string) (chat.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[userID]
	switch {
	case ok && p.TenantID == tenantID:
		return p, nil
	case !ok && r.open:
		return chat.Profile{UserID: userID, TenantID: tenantID, Location: time.UTC}, nil
	default:
		return chat.Profile{}, chat.ErrNotFound
	}
}

func (r *MemoryDirectoryRepository) ChildExists(_ context.Context, tenantID string, childID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.children[tenantID][childID]
	return ok || r.open, nil
}
