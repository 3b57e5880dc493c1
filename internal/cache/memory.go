package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mahir/loginhub/internal/model"
)

// Memory is an in-process UserCache. It backs tests and deployments that
// run without Redis; entries expire lazily on read.
type Memory struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]memoryEntry

	now func() time.Time // overridable in tests
}

type memoryEntry struct {
	profile   model.Profile
	expiresAt time.Time
}

var _ UserCache = (*Memory)(nil)

// NewMemory creates an in-memory cache. ttl <= 0 defaults to one hour.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Memory{
		ttl: ttl,
		m:   make(map[string]memoryEntry),
		now: time.Now,
	}
}

func (c *Memory) SetProfile(_ context.Context, profile model.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[profile.ID] = memoryEntry{
		profile:   profile,
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

func (c *Memory) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.m[userID]
	if !ok || c.now().After(entry.expiresAt) {
		delete(c.m, userID)
		return nil, ErrMiss
	}
	profile := entry.profile
	return &profile, nil
}

func (c *Memory) Delete(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, userID)
	return nil
}
