package repository

import (
	"context"
	"sync"

	"github.com/postpilot/dispatch/internal/models"
)

// MemoryContentStore backs tests without a database.
type MemoryContentStore struct {
	mu       sync.RWMutex
	contents map[string]*models.Content
}

func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{contents: make(map[string]*models.Content)}
}

// Put seeds a content row.
func (r *MemoryContentStore) Put(c *models.Content) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *c
	r.contents[c.ID] = &copied
}

func (r *MemoryContentStore) GetContent(ctx context.Context, id string) (*models.Content, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contents[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (r *MemoryContentStore) SetStatus(ctx context.Context, id, status, reason string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contents[id]; ok {
		c.Status = status
		c.Reason = reason
	}
	return nil
}
