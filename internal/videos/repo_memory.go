package videos

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu    sync.RWMutex
	byKey map[string]Video
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byKey: make(map[string]Video),
	}
}

// Create stores the video keyed by its storage key.
func (r *MemoryRepo) Create(ctx context.Context, video Video) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[video.StorageKey] = video
	return nil
}

// GetByKey returns the video stored under a storage key.
func (r *MemoryRepo) GetByKey(ctx context.Context, storageKey string) (Video, error) {
	if err := ctx.Err(); err != nil {
		return Video{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	video, ok := r.byKey[storageKey]
	if !ok {
		return Video{}, ErrNotFound
	}
	return video, nil
}

var _ Repo = (*MemoryRepo)(nil)
