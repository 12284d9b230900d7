package videos

import "context"

// Repo defines persistence operations for uploaded videos.
type Repo interface {
	Create(ctx context.Context, video Video) error
	GetByKey(ctx context.Context, storageKey string) (Video, error)
}
