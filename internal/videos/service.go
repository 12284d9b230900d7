package videos

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"bjj-backend/internal/shared/metrics"
	"bjj-backend/internal/shared/storage/object"
)

var allowedExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".mkv":  {},
	".webm": {},
}

// Service contains business logic for uploaded videos.
type Service struct {
	Store object.ObjectStore
	Repo  Repo
}

// Upload saves the clip to object storage and records the video. The
// returned Video carries the storage key clients pass to start an analysis.
func (s *Service) Upload(ctx context.Context, fileName string, r io.Reader) (Video, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return Video{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := allowedExtensions[ext]; !ok {
		return Video{}, fmt.Errorf("%w: unsupported file type %q", ErrInvalidInput, ext)
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, "videos", fileName, r)
	if err != nil {
		return Video{}, err
	}
	if size == 0 {
		_ = s.Store.Delete(ctx, storageKey)
		return Video{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}

	video := Video{
		ID:          uuid.NewString(),
		StorageKey:  storageKey,
		FileName:    fileName,
		ContentType: mimeType,
		SizeBytes:   size,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, video); err != nil {
		return Video{}, err
	}

	metrics.IncVideoUploaded()
	return video, nil
}

// GetByKey returns the stored video for a storage key.
func (s *Service) GetByKey(ctx context.Context, storageKey string) (Video, error) {
	if strings.TrimSpace(storageKey) == "" {
		return Video{}, fmt.Errorf("%w: storage key is required", ErrInvalidInput)
	}
	return s.Repo.GetByKey(ctx, storageKey)
}
