package videos

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepoCreateAndGet(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	video := Video{
		ID:         "video-1",
		StorageKey: "videos/roll.mp4",
		FileName:   "roll.mp4",
		SizeBytes:  16,
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.Create(ctx, video); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByKey(ctx, "videos/roll.mp4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "video-1" || got.FileName != "roll.mp4" {
		t.Fatalf("unexpected video: %+v", got)
	}
}

func TestMemoryRepoNotFound(t *testing.T) {
	repo := NewMemoryRepo()
	if _, err := repo.GetByKey(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoHonorsContext(t *testing.T) {
	repo := NewMemoryRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := repo.Create(ctx, Video{ID: "video-1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
