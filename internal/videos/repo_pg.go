package videos

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new video record.
func (r *PGRepo) Create(ctx context.Context, video Video) error {
	const query = `
INSERT INTO videos (id, storage_key, file_name, content_type, size_bytes, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.DB.ExecContext(ctx, query,
		video.ID,
		video.StorageKey,
		video.FileName,
		video.ContentType,
		video.SizeBytes,
		video.CreatedAt,
	)
	return err
}

// GetByKey returns the video stored under a storage key.
func (r *PGRepo) GetByKey(ctx context.Context, storageKey string) (Video, error) {
	const query = `
SELECT id, storage_key, file_name, content_type, size_bytes, created_at
FROM videos
WHERE storage_key = $1
LIMIT 1`

	var video Video
	err := r.DB.QueryRowContext(ctx, query, storageKey).Scan(
		&video.ID,
		&video.StorageKey,
		&video.FileName,
		&video.ContentType,
		&video.SizeBytes,
		&video.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Video{}, ErrNotFound
		}
		return Video{}, err
	}
	return video, nil
}

var _ Repo = (*PGRepo)(nil)
