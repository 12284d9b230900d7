package videos

import "time"

// Video is an uploaded sparring clip stored in the object store.
type Video struct {
	ID          string
	StorageKey  string
	FileName    string
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}
