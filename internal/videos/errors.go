package videos

import "errors"

var (
	ErrNotFound     = errors.New("video not found")
	ErrInvalidInput = errors.New("invalid input")
)
