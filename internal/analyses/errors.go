package analyses

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrVideoNotFound = errors.New("video not found")

	// ErrNoFrames marks a clip that produced zero decodable frames, as
	// opposed to events that merely failed to attach a frame image.
	ErrNoFrames = errors.New("no frames extracted")
)

// Failure codes recorded when an analysis settles on the fallback result.
const (
	ErrorCodeValidation           = "VALIDATION_ERROR"
	ErrorCodeFrameExtraction      = "FRAME_EXTRACTION_ERROR"
	ErrorCodeVisionTimeout        = "VISION_TIMEOUT"
	ErrorCodeVisionBlocked        = "VISION_BLOCKED"
	ErrorCodeVisionCall           = "VISION_CALL_ERROR"
	ErrorCodeVisionSchemaMismatch = "VISION_SCHEMA_MISMATCH"
	ErrorCodeStorage              = "STORAGE_ERROR"
	ErrorCodeInternal             = "INTERNAL_ERROR"
)
