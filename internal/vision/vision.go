package vision

import (
	"context"
	"errors"
)

// Client abstracts vision model providers for sparring analysis.
type Client interface {
	AnalyzeSparring(ctx context.Context, input AnalyzeInput) (string, error)
}

// AnalyzeInput carries the rendered prompt and the JPEG frames that go with
// it. Images are sent before the prompt text.
type AnalyzeInput struct {
	Prompt string
	Images [][]byte
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("vision model not configured")

// PlaceholderClient is a stub used when no API key is configured.
type PlaceholderClient struct{}

// AnalyzeSparring returns ErrNotConfigured.
func (PlaceholderClient) AnalyzeSparring(ctx context.Context, input AnalyzeInput) (string, error) {
	_ = ctx
	_ = input
	return "", ErrNotConfigured
}
