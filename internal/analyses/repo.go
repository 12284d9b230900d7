package analyses

import "context"

// Repo defines persistence operations for analyses.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	UpdateStatus(ctx context.Context, analysisID, status string) error
	UpdateProgress(ctx context.Context, analysisID string, progress int) error
	MarkCompleted(ctx context.Context, analysisID string, result *AnalysisResult, usedFallback bool, failureCode string, failureMessage *string) error
}
