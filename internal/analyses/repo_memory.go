package analyses

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
// Records are never evicted, so the map grows for the life of the process;
// deployments that outlive a demo should use the Postgres or Redis repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Analysis
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Analysis)}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[analysis.ID] = analysis
	return nil
}

// GetByID returns an analysis by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// UpdateStatus moves the analysis to a new status. Entering processing
// stamps started_at once.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, analysisID, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	analysis.Status = status
	if status == StatusProcessing && analysis.StartedAt == nil {
		now := time.Now().UTC()
		analysis.StartedAt = &now
	}
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = analysis
	return nil
}

// UpdateProgress raises the progress checkpoint. Progress never regresses.
func (r *MemoryRepo) UpdateProgress(ctx context.Context, analysisID string, progress int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	if progress > analysis.Progress {
		analysis.Progress = progress
	}
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = analysis
	return nil
}

// MarkCompleted settles the analysis with its result. Fallback settles
// record the failure that routed them there.
func (r *MemoryRepo) MarkCompleted(ctx context.Context, analysisID string, result *AnalysisResult, usedFallback bool, failureCode string, failureMessage *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	analysis.Status = StatusCompleted
	analysis.Result = result
	analysis.UsedFallback = usedFallback
	analysis.FailureCode = failureCode
	analysis.FailureMessage = failureMessage
	if analysis.CompletedAt == nil {
		analysis.CompletedAt = &now
	}
	analysis.UpdatedAt = now
	r.byID[analysisID] = analysis
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
