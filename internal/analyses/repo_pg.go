package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
	id, video_key, user_description, opponent_description, activity_type,
	status, progress, used_fallback, result, failure_code, failure_message, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	resultPayload, err := marshalResult(analysis.Result)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.VideoKey,
		analysis.UserDescription,
		analysis.OpponentDescription,
		analysis.ActivityType,
		analysis.Status,
		analysis.Progress,
		analysis.UsedFallback,
		resultPayload,
		nullableString(analysis.FailureCode),
		analysis.FailureMessage,
		analysis.CreatedAt,
	)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	const query = `
SELECT id, video_key, user_description, opponent_description, activity_type,
       status, progress, used_fallback, result, failure_code, failure_message,
       created_at, updated_at, started_at, completed_at
FROM analyses
WHERE id = $1
LIMIT 1`
	var a Analysis
	var result sql.NullString
	var failureCode sql.NullString
	var failureMessage sql.NullString
	var startedAt sql.NullTime
	var completedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, analysisID).Scan(
		&a.ID,
		&a.VideoKey,
		&a.UserDescription,
		&a.OpponentDescription,
		&a.ActivityType,
		&a.Status,
		&a.Progress,
		&a.UsedFallback,
		&result,
		&failureCode,
		&failureMessage,
		&a.CreatedAt,
		&a.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	if result.Valid {
		parsed := &AnalysisResult{}
		if err := json.Unmarshal([]byte(result.String), parsed); err == nil {
			a.Result = parsed
		}
	}
	if failureCode.Valid {
		a.FailureCode = failureCode.String
	}
	if failureMessage.Valid {
		a.FailureMessage = &failureMessage.String
	}
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return a, nil
}

// UpdateStatus moves the analysis to a new status. Entering processing
// stamps started_at once.
func (r *PGRepo) UpdateStatus(ctx context.Context, analysisID, status string) error {
	const query = `
UPDATE analyses
SET status = $1,
    started_at = CASE
        WHEN $1 = 'processing' AND started_at IS NULL THEN now()
        ELSE started_at
    END,
    updated_at = now()
WHERE id = $2`

	res, err := r.DB.ExecContext(ctx, query, status, analysisID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProgress raises the progress checkpoint. GREATEST keeps progress
// monotonic even if checkpoints land out of order.
func (r *PGRepo) UpdateProgress(ctx context.Context, analysisID string, progress int) error {
	const query = `
UPDATE analyses
SET progress = GREATEST(progress, $1),
    updated_at = now()
WHERE id = $2`

	res, err := r.DB.ExecContext(ctx, query, progress, analysisID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkCompleted settles the analysis with its result and fallback state.
func (r *PGRepo) MarkCompleted(ctx context.Context, analysisID string, result *AnalysisResult, usedFallback bool, failureCode string, failureMessage *string) error {
	const query = `
UPDATE analyses
SET status = 'completed',
    result = $1::jsonb,
    used_fallback = $2,
    failure_code = $3::text,
    failure_message = $4::text,
    completed_at = COALESCE(completed_at, now()),
    updated_at = now()
WHERE id = $5`

	resultPayload, err := marshalResult(result)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, resultPayload, usedFallback, nullableString(failureCode), failureMessage, analysisID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)

func marshalResult(result *AnalysisResult) (any, error) {
	if result == nil {
		return nil, nil
	}
	return json.Marshal(result)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
