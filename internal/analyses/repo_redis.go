package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const analysisKeyPrefix = "analysis:"

// RedisRepo implements Repo on Redis. Records carry a TTL so abandoned
// jobs clean themselves up without a reaper.
//
// Updates are read-modify-write. A single pipeline goroutine owns each
// analysis, so there is no concurrent writer to race against.
type RedisRepo struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisRepo(client *redis.Client, ttl time.Duration) *RedisRepo {
	return &RedisRepo{Client: client, TTL: ttl}
}

func analysisKey(analysisID string) string {
	return analysisKeyPrefix + analysisID
}

func (r *RedisRepo) Create(ctx context.Context, analysis Analysis) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	return r.Client.Set(ctx, analysisKey(analysis.ID), payload, r.TTL).Err()
}

func (r *RedisRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	raw, err := r.Client.Get(ctx, analysisKey(analysisID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	var analysis Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis %s: %w", analysisID, err)
	}
	return analysis, nil
}

func (r *RedisRepo) UpdateStatus(ctx context.Context, analysisID, status string) error {
	return r.mutate(ctx, analysisID, func(analysis *Analysis) {
		analysis.Status = status
		if status == StatusProcessing && analysis.StartedAt == nil {
			now := time.Now().UTC()
			analysis.StartedAt = &now
		}
	})
}

func (r *RedisRepo) UpdateProgress(ctx context.Context, analysisID string, progress int) error {
	return r.mutate(ctx, analysisID, func(analysis *Analysis) {
		if progress > analysis.Progress {
			analysis.Progress = progress
		}
	})
}

func (r *RedisRepo) MarkCompleted(ctx context.Context, analysisID string, result *AnalysisResult, usedFallback bool, failureCode string, failureMessage *string) error {
	return r.mutate(ctx, analysisID, func(analysis *Analysis) {
		analysis.Status = StatusCompleted
		analysis.Result = result
		analysis.UsedFallback = usedFallback
		analysis.FailureCode = failureCode
		analysis.FailureMessage = failureMessage
		if analysis.CompletedAt == nil {
			now := time.Now().UTC()
			analysis.CompletedAt = &now
		}
	})
}

// mutate applies fn to the stored record and writes it back, keeping the
// TTL set at creation.
func (r *RedisRepo) mutate(ctx context.Context, analysisID string, fn func(*Analysis)) error {
	analysis, err := r.GetByID(ctx, analysisID)
	if err != nil {
		return err
	}
	fn(&analysis)
	analysis.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	return r.Client.Set(ctx, analysisKey(analysisID), payload, redis.KeepTTL).Err()
}

var _ Repo = (*RedisRepo)(nil)
