package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"bjj-backend/internal/frames"
	"bjj-backend/internal/queue"
	"bjj-backend/internal/shared/metrics"
	"bjj-backend/internal/shared/storage/object"
	"bjj-backend/internal/shared/telemetry"
	"bjj-backend/internal/videos"
	"bjj-backend/internal/vision"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// DefaultActivityType is assumed when a request omits activity_type.
const DefaultActivityType = "Brazilian Jiu-Jitsu"

// Service contains business logic for analyses.
type Service struct {
	Repo          Repo
	Videos        videos.Repo
	Store         object.ObjectStore
	Vision        vision.Client
	Opener        frames.Opener
	Queue         queue.Client
	RetryAttempts int
}

// Create validates the request, records a queued analysis, and dispatches
// the pipeline to the queue or an in-process goroutine.
func (s *Service) Create(ctx context.Context, videoKey, userDescription, opponentDescription, activityType string) (Analysis, error) {
	videoKey = strings.TrimSpace(videoKey)
	userDescription = strings.TrimSpace(userDescription)
	opponentDescription = strings.TrimSpace(opponentDescription)
	if videoKey == "" {
		return Analysis{}, fmt.Errorf("%w: video_file_name is required", ErrInvalidInput)
	}
	if userDescription == "" || opponentDescription == "" {
		return Analysis{}, fmt.Errorf("%w: user_description and opponent_description are required", ErrInvalidInput)
	}
	if strings.TrimSpace(activityType) == "" {
		activityType = DefaultActivityType
	}

	if s.Videos != nil {
		if _, err := s.Videos.GetByKey(ctx, videoKey); err != nil {
			if errors.Is(err, videos.ErrNotFound) {
				return Analysis{}, fmt.Errorf("%w: %s", ErrVideoNotFound, videoKey)
			}
			return Analysis{}, err
		}
	}

	now := time.Now().UTC()
	analysis := Analysis{
		ID:                  uuid.NewString(),
		VideoKey:            videoKey,
		UserDescription:     userDescription,
		OpponentDescription: opponentDescription,
		ActivityType:        activityType,
		Status:              StatusQueued,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}

	s.dispatch(ctx, analysis.ID)
	return analysis, nil
}

// dispatch hands the job to the queue when one is configured, otherwise to
// an in-process goroutine. A failed enqueue falls back to the goroutine so
// the job still runs.
func (s *Service) dispatch(ctx context.Context, analysisID string) {
	if s.Queue != nil {
		msg := queue.Message{
			AnalysisID: analysisID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    1,
		}
		err := s.Queue.Send(ctx, msg)
		if err == nil {
			return
		}
		telemetry.Error("analysis.enqueue_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisID,
			"err":         sanitizeError(err),
		})
	}
	go s.completeAsync(backgroundWithRequestID(ctx), analysisID)
}

// Get returns an analysis by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, analysisID)
}

func (s *Service) completeAsync(ctx context.Context, analysisID string) {
	defer func() {
		if r := recover(); r != nil {
			if err := s.settle(ctx, analysisID, fallbackResult(), true, fmt.Errorf("panic: %v", r)); err != nil {
				telemetry.Error("analysis.settle_failed", map[string]any{
					"request_id":  requestIDFromContext(ctx),
					"analysis_id": analysisID,
					"err":         sanitizeError(err),
				})
			}
		}
	}()
	if err := s.ProcessAnalysis(ctx, analysisID); err != nil {
		telemetry.Error("analysis.process_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisID,
			"err":         sanitizeError(err),
		})
	}
}

// ProcessAnalysis runs the full pipeline for a recorded analysis. Pipeline
// failures settle the job with the fallback result and an honest
// used_fallback flag; an error comes back only when the job could not be
// settled and should be redelivered.
func (s *Service) ProcessAnalysis(ctx context.Context, analysisID string) error {
	startedAt := time.Now().UTC()

	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("analysis lookup: %w", err)
	}
	if analysis.Status == StatusCompleted {
		return nil
	}

	if err := s.Repo.UpdateStatus(ctx, analysisID, StatusProcessing); err != nil {
		return fmt.Errorf("set processing: %w", err)
	}
	if err := s.Repo.UpdateProgress(ctx, analysisID, 10); err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysisID,
		"video_key":         analysis.VideoKey,
		"status":            StatusProcessing,
		"status_transition": "queued->processing",
	})

	result, pipelineErr := s.runPipeline(ctx, analysis)
	usedFallback := false
	if pipelineErr != nil {
		result = fallbackResult()
		usedFallback = true
	}

	if err := s.settle(ctx, analysisID, result, usedFallback, pipelineErr); err != nil {
		return err
	}

	s.removeVideo(ctx, analysis.VideoKey)

	completedAt := time.Now().UTC()
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(&startedAt, &completedAt))
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysisID,
		"video_key":         analysis.VideoKey,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"used_fallback":     usedFallback,
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})
	return nil
}

// CompleteOutcome is the payload of the synchronous analyze-complete flow.
type CompleteOutcome struct {
	AnalysisID        string
	Result            *AnalysisResult
	UsedFallback      bool
	ProcessingSeconds float64
}

// Complete runs the whole pipeline synchronously for an uploaded clip. A
// model-stage failure is absorbed into the outcome as a fallback result;
// the returned error is non-nil only when the pipeline broke before the
// model stage, and the outcome then carries the fallback result for the
// response body.
func (s *Service) Complete(ctx context.Context, fileName string, r io.Reader, userDescription, opponentDescription, activityType string) (CompleteOutcome, error) {
	start := time.Now()
	userDescription = strings.TrimSpace(userDescription)
	opponentDescription = strings.TrimSpace(opponentDescription)
	if userDescription == "" || opponentDescription == "" {
		return CompleteOutcome{}, fmt.Errorf("%w: user_description and opponent_description are required", ErrInvalidInput)
	}
	if strings.TrimSpace(activityType) == "" {
		activityType = DefaultActivityType
	}

	outcome := CompleteOutcome{Result: fallbackResult(), UsedFallback: true}

	videoKey, _, _, err := s.Store.Save(ctx, "sync", fileName, r)
	if err != nil {
		outcome.ProcessingSeconds = time.Since(start).Seconds()
		return outcome, fmt.Errorf("stage video upload: %w", err)
	}

	now := time.Now().UTC()
	analysis := Analysis{
		ID:                  uuid.NewString(),
		VideoKey:            videoKey,
		UserDescription:     userDescription,
		OpponentDescription: opponentDescription,
		ActivityType:        activityType,
		Status:              StatusProcessing,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	outcome.AnalysisID = analysis.ID

	if err := s.Repo.Create(ctx, analysis); err != nil {
		s.removeVideo(ctx, videoKey)
		outcome.ProcessingSeconds = time.Since(start).Seconds()
		return outcome, fmt.Errorf("record analysis: %w", err)
	}
	metrics.IncAnalysisStarted()

	sampled, plan, err := s.extractFrames(ctx, analysis)
	if err != nil {
		extractErr := fmt.Errorf("frame extraction: %w", err)
		if settleErr := s.settle(ctx, analysis.ID, fallbackResult(), true, extractErr); settleErr != nil {
			telemetry.Error("analysis.settle_failed", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"analysis_id": analysis.ID,
				"err":         sanitizeError(settleErr),
			})
		}
		s.removeVideo(ctx, videoKey)
		outcome.ProcessingSeconds = time.Since(start).Seconds()
		return outcome, extractErr
	}

	result, modelErr := s.analyzeFrames(ctx, analysis, sampled, plan)
	usedFallback := false
	if modelErr != nil {
		result = fallbackResult()
		usedFallback = true
	}

	if err := s.settle(ctx, analysis.ID, result, usedFallback, modelErr); err != nil {
		telemetry.Error("analysis.settle_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysis.ID,
			"err":         sanitizeError(err),
		})
	}
	s.removeVideo(ctx, videoKey)

	metrics.IncAnalysisCompleted()
	completedAt := time.Now().UTC()
	metrics.ObserveAnalysisDurationMs(durationMs(&now, &completedAt))

	outcome.Result = result
	outcome.UsedFallback = usedFallback
	outcome.ProcessingSeconds = time.Since(start).Seconds()
	return outcome, nil
}

// runPipeline extracts frames and runs the model stage for a recorded
// analysis.
func (s *Service) runPipeline(ctx context.Context, analysis Analysis) (*AnalysisResult, error) {
	sampled, plan, err := s.extractFrames(ctx, analysis)
	if err != nil {
		return nil, fmt.Errorf("frame extraction: %w", err)
	}
	return s.analyzeFrames(ctx, analysis, sampled, plan)
}

// extractFrames stages the stored video on local disk and samples it
// according to the weighted plan.
func (s *Service) extractFrames(ctx context.Context, analysis Analysis) ([]frames.Frame, frames.Plan, error) {
	if s.Store == nil || s.Opener == nil {
		return nil, frames.Plan{}, errors.New("missing frame extraction dependencies")
	}

	videoPath, cleanup, err := s.stageVideo(ctx, analysis.VideoKey)
	if err != nil {
		return nil, frames.Plan{}, fmt.Errorf("stage video %s: %w", analysis.VideoKey, err)
	}
	defer cleanup()

	extractStart := time.Now()
	src, err := s.Opener.Open(ctx, videoPath)
	if err != nil {
		return nil, frames.Plan{}, fmt.Errorf("open video: %w", err)
	}
	sampled, plan, err := frames.Sample(ctx, src)
	_ = src.Close()
	if err != nil {
		return nil, plan, err
	}
	metrics.ObserveExtractionDurationMs(float64(time.Since(extractStart).Microseconds()) / 1000.0)
	if len(sampled) == 0 {
		return nil, plan, ErrNoFrames
	}
	metrics.AddFramesExtracted(len(sampled))
	return sampled, plan, nil
}

// analyzeFrames runs the vision model over the sampled frames and parses
// the output into a normalized result with frame images attached.
func (s *Service) analyzeFrames(ctx context.Context, analysis Analysis, sampled []frames.Frame, plan frames.Plan) (*AnalysisResult, error) {
	if s.Vision == nil {
		return nil, errors.New("missing vision client")
	}

	s.setProgress(ctx, analysis.ID, 50)

	prompt := vision.BuildPrompt(plan, sampled, analysis.UserDescription, analysis.OpponentDescription)
	images := make([][]byte, 0, len(sampled))
	for _, f := range sampled {
		images = append(images, f.JPEG)
	}

	visionClient := newRetryingVision(s.Vision, s.RetryAttempts, analysis.ID, requestIDFromContext(ctx))
	metrics.IncVisionCall()
	visionStart := time.Now()
	raw, err := visionClient.AnalyzeSparring(ctx, vision.AnalyzeInput{Prompt: prompt, Images: images})
	metrics.ObserveVisionDurationMs(float64(time.Since(visionStart).Microseconds()) / 1000.0)
	if err != nil {
		return nil, fmt.Errorf("vision analyze: %w", err)
	}

	s.setProgress(ctx, analysis.ID, 90)

	result, err := ParseModelOutput(raw)
	if err != nil {
		return nil, fmt.Errorf("model output parse: %w", err)
	}

	attachFramesToEvents(result.MissedOpportunities, sampled)
	attachFramesToEvents(result.KeyMoments, sampled)

	s.setProgress(ctx, analysis.ID, 100)
	return result, nil
}

// settle marks the analysis completed with its result and fallback state.
// When even that write fails, a last-resort status flip keeps pollers from
// waiting on "processing" forever; a result the store rejects (jsonb does
// not accept NUL bytes) is the realistic case.
func (s *Service) settle(ctx context.Context, analysisID string, result *AnalysisResult, usedFallback bool, pipelineErr error) error {
	failureCode := ""
	var failureMessage *string
	if pipelineErr != nil {
		failureCode = classifyFailure(pipelineErr)
		msg := sanitizeError(pipelineErr)
		failureMessage = &msg
		metrics.IncAnalysisFallback()
		telemetry.Error("analysis.pipeline_failed", map[string]any{
			"request_id":   requestIDFromContext(ctx),
			"analysis_id":  analysisID,
			"failure_code": failureCode,
			"err":          msg,
		})
	}
	if err := s.Repo.MarkCompleted(ctx, analysisID, result, usedFallback, failureCode, failureMessage); err != nil {
		_ = s.Repo.UpdateStatus(context.Background(), analysisID, StatusFailed)
		return fmt.Errorf("settle analysis: %w", err)
	}
	return nil
}

// stageVideo copies the stored object to a local temp file for ffmpeg.
func (s *Service) stageVideo(ctx context.Context, videoKey string) (string, func(), error) {
	body, err := s.Store.Open(ctx, videoKey)
	if err != nil {
		return "", nil, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "sparring-*"+filepath.Ext(videoKey))
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { _ = os.Remove(tmp.Name()) }, nil
}

// removeVideo deletes the consumed clip from the object store. Uploaded
// videos are one-shot inputs; a failed delete only logs.
func (s *Service) removeVideo(ctx context.Context, videoKey string) {
	if s.Store == nil || videoKey == "" {
		return
	}
	if err := s.Store.Delete(ctx, videoKey); err != nil {
		telemetry.Error("analysis.video_cleanup_failed", map[string]any{
			"video_key": videoKey,
			"err":       sanitizeError(err),
		})
	}
}

// setProgress records a pipeline checkpoint. Progress is cosmetic for the
// polling dashboard, so a failed write logs and does not stop the run.
func (s *Service) setProgress(ctx context.Context, analysisID string, progress int) {
	if err := s.Repo.UpdateProgress(ctx, analysisID, progress); err != nil {
		telemetry.Error("analysis.progress_write_failed", map[string]any{
			"analysis_id": analysisID,
			"progress":    progress,
			"err":         sanitizeError(err),
		})
	}
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func classifyFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	if errors.Is(err, ErrNoFrames) {
		return ErrorCodeFrameExtraction
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeVisionTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "gemini request timeout"):
		return ErrorCodeVisionTimeout
	case strings.Contains(msg, "timeout") && strings.Contains(msg, "vision"):
		return ErrorCodeVisionTimeout
	case strings.Contains(msg, "blocked prompt"):
		return ErrorCodeVisionBlocked
	case strings.Contains(msg, "model output parse"), strings.Contains(msg, "no json object"):
		return ErrorCodeVisionSchemaMismatch
	case strings.Contains(msg, "vision analyze"), strings.Contains(msg, "gemini"):
		return ErrorCodeVisionCall
	case strings.Contains(msg, "stage video"), strings.Contains(msg, "storage"), strings.Contains(msg, "analysis lookup"), strings.Contains(msg, "settle"):
		return ErrorCodeStorage
	case strings.Contains(msg, "frame extraction"), strings.Contains(msg, "open video"), strings.Contains(msg, "probe"):
		return ErrorCodeFrameExtraction
	}
	return ErrorCodeInternal
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
