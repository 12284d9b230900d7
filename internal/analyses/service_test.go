package analyses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"bjj-backend/internal/frames"
	"bjj-backend/internal/queue"
	"bjj-backend/internal/shared/storage/object/local"
	"bjj-backend/internal/videos"
	"bjj-backend/internal/vision"
)

const validModelJSON = `{
  "overall_score": 78,
  "performance_label": "STRONG PERFORMANCE",
  "performance_grades": {"defense_grade": "B+", "offense_grade": "B", "control_grade": "B"},
  "skill_breakdown": {"offense": 75, "defense": 80, "guard": 76, "passing": 70, "standup": 65},
  "strengths": ["Strong guard retention", "Good base in top position", "Active grips"],
  "weaknesses": ["Late on sweep timing", "Gives up underhooks", "Slow to attack from mount"],
  "missed_opportunities": [{"time": "00:41", "title": "Armbar window", "description": "Opponent extended the arm during the scramble", "category": "SUBMISSION"}],
  "key_moments": [{"time": "00:12", "title": "Guard pass", "description": "Knee cut to side control", "category": "POSITION"}],
  "coach_notes": "Solid round overall. Tighten up sweep timing and stay heavier from top position to finish passes.",
  "recommended_drills": [
    {"name": "Armbar from guard", "focus_area": "Submissions", "reason": "Missed windows", "duration": "10 min/day", "frequency": "4x/week"},
    {"name": "Knee cut pass", "focus_area": "Passing", "reason": "Build on success", "duration": "15 min/day", "frequency": "3x/week"},
    {"name": "Underhook pummeling", "focus_area": "Control", "reason": "Stop giving up underhooks", "duration": "5 min/day", "frequency": "5x/week"}
  ]
}`

type staticVisionResponse struct {
	resp string
}

func (s staticVisionResponse) AnalyzeSparring(ctx context.Context, input vision.AnalyzeInput) (string, error) {
	_ = ctx
	_ = input
	return s.resp, nil
}

type failingVision struct {
	err error
}

func (f failingVision) AnalyzeSparring(ctx context.Context, input vision.AnalyzeInput) (string, error) {
	_ = ctx
	_ = input
	return "", f.err
}

type countingVision struct {
	calls int
	errs  []error
	resp  string
}

func (c *countingVision) AnalyzeSparring(ctx context.Context, input vision.AnalyzeInput) (string, error) {
	_ = ctx
	_ = input
	c.calls++
	if c.calls <= len(c.errs) {
		return "", c.errs[c.calls-1]
	}
	return c.resp, nil
}

type panickingVision struct{}

func (panickingVision) AnalyzeSparring(ctx context.Context, input vision.AnalyzeInput) (string, error) {
	panic("model crashed")
}

type fakeSource struct {
	fps   float64
	total int
}

func (s fakeSource) FPS() float64     { return s.fps }
func (s fakeSource) TotalFrames() int { return s.total }
func (s fakeSource) Close() error     { return nil }

func (s fakeSource) FrameAt(ctx context.Context, index int) (frames.Frame, error) {
	_ = ctx
	second := float64(index) / s.fps
	return frames.Frame{
		Index:     index,
		Second:    second,
		Timestamp: frames.FormatTimestamp(second),
		JPEG:      []byte("jpeg"),
	}, nil
}

type fakeOpener struct {
	src frames.Source
	err error
}

func (o fakeOpener) Open(ctx context.Context, path string) (frames.Source, error) {
	_ = ctx
	_ = path
	if o.err != nil {
		return nil, o.err
	}
	return o.src, nil
}

type fakeQueue struct {
	sent []queue.Message
	err  error
}

func (q *fakeQueue) Send(ctx context.Context, msg queue.Message) error {
	_ = ctx
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, msg)
	return nil
}

func setupService(t *testing.T, visionClient vision.Client, opener frames.Opener) (*Service, *MemoryRepo, string) {
	t.Helper()
	store := local.New(t.TempDir())
	videoRepo := videos.NewMemoryRepo()
	analysisRepo := NewMemoryRepo()

	videoKey, _, _, err := store.Save(context.Background(), "videos", "roll.mp4", bytes.NewReader([]byte("fake video bytes")))
	if err != nil {
		t.Fatalf("save video: %v", err)
	}
	video := videos.Video{
		ID:         "video-1",
		StorageKey: videoKey,
		FileName:   "roll.mp4",
		SizeBytes:  16,
		CreatedAt:  time.Now().UTC(),
	}
	if err := videoRepo.Create(context.Background(), video); err != nil {
		t.Fatalf("create video: %v", err)
	}

	svc := &Service{
		Repo:   analysisRepo,
		Videos: videoRepo,
		Store:  store,
		Vision: visionClient,
		Opener: opener,
	}
	return svc, analysisRepo, videoKey
}

func queuedAnalysis(t *testing.T, repo *MemoryRepo, videoKey string) Analysis {
	t.Helper()
	now := time.Now().UTC()
	analysis := Analysis{
		ID:                  "analysis-1",
		VideoKey:            videoKey,
		UserDescription:     "white gi",
		OpponentDescription: "blue gi",
		ActivityType:        DefaultActivityType,
		Status:              StatusQueued,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := repo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("create analysis: %v", err)
	}
	return analysis
}

func TestCreateRejectsMissingVideoKey(t *testing.T) {
	svc, _, _ := setupService(t, staticVisionResponse{resp: validModelJSON}, fakeOpener{src: fakeSource{fps: 30, total: 1500}})

	_, err := svc.Create(context.Background(), "", "white gi", "blue gi", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateRejectsMissingDescriptions(t *testing.T) {
	svc, _, _ := setupService(t, staticVisionResponse{resp: validModelJSON}, fakeOpener{src: fakeSource{fps: 30, total: 1500}})

	_, err := svc.Create(context.Background(), "some-key", "white gi", "", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateRejectsUnknownVideo(t *testing.T) {
	svc, _, _ := setupService(t, staticVisionResponse{resp: validModelJSON}, fakeOpener{src: fakeSource{fps: 30, total: 1500}})

	_, err := svc.Create(context.Background(), "no-such-key", "white gi", "blue gi", "")
	if !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
}

func TestCreateEnqueuesWhenQueueConfigured(t *testing.T) {
	svc, repo, videoKey := setupService(t, staticVisionResponse{resp: validModelJSON}, fakeOpener{src: fakeSource{fps: 30, total: 1500}})
	q := &fakeQueue{}
	svc.Queue = q

	analysis, err := svc.Create(context.Background(), videoKey, "white gi", "blue gi", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if analysis.ActivityType != DefaultActivityType {
		t.Fatalf("expected default activity type, got %q", analysis.ActivityType)
	}

	if len(q.sent) != 1 {
		t.Fatalf("expected 1 enqueued message, got %d", len(q.sent))
	}
	if q.sent[0].AnalysisID != analysis.ID {
		t.Fatalf("expected message for %s, got %s", analysis.ID, q.sent[0].AnalysisID)
	}
	if q.sent[0].Version != 1 {
		t.Fatalf("expected message version 1, got %d", q.sent[0].Version)
	}

	got, err := repo.GetByID(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.Status != StatusQueued {
		t.Fatalf("expected status queued before worker pickup, got %s", got.Status)
	}
}

func TestProcessAnalysisSuccess(t *testing.T) {
	svc, repo, videoKey := setupService(t, staticVisionResponse{resp: validModelJSON}, fakeOpener{src: fakeSource{fps: 30, total: 1500}})
	analysis := queuedAnalysis(t, repo, videoKey)

	if err := svc.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := repo.GetByID(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected status completed, got %s", got.Status)
	}
	if got.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", got.Progress)
	}
	if got.UsedFallback {
		t.Fatal("expected used_fallback false on success")
	}
	if got.Result == nil || got.Result.OverallScore != 78 {
		t.Fatalf("expected model result with score 78, got %+v", got.Result)
	}
	if got.FailureCode != "" {
		t.Fatalf("expected no failure code, got %s", got.FailureCode)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatal("expected started_at and completed_at set")
	}
	if got.Result.KeyMoments[0].FrameTimestamp == "" {
		t.Fatal("expected key moment to have an attached frame")
	}

	if _, err := svc.Store.Open(context.Background(), videoKey); err == nil {
		t.Fatal("expected consumed video to be deleted from the store")
	}
}

func TestProcessAnalysisVisionFailureSettlesFallback(t *testing.T) {
	svc, repo, videoKey := setupService(t, failingVision{err: errors.New("blocked prompt: safety filters rejected the request")}, fakeOpener{src: fakeSource{fps: 30, total: 1500}})
	analysis := queuedAnalysis(t, repo, videoKey)

	if err := svc.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("expected settled run, got %v", err)
	}

	got, err := repo.GetByID(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected status completed, got %s", got.Status)
	}
	if !got.UsedFallback {
		t.Fatal("expected used_fallback true")
	}
	if got.Result == nil || got.Result.OverallScore != 65 {
		t.Fatalf("expected fallback result, got %+v", got.Result)
	}
	if got.FailureCode != ErrorCodeVisionBlocked {
		t.Fatalf("expected failure code %s, got %s", ErrorCodeVisionBlocked, got.FailureCode)
	}
	if got.FailureMessage == nil || *got.FailureMessage == "" {
		t.Fatal("expected failure message recorded")
	}
	if got.Progress != 50 {
		t.Fatalf("expected progress stuck at model checkpoint 50, got %d", got.Progress)
	}
}

func TestProcessAnalysisNoFramesSettlesFallback(t *testing.T) {
	svc, repo, videoKey := setupService(t, staticVisionResponse{resp: validModelJSON}, fakeOpener{src: fakeSource{fps: 0, total: 0}})
	analysis := queuedAnalysis(t, repo, videoKey)

	if err := svc.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("expected settled run, got %v", err)
	}

	got, err := repo.GetByID(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.Status != StatusCompleted || !got.UsedFallback {
		t.Fatalf("expected completed fallback, got status=%s used_fallback=%v", got.Status, got.UsedFallback)
	}
	if got.FailureCode != ErrorCodeFrameExtraction {
		t.Fatalf("expected failure code %s, got %s", ErrorCodeFrameExtraction, got.FailureCode)
	}
}

func TestProcessAnalysisParseFailureSettlesFallback(t *testing.T) {
	svc, repo, videoKey := setupService(t, staticVisionResponse{resp: "I could not analyze this video, sorry."}, fakeOpener{src: fakeSource{fps: 30, total: 1500}})
	analysis := queuedAnalysis(t, repo, videoKey)

	if err := svc.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("expected settled run, got %v", err)
	}

	got, err := repo.GetByID(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.FailureCode != ErrorCodeVisionSchemaMismatch {
		t.Fatalf("expected failure code %s, got %s", ErrorCodeVisionSchemaMismatch, got.FailureCode)
	}
	if !got.UsedFallback {
		t.Fatal("expected used_fallback true")
	}
}

func TestProcessAnalysisRetriesTransientVisionError(t *testing.T) {
	visionClient := &countingVision{
		errs: []error{errors.New("gemini http status 503: service unavailable")},
		resp: validModelJSON,
	}
	svc, repo, videoKey := setupService(t, visionClient, fakeOpener{src: fakeSource{fps: 30, total: 1500}})
	svc.RetryAttempts = 2
	analysis := queuedAnalysis(t, repo, videoKey)

	if err := svc.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	if visionClient.calls != 2 {
		t.Fatalf("expected 2 vision calls, got %d", visionClient.calls)
	}
	got, err := repo.GetByID(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.Status != StatusCompleted || got.UsedFallback {
		t.Fatalf("expected clean completion after retry, got status=%s used_fallback=%v", got.Status, got.UsedFallback)
	}
}

func TestProcessAnalysisSkipsAlreadyCompleted(t *testing.T) {
	visionClient := &countingVision{resp: validModelJSON}
	svc, repo, videoKey := setupService(t, visionClient, fakeOpener{src: fakeSource{fps: 30, total: 1500}})
	analysis := queuedAnalysis(t, repo, videoKey)
	if err := repo.MarkCompleted(context.Background(), analysis.ID, fallbackResult(), true, ErrorCodeVisionCall, nil); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	if err := svc.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("expected redelivered job to no-op, got %v", err)
	}
	if visionClient.calls != 0 {
		t.Fatalf("expected no vision calls for settled job, got %d", visionClient.calls)
	}
}

func TestProcessAnalysisUnknownID(t *testing.T) {
	svc, _, _ := setupService(t, staticVisionResponse{resp: validModelJSON}, fakeOpener{src: fakeSource{fps: 30, total: 1500}})

	err := svc.ProcessAnalysis(context.Background(), "no-such-analysis")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteAsyncRecoversPanic(t *testing.T) {
	svc, repo, videoKey := setupService(t, panickingVision{}, fakeOpener{src: fakeSource{fps: 30, total: 1500}})
	analysis := queuedAnalysis(t, repo, videoKey)

	svc.completeAsync(context.Background(), analysis.ID)

	got, err := repo.GetByID(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected panic to settle the job, got status %s", got.Status)
	}
	if !got.UsedFallback {
		t.Fatal("expected used_fallback true after panic")
	}
	if got.FailureCode != ErrorCodeInternal {
		t.Fatalf("expected failure code %s, got %s", ErrorCodeInternal, got.FailureCode)
	}
}

type failingMarkRepo struct {
	*MemoryRepo
	markErr       error
	statusWrites  []string
	failedFlipped bool
}

func (r *failingMarkRepo) MarkCompleted(ctx context.Context, analysisID string, result *AnalysisResult, usedFallback bool, failureCode string, failureMessage *string) error {
	return r.markErr
}

func (r *failingMarkRepo) UpdateStatus(ctx context.Context, analysisID, status string) error {
	r.statusWrites = append(r.statusWrites, status)
	if status == StatusFailed {
		r.failedFlipped = true
	}
	return r.MemoryRepo.UpdateStatus(ctx, analysisID, status)
}

func TestSettleFailureFlipsStatusFailed(t *testing.T) {
	svc, repo, videoKey := setupService(t, staticVisionResponse{resp: validModelJSON}, fakeOpener{src: fakeSource{fps: 30, total: 1500}})
	analysis := queuedAnalysis(t, repo, videoKey)
	wrapped := &failingMarkRepo{MemoryRepo: repo, markErr: errors.New("jsonb rejected value")}
	svc.Repo = wrapped

	err := svc.ProcessAnalysis(context.Background(), analysis.ID)
	if err == nil {
		t.Fatal("expected error when the job cannot settle")
	}
	if !wrapped.failedFlipped {
		t.Fatal("expected last-resort flip to status failed")
	}

	got, getErr := repo.GetByID(context.Background(), analysis.ID)
	if getErr != nil {
		t.Fatalf("get analysis: %v", getErr)
	}
	if got.Status != StatusFailed {
		t.Fatalf("expected status failed, got %s", got.Status)
	}
}

func TestCompleteSuccess(t *testing.T) {
	svc, repo, _ := setupService(t, staticVisionResponse{resp: validModelJSON}, fakeOpener{src: fakeSource{fps: 30, total: 900}})

	outcome, err := svc.Complete(context.Background(), "round2.mp4", bytes.NewReader([]byte("video bytes")), "white gi", "blue gi", "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if outcome.UsedFallback {
		t.Fatal("expected used_fallback false")
	}
	if outcome.Result == nil || outcome.Result.OverallScore != 78 {
		t.Fatalf("expected model result, got %+v", outcome.Result)
	}
	if outcome.AnalysisID == "" {
		t.Fatal("expected analysis id in outcome")
	}
	if outcome.ProcessingSeconds < 0 {
		t.Fatalf("expected non-negative processing time, got %f", outcome.ProcessingSeconds)
	}

	got, err := repo.GetByID(context.Background(), outcome.AnalysisID)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.Status != StatusCompleted || got.UsedFallback {
		t.Fatalf("expected settled record, got status=%s used_fallback=%v", got.Status, got.UsedFallback)
	}
}

func TestCompleteAbsorbsModelFailure(t *testing.T) {
	svc, repo, _ := setupService(t, failingVision{err: errors.New("blocked prompt: safety filters rejected the request")}, fakeOpener{src: fakeSource{fps: 30, total: 900}})

	outcome, err := svc.Complete(context.Background(), "round2.mp4", bytes.NewReader([]byte("video bytes")), "white gi", "blue gi", "")
	if err != nil {
		t.Fatalf("expected model failure absorbed, got %v", err)
	}
	if !outcome.UsedFallback {
		t.Fatal("expected used_fallback true")
	}
	if outcome.Result == nil || outcome.Result.OverallScore != 65 {
		t.Fatalf("expected fallback result, got %+v", outcome.Result)
	}

	got, err := repo.GetByID(context.Background(), outcome.AnalysisID)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.FailureCode != ErrorCodeVisionBlocked {
		t.Fatalf("expected failure code %s, got %s", ErrorCodeVisionBlocked, got.FailureCode)
	}
}

func TestCompleteReturnsErrorBeforeModelStage(t *testing.T) {
	svc, repo, _ := setupService(t, staticVisionResponse{resp: validModelJSON}, fakeOpener{err: errors.New("corrupt container")})

	outcome, err := svc.Complete(context.Background(), "round2.mp4", bytes.NewReader([]byte("video bytes")), "white gi", "blue gi", "")
	if err == nil {
		t.Fatal("expected error for pre-model failure")
	}
	if !strings.Contains(err.Error(), "frame extraction") {
		t.Fatalf("expected frame extraction error, got %v", err)
	}
	if !outcome.UsedFallback || outcome.Result == nil {
		t.Fatal("expected outcome to carry the fallback result for the response body")
	}

	got, getErr := repo.GetByID(context.Background(), outcome.AnalysisID)
	if getErr != nil {
		t.Fatalf("get analysis: %v", getErr)
	}
	if got.Status != StatusCompleted || !got.UsedFallback {
		t.Fatalf("expected settled fallback record, got status=%s used_fallback=%v", got.Status, got.UsedFallback)
	}
}

func TestCompleteRejectsMissingDescriptions(t *testing.T) {
	svc, _, _ := setupService(t, staticVisionResponse{resp: validModelJSON}, fakeOpener{src: fakeSource{fps: 30, total: 900}})

	_, err := svc.Complete(context.Background(), "round2.mp4", bytes.NewReader(nil), "", "blue gi", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ErrorCodeInternal},
		{"no frames sentinel", fmt.Errorf("frame extraction: %w", ErrNoFrames), ErrorCodeFrameExtraction},
		{"deadline exceeded", fmt.Errorf("vision analyze: %w", context.DeadlineExceeded), ErrorCodeVisionTimeout},
		{"gemini timeout text", errors.New("vision analyze: gemini request timeout after 180s"), ErrorCodeVisionTimeout},
		{"blocked prompt", errors.New("vision analyze: blocked prompt: safety"), ErrorCodeVisionBlocked},
		{"parse failure", errors.New("model output parse: no JSON object in model output"), ErrorCodeVisionSchemaMismatch},
		{"vision transport", errors.New("vision analyze: gemini http status 500"), ErrorCodeVisionCall},
		{"staging failure", errors.New("frame extraction: stage video clip.mp4: open failed"), ErrorCodeStorage},
		{"lookup failure", errors.New("analysis lookup: not found"), ErrorCodeStorage},
		{"decode failure", errors.New("frame extraction: open video: bad header"), ErrorCodeFrameExtraction},
		{"unclassified", errors.New("something unexpected"), ErrorCodeInternal},
	}
	for _, tc := range cases {
		if got := classifyFailure(tc.err); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	err := errors.New("line one\nline two\r\nline three")
	if got := sanitizeError(err); strings.ContainsAny(got, "\n\r") {
		t.Fatalf("expected newlines stripped, got %q", got)
	}

	long := errors.New(strings.Repeat("x", 600))
	if got := sanitizeError(long); len(got) != 500 {
		t.Fatalf("expected 500 char cap, got %d", len(got))
	}

	if got := sanitizeError(nil); got != "" {
		t.Fatalf("expected empty string for nil, got %q", got)
	}
}
