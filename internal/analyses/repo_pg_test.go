package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	analysis := Analysis{
		ID:                  "analysis-1",
		VideoKey:            "videos/roll.mp4",
		UserDescription:     "white gi",
		OpponentDescription: "blue gi",
		ActivityType:        DefaultActivityType,
		Status:              StatusQueued,
		CreatedAt:           time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(
			analysis.ID,
			analysis.VideoKey,
			analysis.UserDescription,
			analysis.OpponentDescription,
			analysis.ActivityType,
			analysis.Status,
			0,     // progress
			false, // used_fallback
			nil,   // result
			nil,   // failure_code
			nil,   // failure_message
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "video_key", "user_description", "opponent_description", "activity_type",
		"status", "progress", "used_fallback", "result", "failure_code", "failure_message",
		"created_at", "updated_at", "started_at", "completed_at",
	}).AddRow(
		"analysis-1", "videos/roll.mp4", "white gi", "blue gi", DefaultActivityType,
		StatusCompleted, 100, true, `{"overall_score": 78}`, ErrorCodeVisionCall, "vision analyze: boom",
		now, now, now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM analyses").
		WithArgs("analysis-1").
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "analysis-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusCompleted || got.Progress != 100 || !got.UsedFallback {
		t.Fatalf("unexpected analysis: %+v", got)
	}
	if got.Result == nil || got.Result.OverallScore != 78 {
		t.Fatalf("expected jsonb result decoded, got %+v", got.Result)
	}
	if got.FailureCode != ErrorCodeVisionCall {
		t.Fatalf("expected failure code, got %q", got.FailureCode)
	}
	if got.FailureMessage == nil || *got.FailureMessage != "vision analyze: boom" {
		t.Fatalf("expected failure message, got %v", got.FailureMessage)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatal("expected timestamps decoded")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectQuery("SELECT (.+) FROM analyses").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoUpdateStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectExec("UPDATE analyses").
		WithArgs(StatusProcessing, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateStatus(context.Background(), "missing", StatusProcessing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoUpdateProgress(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectExec("UPDATE analyses").
		WithArgs(50, "analysis-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateProgress(context.Background(), "analysis-1", 50); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	failureMessage := "vision analyze: boom"
	mock.ExpectExec("UPDATE analyses").
		WithArgs(
			sqlmock.AnyArg(), // result jsonb
			true,
			ErrorCodeVisionCall,
			failureMessage,
			"analysis-1",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkCompleted(context.Background(), "analysis-1", fallbackResult(), true, ErrorCodeVisionCall, &failureMessage); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
