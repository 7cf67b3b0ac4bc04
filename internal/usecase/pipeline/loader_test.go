package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"lpbetl/internal/domain/quality"
	"lpbetl/internal/ports"
)

// stubRepo fails clean inserts and captures run rows, exercising the
// loader's failure bookkeeping without a database.
type stubRepo struct {
	ports.ETLRepository

	insertErr error
	runs      []ports.ETLRunCreate
}

func (s *stubRepo) InsertCleanEvents(_ context.Context, rows []ports.CleanEventCreate) (int, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	return len(rows), nil
}

func (s *stubRepo) RecordRun(_ context.Context, run ports.ETLRunCreate) error {
	s.runs = append(s.runs, run)
	return nil
}

type passthroughUOW struct{}

func (passthroughUOW) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func TestLoadCleanFailureBooksFailedRun(t *testing.T) {
	repo := &stubRepo{insertErr: errors.New("disk full")}
	loader, err := NewLoader(repo, passthroughUOW{}, "job")
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	run := RunInfo{
		BatchID:      "20251001_160800",
		StartedAt:    time.Date(2025, 10, 1, 16, 8, 0, 0, time.UTC),
		MaxEventTime: time.Date(2025, 10, 1, 16, 0, 0, 0, time.UTC),
	}
	_, err = loader.LoadClean(context.Background(), []quality.CleanEvent{{Fingerprint: "fp-1"}}, run)
	if err == nil {
		t.Fatalf("LoadClean() succeeded despite insert failure")
	}

	if len(repo.runs) != 1 {
		t.Fatalf("run rows = %d, want 1 FAILED row", len(repo.runs))
	}
	booked := repo.runs[0]
	if booked.Status != ports.RunStatusFailed {
		t.Fatalf("booked status = %q", booked.Status)
	}
	if booked.LastSuccessfulExtraction != "" {
		t.Fatalf("FAILED run carries a watermark: %q", booked.LastSuccessfulExtraction)
	}
	if booked.ErrorMessage == "" {
		t.Fatalf("FAILED run has no error message")
	}
	if booked.RecordsProcessed != 0 {
		t.Fatalf("FAILED run records = %d, want 0", booked.RecordsProcessed)
	}
}

func TestLoadCleanSuccessBooksCompletedRun(t *testing.T) {
	repo := &stubRepo{}
	loader, err := NewLoader(repo, passthroughUOW{}, "job")
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	run := RunInfo{
		BatchID:      "20251001_160800",
		StartedAt:    time.Date(2025, 10, 1, 16, 8, 0, 0, time.UTC),
		MaxEventTime: time.Date(2025, 10, 1, 16, 0, 0, 0, time.UTC),
	}
	inserted, err := loader.LoadClean(context.Background(), []quality.CleanEvent{
		{Fingerprint: "fp-1"}, {Fingerprint: "fp-2"},
	}, run)
	if err != nil {
		t.Fatalf("LoadClean() error = %v", err)
	}
	if inserted != 2 {
		t.Fatalf("LoadClean() inserted = %d, want 2", inserted)
	}

	if len(repo.runs) != 1 {
		t.Fatalf("run rows = %d, want 1", len(repo.runs))
	}
	booked := repo.runs[0]
	if booked.Status != ports.RunStatusCompleted || booked.RecordsProcessed != 2 {
		t.Fatalf("booked run = %+v", booked)
	}
	if booked.LastSuccessfulExtraction == "" {
		t.Fatalf("COMPLETED run has no watermark")
	}
	if booked.MaxEventTime == "" {
		t.Fatalf("COMPLETED run lost max event time")
	}
}
