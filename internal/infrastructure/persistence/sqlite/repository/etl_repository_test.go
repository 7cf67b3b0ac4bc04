package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"lpbetl/internal/infrastructure/persistence/sqlite/model"
	"lpbetl/internal/ports"
)

func setupETLRepository(t *testing.T) *ETLRepository {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "etl.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&model.StagingEvent{}, &model.CleanEvent{}, &model.ETLRun{}, &model.ETLKV{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewETLRepository(db)
}

func cleanEventFixture(fingerprint string, eventDate string) ports.CleanEventCreate {
	return ports.CleanEventCreate{
		PartNumber:      "ABC123456789012",
		SerialNumber:    "SN001",
		EventDate:       eventDate,
		Shift:           "A",
		Disposition:     "SCRAP",
		Code:            "D01",
		CodeDescription: "manque câble",
		Category:        "assembly",
		Type:            "electrical",
		Fingerprint:     fingerprint,
		LoadDate:        "2025-10-01",
		LoadTimestamp:   "2025-10-01T16:10:00Z",
	}
}

func TestInsertCleanEventsSkipsDuplicateFingerprints(t *testing.T) {
	repo := setupETLRepository(t)
	ctx := context.Background()

	inserted, err := repo.InsertCleanEvents(ctx, []ports.CleanEventCreate{
		cleanEventFixture("fp-1", "2025-10-01"),
		cleanEventFixture("fp-2", "2025-10-01"),
	})
	if err != nil {
		t.Fatalf("InsertCleanEvents() error = %v", err)
	}
	if inserted != 2 {
		t.Fatalf("InsertCleanEvents() inserted = %d, want 2", inserted)
	}

	// Re-delivering fp-1 alongside a new row inserts only the new row.
	inserted, err = repo.InsertCleanEvents(ctx, []ports.CleanEventCreate{
		cleanEventFixture("fp-1", "2025-10-01"),
		cleanEventFixture("fp-3", "2025-10-02"),
	})
	if err != nil {
		t.Fatalf("InsertCleanEvents() redelivery error = %v", err)
	}
	if inserted != 1 {
		t.Fatalf("InsertCleanEvents() redelivery inserted = %d, want 1", inserted)
	}

	events, err := repo.ListCleanEvents(ctx, ports.CleanEventFilter{})
	if err != nil {
		t.Fatalf("ListCleanEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("ListCleanEvents() len = %d, want 3", len(events))
	}
}

func TestLastCompletedExtraction(t *testing.T) {
	repo := setupETLRepository(t)
	ctx := context.Background()

	_, found, err := repo.LastCompletedExtraction(ctx, "job")
	if err != nil {
		t.Fatalf("LastCompletedExtraction() error = %v", err)
	}
	if found {
		t.Fatalf("LastCompletedExtraction() found a watermark with no runs")
	}

	older := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 10, 1, 14, 0, 0, 0, time.UTC)
	for _, run := range []ports.ETLRunCreate{
		{
			JobName:                  "job",
			LastSuccessfulExtraction: older.Format(time.RFC3339Nano),
			RecordsProcessed:         5,
			Status:                   ports.RunStatusCompleted,
			StartedAt:                older.Add(-time.Minute).Format(time.RFC3339Nano),
			CompletedAt:              older.Format(time.RFC3339Nano),
		},
		{
			JobName:                  "job",
			LastSuccessfulExtraction: newer.Format(time.RFC3339Nano),
			RecordsProcessed:         2,
			Status:                   ports.RunStatusCompleted,
			StartedAt:                newer.Add(-time.Minute).Format(time.RFC3339Nano),
			CompletedAt:              newer.Format(time.RFC3339Nano),
		},
		{
			JobName:      "job",
			Status:       ports.RunStatusFailed,
			ErrorMessage: "source unreachable",
			StartedAt:    newer.Add(time.Hour).Format(time.RFC3339Nano),
			CompletedAt:  newer.Add(time.Hour).Format(time.RFC3339Nano),
		},
	} {
		if err := repo.RecordRun(ctx, run); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	watermark, found, err := repo.LastCompletedExtraction(ctx, "job")
	if err != nil {
		t.Fatalf("LastCompletedExtraction() error = %v", err)
	}
	if !found {
		t.Fatalf("LastCompletedExtraction() found = false")
	}
	// The FAILED run is newer but must not move the watermark.
	if !watermark.Equal(newer) {
		t.Fatalf("LastCompletedExtraction() = %v, want %v", watermark, newer)
	}
}

// Two runs completing within the same second store fractions of different
// width ("…00.12Z" sorts after "…00.123Z" as text), so the watermark must
// come from the run sequence, not from comparing completed_at strings.
func TestLastCompletedExtractionSameSecondRuns(t *testing.T) {
	repo := setupETLRepository(t)
	ctx := context.Background()

	older := "2026-08-30T12:00:00.12Z"
	newer := "2026-08-30T12:00:00.123Z"
	for _, watermark := range []string{older, newer} {
		if err := repo.RecordRun(ctx, ports.ETLRunCreate{
			JobName:                  "job",
			LastSuccessfulExtraction: watermark,
			Status:                   ports.RunStatusCompleted,
			StartedAt:                watermark,
			CompletedAt:              watermark,
		}); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	watermark, found, err := repo.LastCompletedExtraction(ctx, "job")
	if err != nil {
		t.Fatalf("LastCompletedExtraction() error = %v", err)
	}
	if !found {
		t.Fatalf("LastCompletedExtraction() found = false")
	}
	want, err := time.Parse(time.RFC3339Nano, newer)
	if err != nil {
		t.Fatalf("parse expected watermark: %v", err)
	}
	if !watermark.Equal(want) {
		t.Fatalf("LastCompletedExtraction() = %v, want the later run's %v", watermark, want)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	repo := setupETLRepository(t)
	ctx := context.Background()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, status := range []string{ports.RunStatusCompleted, ports.RunStatusFailed} {
		if err := repo.RecordRun(ctx, ports.ETLRunCreate{
			JobName:     "job",
			Status:      status,
			StartedAt:   now,
			CompletedAt: now,
		}); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	runs, err := repo.ListRuns(ctx, "job", 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns() len = %d, want 2", len(runs))
	}
	if runs[0].Status != ports.RunStatusFailed {
		t.Fatalf("ListRuns() newest status = %q, want FAILED last-written run first", runs[0].Status)
	}
}

func TestMarkStagingProcessed(t *testing.T) {
	repo := setupETLRepository(t)
	ctx := context.Background()

	rows := []ports.StagingEventCreate{
		{PartNumber: "ABC123456789012", Fingerprint: "fp-1", BatchID: "20251001_080000", ExtractedAt: "2025-10-01T08:00:00Z"},
		{PartNumber: "ABC123456789013", Fingerprint: "fp-2", BatchID: "20251001_080000", ExtractedAt: "2025-10-01T08:00:00Z"},
		{PartNumber: "ABC123456789014", Fingerprint: "fp-3", BatchID: "20251001_140000", ExtractedAt: "2025-10-01T14:00:00Z"},
	}
	if _, err := repo.InsertStagingEvents(ctx, rows); err != nil {
		t.Fatalf("InsertStagingEvents() error = %v", err)
	}

	if err := repo.MarkStagingProcessed(ctx, "20251001_080000"); err != nil {
		t.Fatalf("MarkStagingProcessed() error = %v", err)
	}

	var processed int64
	if err := repo.db.Model(&model.StagingEvent{}).Where("is_processed = ?", true).Count(&processed).Error; err != nil {
		t.Fatalf("count processed: %v", err)
	}
	if processed != 2 {
		t.Fatalf("processed staging rows = %d, want 2", processed)
	}
}

func TestListCleanEventsFiltering(t *testing.T) {
	repo := setupETLRepository(t)
	ctx := context.Background()

	if _, err := repo.InsertCleanEvents(ctx, []ports.CleanEventCreate{
		cleanEventFixture("fp-1", "2025-09-30"),
		cleanEventFixture("fp-2", "2025-10-01"),
		cleanEventFixture("fp-3", "2025-10-02"),
	}); err != nil {
		t.Fatalf("InsertCleanEvents() error = %v", err)
	}

	events, err := repo.ListCleanEvents(ctx, ports.CleanEventFilter{Since: "2025-10-01", Until: "2025-10-01"})
	if err != nil {
		t.Fatalf("ListCleanEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].Fingerprint != "fp-2" {
		t.Fatalf("ListCleanEvents() window = %+v", events)
	}
}

func TestDeactivateCleanEvent(t *testing.T) {
	repo := setupETLRepository(t)
	ctx := context.Background()

	if _, err := repo.InsertCleanEvents(ctx, []ports.CleanEventCreate{cleanEventFixture("fp-1", "2025-10-01")}); err != nil {
		t.Fatalf("InsertCleanEvents() error = %v", err)
	}

	if err := repo.DeactivateCleanEvent(ctx, "fp-1"); err != nil {
		t.Fatalf("DeactivateCleanEvent() error = %v", err)
	}

	active, err := repo.ListCleanEvents(ctx, ports.CleanEventFilter{})
	if err != nil {
		t.Fatalf("ListCleanEvents() error = %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("deactivated event still listed: %+v", active)
	}

	all, err := repo.ListCleanEvents(ctx, ports.CleanEventFilter{IncludeInactive: true})
	if err != nil {
		t.Fatalf("ListCleanEvents(include inactive) error = %v", err)
	}
	if len(all) != 1 || all[0].IsActive {
		t.Fatalf("deactivated event missing or still active: %+v", all)
	}

	// The fingerprint stays reserved: re-insertion is still a duplicate.
	inserted, err := repo.InsertCleanEvents(ctx, []ports.CleanEventCreate{cleanEventFixture("fp-1", "2025-10-01")})
	if err != nil {
		t.Fatalf("InsertCleanEvents() after deactivate error = %v", err)
	}
	if inserted != 0 {
		t.Fatalf("re-insert after deactivate inserted = %d, want 0", inserted)
	}

	if err := repo.DeactivateCleanEvent(ctx, "missing"); !errors.Is(err, ports.ErrCleanEventNotFound) {
		t.Fatalf("DeactivateCleanEvent(missing) error = %v, want ErrCleanEventNotFound", err)
	}
}
