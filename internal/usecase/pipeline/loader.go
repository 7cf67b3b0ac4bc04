package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lpbetl/internal/bootstrap/logging"
	"lpbetl/internal/domain/quality"
	"lpbetl/internal/errs"
	"lpbetl/internal/ports"
)

const (
	eventDateLayout = "2006-01-02"
)

// RunInfo carries the per-run facts the loader needs for bookkeeping.
type RunInfo struct {
	BatchID      string
	StartedAt    time.Time
	MaxEventTime time.Time
}

// Loader writes staging and clean records and owns run-metadata bookkeeping.
// The clean insert and its COMPLETED run row commit in one transaction so the
// watermark can never advance past data that failed to land.
type Loader struct {
	repo    ports.ETLRepository
	uow     ports.UnitOfWork
	jobName string
	now     func() time.Time
}

func NewLoader(repo ports.ETLRepository, uow ports.UnitOfWork, jobName string) (*Loader, error) {
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	if uow == nil {
		return nil, errors.New("unit of work is required")
	}
	if jobName == "" {
		return nil, errors.New("job name is required")
	}

	return &Loader{
		repo:    repo,
		uow:     uow,
		jobName: jobName,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// LoadStaging appends the raw batch to the staging landing zone.
func (l *Loader) LoadStaging(ctx context.Context, batch quality.Batch) (int, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if batch.Empty() {
		return 0, nil
	}

	rows := make([]ports.StagingEventCreate, 0, len(batch.Events))
	for _, event := range batch.Events {
		rows = append(rows, ports.StagingEventCreate{
			PartNumber:      event.Field("part_number"),
			SerialNumber:    event.Field("serial_number"),
			RawDate:         event.Field("date"),
			Shift:           event.Field("shift"),
			Disposition:     event.Field("disposition"),
			Code:            event.Field("code"),
			CodeDescription: event.Field("code_description"),
			Category:        event.Field("category"),
			Type:            event.Field("type"),
			MachineNo:       event.Field("machine_no"),
			OperatorNo:      event.Field("operator_no"),
			DefectComment:   event.Field("defect_comment"),
			RepairComment:   event.Field("repair_comment"),
			Fingerprint:     event.Fingerprint,
			BatchID:         event.BatchID,
			ExtractedAt:     formatTimestamp(event.ExtractedAt),
		})
	}

	inserted, err := l.repo.InsertStagingEvents(ctx, rows)
	if err != nil {
		return 0, errs.Wrap(err, "insert staging events")
	}
	return inserted, nil
}

// LoadClean inserts the transformed records and, in the same transaction,
// records the COMPLETED run row whose last_successful_extraction becomes the
// next watermark. Fingerprint collisions are skipped silently; the returned
// count reflects rows actually inserted.
//
// On failure the FAILED run row is written best-effort outside the rolled
// back transaction so the failure is visible in run history.
func (l *Loader) LoadClean(ctx context.Context, events []quality.CleanEvent, run RunInfo) (int, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "pipeline.loader"), slog.String("batch_id", run.BatchID))

	rows := make([]ports.CleanEventCreate, 0, len(events))
	for _, event := range events {
		rows = append(rows, ports.CleanEventCreate{
			PartNumber:      event.PartNumber,
			SerialNumber:    event.SerialNumber,
			EventDate:       event.EventDate.Format(eventDateLayout),
			Shift:           event.Shift,
			Disposition:     event.Disposition,
			Code:            event.Code,
			CodeDescription: event.CodeDescription,
			Category:        event.Category,
			Type:            event.Type,
			MachineNo:       event.MachineNo,
			OperatorNo:      event.OperatorNo,
			DefectComment:   event.DefectComment,
			RepairComment:   event.RepairComment,
			Fingerprint:     event.Fingerprint,
			LoadDate:        event.LoadDate.Format(eventDateLayout),
			LoadTimestamp:   formatTimestamp(event.LoadTimestamp),
		})
	}

	var inserted int
	err := l.uow.WithTx(ctx, func(txCtx context.Context) error {
		n, err := l.repo.InsertCleanEvents(txCtx, rows)
		if err != nil {
			return errs.Wrap(err, "insert clean events")
		}
		inserted = n

		return l.repo.RecordRun(txCtx, l.buildRun(ports.RunStatusCompleted, inserted, "", run))
	})
	if err != nil {
		l.recordFailureBestEffort(logCtx, err.Error(), run)
		return 0, errs.Wrap(err, "load clean events")
	}

	logging.Info(
		logCtx,
		"load complete",
		slog.Int("transformed", len(rows)),
		slog.Int("inserted", inserted),
		slog.Int("duplicates_skipped", len(rows)-inserted),
	)
	return inserted, nil
}

// MarkStagingProcessed flags the batch's staging rows as consumed.
func (l *Loader) MarkStagingProcessed(ctx context.Context, batchID string) error {
	return l.repo.MarkStagingProcessed(ctx, batchID)
}

// RecordRunOutcome writes a run row directly, outside any transaction. The
// orchestrator uses it to book extract and transform failures, which happen
// before the loader's own transactional bookkeeping.
func (l *Loader) RecordRunOutcome(ctx context.Context, status string, records int, errorMessage string, run RunInfo) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	return l.repo.RecordRun(ctx, l.buildRun(status, records, errorMessage, run))
}

func (l *Loader) buildRun(status string, records int, errorMessage string, run RunInfo) ports.ETLRunCreate {
	completedAt := l.now()

	create := ports.ETLRunCreate{
		JobName:          l.jobName,
		RecordsProcessed: records,
		Status:           status,
		ErrorMessage:     errorMessage,
		StartedAt:        formatTimestamp(run.StartedAt),
		CompletedAt:      formatTimestamp(completedAt),
	}
	if status == ports.RunStatusCompleted {
		// The watermark is the load completion instant, not the newest event
		// timestamp; MaxEventTime is kept alongside for auditing the gap.
		create.LastSuccessfulExtraction = formatTimestamp(completedAt)
	}
	if !run.MaxEventTime.IsZero() {
		create.MaxEventTime = formatTimestamp(run.MaxEventTime)
	}
	return create
}

func (l *Loader) recordFailureBestEffort(ctx context.Context, message string, run RunInfo) {
	if err := l.RecordRunOutcome(ctx, ports.RunStatusFailed, 0, message, run); err != nil {
		logging.Error(ctx, "failed to record failed run", slog.Any("err", errs.Loggable(err)))
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
