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

// batchIDLayout stamps every extraction with a sortable batch identity,
// for example "20251001_160817".
const batchIDLayout = "20060102_150405"

// Extractor pulls new quality events from the operational source starting
// just past the last completed watermark.
type Extractor struct {
	source   ports.SourceReader
	repo     ports.ETLRepository
	jobName  string
	lookback time.Duration
	now      func() time.Time
}

func NewExtractor(source ports.SourceReader, repo ports.ETLRepository, jobName string, lookback time.Duration) (*Extractor, error) {
	if source == nil {
		return nil, errors.New("source reader is required")
	}
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	if jobName == "" {
		return nil, errors.New("job name is required")
	}
	if lookback <= 0 {
		return nil, errors.New("bootstrap lookback must be positive")
	}

	return &Extractor{
		source:   source,
		repo:     repo,
		jobName:  jobName,
		lookback: lookback,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Extract reads the source window and stamps each record with its
// fingerprint, parsed event time and batch identity. incremental=false forces
// a full historical read regardless of the watermark.
//
// An empty window is a normal outcome and yields an empty batch, not an
// error. A failed watermark lookup degrades to the bootstrap window with a
// warning instead of aborting the run.
func (e *Extractor) Extract(ctx context.Context, incremental bool) (quality.Batch, error) {
	if ctx == nil {
		return quality.Batch{}, errors.New("context is required")
	}

	startedAt := e.now()
	batch := quality.Batch{BatchID: startedAt.Format(batchIDLayout)}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "pipeline.extractor"), slog.String("batch_id", batch.BatchID))

	since := e.lowerBound(logCtx, incremental, startedAt)

	rows, err := e.source.FetchSince(ctx, since)
	if err != nil {
		return quality.Batch{}, errs.Wrap(err, "fetch source events")
	}
	if len(rows) == 0 {
		logging.Info(logCtx, "no new source records", slog.Time("since", since))
		return batch, nil
	}

	batch.Events = make([]quality.RawEvent, 0, len(rows))
	badDates := 0
	for _, row := range rows {
		event := quality.RawEvent{
			Fields:      row.Columns,
			BatchID:     batch.BatchID,
			ExtractedAt: startedAt,
		}
		event.Fingerprint = quality.FingerprintEvent(event)
		if t, ok := quality.ParseSourceDate(event.Field("date")); ok {
			event.EventTime = t
		} else {
			badDates++
		}
		batch.Events = append(batch.Events, event)
	}

	logging.Info(
		logCtx,
		"extraction complete",
		slog.Time("since", since),
		slog.Int("records", len(batch.Events)),
		slog.Int("unparseable_dates", badDates),
	)
	return batch, nil
}

// lowerBound resolves the extraction window start. Incremental runs use the
// watermark of the last completed run; a job that has never completed, or a
// watermark lookup that errors, falls back to the bootstrap lookback window.
func (e *Extractor) lowerBound(ctx context.Context, incremental bool, now time.Time) time.Time {
	if !incremental {
		logging.Info(ctx, "full load requested, ignoring watermark")
		return time.Time{}
	}

	watermark, found, err := e.repo.LastCompletedExtraction(ctx, e.jobName)
	if err != nil {
		logging.Warn(
			ctx,
			"watermark lookup failed, falling back to bootstrap window",
			slog.Any("err", errs.Loggable(err)),
		)
		return now.Add(-e.lookback)
	}
	if !found {
		logging.Info(ctx, "no completed run on record, using bootstrap window", slog.Duration("lookback", e.lookback))
		return now.Add(-e.lookback)
	}
	return watermark
}
