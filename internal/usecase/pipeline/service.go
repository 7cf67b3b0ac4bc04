package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lpbetl/internal/bootstrap/logging"
	"lpbetl/internal/domain/quality"
	"lpbetl/internal/errs"
	"lpbetl/internal/ports"
)

// Run outcome statuses reported to callers (CLI exit codes, API payloads).
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RunResult is the terse outcome summary of one pipeline run.
type RunResult struct {
	Status           string `json:"status"`
	RecordsProcessed int    `json:"records_processed"`
	Message          string `json:"message"`
}

func (r RunResult) Failed() bool { return r.Status != StatusSuccess }

// Config wires one pipeline service.
type Config struct {
	JobName           string
	BootstrapLookback time.Duration
	Transform         TransformConfig
}

// Service orchestrates one extract-transform-load pass. It holds no state
// between runs; resumption comes entirely from the persisted watermark.
type Service struct {
	extractor   *Extractor
	transformer *Transformer
	loader      *Loader
	kv          ports.KVStore
	jobName     string
	now         func() time.Time
}

func NewService(source ports.SourceReader, repo ports.ETLRepository, uow ports.UnitOfWork, kv ports.KVStore, cfg Config) (*Service, error) {
	if kv == nil {
		return nil, errors.New("kv store is required")
	}

	extractor, err := NewExtractor(source, repo, cfg.JobName, cfg.BootstrapLookback)
	if err != nil {
		return nil, errs.Wrap(err, "build extractor")
	}
	transformer, err := NewTransformer(cfg.Transform)
	if err != nil {
		return nil, errs.Wrap(err, "build transformer")
	}
	loader, err := NewLoader(repo, uow, cfg.JobName)
	if err != nil {
		return nil, errs.Wrap(err, "build loader")
	}

	return &Service{
		extractor:   extractor,
		transformer: transformer,
		loader:      loader,
		kv:          kv,
		jobName:     cfg.JobName,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run executes one pass of the pipeline. All outcomes are reported through
// RunResult; an error status means the run failed after bookkeeping.
//
// incremental=false forces a full historical read that still deduplicates
// against the existing clean table.
func (s *Service) Run(ctx context.Context, incremental bool) RunResult {
	if ctx == nil {
		return RunResult{Status: StatusError, Message: "context is required"}
	}

	runID := uuid.NewString()
	logCtx := logging.WithAttrs(ctx,
		slog.String("job", s.jobName),
		slog.String("run_id", runID),
		slog.Bool("incremental", incremental),
	)

	release, acquired, err := s.acquireRunLock(logCtx, runID)
	if err != nil {
		return RunResult{Status: StatusError, Message: fmt.Sprintf("acquire run lock: %v", err)}
	}
	if !acquired {
		logging.Warn(logCtx, "another run holds the job lock, skipping")
		return RunResult{Status: StatusError, Message: "another run is already in progress"}
	}
	defer release()

	run := RunInfo{StartedAt: s.now()}
	logging.Info(logCtx, "pipeline run started")

	batch, err := s.extractor.Extract(logCtx, incremental)
	if err != nil {
		return s.fail(logCtx, run, errs.Wrap(err, "extract"))
	}
	run.BatchID = batch.BatchID
	run.MaxEventTime = maxEventTime(batch)

	// An empty extraction window is a normal outcome; no run row is written
	// and the watermark stays where it was.
	if batch.Empty() {
		logging.Info(logCtx, "no new data to process")
		return RunResult{Status: StatusSuccess, Message: "No new data"}
	}

	if _, err := s.loader.LoadStaging(logCtx, batch); err != nil {
		return s.fail(logCtx, run, errs.Wrap(err, "load staging"))
	}

	events, err := s.transformer.Transform(logCtx, batch)
	if err != nil {
		return s.fail(logCtx, run, errs.Wrap(err, "transform"))
	}

	inserted, err := s.loader.LoadClean(logCtx, events, run)
	if err != nil {
		// LoadClean already booked the FAILED run row.
		logging.Error(logCtx, "pipeline run failed", slog.Any("err", errs.Loggable(err)))
		return RunResult{Status: StatusError, Message: err.Error()}
	}

	if err := s.loader.MarkStagingProcessed(logCtx, batch.BatchID); err != nil {
		logging.Warn(logCtx, "failed to mark staging batch processed", slog.Any("err", errs.Loggable(err)))
	}

	logging.Info(logCtx, "pipeline run completed", slog.Int("records_processed", inserted))
	return RunResult{
		Status:           StatusSuccess,
		RecordsProcessed: inserted,
		Message:          fmt.Sprintf("Processed %d records", inserted),
	}
}

// fail books a FAILED run row for errors that happen before the loader's own
// transactional bookkeeping, then reports the error result.
func (s *Service) fail(ctx context.Context, run RunInfo, cause error) RunResult {
	logging.Error(ctx, "pipeline run failed", slog.Any("err", errs.Loggable(cause)))

	if err := s.loader.RecordRunOutcome(ctx, ports.RunStatusFailed, 0, cause.Error(), run); err != nil {
		logging.Error(ctx, "failed to record failed run", slog.Any("err", errs.Loggable(err)))
	}
	return RunResult{Status: StatusError, Message: cause.Error()}
}

// acquireRunLock takes the advisory per-job lock so overlapping scheduled
// invocations cannot interleave their bookkeeping.
func (s *Service) acquireRunLock(ctx context.Context, runID string) (release func(), acquired bool, err error) {
	key := "run_lock:" + s.jobName

	acquired, err = s.kv.SetIfAbsent(ctx, key, runID)
	if err != nil {
		return nil, false, errs.Wrap(err, "acquire run lock")
	}
	if !acquired {
		return nil, false, nil
	}

	release = func() {
		if err := s.kv.Delete(ctx, key); err != nil {
			logging.Warn(ctx, "failed to release run lock", slog.Any("err", errs.Loggable(err)))
		}
	}
	return release, true, nil
}

func maxEventTime(batch quality.Batch) time.Time {
	var max time.Time
	for _, event := range batch.Events {
		if event.EventTime.After(max) {
			max = event.EventTime
		}
	}
	return max
}
