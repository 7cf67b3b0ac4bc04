package ports

import (
	"context"
	"errors"
	"time"
)

var ErrCleanEventNotFound = errors.New("clean quality event not found")

// ETL run statuses. Run rows are written once, at completion, so only the
// terminal states COMPLETED and FAILED are ever persisted; rows are never
// deleted (audit trail). RUNNING is part of the status vocabulary for
// consumers that filter on it but is never stored by this pipeline.
const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// StagingEventCreate is one raw extracted record landing in the append-only
// staging table. RawDate keeps the source's native date text.
type StagingEventCreate struct {
	PartNumber      string
	SerialNumber    string
	RawDate         string
	Shift           string
	Disposition     string
	Code            string
	CodeDescription string
	Category        string
	Type            string
	MachineNo       string
	OperatorNo      string
	DefectComment   string
	RepairComment   string
	Fingerprint     string
	BatchID         string
	ExtractedAt     string
}

// CleanEventCreate is one validated, transformed record destined for the
// clean table. EventDate is day-grain ("2006-01-02"); timestamps are
// RFC3339Nano.
type CleanEventCreate struct {
	PartNumber      string
	SerialNumber    string
	EventDate       string
	Shift           string
	Disposition     string
	Code            string
	CodeDescription string
	Category        string
	Type            string
	MachineNo       string
	OperatorNo      string
	DefectComment   string
	RepairComment   string
	Fingerprint     string
	LoadDate        string
	LoadTimestamp   string
}

type CleanEvent struct {
	CleanEventID    uint64
	PartNumber      string
	SerialNumber    string
	EventDate       string
	Shift           string
	Disposition     string
	Code            string
	CodeDescription string
	Category        string
	Type            string
	MachineNo       string
	OperatorNo      string
	DefectComment   string
	RepairComment   string
	Fingerprint     string
	LoadDate        string
	LoadTimestamp   string
	IsActive        bool
}

// CleanEventFilter bounds reads of the clean table. Since/Until compare
// against EventDate (inclusive); empty strings mean unbounded.
type CleanEventFilter struct {
	Since           string
	Until           string
	Limit           int
	IncludeInactive bool
}

type ETLRunCreate struct {
	JobName                  string
	LastSuccessfulExtraction string // empty for FAILED runs
	MaxEventTime             string // max event timestamp in the loaded batch, for audit
	RecordsProcessed         int
	Status                   string
	ErrorMessage             string
	StartedAt                string
	CompletedAt              string
}

type ETLRun struct {
	RunID                    uint64
	JobName                  string
	LastSuccessfulExtraction string
	MaxEventTime             string
	RecordsProcessed         int
	Status                   string
	ErrorMessage             string
	StartedAt                string
	CompletedAt              string
}

// ETLRepository is the write/read contract over the reporting store:
// staging landing zone, deduplicated clean table and run metadata.
type ETLRepository interface {
	// LastCompletedExtraction returns the watermark: the most recent
	// last_successful_extraction among COMPLETED runs for the job.
	// found is false when the job has never completed.
	LastCompletedExtraction(ctx context.Context, jobName string) (watermark time.Time, found bool, err error)

	// InsertStagingEvents appends raw records to the staging table.
	InsertStagingEvents(ctx context.Context, rows []StagingEventCreate) (int, error)

	// InsertCleanEvents writes records into the clean table. A row whose
	// fingerprint already exists is skipped, not an error; the return value
	// counts rows actually inserted.
	InsertCleanEvents(ctx context.Context, rows []CleanEventCreate) (int, error)

	// MarkStagingProcessed flags all staging rows of a batch as consumed.
	MarkStagingProcessed(ctx context.Context, batchID string) error

	RecordRun(ctx context.Context, run ETLRunCreate) error
	ListRuns(ctx context.Context, jobName string, limit int) ([]ETLRun, error)

	ListCleanEvents(ctx context.Context, filter CleanEventFilter) ([]CleanEvent, error)

	// DeactivateCleanEvent soft-deactivates a clean record by fingerprint
	// (correction workflow; rows are never physically removed).
	DeactivateCleanEvent(ctx context.Context, fingerprint string) error
}
