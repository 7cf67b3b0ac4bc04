package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lpbetl/internal/bootstrap/logging"
	"lpbetl/internal/domain/quality"
)

// TransformConfig is the explicit configuration a Transformer runs with.
// There is no hidden file or environment lookup here; the caller resolves
// configuration and hands it over.
type TransformConfig struct {
	CodeMapping   []quality.MappingRule
	TargetColumns []string
}

// Transformer cleans a raw batch into validated clean events. It performs no
// I/O; records that fail validation are dropped and only surface in the
// before/after counts.
type Transformer struct {
	rules   []quality.MappingRule
	columns []string
	now     func() time.Time
}

// NewTransformer validates its configuration up front. A broken transform
// configuration is a fatal condition, not something to degrade around.
func NewTransformer(cfg TransformConfig) (*Transformer, error) {
	if len(cfg.TargetColumns) == 0 {
		return nil, errors.New("target columns are required")
	}
	for i, rule := range cfg.CodeMapping {
		if strings.TrimSpace(rule.From) == "" {
			return nil, fmt.Errorf("code mapping rule %d has an empty phrase", i)
		}
	}

	rules := make([]quality.MappingRule, len(cfg.CodeMapping))
	copy(rules, cfg.CodeMapping)
	columns := make([]string, len(cfg.TargetColumns))
	copy(columns, cfg.TargetColumns)

	return &Transformer{
		rules:   rules,
		columns: columns,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Transform validates, normalizes and stamps every record of a batch.
// Dropped records (short part numbers, unparseable dates) are logged as
// counts; an empty batch is a no-op.
func (t *Transformer) Transform(ctx context.Context, batch quality.Batch) ([]quality.CleanEvent, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if batch.Empty() {
		return nil, nil
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "pipeline.transformer"), slog.String("batch_id", batch.BatchID))

	loadedAt := t.now()
	out := make([]quality.CleanEvent, 0, len(batch.Events))
	droppedParts := 0
	droppedDates := 0

	for _, raw := range batch.Events {
		if !quality.ValidPartNumber(raw.Field("part_number")) {
			droppedParts++
			continue
		}
		if raw.EventTime.IsZero() {
			droppedDates++
			continue
		}
		out = append(out, t.clean(raw, loadedAt))
	}

	logging.Info(
		logCtx,
		"transformation complete",
		slog.Int("input", len(batch.Events)),
		slog.Int("output", len(out)),
		slog.Int("dropped_short_part", droppedParts),
		slog.Int("dropped_bad_date", droppedDates),
	)
	return out, nil
}

func (t *Transformer) clean(raw quality.RawEvent, loadedAt time.Time) quality.CleanEvent {
	// Materialize the full target column set so drifted source schemas still
	// produce a complete record; absent columns become empty strings.
	fields := make(map[string]string, len(t.columns))
	for _, column := range t.columns {
		fields[column] = strings.TrimSpace(raw.Field(column))
	}

	return quality.CleanEvent{
		PartNumber:      fields["part_number"],
		SerialNumber:    fields["serial_number"],
		EventDate:       quality.DayOf(raw.EventTime),
		Shift:           fields["shift"],
		Disposition:     quality.NormalizeDisposition(fields["disposition"]),
		Code:            fields["code"],
		CodeDescription: quality.NormalizeDescription(fields["code_description"], t.rules),
		Category:        fields["category"],
		Type:            fields["type"],
		MachineNo:       fields["machine_no"],
		OperatorNo:      fields["operator_no"],
		DefectComment:   fields["defect_comment"],
		RepairComment:   fields["repair_comment"],
		Fingerprint:     raw.Fingerprint,
		LoadDate:        quality.DayOf(loadedAt),
		LoadTimestamp:   loadedAt,
	}
}
