package pipeline

import (
	"context"
	"testing"
	"time"

	"lpbetl/internal/domain/quality"
)

func testTransformer(t *testing.T) *Transformer {
	t.Helper()

	tr, err := NewTransformer(TransformConfig{
		CodeMapping:   quality.DefaultCodeMapping,
		TargetColumns: quality.TargetColumns,
	})
	if err != nil {
		t.Fatalf("NewTransformer() error = %v", err)
	}
	tr.now = func() time.Time { return time.Date(2025, 10, 1, 16, 10, 0, 0, time.UTC) }
	return tr
}

func rawEvent(fields map[string]string) quality.RawEvent {
	event := quality.RawEvent{Fields: fields, BatchID: "20251001_160800"}
	event.Fingerprint = quality.FingerprintEvent(event)
	if parsed, ok := quality.ParseSourceDate(event.Field("date")); ok {
		event.EventTime = parsed
	}
	return event
}

func TestTransformCleansAndStamps(t *testing.T) {
	tr := testTransformer(t)

	events, err := tr.Transform(context.Background(), quality.Batch{
		BatchID: "20251001_160800",
		Events: []quality.RawEvent{rawEvent(map[string]string{
			"part_number":      "  ABC123456789012 ",
			"serial_number":    "SN001",
			"date":             "10/1/2025 4:08:17 PM",
			"shift":            "A",
			"disposition":      " scrap ",
			"code_description": "Point Saute",
		})},
	})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Transform() len = %d, want 1", len(events))
	}

	got := events[0]
	if got.PartNumber != "ABC123456789012" {
		t.Fatalf("PartNumber = %q", got.PartNumber)
	}
	if got.Disposition != "SCRAP" {
		t.Fatalf("Disposition = %q", got.Disposition)
	}
	if got.CodeDescription != "point sauté" {
		t.Fatalf("CodeDescription = %q", got.CodeDescription)
	}
	if !got.EventDate.Equal(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("EventDate = %v", got.EventDate)
	}
	if !got.LoadDate.Equal(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("LoadDate = %v", got.LoadDate)
	}
	if got.LoadTimestamp.IsZero() {
		t.Fatalf("LoadTimestamp not stamped")
	}
	if got.Fingerprint == "" {
		t.Fatalf("Fingerprint not carried through")
	}
}

func TestTransformDropsInvalidRecords(t *testing.T) {
	tr := testTransformer(t)

	events, err := tr.Transform(context.Background(), quality.Batch{
		BatchID: "20251001_160800",
		Events: []quality.RawEvent{
			rawEvent(map[string]string{
				"part_number": "SHORT",
				"date":        "10/1/2025 4:08:17 PM",
			}),
			rawEvent(map[string]string{
				"part_number": "ABC123456789012",
				"date":        "not a date",
			}),
			rawEvent(map[string]string{
				"part_number":      "ABC123456789012",
				"serial_number":    "SN002",
				"date":             "10/1/2025 4:09:00 PM",
				"code_description": "manque cable",
			}),
		},
	})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Transform() len = %d, want 1 surviving record", len(events))
	}
	if events[0].SerialNumber != "SN002" {
		t.Fatalf("wrong record survived: %+v", events[0])
	}
}

func TestTransformEmptyBatch(t *testing.T) {
	tr := testTransformer(t)

	events, err := tr.Transform(context.Background(), quality.Batch{BatchID: "20251001_160800"})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("Transform() len = %d, want 0", len(events))
	}
}

func TestTransformMissingColumnsBecomeEmpty(t *testing.T) {
	tr := testTransformer(t)

	events, err := tr.Transform(context.Background(), quality.Batch{
		BatchID: "20251001_160800",
		Events: []quality.RawEvent{rawEvent(map[string]string{
			"part_number": "ABC123456789012",
			"date":        "10/1/2025 4:08:17 PM",
		})},
	})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Transform() len = %d, want 1", len(events))
	}
	if events[0].MachineNo != "" || events[0].Category != "" {
		t.Fatalf("absent columns not empty: %+v", events[0])
	}
}

func TestNewTransformerRejectsBadConfig(t *testing.T) {
	if _, err := NewTransformer(TransformConfig{}); err == nil {
		t.Fatalf("NewTransformer() accepted empty target columns")
	}
	if _, err := NewTransformer(TransformConfig{
		CodeMapping:   []quality.MappingRule{{From: "  ", To: "x"}},
		TargetColumns: quality.TargetColumns,
	}); err == nil {
		t.Fatalf("NewTransformer() accepted an empty mapping phrase")
	}
}
