package quality

import (
	"strings"
	"time"
)

// RawEvent is one defect observation as pulled from the source system,
// before any cleaning. Fields carries the source row keyed by column name;
// the set of columns may drift between extractions, so lookups go through
// Field rather than indexing the map directly.
type RawEvent struct {
	Fields      map[string]string
	EventTime   time.Time // zero when the source date failed to parse
	Fingerprint string
	BatchID     string
	ExtractedAt time.Time
}

// Field returns the value for a column under canonical naming
// (lower-cased, trimmed), tolerating source-side case drift.
func (e RawEvent) Field(name string) string {
	want := CanonicalFieldName(name)
	if v, ok := e.Fields[want]; ok {
		return v
	}
	for k, v := range e.Fields {
		if CanonicalFieldName(k) == want {
			return v
		}
	}
	return ""
}

// CleanEvent is the canonical, deduplicated defect record used by reporting.
type CleanEvent struct {
	PartNumber      string
	SerialNumber    string
	EventDate       time.Time // truncated to day
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
	LoadDate        time.Time
	LoadTimestamp   time.Time
}

// Batch is the ordered collection of records produced by one extraction and
// carried through transform and load. Events are ordered by ascending source
// event timestamp.
type Batch struct {
	BatchID string
	Events  []RawEvent
}

func (b Batch) Empty() bool { return len(b.Events) == 0 }

// CanonicalFieldName normalizes a source column name for lookup.
func CanonicalFieldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// TargetColumns is the canonical column set the clean table expects, used
// when no external transform configuration is supplied.
var TargetColumns = []string{
	"part_number", "serial_number", "date", "shift", "disposition",
	"code", "code_description", "category", "type", "machine_no",
	"operator_no", "defect_comment", "repair_comment",
}
