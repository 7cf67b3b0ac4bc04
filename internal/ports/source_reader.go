package ports

import (
	"context"
	"time"
)

// SourceRow is one record read from the operational quality-events table.
// Columns are kept as raw text keyed by the source column name; the source
// schema drifts between runs, so no fixed struct is imposed this early.
type SourceRow struct {
	Columns map[string]string
}

// SourceReader is read-only access to the operational quality-events table.
//
// FetchSince returns all rows with event timestamp strictly greater than
// since, ordered ascending by event timestamp. A zero since means no lower
// bound (full historical read). An empty result is a normal outcome, not an
// error.
type SourceReader interface {
	FetchSince(ctx context.Context, since time.Time) ([]SourceRow, error)
}
