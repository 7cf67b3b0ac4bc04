package quality

import (
	"strings"
	"time"
)

// sourceDateLayout is the source system's native representation,
// for example "10/1/2025 4:08:17 PM".
const sourceDateLayout = "1/2/2006 3:04:05 PM"

// fallbackDateLayouts are tried in order when the strict layout fails.
// Source exports have shipped all of these at one point or another.
var fallbackDateLayouts = []string{
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"1/2/2006",
	"2006-01-02",
}

// ParseSourceDate parses the source's date representation defensively:
// strict layout first, then permissive fallbacks. A total failure returns a
// zero time and false; the record is dropped later by the transformer, not
// by the extractor.
func ParseSourceDate(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(sourceDateLayout, value); err == nil {
		return t, true
	}
	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DayOf truncates a timestamp to its calendar day (reporting grain).
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
