package quality

import (
	"testing"
	"time"
)

func TestParseSourceDateStrictLayout(t *testing.T) {
	got, ok := ParseSourceDate("10/1/2025 4:08:17 PM")
	if !ok {
		t.Fatalf("ParseSourceDate() failed on the native layout")
	}
	want := time.Date(2025, 10, 1, 16, 8, 17, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseSourceDate() = %v, want %v", got, want)
	}
}

func TestParseSourceDateFallbacks(t *testing.T) {
	cases := []string{
		"10/1/2025 16:08:17",
		"2025-10-01 16:08:17",
		"2025-10-01T16:08:17",
		"10/1/2025",
		"2025-10-01",
	}
	for _, raw := range cases {
		if _, ok := ParseSourceDate(raw); !ok {
			t.Fatalf("ParseSourceDate(%q) failed", raw)
		}
	}
}

func TestParseSourceDateGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "not a date", "13/45/9999 99:99:99 XM"} {
		if got, ok := ParseSourceDate(raw); ok || !got.IsZero() {
			t.Fatalf("ParseSourceDate(%q) = %v, %v; want zero, false", raw, got, ok)
		}
	}
}

func TestDayOf(t *testing.T) {
	in := time.Date(2025, 10, 1, 16, 8, 17, 123, time.UTC)
	got := DayOf(in)
	want := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("DayOf() = %v, want %v", got, want)
	}
}
