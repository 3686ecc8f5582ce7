package server

import (
	"testing"
	"time"
)

func TestQueryTimeRange(t *testing.T) {
	start, end, err := queryTimeRange("2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", start)
	}
	if want := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond); !end.Equal(want) {
		t.Fatalf("end = %v, want %v", end, want)
	}

	start, end, err = queryTimeRange("", "")
	if err != nil || start != nil || end != nil {
		t.Fatalf("empty bounds should be open, got %v %v %v", start, end, err)
	}

	if _, _, err := queryTimeRange("2024-03-10", "2024-03-01"); err == nil {
		t.Fatal("expected inverted range to fail")
	}
	if _, _, err := queryTimeRange("yesterday", ""); err == nil {
		t.Fatal("expected bad start to fail")
	}
}
