package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.dlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, event)
	}
}

func TestReaderIteratesInOrder(t *testing.T) {
	now := time.Now()
	path := createTestLogFile(t, []Event{
		{Timestamp: now, ConnectionID: "conn-1", Category: CategoryAccept},
		{Timestamp: now, ConnectionID: "conn-2", Category: CategoryFrame},
		{Timestamp: now, ConnectionID: "conn-3", Category: CategoryState},
	})

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	events := readAll(t, reader)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, want := range []string{"conn-1", "conn-2", "conn-3"} {
		if events[i].ConnectionID != want {
			t.Errorf("event %d: ConnectionID = %q, want %q", i, events[i].ConnectionID, want)
		}
	}
}

func TestFilteredReader(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []Event{
		{Timestamp: base, ConnectionID: "abc-1", Direction: DirectionIn, Category: CategoryFrame},
		{Timestamp: base.Add(time.Second), ConnectionID: "abc-1", Direction: DirectionOut, Category: CategoryFrame},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "def-2", Category: CategoryError, Layer: LayerServer},
		{Timestamp: base.Add(3 * time.Second), ConnectionID: "abc-1", Category: CategoryState},
	})

	out := DirectionOut
	errCat := CategoryError
	server := LayerServer
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 4},
		{"connection prefix", Filter{ConnectionID: "abc"}, 3},
		{"direction", Filter{Direction: &out}, 1},
		{"category", Filter{Category: &errCat}, 1},
		{"layer", Filter{Layer: &server}, 1},
		{"time window", Filter{TimeStart: &start, TimeEnd: &end}, 2},
		{"combined", Filter{ConnectionID: "abc", Category: &errCat}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer reader.Close()

			if got := len(readAll(t, reader)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.dlog")); err == nil {
		t.Error("expected error opening a missing file")
	}
}

func TestParseCategory(t *testing.T) {
	if c, ok := ParseCategory("accept"); !ok || c != CategoryAccept {
		t.Errorf("ParseCategory(accept) = %v, %v", c, ok)
	}
	if _, ok := ParseCategory("bogus"); ok {
		t.Error("ParseCategory(bogus) should fail")
	}
}
