package logring

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestRingEviction(t *testing.T) {
	r := New(3)
	for i := 0; i < 5; i++ {
		r.Append(Record{Message: string(rune('a' + i)), Time: time.Now()})
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}

	recent := r.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("recent = %d records, want 3", len(recent))
	}
	// Newest first; the two oldest ("a", "b") were evicted.
	want := []string{"e", "d", "c"}
	for i, w := range want {
		if recent[i].Message != w {
			t.Errorf("recent[%d] = %q, want %q", i, recent[i].Message, w)
		}
	}
}

func TestRecentLimit(t *testing.T) {
	r := New(10)
	for i := 0; i < 5; i++ {
		r.Append(Record{Message: "m"})
	}
	if got := r.Recent(2); len(got) != 2 {
		t.Errorf("limit 2 returned %d records", len(got))
	}
}

func TestByLevelAndByLogger(t *testing.T) {
	r := New(10)
	r.Append(Record{Level: "INFO", Logger: "fetcher", Message: "one"})
	r.Append(Record{Level: "ERROR", Logger: "store", Message: "two"})
	r.Append(Record{Level: "error", Logger: "fetcher", Message: "three"})

	errs := r.ByLevel("ERROR", 0)
	if len(errs) != 2 {
		t.Fatalf("ByLevel = %d records, want 2 (case-insensitive)", len(errs))
	}
	if errs[0].Message != "three" {
		t.Errorf("newest first: got %q", errs[0].Message)
	}

	fetch := r.ByLogger("fetcher", 0)
	if len(fetch) != 2 {
		t.Errorf("ByLogger = %d records, want 2", len(fetch))
	}
}

func TestDefaultCapacity(t *testing.T) {
	r := New(0)
	if len(r.buf) != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", len(r.buf), DefaultCapacity)
	}
}

// --- Handler ---

func TestHandlerCapturesRecords(t *testing.T) {
	ring := New(10)
	inner := slog.NewTextHandler(io.Discard, nil)
	logger := slog.New(NewHandler(inner, ring))

	logger.Info("hello", "key", "value")

	recs := ring.Recent(0)
	if len(recs) != 1 {
		t.Fatalf("captured %d records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Message != "hello" || rec.Level != "INFO" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Attrs["key"] != "value" {
		t.Errorf("attrs = %v", rec.Attrs)
	}
}

func TestHandlerComponentBecomesLogger(t *testing.T) {
	ring := New(10)
	logger := slog.New(NewHandler(slog.NewTextHandler(io.Discard, nil), ring))

	logger.With("component", "router").Warn("quota pressure")

	recs := ring.Recent(1)
	if len(recs) != 1 {
		t.Fatal("record not captured")
	}
	if recs[0].Logger != "router" {
		t.Errorf("logger = %q, want router", recs[0].Logger)
	}
	if _, ok := recs[0].Attrs["component"]; ok {
		t.Error("component attr should be lifted out of Attrs")
	}
}

func TestHandlerRespectsLevel(t *testing.T) {
	ring := New(10)
	inner := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := slog.New(NewHandler(inner, ring))

	logger.Debug("suppressed")
	logger.Warn("captured")

	if got := ring.Len(); got != 1 {
		t.Errorf("ring holds %d records, want 1", got)
	}
}
