package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEventLog_FormatAndFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p01_1.txt")
	start := time.Date(2025, 3, 17, 14, 5, 59, 0, time.Local)
	log, err := OpenEventLog(path, start)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if log.Path() != path || !log.Start().Equal(start) {
		t.Fatalf("got path %s start %v", log.Path(), log.Start())
	}

	recs := []Record{
		{Label: "con_1", Onset: 5 * time.Second},
		{Label: LabelResponse, Onset: 7*time.Second + 1234567*time.Nanosecond},
		{Label: LabelAbort, Onset: 9*time.Second + 999600*time.Microsecond},
	}
	for _, r := range recs {
		if err := log.Append(r); err != nil {
			t.Fatalf("append %s: %v", r.Label, err)
		}
	}

	// records are on disk before Close
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "Start:\t2025-03-17-14-05\n" +
		"Event\tOnset\n" +
		"con_1\t5.000\n" +
		"respo\t7.001\n" +
		"abort\t10.000\n"
	if string(got) != want {
		t.Fatalf("unexpected content:\n%q\nwant:\n%q", got, want)
	}

	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := log.Append(Record{Label: "late"}); !errors.Is(err, ErrResource) {
		t.Fatalf("append after close: expected ErrResource, got %v", err)
	}
	if n := len(log.Records()); n != 3 {
		t.Fatalf("expected 3 records kept, got %d", n)
	}
}

func TestEventLog_RejectsOutOfOrder(t *testing.T) {
	log, err := OpenEventLog(filepath.Join(t.TempDir(), "a_1.txt"), time.Now())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer log.Close()

	if err := log.Append(Record{Label: "con_1", Onset: 10 * time.Second}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append(Record{Label: "con_2", Onset: 9 * time.Second}); err == nil {
		t.Fatalf("expected error for earlier onset")
	}
	if err := log.Append(Record{Label: LabelResponse, Onset: 10 * time.Second}); err != nil {
		t.Fatalf("equal onset must be accepted: %v", err)
	}
}

func TestEventLog_Unwritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "a_1.txt")
	if _, err := OpenEventLog(path, time.Now()); !errors.Is(err, ErrResource) {
		t.Fatalf("expected ErrResource, got %v", err)
	}
}

func TestEventLog_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a_1.txt")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := OpenEventLog(path, time.Now()); !errors.Is(err, ErrResource) {
		t.Fatalf("expected ErrResource, got %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "old" {
		t.Fatalf("existing file modified")
	}
}

func TestEventLog_Discard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a_1.txt")
	log, err := OpenEventLog(path, time.Now())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := log.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed, stat err %v", err)
	}
	if err := log.Discard(); err != nil {
		t.Fatalf("second discard: %v", err)
	}
}

func TestNextLogPath(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		id       string
		want     string
	}{
		{"empty dir", nil, "abc", "abc_1.txt"},
		{"lower-cased", nil, "AbC", "abc_1.txt"},
		{"contiguous", []string{"abc_1.txt", "abc_2.txt"}, "abc", "abc_3.txt"},
		{"first gap", []string{"abc_1.txt", "abc_3.txt"}, "abc", "abc_2.txt"},
		{"other ids ignored", []string{"abd_1.txt", "ab_1.txt"}, "abc", "abc_1.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, name := range tt.existing {
				if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
					t.Fatalf("seed: %v", err)
				}
			}
			got, err := NextLogPath(dir, tt.id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != filepath.Join(dir, tt.want) {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNextLogPath_BadID(t *testing.T) {
	for _, id := range []string{"", "  ", "../x"} {
		if _, err := NextLogPath(t.TempDir(), id); err == nil {
			t.Fatalf("id %q: expected error", id)
		}
	}
}
