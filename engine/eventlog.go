package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrResource reports a log file that cannot be created or written.
var ErrResource = errors.New("resource error")

// Reserved record labels.
const (
	LabelResponse = "respo"
	LabelAbort    = "abort"
	LabelDone     = "Done"
)

// StartLayout formats the wall-clock time in the log header.
const StartLayout = "2006-01-02-15-04"

// Record is one log line. Onset is measured from the start of the lead-in
// fixation.
type Record struct {
	Label string
	Onset time.Duration
}

// Seconds returns the onset in seconds rounded to milliseconds.
func (r Record) Seconds() string {
	return strconv.FormatFloat(r.Onset.Seconds(), 'f', 3, 64)
}

// EventLog writes records to a tab separated text file as they arrive.
// Every append reaches the file before it returns, so a crash loses at most
// the record being written.
type EventLog struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	start   time.Time
	entries []Record
	closed  bool
}

// OpenEventLog creates path, which must not exist yet, and writes the header.
func OpenEventLog(path string, start time.Time) (*EventLog, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w: %v", path, ErrResource, err)
	}
	header := "Start:\t" + start.Format(StartLayout) + "\nEvent\tOnset\n"
	if _, err := f.WriteString(header); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write event log header %s: %w: %v", path, ErrResource, err)
	}
	return &EventLog{path: path, f: f, start: start}, nil
}

func (l *EventLog) Path() string { return l.path }

func (l *EventLog) Start() time.Time { return l.start }

// Append writes r. Onsets must not go backwards.
func (l *EventLog) Append(r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("append %q: event log closed: %w", r.Label, ErrResource)
	}
	if n := len(l.entries); n > 0 && r.Onset < l.entries[n-1].Onset {
		return fmt.Errorf("append %q at %v: earlier than %v", r.Label, r.Onset, l.entries[n-1].Onset)
	}
	if _, err := l.f.WriteString(r.Label + "\t" + r.Seconds() + "\n"); err != nil {
		return fmt.Errorf("append %q: %w: %v", r.Label, ErrResource, err)
	}
	l.entries = append(l.entries, r)
	return nil
}

// Records returns a copy of everything appended so far.
func (l *EventLog) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.entries))
	copy(out, l.entries)
	return out
}

// Close syncs and closes the file. Further calls do nothing.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *EventLog) closeLocked() error {
	if l.closed {
		return nil
	}
	l.closed = true
	syncErr := l.f.Sync()
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("close event log: %w", err)
	}
	if syncErr != nil {
		return fmt.Errorf("sync event log: %w", syncErr)
	}
	return nil
}

// Discard closes the log and deletes its file.
func (l *EventLog) Discard() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	closeErr := l.closeLocked()
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("discard event log: %w", err)
	}
	return closeErr
}

// NextLogPath returns dir/<id>_<N>.txt for the smallest N >= 1 that does
// not exist yet. The id is lower-cased.
func NextLogPath(dir, id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return "", fmt.Errorf("next log path: empty participant id")
	}
	if strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("next log path: participant id %q contains a path separator", id)
	}
	for n := 1; ; n++ {
		p := filepath.Join(dir, id+"_"+strconv.Itoa(n)+".txt")
		_, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		if err != nil {
			return "", fmt.Errorf("next log path: %w", err)
		}
	}
}
