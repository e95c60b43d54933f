package dlp

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ClementAbb/uniformity-illusion/engine"
)

// ChannelReader samples digital input lines.
type ChannelReader interface {
	ReadLines(lines []int) ([]uint8, error)
}

// Watcher polls the trigger and button lines on its own goroutine and
// publishes each sample as an immutable engine.TriggerState. The tick loop
// only ever loads the latest pointer, so it never waits on the device.
// Per-channel change counts latch transitions the tick loop would miss
// between two frames.
type Watcher struct {
	dev      ChannelReader
	lines    []int
	interval time.Duration
	logger   *slog.Logger

	state atomic.Pointer[engine.TriggerState]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher watches lines; lines[0] becomes channel 0 (the trigger) and
// the rest become the response channels in order.
func NewWatcher(dev ChannelReader, lines []int, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Watcher{dev: dev, lines: append([]int(nil), lines...), interval: interval, logger: logger}
}

// Start launches the polling goroutine. It stops when ctx is done or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return errors.New("watcher already running")
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx, w.done)
	return nil
}

// Stop ends the goroutine, waits for it and drops the last snapshot.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil {
		return nil
	}
	w.cancel()
	<-w.done
	w.done, w.cancel = nil, nil
	w.state.Store(nil)
	return nil
}

// Snapshot returns the latest sample, or an empty state before the first
// successful read.
func (w *Watcher) Snapshot() engine.TriggerState {
	if s := w.state.Load(); s != nil {
		return *s
	}
	return engine.TriggerState{}
}

func (w *Watcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		seq     uint64
		prev    []uint8
		changes = make([]uint64, len(w.lines))
	)
	failing := false
	for {
		values, err := w.dev.ReadLines(w.lines)
		if err != nil {
			if !failing {
				w.logger.Warn("trigger device read failed", "err", err)
				failing = true
			}
		} else {
			if failing {
				w.logger.Info("trigger device read recovered")
				failing = false
			}
			seq++
			for ch := range min(len(values), len(changes)) {
				if prev != nil && ch < len(prev) && values[ch] != prev[ch] {
					changes[ch]++
				}
			}
			prev = values
			w.state.Store(&engine.TriggerState{Values: values, Seq: seq, Changes: slices.Clone(changes)})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
