package engine

import (
	"context"
	"time"
)

// Frame is everything the renderer needs to draw one refresh.
type Frame struct {
	Phase Phase
	// Label names the stimulus resource during PhaseStim.
	Label   string
	Opacity float64
	// Flicker is set for localizer frames, Variant selects the pattern.
	Flicker bool
	Variant int
	// Text is shown on message screens.
	Text string
}

// PhaseRenderer draws and presents one frame. Presenting is expected to
// block until the next display refresh, which paces the tick loop.
type PhaseRenderer interface {
	Draw(f Frame) error
}

// InputPoller reports key presses by lower-case key name.
type InputPoller interface {
	// Poll returns the keys out of keys pressed since the previous call.
	Poll(keys []string) []string
	// Wait blocks until one of keys is pressed and returns it.
	Wait(keys []string) string
}

// Clock is a monotonic time source with an arbitrary origin.
type Clock interface {
	Now() time.Duration
}

// TriggerState is an immutable snapshot of the hardware channels.
// Channel 0 is the scanner trigger, channels 1..k are response buttons.
type TriggerState struct {
	Values []uint8
	// Seq counts device reads, so a reader can tell fresh snapshots apart.
	Seq uint64
	// Changes counts, per channel, the reads that differed from the read
	// before. Pulses shorter than a frame still advance it.
	Changes []uint64
}

// Channel returns the value of channel i, or 0 when absent.
func (s TriggerState) Channel(i int) uint8 {
	if i < 0 || i >= len(s.Values) {
		return 0
	}
	return s.Values[i]
}

// Edges returns the change count of channel i, or 0 when absent.
func (s TriggerState) Edges(i int) uint64 {
	if i < 0 || i >= len(s.Changes) {
		return 0
	}
	return s.Changes[i]
}

// Trigger is a device watcher that runs beside the tick loop.
type Trigger interface {
	Start(ctx context.Context) error
	Stop() error
	Snapshot() TriggerState
}

// Marker raises a TTL line while a stimulus is on screen.
type Marker interface {
	On()
	Off()
}

// Sink receives log records in order.
type Sink interface {
	Append(r Record) error
	Close() error
	// Discard closes the sink and removes anything it persisted.
	Discard() error
}
