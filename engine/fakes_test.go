package engine

import (
	"context"
	"slices"
	"time"

	"github.com/ClementAbb/uniformity-illusion/design"
)

const frame = 10 * time.Millisecond

type fakeClock struct {
	now time.Duration
}

func (c *fakeClock) Now() time.Duration { return c.now }

type drawn struct {
	at    time.Duration
	frame Frame
}

// fakeRenderer advances the clock by one frame per draw, like a flip
// blocking on the display refresh. Message screens do not advance time.
type fakeRenderer struct {
	clock  *fakeClock
	step   func(n int) time.Duration
	frames []drawn
	err    error
}

func (r *fakeRenderer) Draw(f Frame) error {
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, drawn{at: r.clock.now, frame: f})
	if f.Phase == PhaseInstructions || f.Phase == PhaseFinalize {
		return nil
	}
	d := frame
	if r.step != nil {
		d = r.step(len(r.frames))
	}
	r.clock.now += d
	return nil
}

func (r *fakeRenderer) phase(p Phase) []drawn {
	var out []drawn
	for _, d := range r.frames {
		if d.frame.Phase == p {
			out = append(out, d)
		}
	}
	return out
}

// press is a scripted key. With until zero it is reported once, otherwise
// on every poll while held.
type press struct {
	key   string
	at    time.Duration
	until time.Duration
	fired bool
}

type fakeInput struct {
	// elapsed reports run time and whether the run clock started.
	elapsed func() (time.Duration, bool)
	presses []*press
	answers []string
	waits   [][]string
	polls   int
}

func (in *fakeInput) Poll(keys []string) []string {
	in.polls++
	if in.elapsed == nil {
		return nil
	}
	t, started := in.elapsed()
	if !started {
		return nil
	}
	var out []string
	for _, p := range in.presses {
		wanted := slices.Contains(keys, p.key)
		if p.until == 0 {
			// presses of keys nobody polls for are drained and lost
			if !p.fired && t >= p.at {
				p.fired = true
				if wanted {
					out = append(out, p.key)
				}
			}
			continue
		}
		if wanted && t >= p.at && t < p.until {
			out = append(out, p.key)
		}
	}
	return out
}

func (in *fakeInput) Wait(keys []string) string {
	in.waits = append(in.waits, keys)
	if len(in.answers) > 0 {
		a := in.answers[0]
		in.answers = in.answers[1:]
		return a
	}
	for _, k := range keys {
		if k != "escape" {
			return k
		}
	}
	return keys[0]
}

type fakeTrigger struct {
	snap    func(n int) TriggerState
	calls   int
	started int
	stopped int
}

func (f *fakeTrigger) Start(context.Context) error { f.started++; return nil }
func (f *fakeTrigger) Stop() error                 { f.stopped++; return nil }
func (f *fakeTrigger) Snapshot() TriggerState {
	f.calls++
	return f.snap(f.calls)
}

type memSink struct {
	records   []Record
	closed    int
	discarded bool
}

func (m *memSink) Append(r Record) error { m.records = append(m.records, r); return nil }
func (m *memSink) Close() error          { m.closed++; return nil }
func (m *memSink) Discard() error        { m.discarded = true; m.records = nil; return nil }

func (m *memSink) labelled(label string) []Record {
	var out []Record
	for _, r := range m.records {
		if r.Label == label {
			out = append(out, r)
		}
	}
	return out
}

func (m *memSink) trials() []Record {
	var out []Record
	for _, r := range m.records {
		switch r.Label {
		case LabelResponse, LabelAbort, LabelDone:
		default:
			out = append(out, r)
		}
	}
	return out
}

type fakeMarker struct {
	on, off int
}

func (m *fakeMarker) On()  { m.on++ }
func (m *fakeMarker) Off() { m.off++ }

// rig wires a scheduler to fakes.
type rig struct {
	clock    *fakeClock
	renderer *fakeRenderer
	input    *fakeInput
	sink     *memSink
	sched    *Scheduler
}

func newRig(cfg *Config, plan *design.Plan, trigger Trigger, sink Sink) *rig {
	clk := &fakeClock{}
	r := &rig{
		clock:    clk,
		renderer: &fakeRenderer{clock: clk},
		input:    &fakeInput{},
	}
	if sink == nil {
		r.sink = &memSink{}
		sink = r.sink
	}
	r.sched = NewScheduler(cfg, plan, Collaborators{
		Renderer: r.renderer,
		Input:    r.input,
		Clock:    clk,
		Log:      sink,
		Trigger:  trigger,
	}, nil)
	r.input.elapsed = func() (time.Duration, bool) {
		st := r.sched.State()
		return clk.now - st.Origin, st.Started
	}
	return r
}
