package design

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Condition describes how trials of one label are presented.
type Condition struct {
	Label    string
	Image    string
	Duration time.Duration
	FadeIn   bool
	FadeOut  bool
	Flicker  bool
	Response bool
}

// Timing holds the run-level timing constants.
type Timing struct {
	LeadIn          time.Duration
	BaseISI         time.Duration
	Fade            time.Duration
	FlickerInterval time.Duration
}

// Entry is one fully resolved trial.
type Entry struct {
	Label    string
	Duration time.Duration
	FadeIn   bool
	FadeOut  bool
	Flicker  bool
	Response bool
	// Jitter is added to the base ISI following this trial.
	Jitter time.Duration
}

// Plan is the immutable trial list of one run.
type Plan struct {
	Timing
	Entries []Entry
}

// Window holds the absolute boundaries of one trial, measured from the
// start of the lead-in fixation.
type Window struct {
	Start  time.Duration
	End    time.Duration
	ITIEnd time.Duration
}

// BuildPlan joins sequence, mapping and jitter entry by entry.
func BuildPlan(seq Sequence, m Mapping, jitter []time.Duration, conditions []Condition, timing Timing) (*Plan, error) {
	if len(jitter) != len(seq) {
		return nil, fmt.Errorf("build plan: %d jitter values for %d trials: %w", len(jitter), len(seq), ErrConfigMismatch)
	}
	byLabel := make(map[string]Condition, len(conditions))
	for _, c := range conditions {
		byLabel[c.Label] = c
	}

	p := &Plan{Timing: timing, Entries: make([]Entry, len(seq))}
	for i, slot := range seq {
		label, ok := m.Label(slot)
		if !ok {
			return nil, fmt.Errorf("build plan: trial %d: slot %d unmapped: %w", i, slot, ErrConfigMismatch)
		}
		c, ok := byLabel[label]
		if !ok {
			return nil, fmt.Errorf("build plan: trial %d: no condition for label %q: %w", i, label, ErrConfigMismatch)
		}
		if timing.BaseISI+jitter[i] < 0 {
			return nil, fmt.Errorf("build plan: trial %d: negative ITI %v: %w", i, timing.BaseISI+jitter[i], ErrConfigMismatch)
		}
		p.Entries[i] = Entry{
			Label:    label,
			Duration: c.Duration,
			FadeIn:   c.FadeIn,
			FadeOut:  c.FadeOut,
			Flicker:  c.Flicker,
			Response: c.Response,
			Jitter:   jitter[i],
		}
	}
	return p, nil
}

// Window returns the boundaries of trial i given the time it starts.
func (p *Plan) Window(i int, start time.Duration) Window {
	e := p.Entries[i]
	end := start + e.Duration
	return Window{Start: start, End: end, ITIEnd: end + p.BaseISI + e.Jitter}
}

// Timeline returns the scheduled windows of every trial.
func (p *Plan) Timeline() []Window {
	out := make([]Window, len(p.Entries))
	start := p.LeadIn
	for i := range p.Entries {
		out[i] = p.Window(i, start)
		start = out[i].ITIEnd
	}
	return out
}

// Total is the nominal run length from lead-in start to the last ITI end.
func (p *Plan) Total() time.Duration {
	if len(p.Entries) == 0 {
		return p.LeadIn
	}
	tl := p.Timeline()
	return tl[len(tl)-1].ITIEnd
}

// Design groups the planner inputs for one paradigm version.
type Design struct {
	// Labels are the experimental labels, one per slot.
	Labels []string
	// Localizer is the reserved label appended after every block. Empty
	// means no localizer block structure.
	Localizer string
	Repeats   int
	Jitter    []time.Duration
}

// Generate runs the three planners and joins their output.
func Generate(d Design, conditions []Condition, timing Timing, rng *rand.Rand) (*Plan, error) {
	seq, err := PlanSequence(len(d.Labels), d.Repeats, d.Localizer != "")
	if err != nil {
		return nil, err
	}
	m, err := MapConditions(d.Labels, len(d.Labels), d.Localizer, rng)
	if err != nil {
		return nil, err
	}
	jitter, err := PlanJitter(len(seq), d.Jitter, rng)
	if err != nil {
		return nil, err
	}
	return BuildPlan(seq, m, jitter, conditions, timing)
}
