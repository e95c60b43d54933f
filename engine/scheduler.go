package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ClementAbb/uniformity-illusion/design"
)

var (
	// ErrPreStartAbort is returned when the run is abandoned before the run
	// clock started. The event log has been discarded.
	ErrPreStartAbort = errors.New("aborted before start")
	// ErrTriggerTimeout is returned when no trigger arrived in time.
	ErrTriggerTimeout = errors.New("trigger wait timed out")
)

// Collaborators are the external pieces the scheduler drives.
type Collaborators struct {
	Renderer PhaseRenderer
	Input    InputPoller
	Clock    Clock
	Log      Sink
	// Trigger is nil when no hardware is attached.
	Trigger Trigger
	// Marker is nil when no TTL output is wanted.
	Marker Marker
}

// Result summarises a finished run.
type Result struct {
	Aborted   bool
	AbortedAt time.Duration
	// Trials is the number of trials whose onset was logged.
	Trials  int
	Elapsed time.Duration
}

// Scheduler runs the trial timeline in a cooperative per-frame loop.
type Scheduler struct {
	plan    *design.Plan
	cfg     *Config
	c       Collaborators
	logger  *slog.Logger
	state   RunState
	trials  int
	polled  []string
	respond []string

	baseline TriggerState
	// edges holds the response channel change counts seen at the last tick.
	edges []uint64
}

func NewScheduler(cfg *Config, plan *design.Plan, c Collaborators, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{plan: plan, cfg: cfg, c: c, logger: logger}
	s.polled = []string{cfg.AbortKey}
	s.respond = append([]string{cfg.AbortKey}, cfg.ResponseKeys...)
	return s
}

// State returns a copy of the run state.
func (s *Scheduler) State() RunState { return s.state }

// Run executes the whole run: instructions, trigger wait (scanner mode
// only), lead-in, trials and the closing screen. A user abort after the
// clock started is not an error; it is reported through Result.Aborted.
func (s *Scheduler) Run(ctx context.Context) (Result, error) {
	if s.c.Trigger != nil {
		if err := s.c.Trigger.Start(ctx); err != nil {
			s.discard()
			return Result{}, fmt.Errorf("start trigger watcher: %w", err)
		}
		defer func() {
			if err := s.c.Trigger.Stop(); err != nil {
				s.logger.Warn("stop trigger watcher", "err", err)
			}
		}()
	}

	if err := s.instructions(ctx); err != nil {
		s.discard()
		return Result{}, err
	}
	if s.cfg.ScannerMode {
		if err := s.waitTrigger(ctx); err != nil {
			s.discard()
			return Result{}, err
		}
	}

	runErr := s.timeline(ctx)
	res := Result{
		Aborted:   s.state.Aborted,
		AbortedAt: s.state.AbortedAt,
		Trials:    s.trials,
		Elapsed:   s.elapsed(),
	}
	finErr := s.finalize(runErr == nil)
	if runErr != nil {
		return res, runErr
	}
	return res, finErr
}

func (s *Scheduler) discard() {
	if err := s.c.Log.Discard(); err != nil {
		s.logger.Warn("discard event log", "err", err)
	}
}

func (s *Scheduler) instructions(ctx context.Context) error {
	s.state.Phase = PhaseInstructions
	if err := s.c.Renderer.Draw(Frame{Phase: PhaseInstructions, Text: s.cfg.Instructions}); err != nil {
		return fmt.Errorf("draw instructions: %w", err)
	}
	key := s.c.Input.Wait([]string{s.cfg.ContinueKey, s.cfg.AbortKey})
	if key == s.cfg.AbortKey || ctx.Err() != nil {
		s.logger.Info("aborted at instructions")
		return ErrPreStartAbort
	}
	return nil
}

// waitTrigger returns once the trigger fired. Without hardware and without
// a timeout it blocks on the keyboard; otherwise it polls once per frame.
func (s *Scheduler) waitTrigger(ctx context.Context) error {
	s.state.Phase = PhaseWaitTrigger
	frame := Frame{Phase: PhaseWaitTrigger, Text: s.cfg.WaitMessage}
	keys := []string{s.cfg.AbortKey, s.cfg.ContinueKey}
	if s.cfg.TriggerKey != "" {
		keys = append(keys, s.cfg.TriggerKey)
	}

	if s.c.Trigger == nil && s.cfg.TriggerTimeout <= 0 {
		if err := s.c.Renderer.Draw(frame); err != nil {
			return fmt.Errorf("draw trigger wait: %w", err)
		}
		if key := s.c.Input.Wait(keys); key == s.cfg.AbortKey || ctx.Err() != nil {
			s.logger.Info("aborted waiting for trigger")
			return ErrPreStartAbort
		}
		s.logger.Info("trigger received", "source", "keyboard")
		return nil
	}

	if s.c.Trigger != nil {
		s.baseline = s.c.Trigger.Snapshot()
	}
	begin := s.c.Clock.Now()
	for {
		if err := s.c.Renderer.Draw(frame); err != nil {
			return fmt.Errorf("draw trigger wait: %w", err)
		}
		pressed := s.c.Input.Poll(keys)
		if slices.Contains(pressed, s.cfg.AbortKey) || ctx.Err() != nil {
			s.logger.Info("aborted waiting for trigger")
			return ErrPreStartAbort
		}
		if len(pressed) > 0 {
			s.logger.Info("trigger received", "source", "keyboard", "key", pressed[0])
			return nil
		}
		if s.c.Trigger != nil {
			snap := s.c.Trigger.Snapshot()
			if len(s.baseline.Values) == 0 {
				// watcher had not read the device yet when the wait began
				s.baseline = snap
			} else if snap.Channel(0) != s.baseline.Channel(0) || snap.Edges(0) != s.baseline.Edges(0) {
				s.logger.Info("trigger received", "source", "hardware", "reads", snap.Seq)
				return nil
			}
		}
		if s.cfg.TriggerTimeout > 0 && s.c.Clock.Now()-begin >= s.cfg.TriggerTimeout {
			return fmt.Errorf("no trigger after %v: %w", s.cfg.TriggerTimeout, ErrTriggerTimeout)
		}
	}
}

func (s *Scheduler) elapsed() time.Duration {
	if !s.state.Started {
		return 0
	}
	return s.c.Clock.Now() - s.state.Origin
}

func (s *Scheduler) record(label string, onset time.Duration) error {
	if err := s.c.Log.Append(Record{Label: label, Onset: onset}); err != nil {
		return fmt.Errorf("log %s: %w", label, err)
	}
	return nil
}

// timeline runs the lead-in fixation and every trial. It returns nil on
// completion and on user abort.
func (s *Scheduler) timeline(ctx context.Context) error {
	if s.c.Trigger != nil && len(s.baseline.Values) == 0 {
		s.baseline = s.c.Trigger.Snapshot()
	}
	s.state.Origin = s.c.Clock.Now()
	s.state.Started = true
	s.state.Phase = PhaseLeadFixation
	s.state.ITIEnd = s.plan.LeadIn
	s.logger.Info("run started", "trials", len(s.plan.Entries))

	fixation := func(time.Duration) Frame { return Frame{Phase: PhaseLeadFixation} }
	if err := s.phase(ctx, s.plan.LeadIn, fixation, false); err != nil || s.state.Aborted {
		return s.closeAbort(err)
	}

	for i, e := range s.plan.Entries {
		w := s.plan.Window(i, s.state.ITIEnd)
		s.state.Trial = i
		s.state.TrialStart, s.state.TrialEnd, s.state.ITIEnd = w.Start, w.End, w.ITIEnd
		s.state.Phase = PhaseStim

		onset := s.elapsed()
		if err := s.record(e.Label, onset); err != nil {
			return err
		}
		s.trials++
		s.logger.Info("trial", "n", i+1, "label", e.Label, "onset", Record{Onset: onset}.Seconds())
		if s.c.Marker != nil {
			s.c.Marker.On()
		}

		var draw func(now time.Duration) Frame
		if e.Flicker {
			fl := NewFlicker(w.Start, s.plan.FlickerInterval)
			draw = func(now time.Duration) Frame {
				return Frame{Phase: PhaseStim, Label: e.Label, Opacity: 1, Flicker: true, Variant: fl.Advance(now)}
			}
		} else {
			draw = func(now time.Duration) Frame {
				return Frame{Phase: PhaseStim, Label: e.Label, Opacity: Opacity(now, w, s.plan.Fade, e.FadeIn, e.FadeOut)}
			}
		}
		err := s.phase(ctx, w.End, draw, e.Response)
		if s.c.Marker != nil {
			s.c.Marker.Off()
		}
		if err != nil || s.state.Aborted {
			return s.closeAbort(err)
		}

		s.state.Phase = PhaseITI
		iti := func(time.Duration) Frame { return Frame{Phase: PhaseITI} }
		if err := s.phase(ctx, w.ITIEnd, iti, false); err != nil || s.state.Aborted {
			return s.closeAbort(err)
		}
	}
	return nil
}

func (s *Scheduler) closeAbort(err error) error {
	if err != nil {
		return err
	}
	s.logger.Info("run aborted", "at", Record{Onset: s.state.AbortedAt}.Seconds(), "trial", s.state.Trial+1)
	return s.record(LabelAbort, s.state.AbortedAt)
}

// phase ticks until elapsed time reaches end or an abort is seen. Each tick
// reads the clock, checks the boundary, builds and presents the frame, polls
// input, logs responses and finally checks for abort.
func (s *Scheduler) phase(ctx context.Context, end time.Duration, draw func(now time.Duration) Frame, respond bool) error {
	keys := s.polled
	if respond {
		keys = s.respond
		if s.c.Trigger != nil {
			s.edges = slices.Clone(s.c.Trigger.Snapshot().Changes)
		}
	}
	for {
		now := s.elapsed()
		if now >= end {
			return nil
		}
		if err := s.c.Renderer.Draw(draw(now)); err != nil {
			return fmt.Errorf("draw %s: %w", s.state.Phase, err)
		}
		pressed := s.c.Input.Poll(keys)
		if respond && s.responded(pressed) {
			if err := s.record(LabelResponse, now); err != nil {
				return err
			}
		}
		if slices.Contains(pressed, s.cfg.AbortKey) || ctx.Err() != nil {
			s.state.Aborted = true
			s.state.AbortedAt = now
			return nil
		}
	}
}

// responded reports a response key in pressed or a response channel away
// from its baseline. Held buttons count on every tick. A channel back at
// its baseline that changed at least twice since the previous tick had a
// full press and release in between, which also counts.
func (s *Scheduler) responded(pressed []string) bool {
	hit := false
	for _, k := range pressed {
		if k != s.cfg.AbortKey {
			hit = true
		}
	}
	if s.c.Trigger == nil {
		return hit
	}
	snap := s.c.Trigger.Snapshot()
	for ch := 1; ch < len(snap.Values); ch++ {
		var seen uint64
		if ch < len(s.edges) {
			seen = s.edges[ch]
		}
		if snap.Channel(ch) != s.baseline.Channel(ch) || snap.Edges(ch) >= seen+2 {
			hit = true
		}
	}
	s.edges = slices.Clone(snap.Changes)
	return hit
}

func (s *Scheduler) finalize(completed bool) error {
	s.state.Phase = PhaseFinalize
	var err error
	if completed && !s.state.Aborted {
		err = s.record(LabelDone, s.elapsed())
		s.logger.Info("run completed", "trials", s.trials)
	}
	if drawErr := s.c.Renderer.Draw(Frame{Phase: PhaseFinalize, Text: s.cfg.DoneMessage}); drawErr != nil {
		s.logger.Warn("draw closing screen", "err", drawErr)
	}
	if closeErr := s.c.Log.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close event log: %w", closeErr)
	}
	s.c.Input.Wait([]string{s.cfg.ContinueKey, s.cfg.AbortKey})
	return err
}
