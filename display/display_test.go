package display

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zyko0/go-sdl3/sdl"

	"github.com/ClementAbb/uniformity-illusion/engine"
)

func TestToSDL(t *testing.T) {
	got := toSDL(engine.RGBA{R: 1, G: 2, B: 3, A: 4})
	if got != (sdl.Color{R: 1, G: 2, B: 3, A: 4}) {
		t.Fatalf("got %+v", got)
	}
}

func TestReady(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.ParticipantID = "  "
	if ready(cfg) {
		t.Fatalf("blank id must not be ready")
	}
	cfg.ParticipantID = "abc"
	if !ready(cfg) {
		t.Fatalf("expected ready")
	}
	cfg.DataDir = ""
	if ready(cfg) {
		t.Fatalf("missing data dir must not be ready")
	}
}

func TestQuitOnDone(t *testing.T) {
	var pushed atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	stop := quitOnDone(ctx, func() { pushed.Add(1) })
	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for pushed.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no quit event after cancel")
		}
		time.Sleep(time.Millisecond)
	}
	stop()
	if n := pushed.Load(); n != 1 {
		t.Fatalf("pushed %d quit events, want 1", n)
	}

	ctx, cancel = context.WithCancel(context.Background())
	stop = quitOnDone(ctx, func() { pushed.Add(1) })
	stop()
	cancel()
	time.Sleep(5 * time.Millisecond)
	if n := pushed.Load(); n != 1 {
		t.Fatalf("quit pushed after stop")
	}
}
