package display

import (
	"context"
	"slices"
	"strings"

	"github.com/Zyko0/go-sdl3/sdl"
)

// Keyboard reports SDL key presses by lower-case key name ("escape",
// "space", "5"). Closing the window counts as pressing the abort key.
type Keyboard struct {
	AbortKey string
}

func keyName(ev *sdl.Event) string {
	return strings.ToLower(ev.KeyboardEvent().Key.KeyName())
}

// Poll drains the event queue and returns the wanted keys pressed since
// the previous call, in order. Other keys are dropped.
func (k Keyboard) Poll(keys []string) []string {
	var out []string
	for {
		var ev sdl.Event
		if !sdl.PollEvent(&ev) {
			break
		}
		switch ev.Type {
		case sdl.EVENT_QUIT:
			if slices.Contains(keys, k.AbortKey) {
				out = append(out, k.AbortKey)
			}
		case sdl.EVENT_KEY_DOWN:
			if name := keyName(&ev); slices.Contains(keys, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

// Wait blocks until one of keys is pressed.
func (k Keyboard) Wait(keys []string) string {
	for {
		var ev sdl.Event
		if err := sdl.WaitEvent(&ev); err != nil {
			return k.AbortKey
		}
		switch ev.Type {
		case sdl.EVENT_QUIT:
			return k.AbortKey
		case sdl.EVENT_KEY_DOWN:
			if name := keyName(&ev); slices.Contains(keys, name) {
				return name
			}
		}
	}
}

// QuitOnDone posts a quit event once ctx is done, so a blocking Wait
// returns the abort key. Call the returned func to stop watching.
func QuitOnDone(ctx context.Context) (stop func()) {
	return quitOnDone(ctx, func() {
		ev := sdl.Event{Type: sdl.EVENT_QUIT}
		_ = sdl.PushEvent(&ev)
	})
}

func quitOnDone(ctx context.Context, push func()) func() {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			push()
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}
