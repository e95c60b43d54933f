package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"

	"github.com/Zyko0/go-sdl3/bin/binimg"
	"github.com/Zyko0/go-sdl3/bin/binsdl"
	"github.com/Zyko0/go-sdl3/bin/binttf"

	"github.com/ClementAbb/uniformity-illusion/display"
	"github.com/ClementAbb/uniformity-illusion/engine"
	"github.com/ClementAbb/uniformity-illusion/session"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	defer binsdl.Load().Unload()
	defer binimg.Load().Unload()
	defer binttf.Load().Unload()

	cfg := engine.DefaultConfig()
	cfg.LoadCache()

	// Default stimuli dir if missing
	if _, err := os.Stat(cfg.StimuliDir); err != nil {
		if _, err := os.Stat("assets"); err == nil {
			cfg.StimuliDir = "assets"
		}
	}

	if !display.RunEntry(cfg) {
		return
	}

	logger := session.NewLogger(os.Stdout, false)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := session.Run(ctx, cfg, logger); err != nil {
		logger.Error("session failed", "err", err)
		stop()
		os.Exit(1)
	}
}
