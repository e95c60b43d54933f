// Package session wires the planners, the SDL display, the DLP-IO8-G
// device, the event log and the archive into one run.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/ClementAbb/uniformity-illusion/archive"
	"github.com/ClementAbb/uniformity-illusion/design"
	"github.com/ClementAbb/uniformity-illusion/display"
	"github.com/ClementAbb/uniformity-illusion/dlp"
	"github.com/ClementAbb/uniformity-illusion/engine"
)

// NewLogger returns the text logger used by the command line tools.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Seed returns cfg.Seed, or a clock derived seed when it is zero.
func Seed(cfg *engine.Config) uint64 {
	if cfg.Seed != 0 {
		return cfg.Seed
	}
	return uint64(time.Now().UnixNano())
}

// Prepare merges the optional condition table into cfg, validates it and
// draws a fresh plan from seed.
func Prepare(cfg *engine.Config, seed uint64) (*design.Plan, error) {
	if cfg.ConditionsFile != "" {
		conditions, err := engine.LoadConditions(cfg.ConditionsFile)
		if err != nil {
			return nil, fmt.Errorf("load conditions %s: %w", cfg.ConditionsFile, err)
		}
		cfg.Conditions = engine.MergeConditions(cfg.Conditions, conditions)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	plan, err := design.Generate(cfg.Design, cfg.Conditions, cfg.Timing, rng)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", cfg.Version, err)
	}
	return plan, nil
}

// Run plays one complete session. A participant quitting before the clock
// started is not an error.
func Run(ctx context.Context, cfg *engine.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	seed := Seed(cfg)
	plan, err := Prepare(cfg, seed)
	if err != nil {
		return err
	}
	logger.Info("plan ready", "version", cfg.Version, "trials", len(plan.Entries), "seed", seed, "total", plan.Total())

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logPath, err := engine.NextLogPath(cfg.DataDir, cfg.ParticipantID)
	if err != nil {
		return err
	}

	disp, err := display.Open(cfg)
	defer disp.Close()
	if err != nil {
		return fmt.Errorf("open display: %w", err)
	}
	logger.Info("display ready", "refresh_hz", disp.RefreshRate())
	defer display.QuitOnDone(ctx)()

	var (
		trigger engine.Trigger
		marker  engine.Marker
	)
	if cfg.DLPDevice != "" {
		dev, err := dlp.NewDLPIO8G(cfg.DLPDevice, cfg.DLPBaud)
		if err != nil {
			logger.Warn("DLP device unavailable, using keyboard only", "device", cfg.DLPDevice, "err", err)
		} else {
			defer dev.Close()
			lines := append([]int{cfg.TriggerLine}, cfg.ResponseLines...)
			trigger = dlp.NewWatcher(dev, lines, cfg.WatchInterval, logger)
			if cfg.MarkerLine > 0 {
				marker = dlp.NewMarker(dev, cfg.MarkerLine, logger)
			}
		}
	}

	eventLog, err := engine.OpenEventLog(logPath, time.Now())
	if err != nil {
		return err
	}
	logger.Info("logging", "path", eventLog.Path())

	sched := engine.NewScheduler(cfg, plan, engine.Collaborators{
		Renderer: disp,
		Input:    display.Keyboard{AbortKey: cfg.AbortKey},
		Clock:    display.Clock{},
		Log:      eventLog,
		Trigger:  trigger,
		Marker:   marker,
	}, logger)

	res, err := sched.Run(ctx)
	if errors.Is(err, engine.ErrPreStartAbort) {
		logger.Info("session cancelled before start")
		return nil
	}
	if err != nil && res.Elapsed == 0 {
		return err
	}

	if cfg.ArchiveFile != "" {
		id, archErr := Archive(archivePath(cfg), archive.Run{
			Participant: cfg.ParticipantID,
			Version:     cfg.Version,
			Seed:        seed,
			LogPath:     eventLog.Path(),
			StartedAt:   eventLog.Start(),
			Aborted:     res.Aborted,
			Trials:      res.Trials,
		}, eventLog.Records())
		if archErr != nil {
			logger.Warn("archive run", "err", archErr)
		} else {
			logger.Info("archived", "run", id)
		}
	}
	if err != nil {
		return err
	}
	logger.Info("session finished", "trials", res.Trials, "aborted", res.Aborted, "elapsed", res.Elapsed)
	return nil
}

func archivePath(cfg *engine.Config) string {
	if filepath.IsAbs(cfg.ArchiveFile) {
		return cfg.ArchiveFile
	}
	return filepath.Join(cfg.DataDir, cfg.ArchiveFile)
}

// Archive stores one run in the SQLite archive at path.
func Archive(path string, run archive.Run, records []engine.Record) (string, error) {
	db, err := archive.Open(path)
	if err != nil {
		return "", err
	}
	defer db.Close()
	store, err := archive.New(db)
	if err != nil {
		return "", err
	}
	return store.RecordRun(run, records)
}
