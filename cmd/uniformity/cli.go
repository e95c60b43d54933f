package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"

	"github.com/Zyko0/go-sdl3/bin/binimg"
	"github.com/Zyko0/go-sdl3/bin/binsdl"
	"github.com/Zyko0/go-sdl3/bin/binttf"

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

	id := flag.String("id", "", "Participant ID")
	version := flag.String("version", cfg.Version, "Paradigm version (v1 or v2)")
	dataDir := flag.String("data-dir", cfg.DataDir, "Directory for log files")
	stimuliDir := flag.String("stimuli-dir", cfg.StimuliDir, "Directory containing stimuli")
	conditions := flag.String("conditions", "", "Condition table overriding the preset (label,image,duration_ms,flags)")
	archiveFile := flag.String("archive", cfg.ArchiveFile, "SQLite session archive, relative to the data dir (empty disables)")
	seed := flag.Uint64("seed", 0, "Random seed for mapping and jitter (0 = clock)")
	scanner := flag.String("scanner", "", "Wait for the scanner trigger (1/0, default from version)")
	triggerTimeout := flag.Duration("trigger-timeout", 0, "Give up waiting for the trigger after this long (0 = forever)")
	triggerKey := flag.String("trigger-key", cfg.TriggerKey, "Key sent by the scanner trigger box")
	responseKeys := flag.String("response-keys", strings.Join(cfg.ResponseKeys, ","), "Comma separated response keys")
	dlpDevice := flag.String("dlp", "", "DLP-IO8-G device")
	triggerLine := flag.Int("trigger-line", cfg.TriggerLine, "DLP line wired to the scanner trigger")
	responseLines := flag.String("response-lines", joinInts(cfg.ResponseLines), "Comma separated DLP lines wired to response buttons")
	markerLine := flag.Int("marker-line", 0, "DLP line raised during each stimulus (0 = none)")
	fontFile := flag.String("font", "", "TTF font file")
	fontSize := flag.Int("font-size", cfg.FontSize, "Font size")
	screenW := flag.Int("width", cfg.ScreenWidth, "Screen width")
	screenH := flag.Int("height", cfg.ScreenHeight, "Screen height")
	displayIdx := flag.Int("display", 0, "Display index")
	scaleFactor := flag.Float64("scale", 1.0, "Scale factor for stimuli")
	noVSync := flag.Bool("no-vsync", false, "Disable VSync")
	fullscreen := flag.Bool("fullscreen", false, "Enable fullscreen")
	bgColorStr := flag.String("bg-color", "128,128,128,255", "Background color (R,G,B,A)")
	textColorStr := flag.String("text-color", "255,255,255,255", "Text color (R,G,B,A)")
	fixColorStr := flag.String("fixation-color", "255,255,255,255", "Fixation color (R,G,B,A)")
	debug := flag.Bool("debug", false, "Verbose logging")

	flag.Parse()

	logger := session.NewLogger(os.Stdout, *debug)

	if *id == "" {
		fmt.Println("Error: participant ID is required (-id).")
		os.Exit(1)
	}
	if *version != "v1" && *version != "v2" {
		fmt.Printf("Error: unknown version %q.\n", *version)
		os.Exit(1)
	}

	cfg.ApplyPreset(*version)
	cfg.ParticipantID = *id
	cfg.DataDir = *dataDir
	cfg.StimuliDir = *stimuliDir
	cfg.ConditionsFile = *conditions
	cfg.ArchiveFile = *archiveFile
	cfg.Seed = *seed
	if *scanner != "" {
		cfg.ScannerMode = *scanner != "0"
	}
	cfg.TriggerTimeout = *triggerTimeout
	cfg.TriggerKey = *triggerKey
	cfg.ResponseKeys = splitList(*responseKeys)
	cfg.DLPDevice = *dlpDevice
	cfg.TriggerLine = *triggerLine
	lines, err := parseInts(*responseLines)
	if err != nil {
		fmt.Printf("Error: -response-lines: %v\n", err)
		os.Exit(1)
	}
	cfg.ResponseLines = lines
	cfg.MarkerLine = *markerLine
	cfg.FontFile = *fontFile
	cfg.FontSize = *fontSize
	cfg.ScreenWidth = *screenW
	cfg.ScreenHeight = *screenH
	cfg.DisplayIndex = *displayIdx
	cfg.ScaleFactor = float32(*scaleFactor)
	cfg.VSync = !*noVSync
	cfg.Fullscreen = *fullscreen
	cfg.BGColor = engine.ParseColor(*bgColorStr)
	cfg.TextColor = engine.ParseColor(*textColorStr)
	cfg.FixationColor = engine.ParseColor(*fixColorStr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := session.Run(ctx, cfg, logger); err != nil {
		logger.Error("session failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
