package engine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ClementAbb/uniformity-illusion/design"
)

// RGBA is a display colour.
type RGBA struct {
	R, G, B, A uint8
}

type Config struct {
	ParticipantID  string
	DataDir        string
	StimuliDir     string
	ConditionsFile string
	ArchiveFile    string
	Version        string
	// Seed drives mapping and jitter. Zero picks one from the wall clock.
	Seed uint64

	Design     design.Design
	Conditions []design.Condition
	Timing     design.Timing

	FlickerImages [2]string
	OverlayImage  string

	ScannerMode    bool
	TriggerTimeout time.Duration
	ContinueKey    string
	AbortKey       string
	TriggerKey     string
	ResponseKeys   []string

	DLPDevice     string
	DLPBaud       int
	TriggerLine   int
	ResponseLines []int
	MarkerLine    int
	WatchInterval time.Duration

	FontFile      string
	FontSize      int
	ScreenWidth   int
	ScreenHeight  int
	DisplayIndex  int
	ScaleFactor   float32
	Fullscreen    bool
	VSync         bool
	BGColor       RGBA
	TextColor     RGBA
	FixationColor RGBA

	Instructions string
	WaitMessage  string
	DoneMessage  string
}

// ParseColor reads "R,G,B" or "R,G,B,A". Alpha defaults to opaque when
// the fourth field is absent.
func ParseColor(s string) RGBA {
	var r, g, b, a uint8
	n, _ := fmt.Sscanf(s, "%d,%d,%d,%d", &r, &g, &b, &a)
	if n < 4 && s != "" {
		a = 255
	}
	return RGBA{R: r, G: g, B: b, A: a}
}

const CacheFile = ".uniformity_cache"

func (cfg *Config) SaveCache() {
	f, err := os.Create(CacheFile)
	if err != nil {
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "participant=%s\n", cfg.ParticipantID)
	fmt.Fprintf(f, "version=%s\n", cfg.Version)
	fmt.Fprintf(f, "data_dir=%s\n", cfg.DataDir)
	fmt.Fprintf(f, "stimuli_dir=%s\n", cfg.StimuliDir)
	fmt.Fprintf(f, "dlp_device=%s\n", cfg.DLPDevice)
	fmt.Fprintf(f, "screen_w=%d\n", cfg.ScreenWidth)
	fmt.Fprintf(f, "screen_h=%d\n", cfg.ScreenHeight)
	if cfg.ScannerMode {
		fmt.Fprintf(f, "scanner=1\n")
	} else {
		fmt.Fprintf(f, "scanner=0\n")
	}
	if cfg.Fullscreen {
		fmt.Fprintf(f, "fullscreen=1\n")
	} else {
		fmt.Fprintf(f, "fullscreen=0\n")
	}
	fmt.Fprintf(f, "bg_color=%d,%d,%d,%d\n", cfg.BGColor.R, cfg.BGColor.G, cfg.BGColor.B, cfg.BGColor.A)
}

// LoadCache overlays the cached settings on cfg. A cached version replaces
// the design, so it must be applied before any field-level overrides.
func (cfg *Config) LoadCache() {
	data, err := os.ReadFile(CacheFile)
	if err != nil {
		return
	}

	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, val := parts[0], parts[1]
		val = strings.TrimSpace(val)

		switch key {
		case "participant":
			cfg.ParticipantID = val
		case "version":
			cfg.ApplyPreset(val)
		case "data_dir":
			cfg.DataDir = val
		case "stimuli_dir":
			cfg.StimuliDir = val
		case "dlp_device":
			cfg.DLPDevice = val
		case "screen_w":
			fmt.Sscanf(val, "%d", &cfg.ScreenWidth)
		case "screen_h":
			fmt.Sscanf(val, "%d", &cfg.ScreenHeight)
		case "scanner":
			cfg.ScannerMode = (val != "0")
		case "fullscreen":
			cfg.Fullscreen = (val != "0")
		case "bg_color":
			cfg.BGColor = ParseColor(val)
		}
	}
}

func DefaultConfig() *Config {
	cfg := &Config{
		DataDir:       "data",
		StimuliDir:    "stim",
		ArchiveFile:   "sessions.db",
		ContinueKey:   "space",
		AbortKey:      "escape",
		TriggerKey:    "5",
		ResponseKeys:  []string{"1", "2"},
		DLPBaud:       9600,
		TriggerLine:   1,
		ResponseLines: []int{2, 3},
		WatchInterval: time.Millisecond,
		FontSize:      24,
		ScreenWidth:   1400,
		ScreenHeight:  900,
		ScaleFactor:   1.0,
		VSync:         true,
		BGColor:       RGBA{R: 128, G: 128, B: 128, A: 255},
		TextColor:     RGBA{R: 255, G: 255, B: 255, A: 255},
		FixationColor: RGBA{R: 255, G: 255, B: 255, A: 255},
		Instructions:  "Keep your eyes on the central cross.\n\nPress space to continue.",
		WaitMessage:   "Waiting for the scanner...",
		DoneMessage:   "Done!",
	}
	cfg.ApplyPreset("v2")
	return cfg
}

// ApplyPreset replaces the design, conditions and timing with one of the
// two paradigm versions. Unknown names leave cfg unchanged.
//
// v1 counterbalances all five conditions including the localizer, with
// plain 12s presentations and no responses. v2 uses three experimental
// conditions with fade ramps, a response on the illusion condition, and a
// flickering localizer closing each block.
func (cfg *Config) ApplyPreset(name string) {
	const trial = 12 * time.Second
	switch name {
	case "v1":
		cfg.Version = name
		cfg.Design = design.Design{
			Labels:  []string{"con_1", "con_2", "uil_1", "uil_2", "local"},
			Repeats: 4,
			Jitter:  design.DefaultJitter,
		}
		cfg.Conditions = []design.Condition{
			{Label: "con_1", Image: "placeholder_control1.bmp", Duration: trial},
			{Label: "con_2", Image: "placeholder_control2.bmp", Duration: trial},
			{Label: "uil_1", Image: "placeholder_UI1.bmp", Duration: trial},
			{Label: "uil_2", Image: "placeholder_UI2.bmp", Duration: trial},
			{Label: "local", Image: "placeholder_loc.bmp", Duration: trial},
		}
		cfg.Timing = design.Timing{LeadIn: 5 * time.Second, BaseISI: 12 * time.Second}
		cfg.ScannerMode = false
	case "v2":
		cfg.Version = name
		cfg.Design = design.Design{
			Labels:    []string{"con_1", "con_2", "uil"},
			Localizer: "local",
			Repeats:   6,
			Jitter:    design.DefaultJitter,
		}
		cfg.Conditions = []design.Condition{
			{Label: "con_1", Image: "control1.png", Duration: trial, FadeIn: true, FadeOut: true},
			{Label: "con_2", Image: "control2.png", Duration: trial, FadeIn: true, FadeOut: true},
			{Label: "uil", Image: "illusion.png", Duration: trial, FadeIn: true, FadeOut: true, Response: true},
			{Label: "local", Duration: trial, Flicker: true},
		}
		cfg.Timing = design.Timing{
			LeadIn:          5 * time.Second,
			BaseISI:         12 * time.Second,
			Fade:            2 * time.Second,
			FlickerInterval: 125 * time.Millisecond,
		}
		cfg.FlickerImages = [2]string{"checker_a.png", "checker_b.png"}
		cfg.OverlayImage = "loc_overlay.png"
		cfg.ScannerMode = true
	}
}

// Validate reports configuration errors that would only surface mid-run.
func (cfg *Config) Validate() error {
	if cfg.Design.Repeats <= 0 {
		return fmt.Errorf("config: repeats must be positive: %w", design.ErrConfigMismatch)
	}
	t := cfg.Timing
	if t.LeadIn < 0 || t.BaseISI < 0 || t.Fade < 0 || t.FlickerInterval < 0 {
		return fmt.Errorf("config: negative timing %+v: %w", t, design.ErrConfigMismatch)
	}
	if cfg.ContinueKey == "" || cfg.AbortKey == "" {
		return fmt.Errorf("config: continue and abort keys are required: %w", design.ErrConfigMismatch)
	}
	for _, c := range cfg.Conditions {
		if c.Duration <= 0 {
			return fmt.Errorf("config: condition %q has no duration: %w", c.Label, design.ErrConfigMismatch)
		}
		if c.Flicker && t.FlickerInterval <= 0 {
			return fmt.Errorf("config: condition %q flickers without an interval: %w", c.Label, design.ErrConfigMismatch)
		}
		if !c.Flicker && c.Image == "" {
			return fmt.Errorf("config: condition %q has no image: %w", c.Label, design.ErrConfigMismatch)
		}
	}
	if cfg.ScannerMode && cfg.DLPDevice != "" && cfg.TriggerLine == 0 {
		return fmt.Errorf("config: scanner mode needs a trigger line: %w", design.ErrConfigMismatch)
	}
	return nil
}
