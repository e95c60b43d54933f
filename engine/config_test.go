package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ClementAbb/uniformity-illusion/design"
)

func TestPresetsValidate(t *testing.T) {
	for _, name := range []string{"v1", "v2"} {
		cfg := DefaultConfig()
		cfg.ApplyPreset(name)
		if cfg.Version != name {
			t.Fatalf("preset %s not applied", name)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("preset %s: %v", name, err)
		}
	}
}

func TestPresetV1_AllConditionsCounterbalanced(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyPreset("v1")
	if cfg.Design.Localizer != "" {
		t.Fatalf("v1 has no reserved localizer slot")
	}
	seq, err := design.PlanSequence(len(cfg.Design.Labels), cfg.Design.Repeats, false)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(seq) != 20 {
		t.Fatalf("expected 20 trials, got %d", len(seq))
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no repeats", func(c *Config) { c.Design.Repeats = 0 }},
		{"negative isi", func(c *Config) { c.Timing.BaseISI = -time.Second }},
		{"flicker without interval", func(c *Config) { c.Timing.FlickerInterval = 0 }},
		{"missing image", func(c *Config) { c.Conditions[0].Image = "" }},
		{"zero duration", func(c *Config) { c.Conditions[1].Duration = 0 }},
		{"no abort key", func(c *Config) { c.AbortKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, design.ErrConfigMismatch) {
				t.Fatalf("expected ErrConfigMismatch, got %v", err)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	if got := ParseColor("10,20,30"); got != (RGBA{10, 20, 30, 255}) {
		t.Fatalf("got %+v", got)
	}
	if got := ParseColor("10,20,30,40"); got != (RGBA{10, 20, 30, 40}) {
		t.Fatalf("got %+v", got)
	}
	for _, s := range []string{"128,0,128", "0,0,0", "10,0,20"} {
		if got := ParseColor(s); got.A != 255 {
			t.Fatalf("%s: alpha %d, want 255", s, got.A)
		}
	}
	if got := ParseColor("0,0,0,0"); got.A != 0 {
		t.Fatalf("explicit zero alpha lost: %+v", got)
	}
}

func TestLoadConditions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conditions.csv")
	data := "# label,image,duration_ms,flags\n" +
		"con_1,control1.png,12000,fade_in|fade_out\n" +
		"uil,illusion.png,10000,fade_in|response\n" +
		"local,,12000,flicker\n" +
		"plain,plain.png,8000\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := LoadConditions(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []design.Condition{
		{Label: "con_1", Image: "control1.png", Duration: 12 * time.Second, FadeIn: true, FadeOut: true},
		{Label: "uil", Image: "illusion.png", Duration: 10 * time.Second, FadeIn: true, Response: true},
		{Label: "local", Duration: 12 * time.Second, Flicker: true},
		{Label: "plain", Image: "plain.png", Duration: 8 * time.Second},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d conditions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("condition %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	merged := MergeConditions(DefaultConfig().Conditions, got)
	for _, c := range merged {
		if c.Label == "uil" && c.Duration != 10*time.Second {
			t.Fatalf("override not applied: %+v", c)
		}
		if c.Label == "plain" {
			t.Fatalf("unknown labels must not be added")
		}
	}
}

func TestLoadConditions_Errors(t *testing.T) {
	tests := map[string]string{
		"bad duration": "con_1,a.png,soon\n",
		"bad flag":     "con_1,a.png,1000,sparkle\n",
		"short row":    "con_1,a.png\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.csv")
			if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := LoadConditions(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	cfg := DefaultConfig()
	cfg.ParticipantID = "abc"
	cfg.ApplyPreset("v1")
	cfg.DataDir = "out"
	cfg.DLPDevice = "/dev/ttyUSB0"
	cfg.Fullscreen = true
	cfg.BGColor = RGBA{R: 128, G: 0, B: 128, A: 255}
	cfg.SaveCache()

	loaded := DefaultConfig()
	loaded.LoadCache()
	if loaded.ParticipantID != "abc" || loaded.Version != "v1" || loaded.DataDir != "out" {
		t.Fatalf("cache not restored: %+v", loaded)
	}
	if loaded.DLPDevice != "/dev/ttyUSB0" || !loaded.Fullscreen || loaded.ScannerMode {
		t.Fatalf("cache flags not restored: %+v", loaded)
	}
	if loaded.BGColor != cfg.BGColor {
		t.Fatalf("background %+v, want %+v", loaded.BGColor, cfg.BGColor)
	}
}
