package display

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Zyko0/go-sdl3/img"
	"github.com/Zyko0/go-sdl3/sdl"

	"github.com/ClementAbb/uniformity-illusion/engine"
)

// ErrResourceMissing reports a stimulus file that cannot be loaded.
var ErrResourceMissing = errors.New("resource missing")

func GetDefaultFontPath() string {
	// Check local fonts directory
	entries, err := os.ReadDir("fonts")
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				ext := strings.ToLower(filepath.Ext(entry.Name()))
				if ext == ".ttf" || ext == ".ttc" {
					return filepath.Join("fonts", entry.Name())
				}
			}
		}
	}

	var paths []string
	switch runtime.GOOS {
	case "windows":
		paths = []string{"C:\\Windows\\Fonts\\arial.ttf"}
	case "darwin":
		paths = []string{"/System/Library/Fonts/Helvetica.ttc"}
	default:
		paths = []string{
			"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

type Resource struct {
	Texture *sdl.Texture
	W, H    float32
}

// ResourceCache owns every stimulus texture of a run, keyed by condition
// label. Flicker patterns and the overlay have their own slots.
type ResourceCache struct {
	entries map[string]*Resource
	files   map[string]*Resource
	flicker [2]*Resource
	overlay *Resource
}

func NewResourceCache() *ResourceCache {
	return &ResourceCache{
		entries: make(map[string]*Resource),
		files:   make(map[string]*Resource),
	}
}

// Load resolves every image the run can show. Any missing or unreadable
// file fails the whole load so no trial ever starts without its stimulus.
func (c *ResourceCache) Load(renderer *sdl.Renderer, cfg *engine.Config) error {
	needFlicker := false
	for _, cond := range cfg.Conditions {
		if cond.Flicker {
			needFlicker = true
			continue
		}
		res, err := c.file(renderer, filepath.Join(cfg.StimuliDir, cond.Image))
		if err != nil {
			return fmt.Errorf("condition %s: %w", cond.Label, err)
		}
		c.entries[cond.Label] = res
	}

	if !needFlicker {
		return nil
	}
	for i, name := range cfg.FlickerImages {
		res, err := c.file(renderer, filepath.Join(cfg.StimuliDir, name))
		if err != nil {
			return fmt.Errorf("flicker pattern %d: %w", i, err)
		}
		c.flicker[i] = res
	}
	if cfg.OverlayImage != "" {
		res, err := c.file(renderer, filepath.Join(cfg.StimuliDir, cfg.OverlayImage))
		if err != nil {
			return fmt.Errorf("flicker overlay: %w", err)
		}
		c.overlay = res
	}
	return nil
}

func (c *ResourceCache) file(renderer *sdl.Renderer, path string) (*Resource, error) {
	if res, ok := c.files[path]; ok {
		return res, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrResourceMissing, err)
	}
	tex, err := img.LoadTexture(renderer, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w: %v", path, ErrResourceMissing, err)
	}
	if err := tex.SetBlendMode(sdl.BLENDMODE_BLEND); err != nil {
		tex.Destroy()
		return nil, fmt.Errorf("blend mode %s: %w", path, err)
	}
	w, h, _ := tex.Size()
	res := &Resource{Texture: tex, W: w, H: h}
	c.files[path] = res
	return res, nil
}

// Get returns the texture for a condition label.
func (c *ResourceCache) Get(label string) (*Resource, bool) {
	res, ok := c.entries[label]
	return res, ok
}

func (c *ResourceCache) Destroy() {
	for _, entry := range c.files {
		if entry.Texture != nil {
			entry.Texture.Destroy()
		}
	}
	c.files = map[string]*Resource{}
	c.entries = map[string]*Resource{}
}
