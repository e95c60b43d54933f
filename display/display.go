// Package display implements the scheduler's renderer, keyboard and clock
// on top of SDL3.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"

	"github.com/ClementAbb/uniformity-illusion/engine"
)

const CrossSize = 20

type Display struct {
	cfg      *engine.Config
	window   *sdl.Window
	renderer *sdl.Renderer
	font     *ttf.Font
	cache    *ResourceCache
	texts    map[string][]Resource
}

// Open initialises SDL, creates the window and loads every stimulus.
// Close must be called even when Open fails half way.
func Open(cfg *engine.Config) (*Display, error) {
	d := &Display{cfg: cfg, cache: NewResourceCache(), texts: make(map[string][]Resource)}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return d, fmt.Errorf("SDL_Init: %w", err)
	}
	if err := ttf.Init(); err != nil {
		return d, fmt.Errorf("TTF_Init: %w", err)
	}

	windowFlags := sdl.WINDOW_RESIZABLE
	if cfg.Fullscreen {
		windowFlags |= sdl.WINDOW_FULLSCREEN
	}
	window, renderer, err := sdl.CreateWindowAndRenderer("uniformity illusion", cfg.ScreenWidth, cfg.ScreenHeight, windowFlags)
	if err != nil {
		return d, fmt.Errorf("CreateWindowAndRenderer: %w", err)
	}
	d.window, d.renderer = window, renderer

	if cfg.VSync {
		renderer.SetVSync(1)
	} else {
		renderer.SetVSync(0)
	}

	fontPath := cfg.FontFile
	if fontPath == "" {
		fontPath = GetDefaultFontPath()
	}
	if fontPath != "" {
		font, err := ttf.OpenFont(fontPath, float32(cfg.FontSize))
		if err != nil {
			return d, fmt.Errorf("load font %s: %w", fontPath, err)
		}
		d.font = font
	}

	if err := d.cache.Load(renderer, cfg); err != nil {
		return d, err
	}
	return d, nil
}

// RefreshRate reports the display refresh rate, or 60 when unknown.
func (d *Display) RefreshRate() float32 {
	rr := float32(60.0)
	if d.window == nil {
		return rr
	}
	mode, err := sdl.GetDisplayForWindow(d.window).CurrentDisplayMode()
	if err == nil && mode.RefreshRate > 0 {
		rr = mode.RefreshRate
	}
	return rr
}

func (d *Display) Close() {
	for _, lines := range d.texts {
		for _, l := range lines {
			if l.Texture != nil {
				l.Texture.Destroy()
			}
		}
	}
	d.cache.Destroy()
	if d.font != nil {
		d.font.Close()
	}
	if d.renderer != nil {
		d.renderer.Destroy()
	}
	if d.window != nil {
		d.window.Destroy()
	}
	ttf.Quit()
	sdl.Quit()
}

func toSDL(c engine.RGBA) sdl.Color {
	return sdl.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}

// Draw renders one frame and presents it. With VSync on, Present blocks
// until the next refresh.
func (d *Display) Draw(f engine.Frame) error {
	bg := d.cfg.BGColor
	d.renderer.SetDrawColor(bg.R, bg.G, bg.B, bg.A)
	d.renderer.Clear()

	switch f.Phase {
	case engine.PhaseInstructions, engine.PhaseWaitTrigger, engine.PhaseFinalize:
		d.drawText(f.Text)
	case engine.PhaseLeadFixation, engine.PhaseITI:
		d.drawFixationCross()
	case engine.PhaseStim:
		if err := d.drawStim(f); err != nil {
			return err
		}
		d.drawFixationCross()
	}

	if err := d.renderer.Present(); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	if !d.cfg.VSync {
		sdl.Delay(1)
	}
	return nil
}

func (d *Display) drawStim(f engine.Frame) error {
	if f.Flicker {
		pattern := d.cache.flicker[f.Variant&1]
		if pattern == nil {
			return fmt.Errorf("flicker pattern %d: %w", f.Variant&1, ErrResourceMissing)
		}
		d.drawCentered(pattern)
		if d.cache.overlay != nil {
			d.drawCentered(d.cache.overlay)
		}
		return nil
	}

	res, ok := d.cache.Get(f.Label)
	if !ok {
		return fmt.Errorf("stimulus %s: %w", f.Label, ErrResourceMissing)
	}
	alpha := uint8(f.Opacity*255 + 0.5)
	if err := res.Texture.SetAlphaMod(alpha); err != nil {
		return fmt.Errorf("alpha %s: %w", f.Label, err)
	}
	d.drawCentered(res)
	return nil
}

func (d *Display) drawCentered(r *Resource) {
	scale := d.cfg.ScaleFactor
	dst := sdl.FRect{
		X: (float32(d.cfg.ScreenWidth) - r.W*scale) / 2.0,
		Y: (float32(d.cfg.ScreenHeight) - r.H*scale) / 2.0,
		W: r.W * scale,
		H: r.H * scale,
	}
	d.renderer.RenderTexture(r.Texture, nil, &dst)
}

func (d *Display) drawFixationCross() {
	c := d.cfg.FixationColor
	d.renderer.SetDrawColor(c.R, c.G, c.B, c.A)
	mx, my := float32(d.cfg.ScreenWidth)/2, float32(d.cfg.ScreenHeight)/2
	d.renderer.RenderLine(mx-CrossSize, my, mx+CrossSize, my)
	d.renderer.RenderLine(mx, my-CrossSize, mx, my+CrossSize)
}

// drawText centres text on screen, one texture per line. Textures are
// cached per message.
func (d *Display) drawText(text string) {
	if d.font == nil || text == "" {
		return
	}
	lines, ok := d.texts[text]
	if !ok {
		for _, line := range strings.Split(text, "\n") {
			var r Resource
			if line != "" {
				surf, err := d.font.RenderTextBlended(line, toSDL(d.cfg.TextColor))
				if err == nil && surf != nil {
					tex, err := d.renderer.CreateTextureFromSurface(surf)
					if err == nil {
						r = Resource{Texture: tex, W: float32(surf.W), H: float32(surf.H)}
					}
					surf.Destroy()
				}
			}
			lines = append(lines, r)
		}
		d.texts[text] = lines
	}

	lineH := float32(d.cfg.FontSize) * 1.3
	y := (float32(d.cfg.ScreenHeight) - lineH*float32(len(lines))) / 2
	for _, l := range lines {
		if l.Texture != nil {
			dst := sdl.FRect{X: (float32(d.cfg.ScreenWidth) - l.W) / 2, Y: y, W: l.W, H: l.H}
			d.renderer.RenderTexture(l.Texture, nil, &dst)
		}
		y += lineH
	}
}

// Clock reads SDL's millisecond tick counter.
type Clock struct{}

func (Clock) Now() time.Duration {
	return time.Duration(sdl.Ticks()) * time.Millisecond
}
