package display

import (
	"fmt"
	"strings"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"

	"github.com/ClementAbb/uniformity-illusion/engine"
)

// RunEntry shows the session setup window: participant id, data folder,
// paradigm version and scanner mode. It returns false when the window is
// closed or escape is pressed.
func RunEntry(cfg *engine.Config) bool {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		fmt.Printf("SDL_Init Error: %v\n", err)
		return false
	}
	defer sdl.Quit()

	if err := ttf.Init(); err != nil {
		fmt.Printf("TTF_Init Error: %v\n", err)
		return false
	}
	defer ttf.Quit()

	window, renderer, err := sdl.CreateWindowAndRenderer("Infos", 800, 460, 0)
	if err != nil {
		fmt.Printf("CreateWindowAndRenderer Error: %v\n", err)
		return false
	}
	defer window.Destroy()
	defer renderer.Destroy()

	fontPath := GetDefaultFontPath()
	if fontPath == "" {
		fmt.Println("Error: No default font found for setup window")
		return false
	}
	guiFont, err := ttf.OpenFont(fontPath, 18)
	if err != nil {
		fmt.Printf("Failed to load GUI font: %v\n", err)
		return false
	}
	defer guiFont.Close()

	focusBox := 0 // 0: participant id, 1: data dir
	target := func() *string {
		switch focusBox {
		case 0:
			return &cfg.ParticipantID
		case 1:
			return &cfg.DataDir
		}
		return nil
	}
	versions := []string{"v1", "v2"}

	window.StartTextInput()
	defer window.StopTextInput()

	for {
		var e sdl.Event
		for sdl.PollEvent(&e) {
			switch e.Type {
			case sdl.EVENT_QUIT:
				return false
			case sdl.EVENT_MOUSE_BUTTON_DOWN:
				me := e.MouseButtonEvent()
				mx, my := me.X, me.Y
				switch {
				case mx >= 50 && mx <= 700 && my >= 50 && my <= 80:
					focusBox = 0
				case mx >= 50 && mx <= 700 && my >= 120 && my <= 150:
					focusBox = 1
				default:
					focusBox = -1
				}

				if mx >= 710 && mx <= 780 && my >= 120 && my <= 150 {
					cb := sdl.NewDialogFileCallback(func(fileList []string, filter int32) {
						if len(fileList) > 0 {
							cfg.DataDir = fileList[0]
						}
					})
					sdl.ShowOpenFolderDialog(cb, window, "", false)
				}

				for i, v := range versions {
					if mx >= 50 && mx <= 300 && my >= float32(190+i*40) && my <= float32(220+i*40) {
						cfg.ApplyPreset(v)
					}
				}
				if mx >= 50 && mx <= 300 && my >= 280 && my <= 310 {
					cfg.ScannerMode = !cfg.ScannerMode
				}
				if mx >= 50 && mx <= 300 && my >= 320 && my <= 350 {
					cfg.Fullscreen = !cfg.Fullscreen
				}

				if mx >= 350 && mx <= 450 && my >= 390 && my <= 430 && ready(cfg) {
					cfg.SaveCache()
					return true
				}
			case sdl.EVENT_TEXT_INPUT:
				if t := target(); t != nil {
					*t += e.TextInputEvent().Text
				}
			case sdl.EVENT_KEY_DOWN:
				switch keyName(&e) {
				case "escape":
					return false
				case "return":
					if ready(cfg) {
						cfg.SaveCache()
						return true
					}
				case "tab":
					focusBox = (focusBox + 1) % 2
				case "backspace":
					if t := target(); t != nil && len(*t) > 0 {
						*t = (*t)[:len(*t)-1]
					}
				}
			}
		}

		renderer.SetDrawColor(240, 240, 240, 255)
		renderer.Clear()
		black := sdl.Color{R: 0, G: 0, B: 0, A: 255}

		drawLabel(renderer, guiFont, "Participant ID:", 50, 20, black)
		drawLabel(renderer, guiFont, "Data directory:", 50, 90, black)

		for i, text := range []string{cfg.ParticipantID, cfg.DataDir} {
			renderer.SetDrawColor(255, 255, 255, 255)
			box := sdl.FRect{X: 50, Y: float32(50 + i*70), W: 650, H: 30}
			renderer.RenderFillRect(&box)
			if focusBox == i {
				renderer.SetDrawColor(0, 120, 255, 255)
			} else {
				renderer.SetDrawColor(180, 180, 180, 255)
			}
			renderer.RenderRect(&box)
			drawLabel(renderer, guiFont, text, 55, float32(55+i*70), black)
		}

		renderer.SetDrawColor(200, 200, 200, 255)
		btn := sdl.FRect{X: 710, Y: 120, W: 70, H: 30}
		renderer.RenderFillRect(&btn)
		renderer.SetDrawColor(0, 0, 0, 255)
		renderer.RenderRect(&btn)
		drawLabel(renderer, guiFont, "...", 735, 125, black)

		for i, v := range versions {
			drawCheck(renderer, 50, float32(190+i*40), cfg.Version == v)
			drawLabel(renderer, guiFont, "Paradigm "+v, 80, float32(190+i*40), black)
		}
		drawCheck(renderer, 50, 280, cfg.ScannerMode)
		drawLabel(renderer, guiFont, "Scanner mode (wait for trigger)", 80, 280, black)
		drawCheck(renderer, 50, 320, cfg.Fullscreen)
		drawLabel(renderer, guiFont, "Fullscreen mode", 80, 320, black)

		if ready(cfg) {
			renderer.SetDrawColor(0, 150, 0, 255)
		} else {
			renderer.SetDrawColor(150, 150, 150, 255)
		}
		startBtn := sdl.FRect{X: 350, Y: 390, W: 100, H: 40}
		renderer.RenderFillRect(&startBtn)
		drawLabel(renderer, guiFont, "START", 375, 400, sdl.Color{R: 255, G: 255, B: 255, A: 255})

		renderer.Present()
		sdl.Delay(10)
	}
}

func ready(cfg *engine.Config) bool {
	return strings.TrimSpace(cfg.ParticipantID) != "" && cfg.DataDir != ""
}

func drawCheck(renderer *sdl.Renderer, x, y float32, on bool) {
	renderer.SetDrawColor(255, 255, 255, 255)
	check := sdl.FRect{X: x, Y: y, W: 20, H: 20}
	renderer.RenderFillRect(&check)
	renderer.SetDrawColor(0, 0, 0, 255)
	renderer.RenderRect(&check)
	if on {
		mark := sdl.FRect{X: x + 4, Y: y + 4, W: 12, H: 12}
		renderer.SetDrawColor(0, 150, 0, 255)
		renderer.RenderFillRect(&mark)
	}
}

func drawLabel(renderer *sdl.Renderer, font *ttf.Font, text string, x, y float32, color sdl.Color) {
	if text == "" {
		return
	}
	surf, err := font.RenderTextBlended(text, color)
	if err != nil || surf == nil {
		return
	}
	defer surf.Destroy()
	tex, err := renderer.CreateTextureFromSurface(surf)
	if err != nil {
		return
	}
	r := sdl.FRect{X: x, Y: y, W: float32(surf.W), H: float32(surf.H)}
	renderer.RenderTexture(tex, nil, &r)
	tex.Destroy()
}
