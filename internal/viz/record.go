package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
)

func rgba(c lipgloss.Color) color.RGBA {
	r, g, b := parseHex(string(c))
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}

// maxFrames caps a recording at ten seconds of ticks.
const maxFrames = 600

// captureFrame rasterizes both layers, four screen pixels per braille dot.
// Frames past maxFrames are dropped.
func (m *Model) captureFrame() {
	if len(m.frames) >= maxFrames {
		m.status = fmt.Sprintf("recording full (%d frames), press g to save", maxFrames)
		return
	}
	const dot = 4
	th := CurrentTheme
	palette := color.Palette{rgba(th.Background), rgba(th.Healthy), rgba(th.Infected)}

	pw, ph := m.healthy.PixelWidth(), m.healthy.PixelHeight()
	img := image.NewPaletted(image.Rect(0, 0, pw*dot, ph*dot), palette)

	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			var idx uint8
			switch {
			case m.infected.IsSet(x, y):
				idx = 2
			case m.healthy.IsSet(x, y):
				idx = 1
			default:
				continue
			}
			for dy := 0; dy < dot; dy++ {
				for dx := 0; dx < dot; dx++ {
					img.SetColorIndex(x*dot+dx, y*dot+dy, idx)
				}
			}
		}
	}
	m.frames = append(m.frames, img)
}

func (m *Model) stopRecording() {
	path, err := m.saveGIF()
	switch {
	case err != nil:
		m.status = err.Error()
	case path == "":
		m.status = "nothing recorded"
	default:
		m.status = "saved " + path
	}
	m.recording = false
	m.frames = nil
}

func (m *Model) saveGIF() (string, error) {
	if len(m.frames) == 0 {
		return "", nil
	}
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range m.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 2)
	}

	path := filepath.Join(m.exportDir, fmt.Sprintf("sirbox_%06d.gif", m.eng.Steps()))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := gif.EncodeAll(f, &anim); err != nil {
		return "", err
	}
	return path, nil
}
