package viz

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/sirbox/internal/dynamo"
	"github.com/san-kum/sirbox/internal/metrics"
	"github.com/san-kum/sirbox/internal/sim"
)

const (
	width        = 60
	height       = 20
	seriesWindow = 120
	tickRate     = time.Second / 60
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).Padding(1, 2).Width(50)
	labelStyle  = lipgloss.NewStyle().Width(12)
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model is the live view of one engine. Stepping happens on the tick, so
// the engine is only ever touched from the bubbletea update loop.
type Model struct {
	eng       *sim.Engine
	cfg       sim.Config
	particles int
	healthy   *Canvas
	infected  *Canvas
	cursorX   int
	cursorY   int
	running   bool
	frame     int
	status    string
	exportDir string
	recording bool
	frames    []*image.Paletted
	showHelp  bool
}

// NewModel wraps an initialized engine. particles is the population size
// used by the reinitialize key; exportDir receives snapshots and recordings.
func NewModel(eng *sim.Engine, particles int, exportDir string) Model {
	if exportDir == "" {
		exportDir = "."
	}
	m := Model{
		eng:       eng,
		cfg:       eng.Config(),
		particles: particles,
		healthy:   NewCanvas(width, height),
		infected:  NewCanvas(width, height),
		running:   true,
		exportDir: exportDir,
	}
	m.cursorX, m.cursorY = m.healthy.PixelWidth()/2, m.healthy.PixelHeight()/2
	return m
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.recording {
				m.stopRecording()
			}
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "s":
			m.eng.Step(0)
		case "m":
			m.toggleMeasurement()
		case "l":
			m.eng.Lift()
			m.status = "lifted"
		case "d":
			m.eng.Dampen()
			m.status = "dampened"
		case "b":
			m.eng.Settle()
			m.status = "settled"
		case "r":
			if err := m.eng.Reinitialize(m.particles); err != nil {
				m.status = err.Error()
			} else {
				m.status = fmt.Sprintf("reinitialized %d particles", m.particles)
			}
		case "i":
			m.infectAtCursor()
		case "up":
			m.moveCursor(0, -1)
		case "down":
			m.moveCursor(0, 1)
		case "left":
			m.moveCursor(-1, 0)
		case "right":
			m.moveCursor(1, 0)
		case "e":
			m.exportSnapshot()
		case "g":
			if m.recording {
				m.stopRecording()
			} else {
				m.recording = true
				m.frames = make([]*image.Paletted, 0)
				m.status = "recording"
			}
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.eng.Step(0)
		}
		m.frame++
		m.draw()
		if m.recording {
			m.captureFrame()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) toggleMeasurement() {
	if !m.eng.Measuring() {
		m.eng.SetRunningMeasurement(true)
		m.status = "measuring ⟨v²⟩"
		return
	}
	m.eng.SetRunningMeasurement(false)
	v, err := m.eng.MeanSquaredVelocity()
	if err != nil {
		m.status = err.Error()
		return
	}
	m.status = fmt.Sprintf("⟨v²⟩ = %.4g   kT/m = %.4g", v, v/2)
}

func (m *Model) moveCursor(dx, dy int) {
	m.cursorX = min(max(m.cursorX+dx, 0), m.healthy.PixelWidth()-1)
	m.cursorY = min(max(m.cursorY+dy, 0), m.healthy.PixelHeight()-1)
}

// infectAtCursor picks with a tolerance of one sub-pixel, since the exact
// tolerance of the engine is far below screen resolution.
func (m *Model) infectAtCursor() {
	p := m.toWorld(m.cursorX, m.cursorY)
	if m.eng.Infect(p, m.pixelSize()) {
		m.status = "infected particle at " + p.String()
		return
	}
	m.status = "no particle at " + p.String()
}

func (m *Model) exportSnapshot() {
	path := filepath.Join(m.exportDir, fmt.Sprintf("snapshot_%06d.csv", m.eng.Steps()))
	f, err := os.Create(path)
	if err != nil {
		m.status = err.Error()
		return
	}
	defer f.Close()
	if err := m.eng.ExportSnapshot(f); err != nil {
		m.status = err.Error()
		return
	}
	m.status = "exported " + path
}

func (m *Model) pixelSize() float64 {
	pw, ph := float64(m.healthy.PixelWidth()-1), float64(m.healthy.PixelHeight()-1)
	return math.Max(m.cfg.Width/pw, m.cfg.Height/ph)
}

// toPixel maps box coordinates to canvas sub-pixels with y pointing up.
func (m *Model) toPixel(p dynamo.Vec2) (int, int) {
	pw, ph := float64(m.healthy.PixelWidth()-1), float64(m.healthy.PixelHeight()-1)
	x := int(math.Round(p.X / m.cfg.Width * pw))
	y := int(math.Round(ph - p.Y/m.cfg.Height*ph))
	return x, y
}

func (m *Model) toWorld(x, y int) dynamo.Vec2 {
	pw, ph := float64(m.healthy.PixelWidth()-1), float64(m.healthy.PixelHeight()-1)
	return dynamo.Vec2{
		X: float64(x) / pw * m.cfg.Width,
		Y: (ph - float64(y)) / ph * m.cfg.Height,
	}
}

func (m *Model) draw() {
	m.healthy.Clear()
	m.infected.Clear()
	m.healthy.Frame()

	for _, v := range m.eng.Snapshot() {
		x, y := m.toPixel(v.Position)
		if v.Health == dynamo.Infected {
			m.infected.Set(x, y)
		} else {
			m.healthy.Set(x, y)
		}
	}

	if !m.running {
		for d := -1; d <= 1; d++ {
			m.healthy.Set(m.cursorX+d, m.cursorY)
			m.healthy.Set(m.cursorX, m.cursorY+d)
		}
	}
}

func tail(s []metrics.Sample, n int) []float64 {
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return metrics.Counts(s)
}

func (m Model) View() string {
	th := CurrentTheme
	m.draw()

	canvasView := canvasStyle.Render(Overlay(m.healthy, m.infected, fg(th.Healthy), fg(th.Infected)))

	var s strings.Builder
	s.WriteString(HeaderStyle.BorderForeground(th.Muted).Render(GradientText("SIRBOX", th.Primary, th.Accent)) + "\n")

	status := StatusPaused.Render("PAUSED")
	if m.running {
		status = StatusRunning.Render(AnimatedSpinner(m.frame) + " RUNNING")
	}
	if m.eng.Measuring() {
		status += "  " + StatusMeasuring.Render("● MEASURING")
	}
	s.WriteString(status + "\n\n")

	counts := m.eng.Counts()
	label, value := labelStyle.Foreground(th.Muted), fg(th.Text)
	s.WriteString(label.Render("Step") + value.Render(fmt.Sprintf("%d", m.eng.Steps())) + "\n")
	s.WriteString(label.Render("Time") + value.Render(fmt.Sprintf("%.3f", m.eng.Time())) + "\n")
	s.WriteString(label.Render("Healthy") + fg(th.Healthy).Render(fmt.Sprintf("%d", counts.Healthy)) + "\n")
	s.WriteString(label.Render("Infected") + fg(th.Infected).Render(fmt.Sprintf("%d", counts.Infected)) + "\n")
	s.WriteString(ShareBar(counts.Infected, counts.Total(), 30, th.Healthy, th.Infected) + "\n\n")

	healthy, infected := m.eng.PopulationSeries()
	if len(healthy) > 1 {
		chart := asciigraph.PlotMany(
			[][]float64{tail(healthy, seriesWindow), tail(infected, seriesWindow)},
			asciigraph.Height(6),
			asciigraph.Width(36),
			asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
			asciigraph.Caption("healthy / infected"),
		)
		s.WriteString(chart + "\n\n")
	}

	h := m.eng.SpeedHistogram()
	s.WriteString(label.Render("Speeds") + Sparkline(h.Counts, h.MaxHeight, th.Accent) + "\n")
	s.WriteString(label.Render("") + fg(th.Muted).Render(fmt.Sprintf("%.2f … %.2f", h.Min, h.Max)) + "\n")

	if m.status != "" {
		s.WriteString("\n" + fg(th.Accent).Render(m.status) + "\n")
	}
	s.WriteString("\n" + Separator(40, th.Muted) + "\n")
	s.WriteString(fg(th.Muted).Render("SP:Run S:Step M:Measure L:Lift D:Dampen\nB:Settle R:Reinit I:Infect E:Export T:Theme\nG:Record ?:Help Q:Quit  [" + th.Name + "]"))

	statsView := statsStyle.BorderForeground(th.Muted).Render(s.String())
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
	if m.showHelp {
		return `
╔══════════════════════════════════════════╗
║            KEYBOARD SHORTCUTS            ║
╠══════════════════════════════════════════╣
║  Space    - Pause/Resume stepping        ║
║  S        - Single macro-step            ║
║  M        - Start/stop ⟨v²⟩ measurement  ║
║  L        - Lift every particle          ║
║  D        - Dampen velocities            ║
║  B        - Settle particles near top    ║
║  R        - Reinitialize population      ║
║  Arrows   - Move cursor (when paused)    ║
║  I        - Infect particle at cursor    ║
║  E        - Export particle table (CSV)  ║
║  G        - Toggle GIF recording         ║
║  T        - Cycle themes                 ║
║  Q        - Quit                         ║
╚══════════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

// Run starts the live view in the alternate screen.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
