package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/sirbox/internal/automation"
	"github.com/san-kum/sirbox/internal/config"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00cccc")).Bold(true)
	subStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff")).Bold(true)
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

var presetInfo = map[string]string{
	"default":   "200 particles, one case",
	"dense":     "crowded box, fast spread",
	"sparse":    "large box, few contacts",
	"hot":       "high speeds, well mixed",
	"slow-burn": "weak, long infections",
}

const (
	stateMenu = iota
	stateConfig
	stateSim
)

// fields editable on the config screen, in display order
var fieldNames = []string{
	"particles", "initial_infected", "seed", "max_speed",
	"transmission", "decay_rate", "timer_decay", "infectious_threshold",
}

type app struct {
	state       int
	cursor      int
	presets     []string
	selected    string
	values      map[string]float64
	fieldCursor int
	editing     bool
	editBuf     string
	err         string
	exportDir   string
	liveModel   Model
}

// NewInteractiveApp starts on the preset menu; picking a preset opens an
// editor for its main settings and then the live view.
func NewInteractiveApp(exportDir string) *app {
	return &app{
		state:     stateMenu,
		presets:   config.ListPresets(),
		exportDir: exportDir,
	}
}

func (m app) Init() tea.Cmd { return nil }

func (m app) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		if m.state == stateSim {
			newLive, cmd := m.liveModel.Update(msg)
			m.liveModel = newLive.(Model)
			return m, cmd
		}
	}
	return m, nil
}

func (m app) handleKey(msg tea.KeyMsg) (app, tea.Cmd) {
	switch m.state {
	case stateMenu:
		return m.menuKey(msg)
	case stateConfig:
		return m.configKey(msg)
	case stateSim:
		newLive, cmd := m.liveModel.Update(msg)
		m.liveModel = newLive.(Model)
		return m, cmd
	}
	return m, nil
}

func (m app) menuKey(msg tea.KeyMsg) (app, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.selected = m.presets[m.cursor]
		m.state, m.fieldCursor, m.err = stateConfig, 0, ""
		m.values = fieldValues(config.GetPreset(m.selected))
	}
	return m, nil
}

func (m app) configKey(msg tea.KeyMsg) (app, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "enter":
			var val float64
			if _, err := fmt.Sscanf(m.editBuf, "%g", &val); err == nil {
				m.values[fieldNames[m.fieldCursor]] = val
			}
			m.editing, m.editBuf = false, ""
		case "esc":
			m.editing, m.editBuf = false, ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if len(msg.String()) == 1 {
				c := msg.String()[0]
				if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == 'e' {
					m.editBuf += string(c)
				}
			}
		}
		return m, nil
	}
	switch msg.String() {
	case "q", "esc":
		m.state = stateMenu
	case "up", "k":
		if m.fieldCursor > 0 {
			m.fieldCursor--
		}
	case "down", "j":
		if m.fieldCursor < len(fieldNames)-1 {
			m.fieldCursor++
		}
	case "enter", " ":
		m.editing, m.editBuf = true, fmt.Sprintf("%g", m.values[fieldNames[m.fieldCursor]])
	case "left", "h":
		m.nudge(0.9)
	case "right", "l":
		m.nudge(1.1)
	case "s":
		return m.start()
	}
	return m, nil
}

func (m *app) nudge(factor float64) {
	name := fieldNames[m.fieldCursor]
	v := m.values[name] * factor
	switch name {
	case "particles", "initial_infected", "seed":
		d := 1.0
		if factor < 1 {
			d = -1
		}
		v = m.values[name] + d
	}
	m.values[name] = v
}

func fieldValues(cfg *config.Config) map[string]float64 {
	return map[string]float64{
		"particles":            float64(cfg.Particles),
		"initial_infected":     float64(cfg.InitialInfected),
		"seed":                 float64(cfg.Seed),
		"max_speed":            cfg.MaxSpeed,
		"transmission":         cfg.Epidemic.Transmission,
		"decay_rate":           cfg.Epidemic.DecayRate,
		"timer_decay":          cfg.Epidemic.TimerDecay,
		"infectious_threshold": cfg.Epidemic.InfectiousThreshold,
	}
}

// applyValues copies the edited fields onto cfg.
func applyValues(cfg *config.Config, values map[string]float64) {
	cfg.Particles = int(values["particles"])
	cfg.InitialInfected = int(values["initial_infected"])
	cfg.Seed = int64(values["seed"])
	cfg.MaxSpeed = values["max_speed"]
	cfg.Epidemic.Transmission = values["transmission"]
	cfg.Epidemic.DecayRate = values["decay_rate"]
	cfg.Epidemic.TimerDecay = values["timer_decay"]
	cfg.Epidemic.InfectiousThreshold = values["infectious_threshold"]
}

func (m app) start() (app, tea.Cmd) {
	cfg := config.GetPreset(m.selected)
	applyValues(cfg, m.values)
	if err := cfg.Validate(); err != nil {
		m.err = err.Error()
		return m, nil
	}

	eng, err := automation.NewEngine(cfg, cfg.ResolveSeed(), nil)
	if err != nil {
		m.err = err.Error()
		return m, nil
	}
	m.liveModel = NewModel(eng, cfg.Particles, m.exportDir)
	m.state = stateSim
	return m, m.liveModel.Init()
}

func (m app) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	case stateSim:
		return m.liveModel.View()
	}
	return ""
}

func hints(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteString(keyStyle.Render(pairs[i]) + idleStyle.Render(" "+pairs[i+1]+"  "))
	}
	return b.String()
}

func (m app) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n\n    " + titleStyle.Render("SIRBOX") + "\n    " + subStyle.Render("particles in a box, with an infection") + "\n    " + subStyle.Render("─────────────────────────") + "\n\n")
	for i, name := range m.presets {
		desc := presetInfo[name]
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", cursorStyle.Render("▸"), activeStyle.Render(fmt.Sprintf("%-12s", name)), valueStyle.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("    %s  %s\n", idleStyle.Render(fmt.Sprintf("  %-12s", name)), subStyle.Render(desc)))
		}
	}
	b.WriteString("\n    " + hints("j/k", "navigate", "enter", "select", "q", "quit") + "\n")
	return b.String()
}

func (m app) viewConfig() string {
	var b strings.Builder
	b.WriteString("\n\n    " + titleStyle.Render(strings.ToUpper(m.selected)) + "\n    " + subStyle.Render(presetInfo[m.selected]) + "\n    " + subStyle.Render("─────────────────────────") + "\n\n")
	for i, name := range fieldNames {
		valStr := fmt.Sprintf("%10.4g", m.values[name])
		if m.editing && i == m.fieldCursor {
			valStr = fmt.Sprintf("%10s", m.editBuf+"_")
		}
		if i == m.fieldCursor {
			b.WriteString(fmt.Sprintf("    %s %s %s\n", cursorStyle.Render("▸"), activeStyle.Render(fmt.Sprintf("%-22s", name)), valueStyle.Render(valStr)))
		} else {
			b.WriteString(fmt.Sprintf("    %s %s\n", idleStyle.Render(fmt.Sprintf("  %-22s", name)), subStyle.Render(valStr)))
		}
	}
	if m.err != "" {
		b.WriteString("\n    " + errStyle.Render(m.err) + "\n")
	}
	b.WriteString("\n    " + hints("j/k", "select", "h/l", "adjust", "enter", "edit", "s", "start", "esc", "back") + "\n")
	return b.String()
}

func RunInteractive(exportDir string) error {
	_, err := tea.NewProgram(NewInteractiveApp(exportDir), tea.WithAltScreen()).Run()
	return err
}
