package viz

import "github.com/charmbracelet/lipgloss"

// Theme defines color scheme for the TUI
type Theme struct {
	Name       string
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Background lipgloss.Color
	Text       lipgloss.Color
	Muted      lipgloss.Color
	Healthy    lipgloss.Color
	Infected   lipgloss.Color
}

var (
	ThemeLight = Theme{
		Name:       "light",
		Primary:    lipgloss.Color("#1f4e79"),
		Accent:     lipgloss.Color("#c05000"),
		Background: lipgloss.Color("#fafafa"),
		Text:       lipgloss.Color("#202020"),
		Muted:      lipgloss.Color("#8a8a8a"),
		Healthy:    lipgloss.Color("#209fdf"),
		Infected:   lipgloss.Color("#d62728"),
	}

	ThemeDark = Theme{
		Name:       "dark",
		Primary:    lipgloss.Color("#00cccc"),
		Accent:     lipgloss.Color("#ff88ff"),
		Background: lipgloss.Color("#0a0a0a"),
		Text:       lipgloss.Color("#e0e0e0"),
		Muted:      lipgloss.Color("#666688"),
		Healthy:    lipgloss.Color("#4fc3f7"),
		Infected:   lipgloss.Color("#ff4444"),
	}

	ThemeCerulean = Theme{
		Name:       "cerulean",
		Primary:    lipgloss.Color("#007ba7"),
		Accent:     lipgloss.Color("#ffd700"),
		Background: lipgloss.Color("#001a33"),
		Text:       lipgloss.Color("#e0f0ff"),
		Muted:      lipgloss.Color("#4488aa"),
		Healthy:    lipgloss.Color("#9bd7ff"),
		Infected:   lipgloss.Color("#ff6b6b"),
	}

	ThemeBrownSand = Theme{
		Name:       "brown sand",
		Primary:    lipgloss.Color("#f4a460"),
		Accent:     lipgloss.Color("#feca57"),
		Background: lipgloss.Color("#2d1b0e"),
		Text:       lipgloss.Color("#fff5e6"),
		Muted:      lipgloss.Color("#8b6b4c"),
		Healthy:    lipgloss.Color("#e8d3a9"),
		Infected:   lipgloss.Color("#ff4757"),
	}

	ThemeIcyBlue = Theme{
		Name:       "icy blue",
		Primary:    lipgloss.Color("#a5f2f3"),
		Accent:     lipgloss.Color("#ffffff"),
		Background: lipgloss.Color("#0b1d2a"),
		Text:       lipgloss.Color("#eaf8ff"),
		Muted:      lipgloss.Color("#5f8ea8"),
		Healthy:    lipgloss.Color("#cfefff"),
		Infected:   lipgloss.Color("#ff5e7e"),
	}

	CurrentTheme = ThemeDark

	Themes = []Theme{
		ThemeLight,
		ThemeDark,
		ThemeCerulean,
		ThemeBrownSand,
		ThemeIcyBlue,
	}
)

// GetTheme returns a theme by name, falling back to dark.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeDark
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

// NextTheme advances CurrentTheme to the following entry of Themes.
func NextTheme() {
	for i, t := range Themes {
		if t.Name == CurrentTheme.Name {
			CurrentTheme = Themes[(i+1)%len(Themes)]
			return
		}
	}
	CurrentTheme = Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
