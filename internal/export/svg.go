package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/sirbox/internal/dynamo"
	"github.com/san-kum/sirbox/internal/metrics"
)

const (
	HealthyColor  = "#209fdf"
	InfectedColor = "#e0302a"
	background    = "#0a0a0a"
)

// ParticlesToSVG draws the box as a scatter plot, one dot per particle,
// scaled so the box is size pixels on its longer side.
func ParticlesToSVG(views []dynamo.ParticleView, boxWidth, boxHeight float64, size int) string {
	if boxWidth <= 0 || boxHeight <= 0 || size <= 0 {
		return ""
	}

	scale := float64(size) / max(boxWidth, boxHeight)
	width := boxWidth * scale
	height := boxHeight * scale
	dotRadius := max(1.5, float64(size)/200)

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background))

	// Healthy first so infected dots stay visible on top.
	for _, pass := range []struct {
		health dynamo.Health
		color  string
	}{{dynamo.Healthy, HealthyColor}, {dynamo.Infected, InfectedColor}} {
		sb.WriteString(fmt.Sprintf("<g class=\"%s\" fill=\"%s\">\n", pass.health, pass.color))
		for _, v := range views {
			if v.Health != pass.health {
				continue
			}
			cx := v.Position.X * scale
			cy := height - v.Position.Y*scale
			sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f"/>
`, cx, cy, dotRadius))
		}
		sb.WriteString("</g>\n")
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// SeriesToSVG draws the healthy and infected curves on a shared scale.
func SeriesToSVG(healthy, infected []metrics.Sample, width, height int) string {
	if len(healthy) < 2 || len(healthy) != len(infected) {
		return ""
	}

	minX, maxX := healthy[0].Index, healthy[len(healthy)-1].Index
	maxY := 0
	for i := range healthy {
		maxY = max(maxY, healthy[i].Count, infected[i].Count)
	}

	rangeX := maxX - minX
	if rangeX == 0 {
		rangeX = 1
	}
	rangeY := float64(maxY) * 1.1
	if rangeY == 0 {
		rangeY = 1
	}

	path := func(series []metrics.Sample) string {
		var pb strings.Builder
		for i, s := range series {
			x := (s.Index - minX) / rangeX * float64(width)
			y := float64(height) - float64(s.Count)/rangeY*float64(height)
			if i == 0 {
				pb.WriteString(fmt.Sprintf("M%.1f,%.1f", x, y))
			} else {
				pb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		return pb.String()
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background))
	sb.WriteString(fmt.Sprintf(`<path class="healthy" fill="none" stroke="%s" stroke-width="1.5" d="%s"/>
`, HealthyColor, path(healthy)))
	sb.WriteString(fmt.Sprintf(`<path class="infected" fill="none" stroke="%s" stroke-width="1.5" d="%s"/>
`, InfectedColor, path(infected)))
	sb.WriteString("</svg>")
	return sb.String()
}
