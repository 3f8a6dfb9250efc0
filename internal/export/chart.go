package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/san-kum/sirbox/internal/metrics"
)

var (
	healthyStroke  = drawing.ColorFromHex(HealthyColor[1:])
	infectedStroke = drawing.ColorFromHex(InfectedColor[1:])
)

// ErrTooFewSamples is returned when a series cannot be drawn as a line.
var ErrTooFewSamples = errors.New("export: at least two samples are needed")

// PopulationChart renders the healthy and infected series as a PNG line
// chart.
func PopulationChart(w io.Writer, healthy, infected []metrics.Sample, title string) error {
	if len(healthy) != len(infected) {
		return fmt.Errorf("export: series length mismatch: %d healthy, %d infected", len(healthy), len(infected))
	}
	if len(healthy) < 2 {
		return ErrTooFewSamples
	}

	xs := make([]float64, len(healthy))
	for i, s := range healthy {
		xs[i] = s.Index
	}
	total := float64(healthy[0].Count + infected[0].Count)
	if total == 0 {
		total = 1
	}

	graph := chart.Chart{
		Title:  title,
		Width:  900,
		Height: 400,
		XAxis: chart.XAxis{
			Name:  "sample",
			Range: &chart.ContinuousRange{Min: xs[0], Max: xs[len(xs)-1]},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "particles",
			Range: &chart.ContinuousRange{Min: 0, Max: total},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "healthy",
				XValues: xs,
				YValues: metrics.Counts(healthy),
				Style: chart.Style{
					StrokeColor: healthyStroke,
					StrokeWidth: 2.0,
				},
			},
			chart.ContinuousSeries{
				Name:    "infected",
				XValues: xs,
				YValues: metrics.Counts(infected),
				Style: chart.Style{
					StrokeColor: infectedStroke,
					StrokeWidth: 2.0,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// HistogramChart renders a speed histogram as a PNG bar chart labelled with
// each bin's lower edge.
func HistogramChart(w io.Writer, h metrics.Histogram) error {
	if len(h.Counts) == 0 || h.MaxHeight == 0 {
		return fmt.Errorf("export: empty histogram")
	}

	edges := h.Edges()
	bars := make([]chart.Value, len(h.Counts))
	for i, c := range h.Counts {
		bars[i] = chart.Value{
			Label: fmt.Sprintf("%.2f", edges[i]),
			Value: float64(c),
			Style: chart.Style{
				FillColor:   healthyStroke,
				StrokeColor: healthyStroke,
			},
		}
	}

	const barWidth, barSpacing = 30, 10
	graph := chart.BarChart{
		Title:      "speed distribution",
		Width:      len(bars)*(barWidth+barSpacing) + 200,
		Height:     400,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: float64(h.MaxHeight)},
		},
		Bars: bars,
	}

	return graph.Render(chart.PNG, w)
}
