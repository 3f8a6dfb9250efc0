package sim

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/sirbox/internal/dynamo"
)

// SnapshotHeader is the column order of ExportSnapshot.
var SnapshotHeader = []string{"x", "y", "vx", "vy", "state", "timer"}

// ExportSnapshot writes one CSV row per particle after a header row.
func (e *Engine) ExportSnapshot(w io.Writer) error {
	return WriteParticles(w, e.particles)
}

func WriteParticles(w io.Writer, ps []dynamo.Particle) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(SnapshotHeader); err != nil {
		return err
	}

	for _, p := range ps {
		row := []string{
			strconv.FormatFloat(p.Position.X, 'f', 6, 64),
			strconv.FormatFloat(p.Position.Y, 'f', 6, 64),
			strconv.FormatFloat(p.Velocity.X, 'f', 6, 64),
			strconv.FormatFloat(p.Velocity.Y, 'f', 6, 64),
			p.Health.String(),
			strconv.FormatFloat(p.Timer, 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadParticles parses the output of WriteParticles.
func ReadParticles(r io.Reader) ([]dynamo.Particle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(SnapshotHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("sim: empty particle table")
	}

	ps := make([]dynamo.Particle, 0, len(records)-1)
	for i, rec := range records[1:] {
		var vals [5]float64
		for j, col := range []int{0, 1, 2, 3, 5} {
			v, err := strconv.ParseFloat(rec[col], 64)
			if err != nil {
				return nil, fmt.Errorf("sim: row %d column %s: %w", i+1, SnapshotHeader[col], err)
			}
			vals[j] = v
		}
		h, err := dynamo.ParseHealth(rec[4])
		if err != nil {
			return nil, fmt.Errorf("sim: row %d: %w", i+1, err)
		}
		ps = append(ps, dynamo.Particle{
			Position: dynamo.Vec2{X: vals[0], Y: vals[1]},
			Velocity: dynamo.Vec2{X: vals[2], Y: vals[3]},
			Health:   h,
			Timer:    vals[4],
		})
	}
	return ps, nil
}
