package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/sirbox/internal/config"
	"github.com/san-kum/sirbox/internal/dynamo"
	"github.com/san-kum/sirbox/internal/metrics"
	"github.com/san-kum/sirbox/internal/sim"
)

const (
	metadataFile   = "metadata.json"
	particlesFile  = "particles.csv"
	populationFile = "population.csv"
)

var populationHeader = []string{"index", "healthy", "infected"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	Timestamp           time.Time          `json:"timestamp"`
	Seed                int64              `json:"seed"`
	Steps               int                `json:"steps"`
	SimTime             float64            `json:"sim_time"`
	Final               dynamo.Counts      `json:"final"`
	MeanSquaredVelocity *float64           `json:"mean_squared_velocity,omitempty"`
	Config              *config.Config     `json:"config"`
	Metrics             map[string]float64 `json:"metrics"`
}

// Run is everything archived for one finished simulation.
type Run struct {
	Meta      RunMetadata
	Particles []dynamo.Particle
	Healthy   []metrics.Sample
	Infected  []metrics.Sample
}

// Capture collects a Run from an engine at its current step.
func Capture(name string, cfg *config.Config, seed int64, eng *sim.Engine) *Run {
	healthy, infected := eng.PopulationSeries()
	meta := RunMetadata{
		Name:    name,
		Seed:    seed,
		Steps:   eng.Steps(),
		SimTime: eng.Time(),
		Final:   eng.Counts(),
		Config:  cfg,
		Metrics: eng.Metrics(),
	}
	if v, err := eng.MeanSquaredVelocity(); err == nil {
		meta.MeanSquaredVelocity = &v
	}
	return &Run{
		Meta:      meta,
		Particles: eng.Particles(),
		Healthy:   healthy,
		Infected:  infected,
	}
}

// safeName reduces a run name to one path element so a run directory can
// never land outside the store.
func safeName(name string) string {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == ".." {
		return "run"
	}
	return base
}

func (s *Store) Save(run *Run) (string, error) {
	if len(run.Healthy) != len(run.Infected) {
		return "", fmt.Errorf("storage: series length mismatch: %d healthy, %d infected",
			len(run.Healthy), len(run.Infected))
	}

	now := time.Now()
	runID := fmt.Sprintf("%s_%d", safeName(run.Meta.Name), now.UnixNano())
	runDir := s.Dir(runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := run.Meta
	meta.ID = runID
	meta.Timestamp = now

	if err := writeMetadata(filepath.Join(runDir, metadataFile), &meta); err != nil {
		return "", err
	}
	if err := writeParticles(filepath.Join(runDir, particlesFile), run.Particles); err != nil {
		return "", err
	}
	if err := writePopulation(filepath.Join(runDir, populationFile), run.Healthy, run.Infected); err != nil {
		return "", err
	}

	run.Meta = meta
	return runID, nil
}

func writeMetadata(path string, meta *RunMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func writeParticles(path string, ps []dynamo.Particle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return sim.WriteParticles(f, ps)
}

func writePopulation(path string, healthy, infected []metrics.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(populationHeader); err != nil {
		return err
	}
	for i := range healthy {
		row := []string{
			strconv.FormatFloat(healthy[i].Index, 'f', -1, 64),
			strconv.Itoa(healthy[i].Count),
			strconv.Itoa(infected[i].Count),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the metadata of every run, oldest first. Directories without
// readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}

		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadParticles(runID string) ([]dynamo.Particle, error) {
	f, err := os.Open(filepath.Join(s.Dir(runID), particlesFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return sim.ReadParticles(f)
}

func (s *Store) LoadSeries(runID string) (healthy, infected []metrics.Sample, err error) {
	f, err := os.Open(filepath.Join(s.Dir(runID), populationFile))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(populationHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return []metrics.Sample{}, []metrics.Sample{}, nil
	}

	healthy = make([]metrics.Sample, 0, len(records)-1)
	infected = make([]metrics.Sample, 0, len(records)-1)
	for i, rec := range records[1:] {
		idx, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: population row %d: %w", i+1, err)
		}
		h, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, nil, fmt.Errorf("storage: population row %d: %w", i+1, err)
		}
		inf, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, nil, fmt.Errorf("storage: population row %d: %w", i+1, err)
		}
		healthy = append(healthy, metrics.Sample{Index: idx, Count: h})
		infected = append(infected, metrics.Sample{Index: idx, Count: inf})
	}

	return healthy, infected, nil
}
