package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/sirbox/internal/analysis"
	"github.com/san-kum/sirbox/internal/automation"
	"github.com/san-kum/sirbox/internal/config"
	"github.com/san-kum/sirbox/internal/dynamo"
	"github.com/san-kum/sirbox/internal/export"
	"github.com/san-kum/sirbox/internal/metrics"
	"github.com/san-kum/sirbox/internal/server"
	"github.com/san-kum/sirbox/internal/sim"
	"github.com/san-kum/sirbox/internal/storage"
	"github.com/san-kum/sirbox/internal/viz"
)

var (
	dataDir string
	verbose bool

	configFile   string
	preset       string
	seed         int64
	steps        int
	particles    int
	infected     int
	transmission float64
	timerDecay   float64
	runName      string
	measure      bool

	outPath     string
	svgSize     int
	histogram   bool
	particleCSV bool

	sweepParam  string
	sweepMin    float64
	sweepMax    float64
	sweepPoints int

	ensembleRuns int

	addr string
	fps  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "sirbox",
		Short:         "particles in a box spreading an infection",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive(dataDir)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".sirbox", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().IntVar(&steps, "steps", 2000, "macro-steps to run")
	runCmd.Flags().StringVar(&runName, "name", "run", "run name")
	runCmd.Flags().BoolVar(&measure, "measure", false, "measure mean squared velocity over the whole run")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "live terminal view; opens the preset picker without flags",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addConfigFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot healthy and infected counts of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a run's population series (or final particles) as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().BoolVar(&particleCSV, "particles", false, "export the final particle snapshot instead")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run's metadata, summary and series as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	chartCmd := &cobra.Command{
		Use:   "chart [run_id]",
		Short: "render a PNG chart of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  chartRun,
	}
	chartCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: inside the run directory)")
	chartCmd.Flags().BoolVar(&histogram, "histogram", false, "chart the final speed histogram instead")

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "render the final particles of a run as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  svgRun,
	}
	svgCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: inside the run directory)")
	svgCmd.Flags().IntVar(&svgSize, "size", 600, "image size in pixels")

	scriptCmd := &cobra.Command{
		Use:   "script [file]",
		Short: "replay a YAML scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}
	scriptCmd.Flags().StringVar(&configFile, "config", "", "base config file (yaml)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep an epidemic parameter and summarize each point",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addConfigFlags(sweepCmd)
	sweepCmd.Flags().IntVar(&steps, "steps", 1000, "macro-steps per point")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "transmission", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1, "last value")
	sweepCmd.Flags().IntVar(&sweepPoints, "points", 5, "number of values")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "run seeded copies of one config in parallel",
		Args:  cobra.NoArgs,
		RunE:  runEnsemble,
	}
	addConfigFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&steps, "steps", 1000, "macro-steps per run")
	ensembleCmd.Flags().IntVar(&ensembleRuns, "runs", 8, "number of runs")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "stream the simulation over a websocket",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	addConfigFlags(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	serveCmd.Flags().IntVar(&fps, "fps", 30, "frames per second")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPARTICLES\tINFECTED\tBOX\tTRANSMISSION\tTIMER_DECAY")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%d\t%d\t%gx%g\t%g\t%g\n",
					name, p.Particles, p.InitialInfected, p.Box.Width, p.Box.Height,
					p.Epidemic.Transmission, p.Epidemic.TimerDecay)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd,
		chartCmd, svgCmd, scriptCmd, sweepCmd, ensembleCmd, serveCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0: time based)")
	cmd.Flags().IntVar(&particles, "particles", config.DefaultParticles, "number of particles")
	cmd.Flags().IntVar(&infected, "infected", config.DefaultInitialInfected, "initially infected particles")
	cmd.Flags().Float64Var(&transmission, "transmission", 0, "infection probability at zero distance")
	cmd.Flags().Float64Var(&timerDecay, "timer-decay", 0, "infection timer decrement per macro-step")
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// resolveConfig layers defaults, preset, config file and explicitly set
// flags, in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("particles") {
		cfg.Particles = particles
	}
	if flags.Changed("infected") {
		cfg.InitialInfected = infected
	}
	if flags.Changed("transmission") {
		cfg.Epidemic.Transmission = transmission
	}
	if flags.Changed("timer-decay") {
		cfg.Epidemic.TimerDecay = timerDecay
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	runSeed := cfg.ResolveSeed()
	eng, err := automation.NewEngine(cfg, runSeed, logger)
	if err != nil {
		return err
	}
	eng.AddMetric(metrics.NewKineticEnergy())
	eng.AddMetric(metrics.NewPeakInfected())

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %d particles for %d steps (seed %d)...\n", cfg.Particles, steps, runSeed)
	start := time.Now()

	if measure {
		eng.SetRunningMeasurement(true)
	}
	runErr := eng.Run(ctx, steps)
	if measure {
		eng.SetRunningMeasurement(false)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	elapsed := time.Since(start)

	runID, err := st.Save(storage.Capture(runName, cfg, runSeed, eng))
	if err != nil {
		return err
	}

	final := eng.Counts()
	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d (t=%.4f)\n", eng.Steps(), eng.Time())
	fmt.Printf("final: %d healthy, %d infected\n", final.Healthy, final.Infected)
	if v, err := eng.MeanSquaredVelocity(); err == nil {
		fmt.Printf("mean squared velocity: %.6f\n", v)
	}
	fmt.Println("\nmetrics:")
	for name, val := range eng.Metrics() {
		fmt.Printf("  %s: %.6f\n", name, val)
	}
	if runErr != nil {
		fmt.Println("\ninterrupted; partial run saved")
	}

	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	if cmd.Flags().NFlag() == 0 {
		return viz.RunInteractive(dataDir)
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// The terminal belongs to the view, so logs go to a file.
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(dataDir, "live.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer logFile.Close()

	eng, err := automation.NewEngine(cfg, cfg.ResolveSeed(), newLogger(logFile))
	if err != nil {
		return err
	}
	return viz.Run(viz.NewModel(eng, cfg.Particles, dataDir))
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tSEED\tSTEPS\tHEALTHY\tINFECTED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Seed,
			run.Steps,
			run.Final.Healthy,
			run.Final.Infected,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	healthy, infected, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	if len(healthy) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("samples: %d\n\n", len(healthy))

	graph := asciigraph.PlotMany(
		[][]float64{metrics.Counts(healthy), metrics.Counts(infected)},
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
		asciigraph.Caption("healthy (blue) / infected (red)"),
	)
	fmt.Println(graph)
	fmt.Println()

	sum, err := analysis.Summarize(healthy, infected)
	if err != nil {
		return err
	}
	printSummary(sum)
	return nil
}

func printSummary(s analysis.Summary) {
	fmt.Printf("peak infected: %d (%.1f%%) at sample %.0f\n", s.Peak, 100*s.PeakShare, s.PeakIndex)
	fmt.Printf("mean infected: %.2f\n", s.Mean)
	if s.Extinct() {
		fmt.Printf("infection died out at sample %.0f\n", s.ExtinctAt)
	} else {
		fmt.Printf("final: %d healthy, %d infected\n", s.Final.Healthy, s.Final.Infected)
	}
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	if particleCSV {
		ps, err := st.LoadParticles(runID)
		if err != nil {
			return err
		}
		return sim.WriteParticles(os.Stdout, ps)
	}

	healthy, infected, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	if len(healthy) == 0 {
		return fmt.Errorf("no data to export")
	}

	return writeSeriesCSV(os.Stdout, healthy, infected)
}

func writeSeriesCSV(out io.Writer, healthy, infected []metrics.Sample) error {
	if len(healthy) != len(infected) {
		return fmt.Errorf("series length mismatch: %d healthy, %d infected", len(healthy), len(infected))
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{"index", "healthy", "infected"}); err != nil {
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

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	healthy, infected, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}

	out := struct {
		*storage.RunMetadata
		Summary  *analysis.Summary `json:"summary,omitempty"`
		Healthy  []metrics.Sample  `json:"healthy"`
		Infected []metrics.Sample  `json:"infected"`
	}{RunMetadata: meta, Healthy: healthy, Infected: infected}

	if sum, err := analysis.Summarize(healthy, infected); err == nil {
		out.Summary = &sum
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func createOutput(st *storage.Store, runID, defaultName string) (*os.File, string, error) {
	path := outPath
	if path == "" {
		path = filepath.Join(st.Dir(runID), defaultName)
	}
	f, err := os.Create(path)
	return f, path, err
}

func chartRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	var render func(w io.Writer) error
	name := "population.png"
	if histogram {
		ps, err := st.LoadParticles(runID)
		if err != nil {
			return err
		}
		bins := metrics.DefaultBins
		if meta.Config != nil {
			bins = meta.Config.HistogramBins
		}
		sh, err := metrics.NewSpeedHistogram(bins)
		if err != nil {
			return err
		}
		h := sh.Compute(ps)
		name = "speeds.png"
		render = func(w io.Writer) error { return export.HistogramChart(w, h) }
	} else {
		healthy, infected, err := st.LoadSeries(runID)
		if err != nil {
			return err
		}
		render = func(w io.Writer) error { return export.PopulationChart(w, healthy, infected, meta.Name) }
	}

	f, path, err := createOutput(st, runID, name)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := render(f); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func svgRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	ps, err := st.LoadParticles(runID)
	if err != nil {
		return err
	}

	box := config.DefaultConfig().Box
	if meta.Config != nil {
		box = meta.Config.Box
	}

	views := make([]dynamo.ParticleView, len(ps))
	for i := range ps {
		views[i] = ps[i].View()
	}

	f, path, err := createOutput(st, runID, "particles.svg")
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.WriteString(f, export.ParticlesToSVG(views, box.Width, box.Height, svgSize)); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func runScript(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	base := config.DefaultConfig()
	if configFile != "" {
		base, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	eng, results, err := automation.RunScenario(ctx, sc, base, newLogger(os.Stderr))
	if err != nil {
		return err
	}

	fmt.Printf("scenario: %s\n", sc.Name)
	if sc.Description != "" {
		fmt.Printf("%s\n", sc.Description)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tACTION\tSTEP\tHEALTHY\tINFECTED\tNOTE")
	for _, r := range results {
		note := ""
		switch r.Do {
		case automation.ActionInfect:
			note = "miss"
			if r.Hit {
				note = "hit"
			}
		case automation.ActionMeasure:
			if r.MeanSquaredVelocity != 0 {
				note = fmt.Sprintf("<v²> %.6f", r.MeanSquaredVelocity)
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%s\n", r.Index, r.Do, r.Step, r.Counts.Healthy, r.Counts.Infected, note)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nfinished at step %d (t=%.4f)\n", eng.Steps(), eng.Time())
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunSweep(ctx, &automation.ParameterSweep{
		Param:  sweepParam,
		Min:    sweepMin,
		Max:    sweepMax,
		Points: sweepPoints,
		Steps:  steps,
		Seed:   cfg.ResolveSeed(),
		Base:   cfg,
	}, newLogger(os.Stderr))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tPEAK\tPEAK_SHARE\tMEAN\tFINAL_INFECTED\tEXTINCT_AT\n", sweepParam)
	for _, r := range results {
		extinct := "-"
		if r.Summary.Extinct() {
			extinct = fmt.Sprintf("%.0f", r.Summary.ExtinctAt)
		}
		fmt.Fprintf(w, "%.4f\t%d\t%.3f\t%.2f\t%d\t%s\n",
			r.Value, r.Summary.Peak, r.Summary.PeakShare, r.Summary.Mean, r.Summary.Final.Infected, extinct)
	}
	return w.Flush()
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	seedStart := cfg.ResolveSeed()
	start := time.Now()
	summaries, stats, err := automation.RunEnsemble(ctx, cfg, ensembleRuns, steps, seedStart)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tPEAK\tMEAN\tFINAL_INFECTED")
	for i, s := range summaries {
		fmt.Fprintf(w, "%d\t%d\t%.2f\t%d\n", seedStart+int64(i), s.Peak, s.Mean, s.Final.Infected)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d runs in %v\n", stats.Runs, time.Since(start))
	fmt.Printf("peak infected: %.2f ± %.2f\n", stats.MeanPeak, stats.StdPeak)
	fmt.Printf("final infected: %.2f\n", stats.MeanFinal)
	fmt.Printf("died out: %d/%d", stats.ExtinctRuns, stats.Runs)
	if stats.ExtinctRuns > 0 {
		fmt.Printf(" (mean sample %.1f)", stats.MeanExtinctAt)
	}
	fmt.Println()
	return nil
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr)

	eng, err := automation.NewEngine(cfg, cfg.ResolveSeed(), logger)
	if err != nil {
		return err
	}

	interval := server.DefaultInterval
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	srv := server.New(sim.NewGuarded(eng), cfg.Particles,
		server.WithInterval(interval),
		server.WithLogger(logger),
	)

	ctx, cancel := signalContext()
	defer cancel()

	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}
	go srv.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving", "addr", addr, "particles", cfg.Particles)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
