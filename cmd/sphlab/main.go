package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/sphlab/internal/config"
	"github.com/san-kum/sphlab/internal/fluid"
	"github.com/san-kum/sphlab/internal/ghost"
	"github.com/san-kum/sphlab/internal/metrics"
	"github.com/san-kum/sphlab/internal/scenario"
	"github.com/san-kum/sphlab/internal/solver"
	"github.com/san-kum/sphlab/internal/storage"
	"github.com/san-kum/sphlab/internal/store"
	"github.com/san-kum/sphlab/internal/tree"
	"github.com/san-kum/sphlab/internal/tui"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	dt         float64
	duration   float64
	resolution int
	seed       int64
	amplitude  float64
	theta      float64
	neighbors  int
	adaptSml   bool
	goroutines int
	warnEvery  int
	configFile string
	preset     string
	jsonPath   string
	outPath    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sphlab",
		Short: "smoothed-particle hydrodynamics lab",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".sphlab", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "run simulation",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&jsonPath, "json", "", "also export the final state as JSON")

	liveCmd := &cobra.Command{
		Use:   "live [scenario]",
		Short: "run simulation with live terminal view",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	benchCmd := &cobra.Command{
		Use:   "bench [scenario]",
		Short: "benchmark scenario across resolutions",
		Args:  cobra.ExactArgs(1),
		RunE:  benchScenario,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot stored run profiles",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export the stored particle profile as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVar(&outPath, "out", "", "output path (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [scenario]",
		Short: "list available presets for a scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, liveCmd, benchCmd, listCmd, plotCmd, exportCmd, exportCSVCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().IntVar(&resolution, "resolution", config.DefaultResolution, "particle resolution")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	cmd.Flags().Float64Var(&amplitude, "amplitude", config.DefaultAmplitude, "velocity perturbation amplitude")
	cmd.Flags().Float64Var(&theta, "theta", 0, "tree opening angle (0 = scenario default)")
	cmd.Flags().IntVar(&neighbors, "neighbors", 0, "target neighbor count (0 = scenario default)")
	cmd.Flags().BoolVar(&adaptSml, "adapt-sml", false, "adapt smoothing lengths to the neighbor target")
	cmd.Flags().IntVar(&goroutines, "goroutines", 0, "worker goroutines (0 = NumCPU)")
	cmd.Flags().IntVar(&warnEvery, "warn-every", 0, "steps between truncation warnings")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

// resolveConfig merges preset, config file, and flags, in increasing
// precedence, for the named scenario.
func resolveConfig(cmd *cobra.Command, scenarioName string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Scenario = scenarioName

	if preset != "" {
		p := config.GetPreset(scenarioName, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(scenarioName))
		}
		*cfg = *p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		loaded.Scenario = scenarioName
		*cfg = *loaded
	}

	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("resolution") {
		cfg.Resolution = resolution
	}
	if cmd.Flags().Changed("seed") || cfg.Seed == 0 {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("amplitude") {
		cfg.Amplitude = amplitude
	}
	if cmd.Flags().Changed("theta") {
		cfg.Tree.Theta = theta
	}
	if cmd.Flags().Changed("neighbors") {
		cfg.Fluid.NeighborNumber = neighbors
	}
	if cmd.Flags().Changed("adapt-sml") {
		cfg.Fluid.AdaptSml = adaptSml
	}
	if cmd.Flags().Changed("goroutines") {
		cfg.Fluid.Goroutines = goroutines
	}
	if cmd.Flags().Changed("warn-every") {
		cfg.WarnEvery = warnEvery
	}
	return cfg, nil
}

// assemble builds the full solver stack for a configuration.
func assemble(cfg *config.Config) (*solver.Solver, scenario.Setup, error) {
	set, err := cfg.Build()
	if err != nil {
		return nil, scenario.Setup{}, err
	}

	gm := ghost.New()
	if err := gm.Initialize(set.Boundary); err != nil {
		return nil, scenario.Setup{}, err
	}

	tr := tree.New(set.Tree)
	// Pool sized for the worst-case real+ghost population; ghosts can
	// at most mirror the full real set across every face.
	if err := tr.Resize(2*len(set.Particles)+128, cfg.TreeSize()); err != nil {
		return nil, scenario.Setup{}, err
	}

	comp, err := fluid.NewComputer(set.Fluid)
	if err != nil {
		return nil, scenario.Setup{}, err
	}

	return solver.New(set.Particles, gm, tr, comp), set, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	s, set, err := assemble(cfg)
	if err != nil {
		return err
	}
	s.AddMetric(metrics.NewTotalEnergy())
	s.AddMetric(metrics.NewEnergyDrift())
	s.AddMetric(metrics.NewMomentumDrift())
	s.AddMetric(metrics.NewStability())
	s.SetWarnf(func(format string, a ...any) {
		fmt.Printf("warning: "+format+"\n", a...)
	})

	fmt.Printf("running %s: %d particles, dt=%g, t=%g\n",
		set.Name, len(set.Particles), cfg.Dt, cfg.Duration)

	start := time.Now()
	result, err := s.Run(context.Background(), cfg.SolverConfig())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(set.Name, cfg.Dt, cfg.Duration, cfg.Seed, result, s.Particles())
	if err != nil {
		return err
	}

	fmt.Printf("\ncompleted %d steps in %v (%.0f steps/sec)\n",
		result.Steps, elapsed, float64(result.Steps)/elapsed.Seconds())
	if result.TruncatedSearches > 0 {
		fmt.Printf("truncated neighbor searches: %d\n", result.TruncatedSearches)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%.6g\n", name, result.Metrics[name])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	plotProfile(densityByX(s), "density along x")
	fmt.Printf("\nsaved run %s\n", runID)

	if jsonPath != "" {
		if err := store.ExportJSON(jsonPath, set.Name, cfg.Dt, cfg.Duration, result, s.Particles()); err != nil {
			return err
		}
		fmt.Printf("exported %s\n", jsonPath)
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}
	s, set, err := assemble(cfg)
	if err != nil {
		return err
	}
	return tui.Run(s, set.Name, cfg.Dt, cfg.Duration)
}

func benchScenario(cmd *cobra.Command, args []string) error {
	scenarioName := args[0]

	resolutions := []int{32, 64, 128}
	if scenarioName == "periodic_box_2d" {
		resolutions = []int{8, 16, 24}
	}
	if scenarioName == "gravity_cube" {
		resolutions = []int{4, 6, 8}
	}

	fmt.Printf("benchmarking %s\n\n", scenarioName)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RESOLUTION\tPARTICLES\tSTEPS\tTIME\tSTEPS/SEC")

	for _, res := range resolutions {
		cfg := config.DefaultConfig()
		cfg.Scenario = scenarioName
		cfg.Resolution = res
		cfg.Duration = 50 * cfg.Dt

		s, set, err := assemble(cfg)
		if err != nil {
			return err
		}

		start := time.Now()
		result, err := s.Run(context.Background(), cfg.SolverConfig())
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		fmt.Fprintf(w, "%d\t%d\t%d\t%v\t%.0f\n",
			res, len(set.Particles), result.Steps, elapsed,
			float64(result.Steps)/elapsed.Seconds())
	}

	return w.Flush()
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
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tDURATION\tDT\tPARTICLES\tSTEPS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.3fs\t%.2es\t%d\t%d\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Particles,
			run.Steps,
		)
	}

	return w.Flush()
}

// profile column indices within storage.ProfileRow.Values.
const (
	colX    = 0
	colVX   = 3
	colDens = 6
	colPres = 7
)

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	rows, err := st.LoadProfile(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("particles: %d\n\n", len(rows))

	sort.Slice(rows, func(a, b int) bool {
		return rows[a].Values[colX] < rows[b].Values[colX]
	})

	for _, plot := range []struct {
		col     int
		caption string
	}{
		{colDens, "density along x"},
		{colPres, "pressure along x"},
		{colVX, "x velocity along x"},
	} {
		data := make([]float64, len(rows))
		for i, row := range rows {
			data[i] = row.Values[plot.col]
		}
		plotProfile(data, plot.caption)
		fmt.Println()
	}

	return nil
}

func plotProfile(data []float64, caption string) {
	if len(data) == 0 {
		return
	}
	graph := asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
	fmt.Println(graph)
}

// densityByX returns the final density profile ordered by x.
func densityByX(s *solver.Solver) []float64 {
	parts := s.Particles()
	idx := make([]int, len(parts))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return parts[idx[a]].Pos[0] < parts[idx[b]].Pos[0]
	})
	data := make([]float64, len(idx))
	for i, j := range idx {
		data[i] = parts[j].Dens
	}
	return data
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	rows, err := st.LoadProfile(args[0])
	if err != nil {
		return err
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	defer w.Flush()

	if err := w.Write([]string{"id", "x", "y", "z", "vx", "vy", "vz", "dens", "pres", "ene", "sml", "neighbors"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, 0, len(row.Values)+2)
		record = append(record, strconv.Itoa(row.ID))
		for _, v := range row.Values {
			record = append(record, strconv.FormatFloat(v, 'g', 9, 64))
		}
		record = append(record, strconv.Itoa(row.Neighbors))
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	names := config.ListPresets(args[0])
	if names == nil {
		return fmt.Errorf("unknown scenario: %s", args[0])
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tDT\tDURATION\tRESOLUTION")
	for _, name := range names {
		p := config.GetPreset(args[0], name)
		fmt.Fprintf(w, "%s\t%g\t%g\t%d\n", name, p.Dt, p.Duration, p.Resolution)
	}
	return w.Flush()
}
