package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/loopsim/internal/analysis"
	"github.com/san-kum/loopsim/internal/config"
	"github.com/san-kum/loopsim/internal/experiment"
	"github.com/san-kum/loopsim/internal/plant"
	"github.com/san-kum/loopsim/internal/reference"
	"github.com/san-kum/loopsim/internal/report"
	"github.com/san-kum/loopsim/internal/sim"
	"github.com/san-kum/loopsim/internal/storage"
	"github.com/san-kum/loopsim/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// loadConfig applies, in order: the preset, the config file, then any flag
// set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		var err error
		cfg, err = config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	set := func(name string, dst *float64, v float64) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst = v
		}
	}
	set("t-start", &cfg.Horizon.Start, tStart)
	set("t-end", &cfg.Horizon.End, tEnd)
	set("rtol", &cfg.Solver.RelTol, rtol)
	set("atol", &cfg.Solver.AbsTol, atol)
	if flags.Lookup("samples") != nil && flags.Changed("samples") {
		cfg.Horizon.Samples = samples
	}
	if flags.Lookup("max-steps") != nil && flags.Changed("max-steps") {
		cfg.Solver.MaxSteps = maxSteps
	}
	if len(cfg.Loops) == len(gains) {
		for k := range gains {
			n := k + 1
			set(fmt.Sprintf("kp%d", n), &cfg.Loops[k].Kp, gains[k].kp)
			set(fmt.Sprintf("ki%d", n), &cfg.Loops[k].Ki, gains[k].ki)
			set(fmt.Sprintf("kd%d", n), &cfg.Loops[k].Kd, gains[k].kd)
			set(fmt.Sprintf("tau%d", n), &cfg.Loops[k].Tau, gains[k].tau)
			set(fmt.Sprintf("switch%d", n), &cfg.Loops[k].Reference.SwitchTime, switches[k])
		}
	}
	if flags.Lookup("name") != nil && runName != "" {
		cfg.Name = runName
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg, logger)
	if err := exp.Setup(); err != nil {
		return err
	}

	fmt.Printf("running %s simulation...\n", cfg.Name)
	res, err := exp.Run()
	if err != nil {
		return err
	}

	runID := ""
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		meta := storage.NewMetadata(cfg, res.Trajectory, res.Err, res.Metrics)
		runID, err = st.Save(meta, cfg, res.Trajectory)
		if err != nil {
			return err
		}
		logger.Debug("run saved", zap.String("id", runID), zap.String("dir", dataDir))
	}

	fmt.Println(summary(runID, res))
	if showPlot && res.Trajectory.Len() > 0 {
		p, _ := cfg.Params()
		printOutputs(os.Stdout, res.Trajectory, p.References)
	}
	return res.Err
}

func summary(runID string, res *experiment.Result) string {
	tr := res.Trajectory
	status := tui.StatusOK.Render("complete")
	if res.Err != nil {
		status = tui.StatusFail.Render("failed: " + res.Err.Error())
	}

	rows := []string{
		tui.Row("status", "%s", status),
		tui.Row("elapsed", "%v", res.Elapsed),
		tui.Row("samples", "%d", tr.Len()),
		tui.Row("segments", "%d", tr.Segments),
		tui.Row("steps", "%d accepted, %d rejected", tr.Stats.Accepted, tr.Stats.Rejected),
		tui.Row("evaluations", "%d", tr.Stats.Evaluations),
	}
	if runID != "" {
		rows = append([]string{tui.Row("run id", "%s", runID)}, rows...)
	}
	if tr.Len() > 0 {
		last := tr.Outputs[tr.Len()-1]
		rows = append(rows,
			tui.Row("y1", "%s %.4g", tui.Sparkline(tr.Output(0), 30), last[0]),
			tui.Row("y2", "%s %.4g", tui.Sparkline(tr.Output(1), 30), last[1]),
		)
	}

	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, tui.Row(name, "%.6g", res.Metrics[name]))
	}

	for k, r := range res.Responses {
		if r == nil {
			continue
		}
		rows = append(rows, tui.Row(fmt.Sprintf("loop %d step", k+1),
			"rise %.4gs  overshoot %.3g%%  settle %.4gs  error %+.3g",
			r.RiseTime, r.Overshoot, r.SettlingTime, r.FinalError))
	}

	return tui.Panel.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func printOutputs(w io.Writer, tr *sim.Trajectory, refs reference.Pair) {
	captions := [2]string{"y1 water level", "y2 temperature"}
	for k := range captions {
		ref := make([]float64, tr.Len())
		for i, t := range tr.Times {
			ref[i] = refs[k].Value(t)
		}
		graph := asciigraph.PlotMany([][]float64{tr.Output(k), ref},
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(captions[k]),
			asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Gray),
		)
		fmt.Fprintln(w, graph)
		fmt.Fprintln(w)
	}
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
	fmt.Fprintln(w, "ID\tNAME\tTIME\tHORIZON\tSAMPLES\tSTEPS\tSTATUS")

	for _, run := range runs {
		status := "ok"
		if !run.Complete {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%g-%gs\t%d\t%d\t%s\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.TStart, run.TEnd,
			run.Samples,
			run.Stats.Accepted,
			status,
		)
	}

	return w.Flush()
}

// loadRun reads a stored run and the references it was simulated with.
func loadRun(runID string) (*storage.RunMetadata, *sim.Trajectory, reference.Pair, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, reference.Pair{}, err
	}
	tr, err := st.LoadSamples(runID)
	if err != nil {
		return nil, nil, reference.Pair{}, err
	}
	cfg, err := st.LoadConfig(runID)
	if err != nil {
		return nil, nil, reference.Pair{}, err
	}
	p, err := cfg.Params()
	if err != nil {
		return nil, nil, reference.Pair{}, err
	}
	if tr.Len() == 0 {
		return nil, nil, reference.Pair{}, fmt.Errorf("no data in run %s", runID)
	}
	return meta, tr, p.References, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, tr, refs, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("name: %s\n", meta.Name)
	fmt.Printf("samples: %d\n\n", tr.Len())

	if phase {
		fmt.Print(analysis.PhasePortraitToASCII(analysis.OutputPortrait(tr), 70, 20))
		return nil
	}
	printOutputs(os.Stdout, tr, refs)
	return nil
}

func renderRun(cmd *cobra.Command, args []string) error {
	_, tr, refs, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if err := report.Save(outFile, tr, refs, report.DefaultOptions()); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outFile)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) (err error) {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	tr, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if outFile != "" {
		f, cerr := os.Create(outFile)
		if cerr != nil {
			return cerr
		}
		defer multierr.AppendInvoke(&err, multierr.Close(f))
		w = f
	}

	switch strings.ToLower(format) {
	case "csv":
		return storage.WriteCSV(w, tr)
	case "json":
		return storage.WriteJSON(w, *meta, tr)
	default:
		return fmt.Errorf("unknown format: %s (csv, json)", format)
	}
}

func viewRun(cmd *cobra.Command, args []string) error {
	meta, tr, refs, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return tui.Run(tui.NewViewer(meta.ID, tr, refs))
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tDESCRIPTION")
	for _, name := range config.ListPresets() {
		fmt.Fprintf(w, "%s\t%s\n", name, config.Presets[name].Description)
	}
	return w.Flush()
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg := config.GetPreset(initPreset)
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", initPreset, config.ListPresets())
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}

func describePlant(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p, err := cfg.Params()
	if err != nil {
		return err
	}
	m, err := plant.New(p.A, p.B, p.C)
	if err != nil {
		return err
	}

	poles, err := m.Poles()
	if err != nil {
		return err
	}
	stable, err := m.Stable()
	if err != nil {
		return err
	}

	rows := []string{tui.Row("stable", "%v", stable)}
	for i, pole := range poles {
		rows = append(rows, tui.Row(fmt.Sprintf("pole %d", i+1), "%.6g%+.6gi", real(pole), imag(pole)))
	}
	for k := 0; k < plant.NumOutputs; k++ {
		g, err := m.DCGain(k)
		if err != nil {
			return err
		}
		rows = append(rows, tui.Row(fmt.Sprintf("dc gain y%d", k+1), "%.6g", g))
	}
	if cmd.Flags().Changed("u") {
		x, err := m.SteadyState(actuation)
		if err != nil {
			return err
		}
		rows = append(rows, tui.Row(fmt.Sprintf("x at u=%g", actuation), "%.6g", x))
	}

	fmt.Println(tui.Panel.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	return nil
}
