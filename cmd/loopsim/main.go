package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string
	initPreset string
	runName    string
	noSave     bool
	showPlot   bool

	tStart   float64
	tEnd     float64
	samples  int
	rtol     float64
	atol     float64
	maxSteps int

	gains    [2]gainFlags
	switches [2]float64

	sweepParam string
	sweepFrom  float64
	sweepTo    float64
	sweepSteps int

	outFile   string
	format    string
	phase     bool
	actuation float64
)

type gainFlags struct {
	kp, ki, kd, tau float64
}

var logger = zap.NewNop()

func main() {
	err := newRootCmd().Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loopsim",
		Short: "two-loop PID process simulator",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(verbose)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".loopsim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().StringVar(&runName, "name", "", "run name (defaults to the preset or config name)")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot outputs after the run")
	runCmd.Flags().Float64Var(&tStart, "t-start", 0, "start time")
	runCmd.Flags().Float64Var(&tEnd, "t-end", 600, "end time")
	runCmd.Flags().IntVar(&samples, "samples", 6001, "number of output samples")
	runCmd.Flags().Float64Var(&rtol, "rtol", 1e-3, "relative tolerance")
	runCmd.Flags().Float64Var(&atol, "atol", 1e-6, "absolute tolerance")
	runCmd.Flags().IntVar(&maxSteps, "max-steps", 1_000_000, "step budget")
	for k := range gains {
		n := k + 1
		runCmd.Flags().Float64Var(&gains[k].kp, fmt.Sprintf("kp%d", n), 0, fmt.Sprintf("loop %d proportional gain", n))
		runCmd.Flags().Float64Var(&gains[k].ki, fmt.Sprintf("ki%d", n), 0, fmt.Sprintf("loop %d integral gain", n))
		runCmd.Flags().Float64Var(&gains[k].kd, fmt.Sprintf("kd%d", n), 0, fmt.Sprintf("loop %d derivative gain", n))
		runCmd.Flags().Float64Var(&gains[k].tau, fmt.Sprintf("tau%d", n), 1e-3, fmt.Sprintf("loop %d derivative filter time constant", n))
		runCmd.Flags().Float64Var(&switches[k], fmt.Sprintf("switch%d", n), 0, fmt.Sprintf("loop %d setpoint switch time", n))
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run outputs in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().BoolVar(&phase, "phase", false, "plot y2 against y1")

	renderCmd := &cobra.Command{
		Use:   "render [run_id]",
		Short: "render the response figure to pdf, png or svg",
		Args:  cobra.ExactArgs(1),
		RunE:  renderRun,
	}
	renderCmd.Flags().StringVarP(&outFile, "out", "o", "response.pdf", "output file")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run samples",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", "csv", "csv or json")
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	viewCmd := &cobra.Command{
		Use:   "view [run_id]",
		Short: "browse a run interactively",
		Args:  cobra.ExactArgs(1),
		RunE:  viewRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init-config [file]",
		Short: "write a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	}
	initCmd.Flags().StringVar(&initPreset, "preset", "default", "preset to write")

	plantCmd := &cobra.Command{
		Use:   "plant",
		Short: "show plant poles and steady-state gains",
		Args:  cobra.NoArgs,
		RunE:  describePlant,
	}
	addConfigFlags(plantCmd)
	plantCmd.Flags().Float64Var(&actuation, "u", 0, "also show the steady state for this constant actuation")

	batchCmd := &cobra.Command{
		Use:   "batch [scenario]",
		Short: "run every step of a scenario file and store the runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "repeat a run across values of one parameter",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addConfigFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "switch1", "parameter to vary")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 50, "first value")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 150, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, renderCmd, exportCmd, viewCmd, presetsCmd, initCmd, plantCmd, batchCmd, sweepCmd)
	return rootCmd
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
