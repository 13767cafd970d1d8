package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/san-kum/loopsim/internal/automation"
	"github.com/san-kum/loopsim/internal/storage"
	"github.com/spf13/cobra"
)

func runBatch(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	results, err := automation.RunScenario(sc, logger)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tRUN ID\tY1\tY2\tIAE1\tIAE2\tSTATUS")
	for i, r := range results {
		meta := storage.NewMetadata(r.Config, r.Trajectory, r.Err, r.Metrics)
		id, err := st.Save(meta, r.Config, r.Trajectory)
		if err != nil {
			return err
		}
		var last [2]float64
		if n := r.Trajectory.Len(); n > 0 {
			last = r.Trajectory.Outputs[n-1]
		}
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%.4g\t%.4g\t%.4g\t%.4g\t%s\n",
			i+1, id, last[0], last[1], r.Metrics["iae_1"], r.Metrics["iae_2"], status)
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	results, err := automation.RunSweep(&automation.ParameterSweep{
		Base:      cfg,
		ParamName: sweepParam,
		ParamMin:  sweepFrom,
		ParamMax:  sweepTo,
		NumSteps:  sweepSteps,
	}, logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tY1\tY2\tIAE1\tIAE2\tEFFORT\tSTATUS\n", sweepParam)
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Fprintf(w, "%g\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\t%s\n",
			r.ParamValue, r.Final[0], r.Final[1],
			r.Metrics["iae_1"], r.Metrics["iae_2"], r.Metrics["control_effort"], status)
	}
	return w.Flush()
}
