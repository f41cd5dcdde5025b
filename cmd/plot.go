package cmd

import (
	"fmt"

	"benchsheet/internal/database"
	"benchsheet/internal/experiment"
	"benchsheet/internal/logging"
	"benchsheet/internal/plot"
	"benchsheet/internal/plot/timeseries"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newPlotCommand() *cobra.Command {
	var snapshotPath string
	var xField, yField string
	var seriesAxes []string
	var selectLabels map[string]string
	var interval float64
	var minVal, maxVal float64
	var minSet, maxSet bool
	var onlyPlot, onlyWrapper bool

	plotCmd := &cobra.Command{
		Use:   "plot",
		Short: "Generate plots from table snapshots",
		Long:  "Generate LaTeX/TikZ plots from tables saved with --snapshot",
	}

	timeseriesCmd := &cobra.Command{
		Use:   "timeseries",
		Short: "Generate a timeseries plot",
		Long:  "Generate a timeseries plot of one metric of a snapshot, one line per series label",
		RunE: func(cmd *cobra.Command, args []string) error {
			var minPtr, maxPtr *float64
			if minSet {
				minPtr = &minVal
			}
			if maxSet {
				maxPtr = &maxVal
			}
			return generateTimeseriesPlot(snapshotPath, timeseries.PlotOptions{
				XAxis:       xField,
				SeriesAxes:  seriesAxes,
				YField:      yField,
				Select:      experiment.Partial(selectLabels),
				Interval:    interval,
				MinOverride: minPtr,
				MaxOverride: maxPtr,
			}, onlyPlot, onlyWrapper)
		},
	}

	timeseriesCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Snapshot file (.json.gz) to plot")
	timeseriesCmd.Flags().StringVar(&xField, "x", "sec", "X-axis key axis")
	timeseriesCmd.Flags().StringVar(&yField, "y", "", "Y-axis metric")
	timeseriesCmd.Flags().StringSliceVar(&seriesAxes, "series", []string{"sched"}, "Key axes that tell the lines apart")
	timeseriesCmd.Flags().StringToStringVar(&selectLabels, "select", nil, "Only plot entries with these labels, e.g. bound=io")
	timeseriesCmd.Flags().Float64Var(&interval, "interval", 0, "Aggregation interval in x units (0 = no aggregation)")
	timeseriesCmd.Flags().Float64Var(&minVal, "min", 0, "Minimum Y-axis value")
	timeseriesCmd.Flags().Float64Var(&maxVal, "max", 0, "Maximum Y-axis value")
	timeseriesCmd.Flags().BoolVar(&onlyPlot, "plot", false, "Print only the plot file (TikZ)")
	timeseriesCmd.Flags().BoolVar(&onlyWrapper, "wrapper", false, "Print only the wrapper file (LaTeX)")
	timeseriesCmd.MarkFlagRequired("snapshot")
	timeseriesCmd.MarkFlagRequired("y")

	timeseriesCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		minSet = cmd.Flags().Changed("min")
		maxSet = cmd.Flags().Changed("max")
		return nil
	}

	plotCmd.AddCommand(timeseriesCmd)
	return plotCmd
}

func generateTimeseriesPlot(snapshotPath string, opts timeseries.PlotOptions, onlyPlot, onlyWrapper bool) error {
	logger := logging.GetLogger()
	logger.WithFields(logrus.Fields{
		"snapshot": snapshotPath,
		"x_field":  opts.XAxis,
		"y_field":  opts.YField,
		"interval": opts.Interval,
	}).Debug("Generating timeseries plot")

	snap, err := database.ReadSnapshot(snapshotPath)
	if err != nil {
		logger.WithError(err).Error("Failed to read snapshot")
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	table, err := snap.ToTable()
	if err != nil {
		return fmt.Errorf("failed to rebuild table: %w", err)
	}

	plotMgr := plot.NewPlotManager()
	plotTikz, wrapperTex, err := plotMgr.GenerateTimeseriesPlot(table, opts)
	if err != nil {
		logger.WithError(err).Error("Failed to generate plot")
		return fmt.Errorf("failed to generate plot: %w", err)
	}

	// Determine what to print
	showPlot := !onlyWrapper
	showWrapper := !onlyPlot

	if showPlot {
		fmt.Println(plotTikz)
		if showWrapper {
			fmt.Println()
		}
	}

	if showWrapper {
		fmt.Println(wrapperTex)
	}

	logger.Debug("Timeseries plot generated successfully")
	return nil
}
