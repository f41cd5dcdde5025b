// Package plot renders timeline tables as pgfplots figures.
package plot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
	"benchsheet/internal/logging"
	"benchsheet/internal/plot/timeseries"

	"github.com/sirupsen/logrus"
)

// Timeline says how a timeline table splits into figures: one figure per
// label of SplitAxis and metric, one line per SeriesAxes tuple.
type Timeline struct {
	XAxis      string
	SeriesAxes []string
	SplitAxis  string
	Metrics    []string
	Interval   float64
}

type PlotManager struct {
	timeseriesGenerator *timeseries.TimeseriesPlotGenerator
	logger              *logrus.Logger
}

func NewPlotManager() *PlotManager {
	logger := logging.GetLogger()
	return &PlotManager{
		timeseriesGenerator: timeseries.NewTimeseriesPlotGenerator(logger),
		logger:              logger,
	}
}

func (pm *PlotManager) GenerateTimeseriesPlot(table *dataframe.Table, opts timeseries.PlotOptions) (plotTikz, wrapperTex string, err error) {
	return pm.timeseriesGenerator.Generate(table, opts)
}

// WriteTimelines writes a .tikz plot and a .tex wrapper per figure into dir
// and returns the plot paths. Metrics with no data under a split label are
// skipped.
func (pm *PlotManager) WriteTimelines(dir string, table *dataframe.Table, tl Timeline) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}

	splits := []string{""}
	if tl.SplitAxis != "" {
		d, ok := table.Domain(tl.SplitAxis)
		if !ok {
			return nil, fmt.Errorf("table %s has no axis %s", table.Name(), tl.SplitAxis)
		}
		splits = d.Labels
	}
	metrics := tl.Metrics
	if len(metrics) == 0 {
		metrics = table.Metrics()
	}

	var written []string
	for _, split := range splits {
		sel := experiment.Partial{}
		parts := []string{table.Name()}
		if tl.SplitAxis != "" {
			sel[tl.SplitAxis] = split
			parts = append(parts, split)
		}
		for _, metric := range metrics {
			base := fileName(append(append([]string(nil), parts...), metric))
			plotTikz, wrapperTex, err := pm.GenerateTimeseriesPlot(table, timeseries.PlotOptions{
				XAxis:      tl.XAxis,
				SeriesAxes: tl.SeriesAxes,
				YField:     metric,
				Select:     sel,
				Interval:   tl.Interval,
				FileName:   base + ".tikz",
			})
			if err != nil {
				pm.logger.WithFields(logrus.Fields{
					"split":  split,
					"metric": metric,
				}).WithError(err).Debug("Skipping plot")
				continue
			}

			plotPath := filepath.Join(dir, base+".tikz")
			if err := os.WriteFile(plotPath, []byte(plotTikz), 0o644); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", plotPath, err)
			}
			wrapperPath := filepath.Join(dir, base+".tex")
			if err := os.WriteFile(wrapperPath, []byte(wrapperTex), 0o644); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", wrapperPath, err)
			}
			written = append(written, plotPath)
		}
	}

	pm.logger.WithFields(logrus.Fields{
		"dir":   dir,
		"plots": len(written),
	}).Info("Wrote timeline plots")
	return written, nil
}

func fileName(parts []string) string {
	name := strings.Join(parts, "-")
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':', '%', '#':
			return '_'
		}
		return r
	}, name)
}
