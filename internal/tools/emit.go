package tools

import (
	"context"
	"fmt"
	"time"

	"benchsheet/internal/config"
	"benchsheet/internal/database"
	"benchsheet/internal/logging"
	"benchsheet/internal/plot"
	"benchsheet/internal/sheet"
	"benchsheet/internal/storage"

	"github.com/sirupsen/logrus"
)

// EmitOptions lists where a result goes besides the workbook.
type EmitOptions struct {
	Output string
	// CSVDir also writes every sheet as CSV when set.
	CSVDir string
	// SnapshotDir writes a gzip JSON snapshot per table when set.
	SnapshotDir string
	// Influx exports every table to InfluxDB when set.
	Influx *config.InfluxConfig
	// TikzDir writes timeline plots for jobs that define one when set.
	TikzDir string
	Config  *config.Config
}

// Summary is what Emit wrote.
type Summary struct {
	Workbook  string
	Sheets    []string
	CSV       []string
	Snapshots []string
	Plots     []string
	RunID     int
}

// tableTool names the per-table exports of a result.
func (r *Result) tableTool(out Output) string {
	if len(r.Outputs) == 1 {
		return r.Tool
	}
	return r.Tool + "-" + out.Table.Name()
}

// Emit writes the workbook first and then every optional export. The
// workbook is complete on disk before any export runs.
func Emit(ctx context.Context, res *Result, opts EmitOptions) (*Summary, error) {
	logger := logging.GetLogger()
	sum := &Summary{Workbook: opts.Output}

	w, err := sheet.NewWriter()
	if err != nil {
		return nil, err
	}
	defer w.Close()

	grids := make([][]sheet.Grid, len(res.Outputs))
	for i, out := range res.Outputs {
		g, err := w.Write(out.Table, out.Job.Layout)
		if err != nil {
			return nil, err
		}
		grids[i] = g
	}
	if err := w.SaveAs(opts.Output); err != nil {
		return nil, err
	}
	sum.Sheets = w.Sheets()

	if opts.CSVDir != "" {
		checksum := config.ChecksumOrEmpty(opts.Config)
		for i, out := range res.Outputs {
			export := &storage.Export{
				Tool:     res.tableTool(out),
				InputDir: res.InputDir,
				Created:  time.Now(),
				Entries:  out.Table.Len(),
				Checksum: checksum,
				Grids:    grids[i],
			}
			paths, err := export.ExportToCSV(opts.CSVDir)
			if err != nil {
				return nil, fmt.Errorf("failed to export CSV: %w", err)
			}
			sum.CSV = append(sum.CSV, paths...)
		}
	}

	if opts.SnapshotDir != "" {
		for _, out := range res.Outputs {
			snap := database.BuildSnapshot(res.tableTool(out), res.InputDir, out.Table, opts.Config)
			path, err := database.WriteSnapshot(opts.SnapshotDir, snap)
			if err != nil {
				return nil, fmt.Errorf("failed to write snapshot: %w", err)
			}
			sum.Snapshots = append(sum.Snapshots, path)
		}
	}

	if opts.TikzDir != "" {
		pm := plot.NewPlotManager()
		for _, out := range res.Outputs {
			if out.Job.Timeline == nil {
				continue
			}
			paths, err := pm.WriteTimelines(opts.TikzDir, out.Table, *out.Job.Timeline)
			if err != nil {
				return nil, fmt.Errorf("failed to write plots: %w", err)
			}
			sum.Plots = append(sum.Plots, paths...)
		}
	}

	if opts.Influx != nil {
		runID, err := exportInflux(ctx, res, *opts.Influx, opts.Config)
		if err != nil {
			return nil, err
		}
		sum.RunID = runID
	}

	logger.WithFields(logrus.Fields{
		"tool":      res.Tool,
		"workbook":  sum.Workbook,
		"sheets":    len(sum.Sheets),
		"csv":       len(sum.CSV),
		"snapshots": len(sum.Snapshots),
		"plots":     len(sum.Plots),
	}).Info("Summary written")
	return sum, nil
}

func exportInflux(ctx context.Context, res *Result, cfg config.InfluxConfig, appCfg *config.Config) (int, error) {
	logger := logging.GetLogger()
	client, err := database.NewInfluxDBClient(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	defer client.Close()

	last, err := client.GetLastRunID(ctx, res.Tool)
	if err != nil {
		logger.WithError(err).Warn("Could not read the last run id, starting at 1")
		last = 0
	}
	runID := last + 1

	ts := time.Now()
	entries := 0
	for _, out := range res.Outputs {
		if err := client.WriteTable(ctx, out.Table, runID, ts); err != nil {
			return 0, err
		}
		entries += out.Table.Len()
	}

	meta := database.CollectRunMetadata(runID, res.Tool, res.InputDir, res.Outputs[0].Table, appCfg)
	meta.Entries = entries
	if err := client.WriteMetadata(ctx, meta); err != nil {
		return 0, err
	}

	logger.WithFields(logrus.Fields{
		"tool":   res.Tool,
		"run_id": runID,
	}).Info("Exported run to InfluxDB")
	return runID, nil
}
