package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"benchsheet/internal/config"
	"benchsheet/internal/database"
	"benchsheet/internal/experiment"
	"benchsheet/internal/logging"
	"benchsheet/internal/sheet"
	"benchsheet/internal/tools"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// outputFlags are shared by every command that writes a workbook.
type outputFlags struct {
	output      string
	configFile  string
	csvDir      string
	snapshot    bool
	snapshotDir string
	influx      bool
}

func (f *outputFlags) register(cmd *cobra.Command, defaultOutput string) {
	cmd.Flags().StringVarP(&f.output, "output", "o", defaultOutput, "Output XLSX path")
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&f.csvDir, "csv-dir", "", "Also write every sheet as CSV into this directory")
	cmd.Flags().BoolVar(&f.snapshot, "snapshot", false, "Also write a gzip JSON snapshot of every table")
	cmd.Flags().StringVar(&f.snapshotDir, "snapshot-dir", "", "Snapshot directory (default: config snapshot.dir, $BENCHSHEET_SNAPSHOT_DIR or ./snapshots)")
	cmd.Flags().BoolVar(&f.influx, "influx", false, "Also export every table to InfluxDB")
}

func (f *outputFlags) emitOptions(cfg *config.Config) (tools.EmitOptions, error) {
	opts := tools.EmitOptions{
		Output: f.output,
		CSVDir: f.csvDir,
		Config: cfg,
	}
	if f.snapshot {
		opts.SnapshotDir = f.snapshotDir
		if opts.SnapshotDir == "" {
			opts.SnapshotDir = cfg.Snapshot.Dir
		}
		if opts.SnapshotDir == "" {
			opts.SnapshotDir = database.DefaultSnapshotDir()
		}
	}
	if f.influx {
		influx, err := influxConfig(cfg.Influx)
		if err != nil {
			return opts, err
		}
		opts.Influx = &influx
	}
	return opts, nil
}

// influxConfig fills settings missing from the config file from the
// environment.
func influxConfig(cfg config.InfluxConfig) (config.InfluxConfig, error) {
	logger := logging.GetLogger()
	env := []struct {
		name  string
		field *string
	}{
		{"INFLUXDB_HOST", &cfg.Host},
		{"INFLUXDB_TOKEN", &cfg.Token},
		{"INFLUXDB_ORG", &cfg.Org},
		{"INFLUXDB_BUCKET", &cfg.Bucket},
	}
	var missing []string
	for _, v := range env {
		if *v.field == "" {
			*v.field = os.Getenv(v.name)
		}
		if *v.field == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		logger.WithField("missing_vars", missing).Error("Missing InfluxDB settings")
		return cfg, fmt.Errorf("missing InfluxDB settings: %v. Set them in the config influx section or the environment", missing)
	}
	return cfg, nil
}

func newToolCommand(t tools.Tool) *cobra.Command {
	var (
		out         outputFlags
		input       string
		percentiles []string
		blockSizes  []string
		cpuGroups   []string
		opcodes     []string
		tikzDir     string
	)

	cmd := &cobra.Command{
		Use:   t.Name,
		Short: t.Short,
		Long:  t.Long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(out.configFile)
			if err != nil {
				return err
			}
			if input == "" {
				input = cfg.InputDir()
			}
			if st, err := os.Stat(input); err != nil || !st.IsDir() {
				return fmt.Errorf("input directory %s not found", input)
			}

			opts := tools.Options{
				Config:      cfg,
				Percentiles: percentiles,
				BlockSizes:  blockSizes,
				Opcodes:     opcodes,
			}
			if len(cpuGroups) > 0 {
				opts.CPUGroups = make(map[string][]int, len(cpuGroups))
				for _, spec := range cpuGroups {
					cpus, err := config.ParseCPUSpec(spec)
					if err != nil {
						return fmt.Errorf("invalid cpu group %q: %w", spec, err)
					}
					opts.CPUGroups[spec] = cpus
				}
			}

			emit, err := out.emitOptions(cfg)
			if err != nil {
				return err
			}
			emit.TikzDir = tikzDir

			res, err := tools.Run(t, input, opts)
			if err != nil {
				return err
			}
			return emitResult(cmd.Context(), res, emit)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input directory (default: config default_input_dir or .)")
	out.register(cmd, t.DefaultOutput)
	if t.Accepts(tools.FlagPercentiles) {
		cmd.Flags().StringSliceVar(&percentiles, tools.FlagPercentiles, nil, "Latency percentiles to extract, e.g. 99,99.99")
	}
	if t.Accepts(tools.FlagBlockSizes) {
		cmd.Flags().StringSliceVar(&blockSizes, tools.FlagBlockSizes, nil, "Keep only these block sizes, e.g. 4k,128k (default: all)")
	}
	if t.Accepts(tools.FlagCPUGroups) {
		cmd.Flags().StringArrayVar(&cpuGroups, tools.FlagCPUGroups, nil, "CPU group as an ordered CPU list, e.g. 0,2,4,8 (repeatable)")
	}
	if t.Accepts(tools.FlagOpcodes) {
		cmd.Flags().StringSliceVar(&opcodes, tools.FlagOpcodes, nil, "Opcodes to keep (default: READ,WRITE)")
	}
	if t.Accepts(tools.FlagTikz) {
		cmd.Flags().StringVar(&tikzDir, tools.FlagTikz, "", "Also write TikZ timeline plots into this directory")
	}
	return cmd
}

func emitResult(ctx context.Context, res *tools.Result, opts tools.EmitOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sum, err := tools.Emit(ctx, res, opts)
	if err != nil {
		return err
	}
	logging.GetLogger().WithFields(logrus.Fields{
		"output": sum.Workbook,
		"sheets": strings.Join(sum.Sheets, ","),
	}).Info("Done")
	return nil
}

// parseAxis reads "name" or "name:kind", kind being one of text, integer,
// decimal_size, binary_size or cpuset.
func parseAxis(s string) (experiment.Axis, error) {
	name, kind, _ := strings.Cut(strings.TrimSpace(s), ":")
	if name == "" {
		return experiment.Axis{}, fmt.Errorf("empty axis name in %q", s)
	}
	return experiment.Axis{Name: name, Kind: experiment.ParseKind(kind)}, nil
}

func newMergeCommand() *cobra.Command {
	var (
		out        outputFlags
		groupAxes  []string
		columnAxis string
		grouped    string
		metrics    []string
	)

	cmd := &cobra.Command{
		Use:   "merge label=path [label=path...]",
		Short: "Merge summary workbooks or snapshots side by side",
		Long:  "Reads stacked-block workbooks (or grouped-header workbooks with --grouped-sheet, or .json.gz snapshots) and writes one sheet per group with one block per input label.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(out.configFile)
			if err != nil {
				return err
			}
			inputs, err := tools.ParseMergeInputs(args)
			if err != nil {
				return err
			}

			header := sheet.Header{}
			for _, a := range groupAxes {
				axis, err := parseAxis(a)
				if err != nil {
					return err
				}
				header.Group = append(header.Group, axis)
			}
			if header.Column, err = parseAxis(columnAxis); err != nil {
				return err
			}

			if len(metrics) == 0 {
				metrics = cfg.MetricList("merge", nil)
			}

			emit, err := out.emitOptions(cfg)
			if err != nil {
				return err
			}
			res, err := tools.Merge(inputs, tools.MergeOptions{
				Header:       header,
				GroupedSheet: grouped,
				Metrics:      metrics,
			})
			if err != nil {
				return err
			}
			return emitResult(cmd.Context(), res, emit)
		},
	}

	out.register(cmd, "merged_results.xlsx")
	cmd.Flags().StringSliceVar(&groupAxes, "group-axes", []string{"workload:text", "bs:binary_size"}, "Axes encoded in block titles, joined by _")
	cmd.Flags().StringVar(&columnAxis, "column-axis", "numjobs:integer", "Axis encoded in the header row")
	cmd.Flags().StringVar(&grouped, "grouped-sheet", "", "Read grouped-header workbooks from this sheet, e.g. fio_summary")
	cmd.Flags().StringSliceVar(&metrics, "metrics", nil, "Metric rows to keep, in order (default: all)")
	return cmd
}
