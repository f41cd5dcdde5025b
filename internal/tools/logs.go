package tools

import (
	"benchsheet/internal/dataframe"
	"benchsheet/internal/dataparser"
	"benchsheet/internal/experiment"
	"benchsheet/internal/extractors"
	"benchsheet/internal/plot"
	"benchsheet/internal/sheet"
)

// Tools over "<sched>_<bound>..." named logs, one sheet per bound.

var (
	fioDefaultMetrics = []string{"read_bw_mbps", "write_bw_mbps", "read_iops", "write_iops", "lat_avg_us"}

	ycsbDefaultMetrics = []string{"OVERALL_Throughput(ops/sec)"}

	filebenchDefaultMetrics = []string{
		"ops", "ops_per_sec", "rd_ops_per_sec", "wr_ops_per_sec", "mb_per_sec", "ms_per_op", "cpu_us_per_op", "latency_us",
	}

	vmstatDefaultMetrics = []string{
		"pgfault", "pgmajfault", "pgpgin", "pgpgout", "nr_dirtied", "nr_written", "pswpin", "pswpout",
		"pgpgin_bytes", "pgpgout_bytes",
	}

	cachestatDefaultMetrics = []string{"hits", "misses", "hitratio_pct"}
)

// pageBytes is the size of the blocks /proc/vmstat counts pgpgin and pgpgout in.
const pageBytes = 1024

func init() {
	register(Tool{
		Name:          "fio",
		Short:         "Summarize fio JSON logs per scheduler and bound",
		Long:          "Reads <sched>_<bound>.log or .json fio reports and writes one sheet per bound with a row per scheduler.",
		DefaultOutput: "fio_summary.xlsx",
		Flags:         []string{FlagPercentiles},
		Jobs:          fioJobs,
	})
	register(Tool{
		Name:          "ycsb",
		Short:         "Summarize YCSB logs per scheduler, bound and phase",
		DefaultOutput: "ycsb_summary.xlsx",
		Jobs: func(opts Options) ([]Job, error) {
			return phaseJobs("ycsb", extractors.YCSB{}, opts.metrics("ycsb", ycsbDefaultMetrics)), nil
		},
	})
	register(Tool{
		Name:          "filebench",
		Short:         "Summarize filebench IO summaries per scheduler, bound and phase",
		DefaultOutput: "filebench_summary.xlsx",
		Jobs: func(opts Options) ([]Job, error) {
			return phaseJobs("filebench", extractors.Filebench{}, opts.metrics("filebench", filebenchDefaultMetrics)), nil
		},
	})
	register(Tool{
		Name:          "vmstat",
		Short:         "Summarize /proc/vmstat before and after snapshots",
		Long:          "Pairs <sched>_<bound>_vmstat_before.log with its _after.log and writes the counter deltas.",
		DefaultOutput: "vmstat_summary.xlsx",
		Jobs:          vmstatJobs,
	})
	register(Tool{
		Name:          "perf",
		Short:         "Convert perf stat -I logs to per-second timelines",
		DefaultOutput: "perf_timeline.xlsx",
		Flags:         []string{FlagTikz},
		Jobs:          perfJobs,
	})
	register(Tool{
		Name:          "cachestat",
		Short:         "Convert cachestat logs to timelines, one sheet per bound",
		DefaultOutput: "cachestat_timeline.xlsx",
		Flags:         []string{FlagTikz},
		Jobs:          cachestatJobs,
	})
}

func fioJobs(opts Options) ([]Job, error) {
	percentiles := opts.percentiles("fio", extractors.DefaultFioPercentiles)
	if err := validPercentiles(percentiles); err != nil {
		return nil, err
	}
	defaults := concat(fioDefaultMetrics, percentileMetrics("", percentiles), []string{"max_lat_us"})

	return []Job{{
		Name: "fio",
		Load: source(dataparser.Source{
			Name:       "fio",
			Grammar:    experiment.SchedBound("", false),
			Extractor:  extractors.FioJSON{},
			Extensions: []string{".log", ".json"},
			Hint: func(experiment.Key) extractors.Hint {
				return extractors.Hint{Percentiles: percentiles}
			},
		}),
		Layout: sheet.Layout{
			Sheet:   []string{"bound"},
			Rows:    []string{"sched"},
			Columns: []string{sheet.MetricAxis},
			Metrics: opts.metrics("fio", defaults),
		},
	}}, nil
}

func phaseJobs(name string, e extractors.Extractor, metrics []string) []Job {
	return []Job{{
		Name: name,
		Load: source(dataparser.Source{
			Name:       name,
			Grammar:    experiment.SchedBoundPhase(),
			Extractor:  e,
			Extensions: []string{".log"},
		}),
		Layout: sheet.Layout{
			Sheet:        []string{"bound"},
			Rows:         []string{"sched", "phase"},
			Columns:      []string{sheet.MetricAxis},
			Metrics:      metrics,
			ObservedRows: true,
			SheetName:    name,
		},
	}}
}

func vmstatJobs(opts Options) ([]Job, error) {
	return []Job{{
		Name: "vmstat",
		Load: func(dir string) (*dataframe.Table, dataparser.Report, error) {
			return dataparser.LoadPairs(dir, dataparser.PairSource{
				Name:      "vmstat",
				Tag:       "vmstat",
				Grammar:   experiment.SchedBound("", false),
				Extractor: extractors.ProcVmstat{},
				Derive:    vmstatBytes,
			})
		},
		Layout: sheet.Layout{
			Sheet:   []string{"bound"},
			Rows:    []string{"sched"},
			Columns: []string{sheet.MetricAxis},
			Metrics: opts.metrics("vmstat", vmstatDefaultMetrics),
		},
	}}, nil
}

// vmstatBytes adds byte counts for the paging counters. A counter missing
// from the delta leaves its byte count missing too.
func vmstatBytes(s dataframe.Sample) dataframe.Sample {
	b := dataframe.NewBuilder().Merge(s)
	for _, m := range []string{"pgpgin", "pgpgout"} {
		if v, ok := s.Get(m).Get(); ok {
			b.SetFloat(m+"_bytes", v*pageBytes)
		} else {
			b.SetMissing(m + "_bytes")
		}
	}
	return b.Build()
}

func perfJobs(opts Options) ([]Job, error) {
	metrics := opts.metrics("perf", nil)
	return []Job{{
		Name: "perf",
		Load: source(dataparser.Source{
			Name:       "perf",
			Grammar:    experiment.SchedBound("perf_stat", false),
			Extractor:  extractors.PerfStat{},
			Extensions: []string{".log"},
		}),
		Layout: sheet.Layout{
			Sheet:        []string{"bound"},
			Rows:         []string{extractors.SecondAxis.Name},
			Columns:      []string{"sched", sheet.MetricAxis},
			Metrics:      metrics,
			FlatColumns:  true,
			Separator:    ".",
			ObservedRows: true,
		},
		Timeline: &plot.Timeline{
			XAxis:      extractors.SecondAxis.Name,
			SeriesAxes: []string{"sched"},
			SplitAxis:  "bound",
			Metrics:    metrics,
		},
	}}, nil
}

func cachestatJobs(opts Options) ([]Job, error) {
	metrics := opts.metrics("cachestat", cachestatDefaultMetrics)
	return []Job{{
		Name: "cachestat",
		Load: source(dataparser.Source{
			Name:       "cachestat",
			Grammar:    experiment.SchedBound("cachestat", false),
			Extractor:  extractors.Cachestat{},
			Recursive:  true,
			Extensions: []string{".log"},
		}),
		Layout: sheet.Layout{
			Sheet:        []string{"bound"},
			Rows:         []string{extractors.SecondAxis.Name},
			Columns:      []string{"sched", sheet.MetricAxis},
			Metrics:      metrics,
			FlatColumns:  true,
			ObservedRows: true,
		},
		Timeline: &plot.Timeline{
			XAxis:      extractors.SecondAxis.Name,
			SeriesAxes: []string{"sched"},
			SplitAxis:  "bound",
			Metrics:    metrics,
		},
	}}, nil
}
