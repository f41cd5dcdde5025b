package tools

import (
	"errors"
	"strings"

	"benchsheet/internal/config"
	"benchsheet/internal/dataframe"
	"benchsheet/internal/dataparser"
	"benchsheet/internal/experiment"
	"benchsheet/internal/extractors"
	"benchsheet/internal/sheet"
)

// Tools over fio runs swept across workload, block size, job count and CPU
// placement.

var (
	fioCPUDefaultPercentiles = []string{"95.000000", "99.000000"}
	fioIODefaultPercentiles  = []string{"99.950000", "99.990000"}
	cpuScalingPercentiles    = []string{"99.990000"}
)

func init() {
	register(Tool{
		Name:          "fio-cpu",
		Short:         "Summarize fio text logs into one sheet grouped by workload and block size",
		Long:          "Reads <workload>_<bs>_<numjobs>.log fio text reports. Columns are job counts under a merged <workload>_<bs> header; rows are metrics.",
		DefaultOutput: "fio_summary.xlsx",
		Flags:         []string{FlagPercentiles},
		Jobs:          fioCPUJobs,
	})
	register(Tool{
		Name:          "fio-io",
		Short:         "Summarize fio JSON logs into stacked workload and block size blocks",
		Long:          "Reads <workload>_<bs>_<numjobs>.json fio reports. Each block is titled <workload>_<bs> with metrics as rows and job counts as columns.",
		DefaultOutput: "fio_results.xlsx",
		Flags:         []string{FlagPercentiles},
		Jobs:          fioIOJobs,
	})
	register(Tool{
		Name:          "cpu-scaling",
		Short:         "Summarize fio runs over CPU sets, one sheet per workload and block size",
		Long:          "Reads cpus_<set>/<workload>_bs<bs>_njs<numjobs>.log. Rows are CPU sets, columns are job counts under each metric.",
		DefaultOutput: "cpu_scaling_summary.xlsx",
		Flags:         []string{FlagPercentiles, FlagBlockSizes},
		Jobs:          cpuScalingJobs,
	})
	register(Tool{
		Name:          "fio-affinity",
		Short:         "Summarize fio runs per CPU group",
		Long:          "Reads <cpus>_<workload>_<bs>_<numjobs>.log. A run belongs to a CPU group when it used the first numjobs CPUs of that group.",
		DefaultOutput: "fio_affinity_summary.xlsx",
		Flags:         []string{FlagCPUGroups},
		Jobs:          fioAffinityJobs,
	})
}

// directionHint reads the fio section to use from the workload label.
func directionHint(percentiles []string) func(experiment.Key) extractors.Hint {
	return func(k experiment.Key) extractors.Hint {
		w, _ := k.Label("workload")
		return extractors.Hint{Direction: extractors.DirectionOf(w), Percentiles: percentiles}
	}
}

func fioCPUJobs(opts Options) ([]Job, error) {
	percentiles := opts.percentiles("fio-cpu", fioCPUDefaultPercentiles)
	if err := validPercentiles(percentiles); err != nil {
		return nil, err
	}
	defaults := concat(
		[]string{"iops", "bw_mbps", "lat_avg_us"},
		percentileMetrics("", percentiles),
		[]string{"sys_cpu_pct", "usr_cpu_pct"},
	)
	return []Job{{
		Name: "fio-cpu",
		Load: source(dataparser.Source{
			Name:      "fio-cpu",
			Grammar:   experiment.WorkloadBSNumjobs("log"),
			Extractor: extractors.FioText{},
			Hint:      directionHint(percentiles),
		}),
		Layout: sheet.Layout{
			Rows:      []string{sheet.MetricAxis},
			Columns:   []string{"workload", "bs", "numjobs"},
			Metrics:   opts.metrics("fio-cpu", defaults),
			SheetName: "fio_summary",
		},
	}}, nil
}

func fioIOJobs(opts Options) ([]Job, error) {
	percentiles := opts.percentiles("fio-io", fioIODefaultPercentiles)
	if err := validPercentiles(percentiles); err != nil {
		return nil, err
	}
	defaults := concat(
		[]string{"iops", "bw_mbps", "lat_avg_us"},
		percentileMetrics("", percentiles),
		[]string{"usr_cpu_pct", "sys_cpu_pct"},
	)
	return []Job{{
		Name: "fio-io",
		Load: source(dataparser.Source{
			Name:      "fio-io",
			Grammar:   experiment.WorkloadBSNumjobs("json"),
			Extractor: extractors.FioJSON{},
			Hint:      directionHint(percentiles),
		}),
		Layout: IOBlockLayout(opts.metrics("fio-io", defaults)),
	}}, nil
}

// IOBlockLayout is the stacked-block layout written by fio-io and read back
// by merge: one block per workload and block size, metrics down, job counts
// across.
func IOBlockLayout(metrics []string) sheet.Layout {
	return sheet.Layout{
		Block:     []string{"workload", "bs"},
		Rows:      []string{sheet.MetricAxis},
		Columns:   []string{"numjobs"},
		Metrics:   metrics,
		SheetName: "fio_results",
	}
}

func cpuScalingJobs(opts Options) ([]Job, error) {
	percentiles := opts.percentiles("cpu-scaling", cpuScalingPercentiles)
	if err := validPercentiles(percentiles); err != nil {
		return nil, err
	}
	defaults := concat([]string{"iops"}, percentileMetrics("", percentiles))

	src := dataparser.Source{
		Name:      "cpu-scaling",
		Grammar:   experiment.CPUDirWorkload(),
		Extractor: extractors.FioText{},
		Recursive: true,
		Hint:      directionHint(percentiles),
	}
	if len(opts.BlockSizes) > 0 {
		keep := make(map[string]bool, len(opts.BlockSizes))
		for _, bs := range opts.BlockSizes {
			keep[strings.ToLower(strings.TrimSpace(bs))] = true
		}
		src.Accept = func(k experiment.Key) bool {
			bs, _ := k.Label("bs")
			return keep[strings.ToLower(bs)]
		}
	}

	return []Job{{
		Name: "cpu-scaling",
		Load: source(src),
		Layout: sheet.Layout{
			Sheet:   []string{"workload", "bs"},
			Rows:    []string{"cpus"},
			Columns: []string{sheet.MetricAxis, "numjobs"},
			Metrics: opts.metrics("cpu-scaling", defaults),
		},
	}}, nil
}

func fioAffinityJobs(opts Options) ([]Job, error) {
	groups := opts.groups()
	if len(groups) == 0 {
		groups = config.Default().Groups
	}
	for label, cpus := range groups {
		if len(cpus) == 0 {
			return nil, errors.New("cpu group " + label + " is empty")
		}
	}

	return []Job{{
		Name: "fio-affinity",
		Load: source(dataparser.Source{
			Name:      "fio-affinity",
			Grammar:   experiment.CPUsWorkloadBSNumjobs(),
			Extractor: extractors.FioText{},
			Hint:      directionHint(nil),
		}),
		Post: func(t *dataframe.Table) (*dataframe.Table, error) {
			return dataparser.GroupByCPUs(t, groups), nil
		},
		Layout: sheet.Layout{
			Block:     []string{dataparser.GroupAxis.Name, "workload", "bs"},
			Rows:      []string{sheet.MetricAxis},
			Columns:   []string{"numjobs"},
			Metrics:   opts.metrics("fio-affinity", []string{"iops", "bw_mbps", "lat_avg_us"}),
			SheetName: "summary",
		},
	}}, nil
}
