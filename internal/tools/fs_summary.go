package tools

import (
	"strings"

	"benchsheet/internal/dataparser"
	"benchsheet/internal/experiment"
	"benchsheet/internal/extractors"
	"benchsheet/internal/sheet"
)

// fs-summary reads one directory per workload, each holding fio.log,
// iostat.log, vmstat.log and mpstat.log. Every file kind lands on the sheet
// named after it.

var fsFioDefaultMetrics = []string{"bw_mbps", "lat_avg_us"}

func init() {
	register(Tool{
		Name:          "fs-summary",
		Short:         "Summarize fio, iostat, vmstat and mpstat logs of per-workload directories",
		Long:          "Reads <workload>/fio.log, iostat.log, vmstat.log and mpstat.log and writes the sheets fio, iostat, vmstat and mpstat.",
		DefaultOutput: "fs_summary.xlsx",
		Jobs:          fsSummaryJobs,
	})
}

// fsDirection picks the fio section from a workload directory name such as
// "4KB-rand-read".
func fsDirection(workload string) extractors.Direction {
	w := strings.ToLower(workload)
	switch {
	case strings.Contains(w, "write"):
		return extractors.Write
	case strings.Contains(w, "read"):
		return extractors.Read
	}
	return extractors.AnyDirection
}

func fsSource(stem string, e extractors.Extractor) dataparser.Source {
	return dataparser.Source{
		Name:       stem,
		Grammar:    experiment.WorkloadDir(),
		Extractor:  e,
		Recursive:  true,
		Extensions: []string{".log"},
		Accept: func(k experiment.Key) bool {
			s, _ := k.Label("source")
			return s == stem
		},
	}
}

func fsSummaryJobs(opts Options) ([]Job, error) {
	fio := fsSource("fio", extractors.FioText{})
	fio.Hint = func(k experiment.Key) extractors.Hint {
		w, _ := k.Label("workload")
		return extractors.Hint{Direction: fsDirection(w)}
	}

	timeline := func(stem string, e extractors.Extractor, metrics []string) Job {
		return Job{
			Name: stem,
			Load: source(fsSource(stem, e)),
			Layout: sheet.Layout{
				Sheet:        []string{"source"},
				Rows:         []string{"workload", extractors.TimeAxis.Name},
				Columns:      []string{sheet.MetricAxis},
				Metrics:      metrics,
				ObservedRows: true,
			},
		}
	}

	return []Job{
		{
			Name: "fio",
			Load: source(fio),
			Layout: sheet.Layout{
				Sheet:   []string{"source"},
				Rows:    []string{"workload"},
				Columns: []string{sheet.MetricAxis},
				Metrics: opts.metrics("fs-summary", fsFioDefaultMetrics),
			},
		},
		timeline("iostat", extractors.Iostat{}, opts.metrics("iostat", nil)),
		timeline("vmstat", extractors.Vmstat{}, opts.metrics("vmstat-timeline", nil)),
		{
			Name: "mpstat",
			Load: source(fsSource("mpstat", extractors.Mpstat{})),
			Layout: sheet.Layout{
				Sheet:        []string{"source"},
				Rows:         []string{"workload", extractors.CPUAxis.Name},
				Columns:      []string{sheet.MetricAxis, extractors.TimeAxis.Name},
				Metrics:      []string{"usage_pct"},
				ObservedRows: true,
			},
		},
	}, nil
}
