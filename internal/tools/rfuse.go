package tools

import (
	"sort"
	"strings"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/dataparser"
	"benchsheet/internal/experiment"
	"benchsheet/internal/extractors"
	"benchsheet/internal/logging"
	"benchsheet/internal/sheet"

	"github.com/sirupsen/logrus"
)

// Tools over FUSE ring channel traces.

// breakdownSheetRows is where breakdown tables continue on a new sheet.
const breakdownSheetRows = 1000000

// topPairs is how many mismatching (core, ring) pairs the dmesg summary logs.
const topPairs = 10

func init() {
	register(Tool{
		Name:          "dmesg",
		Short:         "Count ring channel selections per CPU core from dmesg captures",
		Long:          "Reads kernel logs with \"current CPU core id=N, selected ring channel id=M\" lines and counts every (core, ring) pair, flagging pairs where the two differ.",
		DefaultOutput: "dmesg_pairs.xlsx",
		Jobs:          dmesgJobs,
	})
	register(Tool{
		Name:          "breakdown",
		Short:         "Convert per-request FUSE latency CSVs to sheets",
		Long:          "Keeps the requested opcodes and writes every *_us column, ordered by timestamp, splitting over several sheets past one million rows.",
		DefaultOutput: "breakdown.xlsx",
		Flags:         []string{FlagOpcodes},
		Jobs:          breakdownJobs,
	})
}

func dmesgJobs(opts Options) ([]Job, error) {
	return []Job{{
		Name: "dmesg",
		Load: source(dataparser.Source{
			Name:      "dmesg",
			Grammar:   experiment.StemOnly(),
			Extractor: extractors.DmesgRing{},
		}),
		Layout: sheet.Layout{
			Rows:         []string{"name", extractors.CoreAxis.Name, extractors.RingAxis.Name},
			Columns:      []string{sheet.MetricAxis},
			Metrics:      opts.metrics("dmesg", []string{"count", "mismatch", "mismatch_pct"}),
			ObservedRows: true,
			SheetName:    "pairs",
		},
		Summary: logRingMismatch,
	}}, nil
}

// logRingMismatch logs the totals of every capture and its most frequent
// core/ring pairs.
func logRingMismatch(table *dataframe.Table) {
	logger := logging.GetLogger()
	all := extractors.AllLabel
	for _, total := range table.Query(experiment.Partial{extractors.CoreAxis.Name: all}) {
		name, _ := total.Key.Label("name")
		logger.WithFields(logrus.Fields{
			"capture":      name,
			"total":        total.Sample.Get("count").Or(0),
			"mismatch":     total.Sample.Get("mismatch").Or(0),
			"mismatch_pct": total.Sample.Get("mismatch_pct").Or(0),
		}).Info("Ring channel selections")

		for _, e := range topRingPairs(table, name, topPairs) {
			core, _ := e.Key.Label(extractors.CoreAxis.Name)
			ring, _ := e.Key.Label(extractors.RingAxis.Name)
			logger.WithFields(logrus.Fields{
				"capture":  name,
				"core":     core,
				"ring":     ring,
				"count":    e.Sample.Get("count").Or(0),
				"mismatch": e.Sample.Get("mismatch").Or(0) > 0,
			}).Info("Top core/ring pair")
		}
	}
}

// topRingPairs returns the n most frequent (core, ring) pairs of a capture,
// matching or not. Ties keep table order.
func topRingPairs(table *dataframe.Table, name string, n int) []dataframe.Entry {
	var pairs []dataframe.Entry
	for _, e := range table.Query(experiment.Partial{"name": name}) {
		if core, _ := e.Key.Label(extractors.CoreAxis.Name); core != extractors.AllLabel {
			pairs = append(pairs, e)
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Sample.Get("count").Or(0) > pairs[j].Sample.Get("count").Or(0)
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs
}

func breakdownJobs(opts Options) ([]Job, error) {
	opcodes := opts.Opcodes
	if len(opcodes) == 0 {
		opcodes = extractors.DefaultOpcodes
	}
	upper := make([]string, len(opcodes))
	for i, op := range opcodes {
		upper[i] = strings.ToUpper(strings.TrimSpace(op))
	}

	return []Job{{
		Name: "breakdown",
		Load: source(dataparser.Source{
			Name:       "breakdown",
			Grammar:    experiment.StemOnly(),
			Extractor:  extractors.Breakdown{},
			Extensions: []string{".csv"},
			Hint: func(experiment.Key) extractors.Hint {
				return extractors.Hint{Opcodes: upper}
			},
		}),
		Layout: sheet.Layout{
			Rows: []string{
				"name",
				extractors.RiqAxis.Name,
				extractors.UniqueAxis.Name,
				extractors.SeqAxis.Name,
				extractors.TsAxis.Name,
				extractors.OpcodeAxis.Name,
			},
			Columns:      []string{sheet.MetricAxis},
			Metrics:      opts.metrics("breakdown", nil),
			ObservedRows: true,
			SheetName:    strings.Join(upper, "_"),
			MaxRows:      breakdownSheetRows,
		},
	}}, nil
}
