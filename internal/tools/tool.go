// Package tools wires grammars, extractors and layouts into the summary
// tools exposed on the command line.
package tools

import (
	"errors"
	"fmt"
	"sort"

	"benchsheet/internal/config"
	"benchsheet/internal/dataframe"
	"benchsheet/internal/dataparser"
	"benchsheet/internal/extractors"
	"benchsheet/internal/logging"
	"benchsheet/internal/plot"
	"benchsheet/internal/sheet"

	"github.com/sirupsen/logrus"
)

// Flags a tool accepts on top of the common ones.
const (
	FlagPercentiles = "percentiles"
	FlagBlockSizes  = "bs"
	FlagCPUGroups   = "cpu-groups"
	FlagOpcodes     = "opcodes"
	FlagTikz        = "tikz"
)

// Options carries the per-run settings of a tool.
type Options struct {
	Config *config.Config
	// Percentiles overrides the configured percentile list.
	Percentiles []string
	// BlockSizes keeps only these block sizes where a tool supports it.
	BlockSizes []string
	// CPUGroups overrides the configured CPU groups.
	CPUGroups map[string][]int
	Opcodes   []string
}

func (o Options) percentiles(tool string, def []string) []string {
	if len(o.Percentiles) > 0 {
		return o.Percentiles
	}
	return o.Config.PercentileList(tool, def)
}

func (o Options) metrics(tool string, def []string) []string {
	return o.Config.MetricList(tool, def)
}

func (o Options) groups() map[string][]int {
	if len(o.CPUGroups) > 0 {
		return o.CPUGroups
	}
	if o.Config != nil {
		return o.Config.Groups
	}
	return nil
}

// Job produces one table and says how to lay it out.
type Job struct {
	Name string
	Load func(dir string) (*dataframe.Table, dataparser.Report, error)
	// Post reshapes the loaded table. Nil leaves it unchanged.
	Post     func(*dataframe.Table) (*dataframe.Table, error)
	Layout   sheet.Layout
	Timeline *plot.Timeline
	// Summary logs tool specific findings after loading.
	Summary func(*dataframe.Table)
}

// Tool is one summary command.
type Tool struct {
	Name          string
	Short         string
	Long          string
	DefaultOutput string
	Flags         []string
	Jobs          func(opts Options) ([]Job, error)
}

// Accepts reports whether the tool takes the named extra flag.
func (t Tool) Accepts(flag string) bool {
	for _, f := range t.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

var registry = map[string]Tool{}

func register(t Tool) {
	registry[t.Name] = t
}

func Lookup(name string) (Tool, error) {
	t, ok := registry[name]
	if !ok {
		return Tool{}, fmt.Errorf("unknown tool %q", name)
	}
	return t, nil
}

// All returns the registered tools sorted by name.
func All() []Tool {
	out := make([]Tool, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Output is one loaded table with the job that produced it.
type Output struct {
	Job    Job
	Table  *dataframe.Table
	Report dataparser.Report
}

type Result struct {
	Tool     string
	InputDir string
	Outputs  []Output
}

// Run loads every job of the tool from dir. A job without input is skipped
// with a warning when the tool has others; the run fails with
// dataparser.ErrNoInput only when no job produced data.
func Run(tool Tool, dir string, opts Options) (*Result, error) {
	logger := logging.GetLogger()
	jobs, err := tool.Jobs(opts)
	if err != nil {
		return nil, err
	}

	res := &Result{Tool: tool.Name, InputDir: dir}
	for _, job := range jobs {
		table, report, err := job.Load(dir)
		if err == nil && job.Post != nil {
			table, err = job.Post(table)
			if err == nil && table.Len() == 0 {
				err = fmt.Errorf("%w for %s after filtering", dataparser.ErrNoInput, job.Name)
			}
		}
		if errors.Is(err, dataparser.ErrNoInput) && len(jobs) > 1 {
			logger.WithFields(logrus.Fields{
				"tool": tool.Name,
				"job":  job.Name,
			}).WithError(err).Warn("Skipping table without input")
			continue
		}
		if err != nil {
			return nil, err
		}

		dataparser.LogSummary(table, job.Layout.Metrics)
		if job.Summary != nil {
			job.Summary(table)
		}
		res.Outputs = append(res.Outputs, Output{Job: job, Table: table, Report: report})
	}

	if len(res.Outputs) == 0 {
		return nil, fmt.Errorf("%w in %s", dataparser.ErrNoInput, dir)
	}
	return res, nil
}

// source builds a loader for a plain directory scan.
func source(src dataparser.Source) func(string) (*dataframe.Table, dataparser.Report, error) {
	return func(dir string) (*dataframe.Table, dataparser.Report, error) {
		return dataparser.Load(dir, src)
	}
}

// percentileMetrics names the latency metrics produced for the given
// percentiles.
func percentileMetrics(prefix string, percentiles []string) []string {
	var out []string
	for _, p := range percentiles {
		key, err := extractors.FioPercentileKey(p)
		if err != nil {
			continue
		}
		out = append(out, extractors.PercentileMetric(prefix, key))
	}
	return out
}

func validPercentiles(percentiles []string) error {
	for _, p := range percentiles {
		if _, err := extractors.FioPercentileKey(p); err != nil {
			return err
		}
	}
	return nil
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
