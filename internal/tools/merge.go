package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"benchsheet/internal/database"
	"benchsheet/internal/dataframe"
	"benchsheet/internal/dataparser"
	"benchsheet/internal/experiment"
	"benchsheet/internal/logging"
	"benchsheet/internal/sheet"

	"github.com/sirupsen/logrus"
)

// SourceAxis labels every merged entry with the input it came from.
var SourceAxis = experiment.TextAxis("source")

// MergeInput is one workbook or snapshot to merge, under a label such as
// "ext4" or "fuse".
type MergeInput struct {
	Label string
	Path  string
}

// ParseMergeInputs reads "label=path" arguments. A bare path is labelled
// with its file stem.
func ParseMergeInputs(args []string) ([]MergeInput, error) {
	seen := make(map[string]bool)
	inputs := make([]MergeInput, 0, len(args))
	for _, arg := range args {
		label, path, ok := strings.Cut(arg, "=")
		if !ok {
			path = arg
			label = strings.TrimSuffix(filepath.Base(path), ".json.gz")
			label = strings.TrimSuffix(label, filepath.Ext(label))
		}
		label, path = strings.TrimSpace(label), strings.TrimSpace(path)
		if label == "" || path == "" {
			return nil, fmt.Errorf("invalid merge input %q, want label=path", arg)
		}
		if seen[label] {
			return nil, fmt.Errorf("merge label %q given twice", label)
		}
		seen[label] = true
		inputs = append(inputs, MergeInput{Label: label, Path: path})
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no merge inputs given", dataparser.ErrNoInput)
	}
	return inputs, nil
}

// MergeOptions says how to read the input workbooks.
type MergeOptions struct {
	Header sheet.Header
	// GroupedSheet reads workbooks with a grouped column header from this
	// sheet instead of the stacked-block layout.
	GroupedSheet string
	Metrics      []string
}

// DefaultMergeHeader matches the blocks written by fio-io.
func DefaultMergeHeader() sheet.Header {
	return sheet.Header{
		Group:  []experiment.Axis{experiment.TextAxis("workload"), {Name: "bs", Kind: experiment.BinarySize}},
		Column: experiment.IntAxis("numjobs"),
	}
}

func readMergeInput(in MergeInput, opts MergeOptions) (*dataframe.Table, error) {
	if _, err := os.Stat(in.Path); err != nil {
		return nil, fmt.Errorf("merge input %s: %w", in.Label, err)
	}
	switch {
	case database.IsSnapshot(in.Path):
		snap, err := database.ReadSnapshot(in.Path)
		if err != nil {
			return nil, err
		}
		return snap.ToTable()
	case opts.GroupedSheet != "":
		return sheet.ReadGrouped(in.Path, opts.GroupedSheet, opts.Header)
	default:
		return sheet.ReadBlocks(in.Path, opts.Header)
	}
}

// Merge reads every input and lays the entries out side by side: one sheet
// per header group, one block per input label.
func Merge(inputs []MergeInput, opts MergeOptions) (*Result, error) {
	logger := logging.GetLogger()
	merged := dataframe.NewTable("merge")
	for _, in := range inputs {
		t, err := readMergeInput(in, opts)
		if err != nil {
			return nil, err
		}
		for _, e := range t.Entries() {
			merged.InsertFrom(e.Key.Extend(SourceAxis, in.Label), e.Sample, e.Source)
		}
		logger.WithFields(logrus.Fields{
			"label":   in.Label,
			"path":    in.Path,
			"entries": t.Len(),
		}).Info("Read merge input")
	}
	if merged.Len() == 0 {
		return nil, fmt.Errorf("%w: merge inputs hold no values", dataparser.ErrNoInput)
	}

	group := make([]string, len(opts.Header.Group))
	for i, a := range opts.Header.Group {
		group[i] = a.Name
	}
	layout := sheet.Layout{
		Sheet:   group,
		Block:   []string{SourceAxis.Name},
		Rows:    []string{sheet.MetricAxis},
		Columns: []string{opts.Header.Column.Name},
		Metrics: opts.Metrics,
	}

	dataparser.LogSummary(merged, opts.Metrics)
	return &Result{
		Tool:    "merge",
		Outputs: []Output{{Job: Job{Name: "merge", Layout: layout}, Table: merged}},
	}, nil
}
