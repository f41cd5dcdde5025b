package dataparser

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
	"benchsheet/internal/extractors"
	"benchsheet/internal/logging"

	"github.com/sirupsen/logrus"
)

// PairSource describes snapshots taken before and after a run, named
// "<prefix>_<tag>_before<ext>" and "<prefix>_<tag>_after<ext>".
type PairSource struct {
	Name      string
	Tag       string
	Grammar   experiment.Grammar // parses "<prefix><ext>"
	Extractor extractors.Extractor
	// Derive adds metrics computed from the delta. Nil keeps the delta as is.
	Derive func(dataframe.Sample) dataframe.Sample
}

// LoadPairs inserts Delta(before, after) for every complete pair in dir.
// A before file without its after file is skipped with a warning.
func LoadPairs(dir string, src PairSource) (*dataframe.Table, Report, error) {
	logger := logging.GetLogger()
	table := dataframe.NewTable(src.Name)
	var report Report

	files, err := Scan(dir, false)
	if err != nil {
		return table, report, err
	}
	report.Files = len(files)

	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}

	beforeSuffix := "_" + src.Tag + "_before"
	afterSuffix := "_" + src.Tag + "_after"
	for _, rel := range files {
		ext := path.Ext(rel)
		stem := strings.TrimSuffix(rel, ext)
		if !strings.HasSuffix(stem, beforeSuffix) {
			if !strings.HasSuffix(stem, afterSuffix) {
				report.Unmatched++
			}
			continue
		}
		prefix := strings.TrimSuffix(stem, beforeSuffix)
		afterRel := prefix + afterSuffix + ext
		if !present[afterRel] {
			report.Failed++
			logger.WithFields(logrus.Fields{
				"before": rel,
				"after":  afterRel,
			}).Warn("Missing after snapshot, skipping pair")
			continue
		}
		key, ok := src.Grammar.Parse(prefix + ext)
		if !ok {
			report.Unmatched++
			logger.WithField("file", rel).Debug("Pair prefix does not match, skipping")
			continue
		}
		report.Matched++

		before, err := extractSingle(filepath.Join(dir, rel), src.Extractor)
		if err != nil {
			report.Failed++
			logger.WithField("file", rel).WithError(err).Warn("Skipping pair with unreadable before snapshot")
			continue
		}
		after, err := extractSingle(filepath.Join(dir, afterRel), src.Extractor)
		if err != nil {
			report.Failed++
			logger.WithField("file", afterRel).WithError(err).Warn("Skipping pair with unreadable after snapshot")
			continue
		}

		delta := dataframe.Delta(before, after)
		if src.Derive != nil {
			delta = src.Derive(delta)
		}
		table.InsertFrom(key, delta, rel)
		report.Rows++
	}

	logger.WithFields(report.fields()).WithField("source", src.Name).Debug("Paired snapshots")
	if report.Rows == 0 {
		return table, report, fmt.Errorf("%w for %s in %s", ErrNoInput, src.Name, dir)
	}
	return table, report, nil
}

func extractSingle(path string, e extractors.Extractor) (dataframe.Sample, error) {
	rows, err := extractFile(path, e, extractors.Hint{})
	if err != nil {
		return dataframe.Sample{}, err
	}
	if len(rows) != 1 {
		return dataframe.Sample{}, errors.New("expected a single snapshot")
	}
	return rows[0].Sample, nil
}
