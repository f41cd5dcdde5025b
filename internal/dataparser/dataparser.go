// Package dataparser drives the pipeline: it scans an input directory, keys
// every file through a grammar, runs the extractor and collects the rows in a
// dataframe.Table.
package dataparser

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
	"benchsheet/internal/extractors"
	"benchsheet/internal/logging"

	"github.com/sirupsen/logrus"
)

// ErrNoInput is returned when no file in the input directory produced data.
var ErrNoInput = errors.New("no matching input files")

// Source describes one kind of input file.
type Source struct {
	Name      string
	Grammar   experiment.Grammar
	Extractor extractors.Extractor
	// Recursive walks subdirectories; otherwise only the top level is read.
	Recursive bool
	// Extensions limits the scan to files with one of these extensions,
	// such as ".log". Empty reads every file.
	Extensions []string
	// Hint derives extraction options from the file key. Nil means no hint.
	Hint func(experiment.Key) extractors.Hint
	// Accept drops keys for which it returns false. Nil keeps everything.
	Accept func(experiment.Key) bool
}

// Report counts what happened to the scanned files.
type Report struct {
	Files     int
	Matched   int
	Unmatched int
	Failed    int
	Rows      int
}

func (r Report) fields() logrus.Fields {
	return logrus.Fields{
		"files":     r.Files,
		"matched":   r.Matched,
		"unmatched": r.Unmatched,
		"failed":    r.Failed,
		"rows":      r.Rows,
	}
}

// regularFile reports whether d is a regular file or a symlink to one.
func regularFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Scan lists regular files under dir, including symlinks to regular files, as
// sorted slash-separated relative paths. Symlinked directories are not
// descended into.
func Scan(dir string, recursive bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input %s is not a directory", dir)
	}

	var files []string
	if recursive {
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !regularFile(path, d) {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", dir, err)
		}
		for _, e := range entries {
			if regularFile(filepath.Join(dir, e.Name()), e) {
				files = append(files, e.Name())
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Load runs src over dir and returns a fresh table named after the source.
func Load(dir string, src Source) (*dataframe.Table, Report, error) {
	table := dataframe.NewTable(src.Name)
	report, err := LoadInto(table, dir, src)
	return table, report, err
}

// LoadInto adds the rows of every file in dir matching src to table. A file
// that cannot be read or parsed is logged and skipped. ErrNoInput is
// returned when nothing was inserted.
func LoadInto(table *dataframe.Table, dir string, src Source) (Report, error) {
	logger := logging.GetLogger()
	var report Report

	files, err := Scan(dir, src.Recursive)
	if err != nil {
		return report, err
	}
	report.Files = len(files)

	for _, rel := range files {
		if !hasExtension(rel, src.Extensions) {
			report.Unmatched++
			continue
		}
		key, ok := src.Grammar.Parse(rel)
		if !ok {
			report.Unmatched++
			logger.WithFields(logrus.Fields{
				"file":    rel,
				"grammar": src.Grammar.Name(),
			}).Debug("File name does not match, skipping")
			continue
		}
		if src.Accept != nil && !src.Accept(key) {
			report.Unmatched++
			continue
		}
		report.Matched++

		rows, err := extractFile(filepath.Join(dir, filepath.FromSlash(rel)), src.Extractor, hintFor(src, key))
		if err != nil {
			report.Failed++
			logger.WithFields(logrus.Fields{
				"file":      rel,
				"extractor": src.Extractor.Name(),
			}).WithError(err).Warn("Skipping unreadable file")
			continue
		}
		for _, row := range rows {
			table.InsertFrom(row.Apply(key), row.Sample, rel)
			report.Rows++
		}
	}

	logger.WithFields(report.fields()).WithField("source", src.Name).Debug("Scanned input directory")
	if report.Rows == 0 {
		return report, fmt.Errorf("%w for %s in %s", ErrNoInput, src.Name, dir)
	}
	return report, nil
}

func hasExtension(rel string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, ext := range exts {
		if strings.EqualFold(path.Ext(rel), ext) {
			return true
		}
	}
	return false
}

func hintFor(src Source, key experiment.Key) extractors.Hint {
	if src.Hint == nil {
		return extractors.Hint{}
	}
	return src.Hint(key)
}

func extractFile(path string, e extractors.Extractor, hint extractors.Hint) ([]extractors.Row, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return e.Extract(content, hint)
}
