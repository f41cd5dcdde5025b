// Package storage writes laid-out tables as CSV files.
package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"benchsheet/internal/sheet"

	log "github.com/sirupsen/logrus"
)

// Export is one tool run ready for CSV export: the rendered grids plus the
// run metadata written next to them.
type Export struct {
	Tool     string
	InputDir string
	Created  time.Time
	Entries  int
	Checksum string
	Grids    []sheet.Grid
}

// ExportToCSV writes one CSV file per sheet and a metadata file into
// exportPath. Grids that share a sheet end up in the same file, separated by
// an empty record. It returns the written paths, metadata first.
func (e *Export) ExportToCSV(exportPath string) ([]string, error) {
	if err := os.MkdirAll(exportPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	created := e.Created
	if created.IsZero() {
		created = time.Now()
	}
	timestamp := created.Format("20060102_150405")

	metadataFile := filepath.Join(exportPath, fmt.Sprintf("%s_%s_metadata.csv", e.Tool, timestamp))
	if err := e.exportMetadata(metadataFile, created); err != nil {
		return nil, fmt.Errorf("failed to export metadata: %w", err)
	}
	paths := []string{metadataFile}

	var order []string
	bySheet := make(map[string][]sheet.Grid)
	for _, g := range e.Grids {
		if _, ok := bySheet[g.Sheet]; !ok {
			order = append(order, g.Sheet)
		}
		bySheet[g.Sheet] = append(bySheet[g.Sheet], g)
	}

	for _, name := range order {
		filename := filepath.Join(exportPath, fmt.Sprintf("%s_%s_%s.csv", e.Tool, timestamp, fileToken(name)))
		if err := exportGrids(filename, bySheet[name]); err != nil {
			return nil, fmt.Errorf("failed to export sheet %s: %w", name, err)
		}
		paths = append(paths, filename)

		log.WithFields(log.Fields{
			"sheet":    name,
			"filename": filename,
		}).Debug("Exported sheet to CSV")
	}

	log.WithFields(log.Fields{
		"export_path": exportPath,
		"tool":        e.Tool,
		"sheets":      len(order),
	}).Info("Exported tables to CSV")

	return paths, nil
}

func (e *Export) exportMetadata(filename string, created time.Time) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Property", "Value"}); err != nil {
		return err
	}

	metadata := [][]string{
		{"tool", e.Tool},
		{"input_dir", e.InputDir},
		{"created", created.Format(time.RFC3339)},
		{"entries", strconv.Itoa(e.Entries)},
		{"sheets", strconv.Itoa(len(e.Grids))},
		{"config_checksum", e.Checksum},
	}

	for _, row := range metadata {
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

func exportGrids(filename string, grids []sheet.Grid) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	for i, g := range grids {
		if i > 0 {
			if err := writer.Write([]string{""}); err != nil {
				return err
			}
		}
		for _, row := range g.Strings() {
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func fileToken(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':', '~':
			return '_'
		}
		return r
	}, name)
}
