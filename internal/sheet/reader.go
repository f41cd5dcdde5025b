package sheet

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
	"benchsheet/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Header maps the header cells of a section back to key axes. The title or
// group label is split on "_" into Group (the last axis takes the rest), and
// the header row values label Column.
type Header struct {
	Group  []experiment.Axis
	Column experiment.Axis
}

// ReadBlocks parses every sheet of a workbook written with the stacked-block
// layout: a title row, a header row, metric rows, then a blank row.
func ReadBlocks(path string, h Header) (*dataframe.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	table := dataframe.NewTable(stem(path))
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		parseSections(table, path+"#"+sheet, rows, h)
	}
	return table, nil
}

// ReadGrouped parses one sheet written with a grouped column header: a row
// of group labels, each merged over its columns, then a row of column values
// and the metric rows. An empty sheet name selects the first sheet.
func ReadGrouped(path, sheet string, h Header) (*dataframe.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, fmt.Errorf("%s has no sheets", path)
		}
		sheet = list[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	table := dataframe.NewTable(stem(path))
	parseSections(table, path+"#"+sheet, rows, h)
	return table, nil
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// parseSections walks the rows of one sheet. Each section is a label row,
// a header row and the metric rows up to the next blank row. Labels carry
// forward to the right so a merged title covers all of its columns.
func parseSections(table *dataframe.Table, source string, rows [][]string, h Header) {
	logger := logging.GetLogger()
	i := 0
	for i < len(rows) {
		if blank(rows[i]) {
			i++
			continue
		}
		if i+1 >= len(rows) {
			break
		}
		titles, header := rows[i], rows[i+1]
		i += 2

		width := len(header)
		for j := i; j < len(rows) && !blank(rows[j]); j++ {
			if len(rows[j]) > width {
				width = len(rows[j])
			}
		}

		keys := make([]experiment.Key, width)
		valid := make([]bool, width)
		group := cellAt(titles, 0)
		for c := 1; c < width; c++ {
			if t := cellAt(titles, c); t != "" {
				group = t
			}
			col := cellAt(header, c)
			if col == "" || group == "" {
				continue
			}
			parts := strings.SplitN(group, "_", len(h.Group))
			if len(parts) != len(h.Group) {
				logger.WithFields(logrus.Fields{
					"source": source,
					"label":  group,
				}).Warn("Section label does not split into the expected axes, skipping column")
				continue
			}
			keys[c] = experiment.NewKey(h.Group, parts).Extend(h.Column, col)
			valid[c] = true
		}

		builders := make([]*dataframe.Builder, width)
		for ; i < len(rows) && !blank(rows[i]); i++ {
			metric := cellAt(rows[i], 0)
			if metric == "" {
				continue
			}
			for c := 1; c < width; c++ {
				if !valid[c] {
					continue
				}
				if builders[c] == nil {
					builders[c] = dataframe.NewBuilder()
				}
				raw := cellAt(rows[i], c)
				if raw == "" {
					builders[c].SetMissing(metric)
					continue
				}
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					logger.WithFields(logrus.Fields{
						"source": source,
						"metric": metric,
						"value":  raw,
					}).Warn("Non-numeric cell, treating as missing")
					builders[c].SetMissing(metric)
					continue
				}
				builders[c].SetFloat(metric, v)
			}
		}

		for c := 1; c < width; c++ {
			if !valid[c] || builders[c] == nil {
				continue
			}
			// a column with no values at all is a hole in the grid
			if s := builders[c].Build(); anyPresent(s) {
				table.InsertFrom(keys[c], s, source)
			}
		}
	}
}

func anyPresent(s dataframe.Sample) bool {
	for _, v := range s.Values() {
		if v.Present() {
			return true
		}
	}
	return false
}
