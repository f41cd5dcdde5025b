package sheet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// Writer collects grids into one workbook. Grids for a sheet that already
// exists are appended below its last row.
type Writer struct {
	file   *excelize.File
	next   map[string]int
	sheets []string
	header int
}

func NewWriter() (*Writer, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	return &Writer{
		file:   f,
		next:   make(map[string]int),
		header: header,
	}, nil
}

// Write renders table with layout and adds the grids to the workbook.
func (w *Writer) Write(table *dataframe.Table, layout Layout) ([]Grid, error) {
	grids, err := Render(table, layout)
	if err != nil {
		return nil, fmt.Errorf("failed to lay out %s: %w", table.Name(), err)
	}
	for _, g := range grids {
		if err := w.Put(g); err != nil {
			return nil, err
		}
	}
	return grids, nil
}

// Sheets lists the sheets written so far, in order.
func (w *Writer) Sheets() []string {
	return append([]string(nil), w.sheets...)
}

func (w *Writer) ensureSheet(name string) error {
	if _, ok := w.next[name]; ok {
		return nil
	}
	if len(w.sheets) == 0 {
		if err := w.file.SetSheetName(defaultSheet, name); err != nil {
			return fmt.Errorf("failed to name sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", name, err)
	}
	if err := w.file.SetColWidth(name, "A", "A", 22); err != nil {
		return err
	}
	w.next[name] = 1
	w.sheets = append(w.sheets, name)
	return nil
}

// Put writes one grid.
func (w *Writer) Put(g Grid) error {
	if err := w.ensureSheet(g.Sheet); err != nil {
		return err
	}
	base := w.next[g.Sheet]
	if base > 1 {
		// blank separator between grids on one sheet
		base++
	}

	for r, row := range g.Rows {
		for c, cell := range row {
			name, err := excelize.CoordinatesToCellName(c+1, base+r)
			if err != nil {
				return err
			}
			if err := w.setCell(g.Sheet, name, cell); err != nil {
				return fmt.Errorf("failed to write %s!%s: %w", g.Sheet, name, err)
			}
		}
	}

	width := g.Width()
	for _, r := range g.Headers {
		if width == 0 {
			break
		}
		first, _ := excelize.CoordinatesToCellName(1, base+r)
		last, _ := excelize.CoordinatesToCellName(width, base+r)
		if err := w.file.SetCellStyle(g.Sheet, first, last, w.header); err != nil {
			return err
		}
	}
	for _, m := range g.Merges {
		first, _ := excelize.CoordinatesToCellName(m.Col+1, base+m.Row)
		last, _ := excelize.CoordinatesToCellName(m.Col+m.Cols, base+m.Row)
		if err := w.file.MergeCell(g.Sheet, first, last); err != nil {
			return fmt.Errorf("failed to merge %s:%s on %s: %w", first, last, g.Sheet, err)
		}
	}

	w.next[g.Sheet] = base + len(g.Rows)
	logging.GetLogger().WithFields(logrus.Fields{
		"sheet": g.Sheet,
		"rows":  len(g.Rows),
		"cols":  width,
	}).Debug("Wrote sheet grid")
	return nil
}

func (w *Writer) setCell(sheet, name string, cell Cell) error {
	if v, ok := cell.Value.Get(); ok {
		return w.file.SetCellValue(sheet, name, v)
	}
	if cell.Text == "" {
		return nil
	}
	if cell.Number {
		if n, err := strconv.ParseInt(cell.Text, 10, 64); err == nil {
			return w.file.SetCellValue(sheet, name, n)
		}
	}
	return w.file.SetCellValue(sheet, name, cell.Text)
}

// SaveAs writes the workbook, creating the parent directory.
func (w *Writer) SaveAs(path string) error {
	if len(w.sheets) == 0 {
		return errors.New("workbook has no sheets")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	w.file.SetActiveSheet(0)
	if err := w.file.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	logging.GetLogger().WithFields(logrus.Fields{
		"path":   path,
		"sheets": len(w.sheets),
	}).Info("Saved workbook")
	return nil
}

func (w *Writer) Close() error {
	return w.file.Close()
}
