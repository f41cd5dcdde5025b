// Package sheet lays a dataframe.Table out as spreadsheet grids and writes
// them with excelize. It also reads the stacked-block and grouped-header
// layouts back into tables.
package sheet

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
	"benchsheet/internal/logging"

	"github.com/sirupsen/logrus"
)

// MetricAxis is the pseudo-axis whose labels are metric names. A layout may
// put it on sheets, blocks, rows or columns like any key axis.
const MetricAxis = "metric"

const (
	maxSheetName = 31
	maxSheetRows = 1048576
)

// Layout maps key axes to sheets, stacked blocks, rows and columns.
type Layout struct {
	Sheet   []string
	Block   []string
	Rows    []string
	Columns []string
	// Metrics fixes which metrics appear and in what order. Empty means
	// every metric in the table, sorted.
	Metrics []string
	// FlatColumns writes one header row of column labels joined with
	// Separator instead of a merged group header.
	FlatColumns bool
	Separator   string
	// ObservedRows lists only row combinations present in the data instead
	// of the full product of the row domains.
	ObservedRows bool
	// SheetName names the single sheet of a layout without sheet axes.
	SheetName string
	// MaxRows splits a sheet whose data rows exceed it over several sheets
	// suffixed _1, _2 and so on. Zero means the worksheet limit.
	MaxRows int
}

func (l Layout) separator() string {
	if l.Separator == "" {
		return "_"
	}
	return l.Separator
}

func (l Layout) axes() []string {
	var out []string
	out = append(out, l.Sheet...)
	out = append(out, l.Block...)
	out = append(out, l.Rows...)
	out = append(out, l.Columns...)
	return out
}

func (l Layout) validate() error {
	if len(l.Rows) == 0 {
		return errors.New("layout has no row axes")
	}
	if len(l.Columns) == 0 {
		return errors.New("layout has no column axes")
	}
	seen := make(map[string]bool)
	for _, a := range l.axes() {
		if seen[a] {
			return fmt.Errorf("layout uses axis %s twice", a)
		}
		seen[a] = true
	}
	if !seen[MetricAxis] {
		return errors.New("layout does not place the metric axis")
	}
	return nil
}

// Cell is one spreadsheet cell. Data cells carry a Value and are left blank
// when it is missing; label cells carry Text.
type Cell struct {
	Text  string
	Value dataframe.Value
	// Number writes Text as a number, for integer axis labels.
	Number bool
}

// Merge spans Cols columns starting at (Row, Col), zero based.
type Merge struct {
	Row  int
	Col  int
	Cols int
}

// Grid is the rendered content of one sheet.
type Grid struct {
	Sheet   string
	Rows    [][]Cell
	Merges  []Merge
	Headers []int
}

func (g *Grid) addRow(cells []Cell, header bool) int {
	if header {
		g.Headers = append(g.Headers, len(g.Rows))
	}
	g.Rows = append(g.Rows, cells)
	return len(g.Rows) - 1
}

// Width is the number of columns of the widest row.
func (g Grid) Width() int {
	w := 0
	for _, r := range g.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Strings returns the grid as text, with blanks for missing values.
func (g Grid) Strings() [][]string {
	out := make([][]string, len(g.Rows))
	for i, r := range g.Rows {
		out[i] = make([]string, len(r))
		for j, c := range r {
			out[i][j] = c.String()
		}
	}
	return out
}

func (c Cell) String() string {
	if v, ok := c.Value.Get(); ok {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return c.Text
}

type order struct {
	kinds  map[string]experiment.Kind
	metric map[string]int
}

func newOrder(entries []dataframe.Entry, metrics []string) order {
	o := order{
		kinds:  make(map[string]experiment.Kind),
		metric: make(map[string]int, len(metrics)),
	}
	for _, e := range entries {
		for _, a := range e.Key.Axes() {
			if _, ok := o.kinds[a.Name]; !ok {
				o.kinds[a.Name] = a.Kind
			}
		}
	}
	for i, m := range metrics {
		o.metric[m] = i
	}
	return o
}

func (o order) compare(axis, a, b string) int {
	if axis == MetricAxis {
		return o.metric[a] - o.metric[b]
	}
	return experiment.CompareLabels(o.kinds[axis], a, b)
}

func (o order) sortTuples(axes []string, tuples [][]string) {
	sort.SliceStable(tuples, func(i, j int) bool {
		for k, axis := range axes {
			if c := o.compare(axis, tuples[i][k], tuples[j][k]); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func labelOf(e dataframe.Entry, axis string) string {
	l, _ := e.Key.Label(axis)
	return l
}

// observed returns the distinct label tuples over axes that occur in
// entries, crossed with metrics where axes holds the metric axis.
func (o order) observed(entries []dataframe.Entry, axes []string, metrics []string) [][]string {
	if len(axes) == 0 {
		return [][]string{{}}
	}
	metricPos := indexOf(axes, MetricAxis)
	seen := make(map[string]bool)
	var tuples [][]string
	for _, e := range entries {
		base := make([]string, len(axes))
		for i, a := range axes {
			if i != metricPos {
				base[i] = labelOf(e, a)
			}
		}
		expanded := [][]string{base}
		if metricPos >= 0 {
			expanded = expanded[:0]
			for _, m := range metrics {
				t := append([]string(nil), base...)
				t[metricPos] = m
				expanded = append(expanded, t)
			}
		}
		for _, t := range expanded {
			id := strings.Join(t, "\x1f")
			if !seen[id] {
				seen[id] = true
				tuples = append(tuples, t)
			}
		}
	}
	o.sortTuples(axes, tuples)
	return tuples
}

func (o order) domain(entries []dataframe.Entry, axis string, metrics []string) []string {
	if axis == MetricAxis {
		return metrics
	}
	seen := make(map[string]bool)
	var labels []string
	for _, e := range entries {
		l := labelOf(e, axis)
		if !seen[l] {
			seen[l] = true
			labels = append(labels, l)
		}
	}
	sort.SliceStable(labels, func(i, j int) bool {
		return o.compare(axis, labels[i], labels[j]) < 0
	})
	return labels
}

// product returns every combination of the per-axis domains, first axis
// slowest.
func (o order) product(entries []dataframe.Entry, axes []string, metrics []string) [][]string {
	tuples := [][]string{{}}
	for _, a := range axes {
		var next [][]string
		for _, t := range tuples {
			for _, l := range o.domain(entries, a, metrics) {
				next = append(next, append(append([]string(nil), t...), l))
			}
		}
		tuples = next
	}
	return tuples
}

func filter(entries []dataframe.Entry, axes []string, tuple []string) []dataframe.Entry {
	var out []dataframe.Entry
	for _, e := range entries {
		ok := true
		for i, a := range axes {
			if a != MetricAxis && labelOf(e, a) != tuple[i] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, e)
		}
	}
	return out
}

func restrict(metrics []string, axes []string, tuple []string) []string {
	if i := indexOf(axes, MetricAxis); i >= 0 {
		return []string{tuple[i]}
	}
	return metrics
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// SheetName makes a valid worksheet name: forbidden characters are replaced
// and the result is cut to 31 characters.
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Sheet"
	}
	if utf8.RuneCountInString(name) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}
	return name
}

func uniqueSheetNames(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool)
	for i, r := range raw {
		name := SheetName(r)
		for n := 2; used[strings.ToLower(name)]; n++ {
			suffix := "~" + strconv.Itoa(n)
			base := []rune(SheetName(r))
			if len(base)+len(suffix) > maxSheetName {
				base = base[:maxSheetName-len(suffix)]
			}
			name = string(base) + suffix
		}
		used[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

type index struct {
	axes    []string
	samples map[string]dataframe.Sample
}

func newIndex(table *dataframe.Table, entries []dataframe.Entry, layout Layout) index {
	idx := index{samples: make(map[string]dataframe.Sample, len(entries))}
	for _, a := range layout.axes() {
		if a != MetricAxis {
			idx.axes = append(idx.axes, a)
		}
	}
	collapsed := 0
	for _, e := range entries {
		labels := make([]string, len(idx.axes))
		for i, a := range idx.axes {
			labels[i] = labelOf(e, a)
		}
		id := strings.Join(labels, "\x1f")
		if _, ok := idx.samples[id]; ok {
			collapsed++
		}
		idx.samples[id] = e.Sample
	}
	if collapsed > 0 {
		logging.GetLogger().WithFields(logrus.Fields{
			"table":     table.Name(),
			"collapsed": collapsed,
		}).Warn("Layout does not distinguish every key, later entries win")
	}
	return idx
}

func (idx index) value(labels map[string]string) dataframe.Value {
	parts := make([]string, len(idx.axes))
	for i, a := range idx.axes {
		parts[i] = labels[a]
	}
	s, ok := idx.samples[strings.Join(parts, "\x1f")]
	if !ok {
		return dataframe.Missing()
	}
	return s.Get(labels[MetricAxis])
}

func bind(labels map[string]string, axes []string, tuple []string) {
	for i, a := range axes {
		labels[a] = tuple[i]
	}
}

// Render lays the table out. It returns one grid per sheet, in sheet order.
func Render(table *dataframe.Table, layout Layout) ([]Grid, error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}
	entries := table.Entries()
	metrics := layout.Metrics
	if len(metrics) == 0 {
		metrics = table.Metrics()
	}
	o := newOrder(entries, metrics)
	idx := newIndex(table, entries, layout)

	sheets := o.observed(entries, layout.Sheet, metrics)
	var raw []string
	var grids []Grid
	for _, st := range sheets {
		name := strings.Join(st, "_")
		if len(layout.Sheet) == 0 {
			name = layout.SheetName
			if name == "" {
				name = table.Name()
			}
		}
		inSheet := filter(entries, layout.Sheet, st)
		sheetMetrics := restrict(metrics, layout.Sheet, st)

		var rows [][]string
		if layout.ObservedRows {
			rows = o.observed(inSheet, layout.Rows, sheetMetrics)
		} else {
			rows = o.product(inSheet, layout.Rows, sheetMetrics)
		}
		cols := o.product(inSheet, layout.Columns, sheetMetrics)

		blocks := o.observed(inSheet, layout.Block, sheetMetrics)
		chunks := chunkRows(rows, layout.maxRows(len(blocks)))
		for i, chunk := range chunks {
			var g Grid
			for _, bt := range blocks {
				blockMetrics := restrict(sheetMetrics, layout.Block, bt)
				labels := make(map[string]string)
				bind(labels, layout.Sheet, st)
				bind(labels, layout.Block, bt)
				renderBlock(&g, layout, o, idx, labels, bt, keep(chunk, layout.Rows, blockMetrics), keep(cols, layout.Columns, blockMetrics))
			}
			n := name
			if len(chunks) > 1 {
				n = fmt.Sprintf("%s_%d", name, i+1)
			}
			raw = append(raw, n)
			grids = append(grids, g)
		}
	}

	for i, name := range uniqueSheetNames(raw) {
		grids[i].Sheet = name
	}
	return grids, nil
}

// overheadRows counts the rows a block adds around its data rows.
func (l Layout) overheadRows() int {
	n := 1
	if len(l.Columns) > 1 && !l.FlatColumns {
		n = 2
	}
	if len(l.Block) > 0 {
		// title and trailing blank row
		n += 2
	}
	return n
}

// maxRows is the number of data rows per block that keeps a sheet of blocks
// blocks within the worksheet limit.
func (l Layout) maxRows(blocks int) int {
	if blocks < 1 {
		blocks = 1
	}
	limit := maxSheetRows/blocks - l.overheadRows()
	if limit < 1 {
		limit = 1
	}
	if l.MaxRows > 0 && l.MaxRows < limit {
		return l.MaxRows
	}
	return limit
}

func chunkRows(rows [][]string, size int) [][][]string {
	if len(rows) <= size {
		return [][][]string{rows}
	}
	var out [][][]string
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}

// keep drops tuples naming a metric outside metrics, which happens when a
// block or sheet already fixes the metric.
func keep(tuples [][]string, axes []string, metrics []string) [][]string {
	pos := indexOf(axes, MetricAxis)
	if pos < 0 {
		return tuples
	}
	allowed := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		allowed[m] = true
	}
	var out [][]string
	for _, t := range tuples {
		if allowed[t[pos]] {
			out = append(out, t)
		}
	}
	return out
}

func renderBlock(g *Grid, layout Layout, o order, idx index, fixed map[string]string, title []string, rows, cols [][]string) {
	blocked := len(layout.Block) > 0
	labelCols := len(layout.Rows)
	width := labelCols + len(cols)

	if blocked {
		r := g.addRow([]Cell{{Text: strings.Join(title, layout.separator())}}, true)
		if width > 1 {
			g.Merges = append(g.Merges, Merge{Row: r, Col: 0, Cols: width})
		}
	}

	rowNames := func() []Cell {
		cells := make([]Cell, labelCols)
		if !blocked {
			for i, a := range layout.Rows {
				cells[i] = Cell{Text: a}
			}
		}
		return cells
	}

	if len(layout.Columns) == 1 || layout.FlatColumns {
		header := rowNames()
		numeric := len(layout.Columns) == 1 && o.kinds[layout.Columns[0]] == experiment.Integer
		for _, c := range cols {
			header = append(header, Cell{Text: strings.Join(c, layout.separator()), Number: numeric})
		}
		g.addRow(header, true)
	} else {
		last := len(layout.Columns) - 1
		group := make([]Cell, labelCols, width)
		r := len(g.Rows)
		for start := 0; start < len(cols); {
			end := start + 1
			for end < len(cols) && sameGroup(cols[end], cols[start], last) {
				end++
			}
			group = append(group, Cell{Text: strings.Join(cols[start][:last], "_")})
			for k := start + 1; k < end; k++ {
				group = append(group, Cell{})
			}
			if end-start > 1 {
				g.Merges = append(g.Merges, Merge{Row: r, Col: labelCols + start, Cols: end - start})
			}
			start = end
		}
		g.addRow(group, true)

		values := rowNames()
		numeric := o.kinds[layout.Columns[last]] == experiment.Integer
		for _, c := range cols {
			values = append(values, Cell{Text: c[last], Number: numeric})
		}
		g.addRow(values, true)
	}

	for _, rt := range rows {
		cells := make([]Cell, 0, width)
		for i, a := range layout.Rows {
			cells = append(cells, Cell{Text: rt[i], Number: o.kinds[a] == experiment.Integer})
		}
		labels := make(map[string]string, len(fixed)+len(layout.Rows)+len(layout.Columns))
		for k, v := range fixed {
			labels[k] = v
		}
		bind(labels, layout.Rows, rt)
		for _, c := range cols {
			bind(labels, layout.Columns, c)
			cells = append(cells, Cell{Value: idx.value(labels)})
		}
		g.addRow(cells, false)
	}

	if blocked {
		g.addRow(nil, false)
	}
}

func sameGroup(a, b []string, n int) bool {
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
