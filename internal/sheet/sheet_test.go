package sheet

import (
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var (
	sectionAxis = experiment.TextAxis("section")
	bsAxis      = experiment.Axis{Name: "bs", Kind: experiment.BinarySize}
	njAxis      = experiment.IntAxis("numjobs")
)

func ioKey(section, bs, nj string) experiment.Key {
	return experiment.NewKey([]experiment.Axis{sectionAxis, bsAxis, njAxis}, []string{section, bs, nj})
}

func ioTable() *dataframe.Table {
	t := dataframe.NewTable("io")
	t.Insert(ioKey("randread", "4k", "1"), dataframe.SampleOf(map[string]float64{"iops": 100, "lat_avg_us": 12.5}))
	t.Insert(ioKey("randread", "4k", "2"), dataframe.SampleOf(map[string]float64{"iops": 190, "lat_avg_us": 13}))
	t.Insert(ioKey("randread", "128k", "1"), dataframe.SampleOf(map[string]float64{"iops": 40, "lat_avg_us": 0}))
	t.Insert(ioKey("randwrite", "4k", "2"), dataframe.NewBuilder().
		SetFloat("iops", 80).
		SetMissing("lat_avg_us").
		Build())
	return t
}

func blockLayout() Layout {
	return Layout{
		Block:     []string{"section", "bs"},
		Rows:      []string{MetricAxis},
		Columns:   []string{"numjobs"},
		Metrics:   []string{"iops", "lat_avg_us"},
		SheetName: "io",
	}
}

func TestRender_Blocks(t *testing.T) {
	grids, err := Render(ioTable(), blockLayout())
	require.NoError(t, err)
	require.Len(t, grids, 1)

	g := grids[0]
	assert.Equal(t, "io", g.Sheet)
	rows := g.Strings()
	require.Len(t, rows, 15)
	assert.Equal(t, []string{"randread_4k"}, rows[0])
	assert.Equal(t, []string{"", "1", "2"}, rows[1])
	assert.Equal(t, []string{"iops", "100", "190"}, rows[2])
	assert.Equal(t, []string{"lat_avg_us", "12.5", "13"}, rows[3])
	assert.Empty(t, rows[4])

	// 4k sorts before 128k
	assert.Equal(t, []string{"randread_128k"}, rows[5])
	// a present zero stays, an absent job count is blank
	assert.Equal(t, []string{"lat_avg_us", "0", ""}, rows[8])

	assert.Equal(t, []string{"randwrite_4k"}, rows[10])
	assert.Equal(t, []string{"lat_avg_us", "", ""}, rows[13])

	assert.Contains(t, g.Merges, Merge{Row: 0, Col: 0, Cols: 3})
	assert.Contains(t, g.Headers, 1)
}

func TestRender_Validation(t *testing.T) {
	_, err := Render(ioTable(), Layout{Rows: []string{"section"}, Columns: []string{"numjobs"}})
	assert.Error(t, err)
	_, err = Render(ioTable(), Layout{Columns: []string{MetricAxis}})
	assert.Error(t, err)
	_, err = Render(ioTable(), Layout{Rows: []string{"bs", MetricAxis}, Columns: []string{"bs"}})
	assert.Error(t, err)
}

func TestRender_GroupedHeader(t *testing.T) {
	grids, err := Render(ioTable(), Layout{
		Rows:      []string{MetricAxis},
		Columns:   []string{"section", "bs", "numjobs"},
		Metrics:   []string{"iops"},
		SheetName: "fio_summary",
	})
	require.NoError(t, err)
	rows := grids[0].Strings()
	require.Len(t, rows, 3)
	// randread_4k, randread_128k, randwrite_4k, randwrite_128k, each over two job counts
	assert.Equal(t, []string{"", "randread_4k", "", "randread_128k", "", "randwrite_4k", "", "randwrite_128k", ""}, rows[0])
	assert.Equal(t, []string{"metric", "1", "2", "1", "2", "1", "2", "1", "2"}, rows[1])
	assert.Equal(t, []string{"iops", "100", "190", "40", "", "", "80", "", ""}, rows[2])
	assert.Len(t, grids[0].Merges, 4)
	assert.Equal(t, Merge{Row: 0, Col: 3, Cols: 2}, grids[0].Merges[1])
}

func TestRender_FlatColumnsAndSheetNames(t *testing.T) {
	long := strings.Repeat("b", 40)
	table := dataframe.NewTable("perf")
	axes := []experiment.Axis{experiment.TextAxis("sched"), experiment.TextAxis("bound"), experiment.IntAxis("sec")}
	table.Insert(experiment.NewKey(axes, []string{"rr", long, "2"}), dataframe.SampleOf(map[string]float64{"cycles": 5}))
	table.Insert(experiment.NewKey(axes, []string{"cfs", long, "10"}), dataframe.SampleOf(map[string]float64{"cycles": 7}))
	table.Insert(experiment.NewKey(axes, []string{"rr", "io", "1"}), dataframe.SampleOf(map[string]float64{"cycles": 1}))

	grids, err := Render(table, Layout{
		Sheet:       []string{"bound"},
		Rows:        []string{"sec"},
		Columns:     []string{"sched", MetricAxis},
		FlatColumns: true,
		Separator:   ".",
	})
	require.NoError(t, err)
	require.Len(t, grids, 2)
	assert.Equal(t, long[:31], grids[0].Sheet)
	assert.Equal(t, "io", grids[1].Sheet)

	rows := grids[0].Strings()
	assert.Equal(t, []string{"sec", "cfs.cycles", "rr.cycles"}, rows[0])
	assert.Equal(t, []string{"2", "", "5"}, rows[1])
	assert.Equal(t, []string{"10", "7", ""}, rows[2])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "a-b-c", SheetName("a/b:c"))
	assert.Equal(t, "Sheet", SheetName("  "))
	names := uniqueSheetNames([]string{strings.Repeat("x", 35), strings.Repeat("x", 32)})
	assert.Len(t, names[0], 31)
	assert.Len(t, names[1], 31)
	assert.NotEqual(t, names[0], names[1])
}

func assertSameValues(t *testing.T, want, got *dataframe.Table) {
	t.Helper()
	for _, e := range want.Entries() {
		s, ok := got.Get(e.Key)
		if !ok {
			present := false
			for _, n := range e.Sample.Names() {
				present = present || e.Sample.Get(n).Present()
			}
			assert.False(t, present, "key %s lost", e.Key)
			continue
		}
		for _, n := range e.Sample.Names() {
			assert.True(t, e.Sample.Get(n).Equal(s.Get(n)), "%s %s: want %s got %s", e.Key, n, e.Sample.Get(n), s.Get(n))
		}
	}
}

func TestBlocksRoundTrip(t *testing.T) {
	table := ioTable()
	w, err := NewWriter()
	require.NoError(t, err)
	defer w.Close()
	_, err = w.Write(table, blockLayout())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "io.xlsx")
	require.NoError(t, w.SaveAs(path))

	read, err := ReadBlocks(path, Header{Group: []experiment.Axis{sectionAxis, bsAxis}, Column: njAxis})
	require.NoError(t, err)
	assert.Equal(t, table.Len(), read.Len())
	assertSameValues(t, table, read)

	s, ok := read.Get(ioKey("randwrite", "4k", "2"))
	require.True(t, ok)
	assert.False(t, s.Get("lat_avg_us").Present())
}

func TestGroupedRoundTrip(t *testing.T) {
	table := ioTable()
	w, err := NewWriter()
	require.NoError(t, err)
	defer w.Close()
	_, err = w.Write(table, Layout{
		Rows:      []string{MetricAxis},
		Columns:   []string{"section", "bs", "numjobs"},
		SheetName: "fio_summary",
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "grouped.xlsx")
	require.NoError(t, w.SaveAs(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	merged, err := f.GetMergeCells("fio_summary")
	require.NoError(t, err)
	assert.Len(t, merged, 4)
	require.NoError(t, f.Close())

	read, err := ReadGrouped(path, "fio_summary", Header{Group: []experiment.Axis{sectionAxis, bsAxis}, Column: njAxis})
	require.NoError(t, err)
	assert.Equal(t, table.Len(), read.Len())
	assertSameValues(t, table, read)
}

func TestWriter_AppendsToSheet(t *testing.T) {
	w, err := NewWriter()
	require.NoError(t, err)
	defer w.Close()

	layout := blockLayout()
	_, err = w.Write(ioTable(), layout)
	require.NoError(t, err)
	_, err = w.Write(ioTable(), layout)
	require.NoError(t, err)
	assert.Equal(t, []string{"io"}, w.Sheets())

	path := filepath.Join(t.TempDir(), "twice.xlsx")
	require.NoError(t, w.SaveAs(path))
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("io", "A17")
	require.NoError(t, err)
	assert.Equal(t, "randread_4k", v)
}

func TestWriter_EmptyWorkbook(t *testing.T) {
	w, err := NewWriter()
	require.NoError(t, err)
	defer w.Close()
	assert.Error(t, w.SaveAs(filepath.Join(t.TempDir(), "empty.xlsx")))
}

func TestRender_MaxRowsSplitsSheets(t *testing.T) {
	table := dataframe.NewTable("breakdown")
	axes := []experiment.Axis{experiment.IntAxis("seq"), experiment.TextAxis("opcode")}
	for i, op := range []string{"READ", "WRITE", "READ", "READ", "WRITE"} {
		table.Insert(experiment.NewKey(axes, []string{strconv.Itoa(i), op}),
			dataframe.SampleOf(map[string]float64{"daemon_us": float64(i)}))
	}

	grids, err := Render(table, Layout{
		Rows:         []string{"seq", "opcode"},
		Columns:      []string{MetricAxis},
		ObservedRows: true,
		SheetName:    "READ_WRITE",
		MaxRows:      2,
	})
	require.NoError(t, err)
	require.Len(t, grids, 3)
	assert.Equal(t, "READ_WRITE_1", grids[0].Sheet)
	assert.Equal(t, "READ_WRITE_3", grids[2].Sheet)

	last := grids[2].Strings()
	assert.Equal(t, []string{"seq", "opcode", "daemon_us"}, last[0])
	assert.Equal(t, []string{"4", "WRITE", "4"}, last[1])
}

func TestLayout_MaxRowsLeavesRoomForHeaders(t *testing.T) {
	flat := Layout{Rows: []string{"seq"}, Columns: []string{MetricAxis}}
	assert.Equal(t, maxSheetRows-1, flat.maxRows(1))

	grouped := Layout{Rows: []string{MetricAxis}, Columns: []string{"workload", "numjobs"}}
	assert.Equal(t, maxSheetRows-2, grouped.maxRows(1))

	blocked := Layout{Block: []string{"workload"}, Rows: []string{MetricAxis}, Columns: []string{"numjobs"}}
	perBlock := blocked.maxRows(4)
	assert.LessOrEqual(t, 4*(perBlock+3), maxSheetRows)
	assert.Greater(t, 4*(perBlock+4), maxSheetRows)

	capped := Layout{Rows: []string{"seq"}, Columns: []string{MetricAxis}, MaxRows: 1000000}
	assert.Equal(t, 1000000, capped.maxRows(1))
	capped.MaxRows = maxSheetRows
	assert.Equal(t, maxSheetRows-1, capped.maxRows(1))
}
