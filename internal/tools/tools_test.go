package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"benchsheet/internal/config"
	"benchsheet/internal/database"
	"benchsheet/internal/dataframe"
	"benchsheet/internal/dataparser"
	"benchsheet/internal/experiment"
	"benchsheet/internal/sheet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fioTextLog = `randread: (groupid=0, jobs=4): err= 0: pid=1234: Mon Jan  1 00:00:00 2024
  read: IOPS=12.3k, BW=48.0MiB/s (50.3MB/s)(2880MiB/60001msec)
     lat (usec): min=12, max=5010, avg=305.70, stdev=20.20
    clat percentiles (usec):
     | 95.00th=[  506], 99.00th=[  734], 99.50th=[  791], 99.90th=[  971],
     | 99.95th=[ 1037], 99.99th=[ 1237]
  cpu          : usr=5.12%, sys=20.34%, ctx=737280, majf=0, minf=100
`

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func mustLookup(t *testing.T, name string) Tool {
	t.Helper()
	tool, err := Lookup(name)
	require.NoError(t, err)
	return tool
}

func TestRegistry(t *testing.T) {
	var names []string
	for _, tool := range All() {
		names = append(names, tool.Name)
	}
	for _, want := range []string{
		"breakdown", "cachestat", "cpu-scaling", "dmesg", "filebench", "fio", "fio-affinity",
		"fio-cpu", "fio-io", "fs-summary", "perf", "vmstat", "ycsb",
	} {
		assert.Contains(t, names, want)
	}
	assert.IsIncreasing(t, names)

	_, err := Lookup("nope")
	assert.Error(t, err)

	assert.True(t, mustLookup(t, "fio-cpu").Accepts(FlagPercentiles))
	assert.False(t, mustLookup(t, "fio-cpu").Accepts(FlagCPUGroups))
}

func TestRun_FioCPU(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"randread_4k_1.log": fioTextLog,
		"randread_4k_2.log": fioTextLog,
		"notes.txt":         "not a log",
	})

	res, err := Run(mustLookup(t, "fio-cpu"), dir, Options{})
	require.NoError(t, err)
	require.Len(t, res.Outputs, 1)
	out := res.Outputs[0]
	assert.Equal(t, 2, out.Table.Len())
	assert.Equal(t, 1, out.Report.Unmatched)

	e := out.Table.Entries()[0]
	assert.Equal(t, "workload=randread,bs=4k,numjobs=1", e.Key.String())
	v, ok := e.Sample.Get("p95_lat_us").Get()
	require.True(t, ok)
	assert.Equal(t, 506.0, v)
	assert.Equal(t, []string{
		"iops", "bw_mbps", "lat_avg_us", "p95_lat_us", "p99_lat_us", "sys_cpu_pct", "usr_cpu_pct",
	}, out.Job.Layout.Metrics)
}

func TestRun_PercentileOverride(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"randread_4k_1.log": fioTextLog})

	res, err := Run(mustLookup(t, "fio-cpu"), dir, Options{Percentiles: []string{"99.9"}})
	require.NoError(t, err)
	s := res.Outputs[0].Table.Entries()[0].Sample
	v, ok := s.Get("p99.9_lat_us").Get()
	require.True(t, ok)
	assert.Equal(t, 971.0, v)
	assert.False(t, s.Has("p95_lat_us"))

	_, err = Run(mustLookup(t, "fio-cpu"), dir, Options{Percentiles: []string{"high"}})
	assert.Error(t, err)
}

func TestRun_NoInput(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"README": "nothing here"})

	_, err := Run(mustLookup(t, "fio-cpu"), dir, Options{})
	assert.True(t, errors.Is(err, dataparser.ErrNoInput))

	// every fs-summary job is empty
	_, err = Run(mustLookup(t, "fs-summary"), dir, Options{})
	assert.True(t, errors.Is(err, dataparser.ErrNoInput))
}

func TestRun_FioAffinityGroups(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"0_randread_4k_1.log":   fioTextLog,
		"0,2_randread_4k_2.log": fioTextLog,
		"0,1_randread_4k_2.log": fioTextLog,
	})

	res, err := Run(mustLookup(t, "fio-affinity"), dir, Options{
		CPUGroups: map[string][]int{"0,2,4": {0, 2, 4}},
	})
	require.NoError(t, err)
	table := res.Outputs[0].Table
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "group=0,2,4,workload=randread,bs=4k,numjobs=1", table.Entries()[0].Key.String())

	// no run matches the group
	_, err = Run(mustLookup(t, "fio-affinity"), dir, Options{
		CPUGroups: map[string][]int{"8": {8}},
	})
	assert.True(t, errors.Is(err, dataparser.ErrNoInput))
}

func TestRun_FioAffinityDefaultGroups(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"8,10_randread_4k_2.log": fioTextLog,
		"0,2_randread_4k_2.log":  fioTextLog,
		"1_randread_4k_1.log":    fioTextLog,
	})

	res, err := Run(mustLookup(t, "fio-affinity"), dir, Options{})
	require.NoError(t, err)
	table := res.Outputs[0].Table
	require.Equal(t, 2, table.Len())
	d, ok := table.Domain("group")
	require.True(t, ok)
	assert.ElementsMatch(t, config.Default().GroupLabelsSorted(), d.Labels)
}

func TestRun_CPUScalingBlockSizeFilter(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"cpus_0-3/randread_bs4k_njs1.log":   fioTextLog,
		"cpus_0-3/randread_bs128k_njs1.log": fioTextLog,
		"cpus_0/randread_bs4K_njs2.log":     fioTextLog,
	})

	res, err := Run(mustLookup(t, "cpu-scaling"), dir, Options{BlockSizes: []string{"4k"}})
	require.NoError(t, err)
	table := res.Outputs[0].Table
	assert.Equal(t, 2, table.Len())
	d, ok := table.Domain("cpus")
	require.True(t, ok)
	assert.Equal(t, []string{"0", "0-3"}, d.Labels)
}

func TestRun_Dmesg(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"run1.log": "current CPU core id=0, selected ring channel id=0\ncurrent CPU core id=1, selected ring channel id=2\n",
	})

	res, err := Run(mustLookup(t, "dmesg"), dir, Options{})
	require.NoError(t, err)
	table := res.Outputs[0].Table
	assert.Equal(t, 3, table.Len())
	all := table.Query(experiment.Partial{"core": "all"})
	require.Len(t, all, 1)
	v, _ := all[0].Sample.Get("mismatch_pct").Get()
	assert.Equal(t, 50.0, v)
}

func TestTopRingPairs_IncludesMatchingPairs(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"run1.log": strings.Repeat("current CPU core id=0, selected ring channel id=0\n", 3) +
			"current CPU core id=1, selected ring channel id=2\n",
	})

	res, err := Run(mustLookup(t, "dmesg"), dir, Options{})
	require.NoError(t, err)
	table := res.Outputs[0].Table

	pairs := topRingPairs(table, "run1", topPairs)
	require.Len(t, pairs, 2)
	core, _ := pairs[0].Key.Label("core")
	assert.Equal(t, "0", core)
	assert.Equal(t, 3.0, pairs[0].Sample.Get("count").Or(0))
	assert.Equal(t, 0.0, pairs[0].Sample.Get("mismatch").Or(0))

	assert.Len(t, topRingPairs(table, "run1", 1), 1)
}

func TestRun_BreakdownOpcodes(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"trace.csv": "ts_ns,riq_id,opcode_name,daemon_us\n1,0,READ,2\n2,0,GETATTR,3\n3,1,WRITE,4\n",
	})

	res, err := Run(mustLookup(t, "breakdown"), dir, Options{Opcodes: []string{"getattr"}})
	require.NoError(t, err)
	out := res.Outputs[0]
	assert.Equal(t, 1, out.Table.Len())
	assert.Equal(t, "GETATTR", out.Job.Layout.SheetName)
	assert.Equal(t, breakdownSheetRows, out.Job.Layout.MaxRows)
}

func TestVmstatBytes(t *testing.T) {
	s := vmstatBytes(dataframe.SampleOf(map[string]float64{"pgpgin": 3}))
	v, ok := s.Get("pgpgin_bytes").Get()
	require.True(t, ok)
	assert.Equal(t, 3072.0, v)
	assert.True(t, s.Has("pgpgout_bytes"))
	assert.False(t, s.Get("pgpgout_bytes").Present())
}

func TestParseMergeInputs(t *testing.T) {
	inputs, err := ParseMergeInputs([]string{"ext4=a/ext4_results.xlsx", "b/fuse.json.gz"})
	require.NoError(t, err)
	assert.Equal(t, []MergeInput{
		{Label: "ext4", Path: "a/ext4_results.xlsx"},
		{Label: "fuse", Path: "b/fuse.json.gz"},
	}, inputs)

	_, err = ParseMergeInputs([]string{"a=x.xlsx", "a=y.xlsx"})
	assert.Error(t, err)
	_, err = ParseMergeInputs([]string{"=x.xlsx"})
	assert.Error(t, err)
	_, err = ParseMergeInputs(nil)
	assert.True(t, errors.Is(err, dataparser.ErrNoInput))
}

func ioResult(t *testing.T, iops float64) *Result {
	t.Helper()
	h := DefaultMergeHeader()
	axes := append(append([]experiment.Axis(nil), h.Group...), h.Column)
	table := dataframe.NewTable("fio-io")
	table.Insert(experiment.NewKey(axes, []string{"randread", "4k", "1"}), dataframe.SampleOf(map[string]float64{"iops": iops}))
	table.Insert(experiment.NewKey(axes, []string{"randread", "4k", "2"}), dataframe.NewBuilder().SetMissing("iops").Build())
	table.Insert(experiment.NewKey(axes, []string{"write", "128k", "1"}), dataframe.SampleOf(map[string]float64{"iops": iops / 2}))
	return &Result{
		Tool:    "fio-io",
		Outputs: []Output{{Job: Job{Name: "fio-io", Layout: IOBlockLayout([]string{"iops"})}, Table: table}},
	}
}

func TestMerge_WorkbookAndSnapshot(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ext4 := filepath.Join(dir, "ext4.xlsx")
	_, err := Emit(ctx, ioResult(t, 100), EmitOptions{Output: ext4})
	require.NoError(t, err)

	sum, err := Emit(ctx, ioResult(t, 60), EmitOptions{
		Output:      filepath.Join(dir, "fuse.xlsx"),
		SnapshotDir: filepath.Join(dir, "snap"),
	})
	require.NoError(t, err)
	require.Len(t, sum.Snapshots, 1)

	res, err := Merge([]MergeInput{
		{Label: "ext4", Path: ext4},
		{Label: "fuse", Path: sum.Snapshots[0]},
	}, MergeOptions{Header: DefaultMergeHeader(), Metrics: []string{"iops"}})
	require.NoError(t, err)

	merged := res.Outputs[0].Table
	// the workbook drops the all-missing column, the snapshot keeps it
	assert.Equal(t, 5, merged.Len())
	fuse := merged.Query(experiment.Partial{"source": "fuse", "bs": "128k"})
	require.Len(t, fuse, 1)
	v, _ := fuse[0].Sample.Get("iops").Get()
	assert.Equal(t, 30.0, v)

	out := filepath.Join(dir, "merged.xlsx")
	sum, err = Emit(ctx, res, EmitOptions{Output: out})
	require.NoError(t, err)
	assert.Equal(t, []string{"randread_4k", "write_128k"}, sum.Sheets)

	_, err = Merge([]MergeInput{{Label: "gone", Path: filepath.Join(dir, "missing.xlsx")}},
		MergeOptions{Header: DefaultMergeHeader()})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, dataparser.ErrNoInput))
}

func TestEmit_Exports(t *testing.T) {
	dir := t.TempDir()
	res := ioResult(t, 100)
	sum, err := Emit(context.Background(), res, EmitOptions{
		Output:      filepath.Join(dir, "out", "fio.xlsx"),
		CSVDir:      filepath.Join(dir, "csv"),
		SnapshotDir: filepath.Join(dir, "snap"),
	})
	require.NoError(t, err)

	assert.FileExists(t, sum.Workbook)
	// metadata plus one sheet
	require.Len(t, sum.CSV, 2)
	for _, p := range sum.CSV {
		assert.FileExists(t, p)
	}

	snap, err := database.ReadSnapshot(sum.Snapshots[0])
	require.NoError(t, err)
	assert.Equal(t, "fio-io", snap.Tool)
	table, err := snap.ToTable()
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	read, err := sheet.ReadBlocks(sum.Workbook, DefaultMergeHeader())
	require.NoError(t, err)
	assert.Equal(t, 2, read.Len())
}
