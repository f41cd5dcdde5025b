package experiment

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedBound(t *testing.T) {
	g := SchedBound("", false)

	k, ok := g.Parse("rr_cpu-pinned_fio.log")
	require.True(t, ok)
	assert.Equal(t, []string{"rr", "cpu-pinned_fio"}, k.Labels())

	k, ok = g.Parse("sub/thr.json")
	require.True(t, ok)
	assert.Equal(t, []string{"thr", "default"}, k.Labels())
}

func TestSchedBoundSuffix(t *testing.T) {
	perf := SchedBound("perf_stat", true)
	k, ok := perf.Parse("rr_mem_bound_perf_stat.log")
	require.True(t, ok)
	assert.Equal(t, []string{"rr", "mem"}, k.Labels())

	cache := SchedBound("cachestat", false)
	k, ok = cache.Parse("nested/rr_mem_bound_cachestat.log")
	require.True(t, ok)
	assert.Equal(t, []string{"rr", "mem_bound"}, k.Labels())

	_, ok = cache.Parse("rr_mem_bound_vmstat_before.log")
	assert.False(t, ok)
}

func TestSchedBoundPhase(t *testing.T) {
	g := SchedBoundPhase()
	k, ok := g.Parse("rr_io_bound_run.log")
	require.True(t, ok)
	assert.Equal(t, []string{"rr", "io_bound", "run"}, k.Labels())

	k, ok = g.Parse("rr_webserver.log")
	require.True(t, ok)
	assert.Equal(t, []string{"rr", "", "webserver"}, k.Labels())

	k, ok = g.Parse("lonely.log")
	require.True(t, ok)
	assert.Equal(t, []string{"lonely", "", ""}, k.Labels())
}

func TestRegexGrammars(t *testing.T) {
	k, ok := WorkloadBSNumjobs("json").Parse("randread_128k_16.json")
	require.True(t, ok)
	assert.Equal(t, []string{"randread", "128k", "16"}, k.Labels())

	_, ok = WorkloadBSNumjobs("json").Parse("randread_128k_16.log")
	assert.False(t, ok)

	k, ok = CPUsWorkloadBSNumjobs().Parse("0,2,4_randread_4k_3.log")
	require.True(t, ok)
	assert.Equal(t, []string{"0,2,4", "randread", "4k", "3"}, k.Labels())

	k, ok = CPUDirWorkload().Parse("cpus_0-19/randwrite_bs128k_njs32.log")
	require.True(t, ok)
	assert.Equal(t, []string{"0-19", "randwrite", "128k", "32"}, k.Labels())

	k, ok = WorkloadDir().Parse("4KB-rand-read/mpstat.log")
	require.True(t, ok)
	assert.Equal(t, []string{"4KB-rand-read", "mpstat"}, k.Labels())

	_, ok = WorkloadDir().Parse("fio.log")
	assert.False(t, ok)
}

func TestBlockSizeAxesAreBinary(t *testing.T) {
	for _, g := range []Grammar{WorkloadBSNumjobs("log"), CPUsWorkloadBSNumjobs(), CPUDirWorkload()} {
		k, ok := g.Parse(map[string]string{
			"workload-bs-numjobs":      "randread_4k_1.log",
			"cpus-workload-bs-numjobs": "0_randread_4k_1.log",
			"cpudir-workload":          "cpus_0/randread_bs4k_njs1.log",
		}[g.Name()])
		require.True(t, ok, g.Name())
		bs, ok := k.Axis("bs")
		require.True(t, ok, g.Name())
		assert.Equal(t, BinarySize, bs.Kind, g.Name())
	}
}

func TestParseIsPure(t *testing.T) {
	names := []string{"b_x_1.json", "a_y_2.json", "a_x_10.json"}
	g := WorkloadBSNumjobs("json")
	first := map[string]string{}
	for _, n := range names {
		k, _ := g.Parse(n)
		first[n] = k.ID()
	}
	for i := len(names) - 1; i >= 0; i-- {
		k, _ := g.Parse(names[i])
		assert.Equal(t, first[names[i]], k.ID())
	}
}

func TestCompareLabels(t *testing.T) {
	sizes := []string{"1M", "128k", "4k", "64k"}
	sort.Slice(sizes, func(i, j int) bool { return CompareLabels(DecimalSize, sizes[i], sizes[j]) < 0 })
	assert.Equal(t, []string{"4k", "64k", "128k", "1M"}, sizes)

	jobs := []string{"16", "2", "x", "1"}
	sort.Slice(jobs, func(i, j int) bool { return CompareLabels(Integer, jobs[i], jobs[j]) < 0 })
	assert.Equal(t, []string{"1", "2", "16", "x"}, jobs)

	cpus := []string{"8,10", "0,2,4", "0", "0-19"}
	sort.Slice(cpus, func(i, j int) bool { return CompareLabels(CPUSet, cpus[i], cpus[j]) < 0 })
	assert.Equal(t, []string{"0", "0,2,4", "0-19", "8,10"}, cpus)
}

func TestKeyExtendAndCompare(t *testing.T) {
	base := NewKey([]Axis{TextAxis("sched")}, []string{"rr"})
	a := base.Extend(IntAxis("sec"), "2")
	b := base.Extend(IntAxis("sec"), "10")

	assert.Equal(t, 1, base.Len(), "Extend must not modify the receiver")
	assert.Negative(t, Compare(a, b))
	assert.Negative(t, Compare(base, a))
	assert.Zero(t, Compare(a, a))

	label, ok := a.Label("sec")
	require.True(t, ok)
	assert.Equal(t, "2", label)
	assert.True(t, a.Matches(Partial{"sched": "rr"}))
	assert.False(t, a.Matches(Partial{"sched": "thr"}))
	assert.Equal(t, base.ID(), a.Without("sec").ID())
}
