package dataparser

import (
	"sort"
	"strconv"

	"benchsheet/internal/config"
	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
	"benchsheet/internal/logging"

	"github.com/sirupsen/logrus"
)

var GroupAxis = experiment.Axis{Name: "group", Kind: experiment.CPUSet}

// GroupMember reports whether a run on cpus with numjobs jobs belongs to
// group: the run must use exactly the first numjobs CPUs of the group.
func GroupMember(group, cpus []int, numjobs int) bool {
	if numjobs <= 0 || numjobs > len(group) || len(cpus) != numjobs {
		return false
	}
	for i := 0; i < numjobs; i++ {
		if cpus[i] != group[i] {
			return false
		}
	}
	return true
}

// GroupByCPUs rekeys a table whose keys carry "cpus" and "numjobs" axes. Each
// entry is copied under every group it belongs to, with the "cpus" axis
// replaced by a leading "group" axis. Entries that belong to no group are
// dropped.
func GroupByCPUs(table *dataframe.Table, groups map[string][]int) *dataframe.Table {
	logger := logging.GetLogger()
	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := dataframe.NewTable(table.Name())
	dropped := 0
	for _, e := range table.Entries() {
		cpuLabel, okC := e.Key.Label("cpus")
		njLabel, okN := e.Key.Label("numjobs")
		if !okC || !okN {
			dropped++
			continue
		}
		cpus, err := config.ParseCPUSpec(cpuLabel)
		if err != nil {
			dropped++
			continue
		}
		numjobs, err := strconv.Atoi(njLabel)
		if err != nil {
			dropped++
			continue
		}

		member := false
		for _, label := range labels {
			if !GroupMember(groups[label], cpus, numjobs) {
				continue
			}
			member = true
			rest := e.Key.Without("cpus")
			key := experiment.NewKey(
				append([]experiment.Axis{GroupAxis}, rest.Axes()...),
				append([]string{label}, rest.Labels()...),
			)
			out.InsertFrom(key, e.Sample, e.Source)
		}
		if !member {
			dropped++
		}
	}

	if dropped > 0 {
		logger.WithFields(logrus.Fields{
			"table":   table.Name(),
			"dropped": dropped,
			"groups":  len(groups),
		}).Info("Entries outside every CPU group were left out")
	}
	return out
}
