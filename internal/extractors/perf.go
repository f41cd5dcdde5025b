package extractors

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
)

var SecondAxis = experiment.IntAxis("sec")

// PerfStat reads `perf stat -I` interval output. Timestamps are truncated to
// whole seconds and counts of the same event within a second are summed.
type PerfStat struct{}

func (PerfStat) Name() string { return "perf-stat" }

var perfUnits = map[string]bool{
	"msec": true, "ns": true, "us": true, "ms": true, "sec": true, "Joules": true, "MiB": true,
}

func (PerfStat) Extract(content []byte, _ Hint) ([]Row, error) {
	buckets := make(map[int]*dataframe.Builder)
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 3 {
			continue
		}
		ts, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			continue
		}
		count, ok := parseFloat(parts[1])
		if !ok {
			continue
		}
		event := parts[2]
		if perfUnits[event] && len(parts) > 3 {
			event = parts[3]
		}

		sec := int(ts)
		b, ok := buckets[sec]
		if !ok {
			b = dataframe.NewBuilder()
			buckets[sec] = b
		}
		b.Add(event, count)
	}
	if len(buckets) == 0 {
		return nil, errors.New("no perf stat intervals found")
	}

	secs := make([]int, 0, len(buckets))
	for s := range buckets {
		secs = append(secs, s)
	}
	sort.Ints(secs)

	rows := make([]Row, 0, len(secs))
	for _, s := range secs {
		rows = append(rows, Row{
			Labels: []Label{{Axis: SecondAxis, Value: strconv.Itoa(s)}},
			Sample: buckets[s].Build(),
		})
	}
	return rows, nil
}
