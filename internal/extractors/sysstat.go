package extractors

import (
	"errors"
	"strconv"
	"strings"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
)

var CPUAxis = experiment.IntAxis("cpu")

// Mpstat reads `mpstat -P ALL 1`. Usage is 100 - %idle; every "all" line
// starts a new sample.
type Mpstat struct{}

func (Mpstat) Name() string { return "mpstat" }

func (Mpstat) Extract(content []byte, _ Hint) ([]Row, error) {
	var header []string
	cpuIdx, idleIdx := -1, -1
	t := -1
	var rows []Row

	for _, line := range nonEmptyLines(string(content)) {
		if strings.Contains(line, "CPU") && strings.Contains(line, "%idle") {
			header = strings.Fields(line)
			cpuIdx, idleIdx = indexOf(header, "CPU"), indexOf(header, "%idle")
			if cpuIdx < 0 || idleIdx < 0 {
				header = nil
			}
			continue
		}
		if header == nil || strings.HasPrefix(line, "Average") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < len(header) {
			continue
		}
		tokens := parts[len(parts)-len(header):]
		cpu := tokens[cpuIdx]
		if cpu == "all" {
			t++
		} else if _, err := strconv.Atoi(cpu); err != nil {
			continue
		}
		if t < 0 {
			continue
		}

		usage := dataframe.Missing()
		if idle, ok := parseLocaleFloat(tokens[idleIdx]); ok {
			usage = dataframe.Of(100 - idle)
		}
		rows = append(rows, Row{
			Labels: []Label{
				{Axis: TimeAxis, Value: strconv.Itoa(t)},
				{Axis: CPUAxis, Value: cpu},
			},
			Sample: dataframe.NewBuilder().Set("usage_pct", usage).Build(),
		})
	}
	if header == nil {
		return nil, errors.New("no mpstat header found")
	}
	return rows, nil
}

// Iostat reads `iostat -x 1 -d <dev>`. Only the first device seen is kept.
type Iostat struct{}

func (Iostat) Name() string { return "iostat" }

func (Iostat) Extract(content []byte, _ Hint) ([]Row, error) {
	var header []string
	device := ""
	t := 0
	var rows []Row

	for _, line := range nonEmptyLines(string(content)) {
		if strings.HasPrefix(line, "Device") {
			header = strings.Fields(line)
			continue
		}
		if header == nil {
			continue
		}
		parts := strings.Fields(line)
		if device == "" {
			device = parts[0]
		}
		if parts[0] != device {
			continue
		}
		b := dataframe.NewBuilder()
		for j, h := range header {
			if j == 0 {
				continue
			}
			if j >= len(parts) {
				b.SetMissing(h)
				continue
			}
			if v, ok := parseLocaleFloat(parts[j]); ok {
				b.SetFloat(h, v)
			} else {
				b.SetMissing(h)
			}
		}
		rows = append(rows, Row{
			Labels: []Label{{Axis: TimeAxis, Value: strconv.Itoa(t)}},
			Sample: b.Build(),
		})
		t++
	}
	if header == nil {
		return nil, errors.New("no iostat device header found")
	}
	return rows, nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
