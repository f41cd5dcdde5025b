package extractors

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
)

// ProcVmstat reads a /proc/vmstat snapshot of "key value" lines.
type ProcVmstat struct{}

func (ProcVmstat) Name() string { return "procvmstat" }

func (ProcVmstat) Extract(content []byte, _ Hint) ([]Row, error) {
	b := dataframe.NewBuilder()
	for _, line := range strings.Split(string(content), "\n") {
		parts := strings.Fields(line)
		if len(parts) != 2 {
			continue
		}
		v, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		b.SetFloat(parts[0], float64(v))
	}
	if b.Len() == 0 {
		return nil, errors.New("no vmstat counters found")
	}
	return single(b.Build()), nil
}

// Vmstat reads `vmstat 1` output. The first sample after the header is the
// average since boot and is dropped; the rest are numbered from t=0.
type Vmstat struct{}

func (Vmstat) Name() string { return "vmstat" }

var vmstatHeaderRe = regexp.MustCompile(`\br\b.*\bb\b.*\bswpd\b`)

var TimeAxis = experiment.IntAxis("t")

func (Vmstat) Extract(content []byte, _ Hint) ([]Row, error) {
	lines := nonEmptyLines(string(content))
	headerIdx := -1
	for i, line := range lines {
		if vmstatHeaderRe.MatchString(line) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, errors.New("no vmstat header found")
	}
	header := strings.Fields(lines[headerIdx])

	var rows []Row
	t := 0
	for i := headerIdx + 2; i < len(lines); i++ {
		parts := strings.Fields(lines[i])
		if len(parts) != len(header) || vmstatHeaderRe.MatchString(lines[i]) {
			continue
		}
		b := dataframe.NewBuilder()
		for j, h := range header {
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
	return rows, nil
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
