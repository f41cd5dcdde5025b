package extractors

import (
	"bufio"
	"bytes"
	"errors"
	"strings"

	"benchsheet/internal/dataframe"
)

// YCSB reads "[SECTION], Metric, Value" summary lines into SECTION_Metric.
type YCSB struct{}

func (YCSB) Name() string { return "ycsb" }

func (YCSB) Extract(content []byte, _ Hint) ([]Row, error) {
	b := dataframe.NewBuilder()
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "[") || !strings.Contains(line, ",") {
			continue
		}
		end := strings.Index(line, "]")
		if end < 0 {
			continue
		}
		section := line[1:end]
		parts := strings.Split(strings.TrimLeft(line[end+1:], " ,"), ",")
		if len(parts) < 2 {
			continue
		}
		metric := strings.TrimSpace(parts[0])
		v, ok := parseFloat(parts[1])
		if !ok {
			continue
		}
		b.SetFloat(section+"_"+metric, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if b.Len() == 0 {
		return nil, errors.New("no YCSB summary lines found")
	}
	return single(b.Build()), nil
}
