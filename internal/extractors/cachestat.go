package extractors

import (
	"errors"
	"strconv"
	"strings"

	"benchsheet/internal/dataframe"
)

// Cachestat reads bcc cachestat output:
//
//	HITS   MISSES  DIRTIES HITRATIO   BUFFERS_MB  CACHED_MB
//	1132        0        4  100.00%          277       4367
//
// Each data line becomes one sample numbered by its position.
type Cachestat struct{}

func (Cachestat) Name() string { return "cachestat" }

func (Cachestat) Extract(content []byte, _ Hint) ([]Row, error) {
	var rows []Row
	for _, line := range nonEmptyLines(string(content)) {
		if strings.Contains(line, "HITS") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 4 {
			continue
		}
		hits, okH := parseFloat(parts[0])
		misses, okM := parseFloat(parts[1])
		ratio, okR := parseFloat(parts[3])
		if !okH || !okM || !okR {
			continue
		}
		b := dataframe.NewBuilder().
			SetFloat("hits", hits).
			SetFloat("misses", misses).
			SetFloat("hitratio_pct", ratio)
		if dirties, ok := parseFloat(parts[2]); ok {
			b.SetFloat("dirties", dirties)
		} else {
			b.SetMissing("dirties")
		}
		rows = append(rows, Row{
			Labels: []Label{{Axis: SecondAxis, Value: strconv.Itoa(len(rows))}},
			Sample: b.Build(),
		})
	}
	if len(rows) == 0 {
		return nil, errors.New("no cachestat samples found")
	}
	return rows, nil
}
