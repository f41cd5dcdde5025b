package extractors

import (
	"errors"
	"regexp"
	"sort"
	"strconv"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
)

var (
	CoreAxis = experiment.IntAxis("core")
	RingAxis = experiment.IntAxis("ring")
)

// AllLabel marks the summary row of the dmesg extractor.
const AllLabel = "all"

// DmesgRing counts FUSE ring channel selections per (core, ring) pair from
// kernel log lines such as
//
//	current CPU core id=3, selected ring channel id=5
type DmesgRing struct{}

func (DmesgRing) Name() string { return "dmesg-ring" }

var dmesgRingRe = regexp.MustCompile(`current CPU core id=(\d+), selected ring channel id=(\d+)`)

type ringPair struct{ core, ring int }

func (DmesgRing) Extract(content []byte, _ Hint) ([]Row, error) {
	counts := make(map[ringPair]int)
	total, mismatch := 0, 0
	for _, m := range dmesgRingRe.FindAllSubmatch(content, -1) {
		core, _ := strconv.Atoi(string(m[1]))
		ring, _ := strconv.Atoi(string(m[2]))
		counts[ringPair{core, ring}]++
		total++
		if core != ring {
			mismatch++
		}
	}
	if total == 0 {
		return nil, errors.New("no ring channel selections found")
	}

	pairs := make([]ringPair, 0, len(counts))
	for p := range counts {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].core != pairs[j].core {
			return pairs[i].core < pairs[j].core
		}
		return pairs[i].ring < pairs[j].ring
	})

	rows := make([]Row, 0, len(pairs)+1)
	for _, p := range pairs {
		mm := 0.0
		if p.core != p.ring {
			mm = float64(counts[p])
		}
		rows = append(rows, Row{
			Labels: []Label{
				{Axis: CoreAxis, Value: strconv.Itoa(p.core)},
				{Axis: RingAxis, Value: strconv.Itoa(p.ring)},
			},
			Sample: dataframe.NewBuilder().
				SetFloat("count", float64(counts[p])).
				SetFloat("mismatch", mm).
				Build(),
		})
	}
	rows = append(rows, Row{
		Labels: []Label{
			{Axis: CoreAxis, Value: AllLabel},
			{Axis: RingAxis, Value: AllLabel},
		},
		Sample: dataframe.NewBuilder().
			SetFloat("count", float64(total)).
			SetFloat("mismatch", float64(mismatch)).
			SetFloat("mismatch_pct", float64(mismatch)/float64(total)*100).
			Build(),
	})
	return rows, nil
}
