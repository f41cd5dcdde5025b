package extractors

import (
	"regexp"
	"strings"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/units"
)

// Filebench reads the last "IO Summary:" line. Two layouts exist:
//
//	IO Summary: 42723139 ops 711991.797 ops/s 237331/0 rd/wr 3708.3mb/s 0.0ms/op
//	IO Summary: 39 ops, 3.900 ops/s, (1/0 r/w), 0.0mb/s, 76364us cpu/op, 5.7ms latency
type Filebench struct{}

func (Filebench) Name() string { return "filebench" }

var (
	filebenchPlainRe = regexp.MustCompile(`(?i)IO Summary:\s+(\d+)\s+ops\s+([\d.]+)\s+ops/s\s+(\d+)/(\d+)\s+rd/wr\s+([\d.]+)\s*mb/s\s+([\d.]+)\s*ms/op`)
	filebenchCommaRe = regexp.MustCompile(`(?i)IO Summary:\s*(\d+)\s*ops,\s*([\d.]+)\s*ops/s,\s*\((\d+)/(\d+)\s*r/w\),\s*([\d.]+)\s*mb/s,\s*(\d+)\s*us\s*cpu/op,\s*([\d.]+)\s*ms\s*(?:latency|/op)`)
)

var filebenchMetrics = []string{
	"ops", "ops_per_sec", "rd_ops_per_sec", "wr_ops_per_sec", "mb_per_sec", "ms_per_op", "cpu_us_per_op", "latency_us",
}

func (Filebench) Extract(content []byte, _ Hint) ([]Row, error) {
	b := dataframe.NewBuilder()
	for _, m := range filebenchMetrics {
		b.SetMissing(m)
	}

	var last string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.Contains(line, "IO Summary:") {
			last = strings.TrimSpace(line)
		}
	}
	if last == "" {
		return single(b.Build()), nil
	}

	set := func(name, raw string) {
		if v, ok := parseFloat(raw); ok {
			b.SetFloat(name, v)
		}
	}
	setMs := func(name, raw string) {
		if v, ok := parseFloat(raw); ok {
			if us, ok := units.ToMicros(v, "msec"); ok {
				b.SetFloat(name, us)
			}
		}
	}

	if m := filebenchPlainRe.FindStringSubmatch(last); m != nil {
		set("ops", m[1])
		set("ops_per_sec", m[2])
		set("rd_ops_per_sec", m[3])
		set("wr_ops_per_sec", m[4])
		set("mb_per_sec", m[5])
		set("ms_per_op", m[6])
	} else if m := filebenchCommaRe.FindStringSubmatch(last); m != nil {
		set("ops", m[1])
		set("ops_per_sec", m[2])
		set("rd_ops_per_sec", m[3])
		set("wr_ops_per_sec", m[4])
		set("mb_per_sec", m[5])
		set("cpu_us_per_op", m[6])
		setMs("latency_us", m[7])
	}
	return single(b.Build()), nil
}
