package extractors

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/units"

	"github.com/montanaflynn/stats"
	"github.com/tidwall/gjson"
)

var DefaultFioPercentiles = []string{"99.000000"}

// FioJSON reads `fio --output-format=json` reports. Anything fio printed to
// stderr before or after the JSON object is ignored.
type FioJSON struct{}

func (FioJSON) Name() string { return "fio-json" }

// cutJSON keeps the text between the first '{' and the last '}'.
func cutJSON(content []byte) ([]byte, error) {
	start := bytes.IndexByte(content, '{')
	end := bytes.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object found")
	}
	doc := content[start : end+1]
	if !gjson.ValidBytes(doc) {
		return nil, errors.New("invalid JSON")
	}
	return doc, nil
}

func escapePath(s string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(s)
}

// latency buckets in fio's report, with the factor to microseconds.
var latencyBuckets = []struct {
	name   string
	toMicr float64
}{
	{"lat_ns", 1e-3},
	{"clat_ns", 1e-3},
	{"lat_us", 1},
	{"clat_us", 1},
	{"lat", 1},
	{"clat", 1},
}

var percentileBuckets = []struct {
	name   string
	toMicr float64
}{
	{"clat_ns", 1e-3},
	{"lat_ns", 1e-3},
	{"clat_us", 1},
	{"lat_us", 1},
	{"clat", 1},
}

type sideTotals struct {
	iops     float64
	iopsSeen bool
	bw       float64
	bwSeen   bool
	latSum   float64
	ios      float64
	maxLat   float64
	maxSeen  bool
}

func (s sideTotals) latAvg() dataframe.Value {
	if s.ios <= 0 {
		return dataframe.Missing()
	}
	return dataframe.Of(s.latSum / s.ios)
}

// meanLatency returns the mean latency of a job side in microseconds.
func meanLatency(side gjson.Result) (float64, bool) {
	for _, b := range latencyBuckets {
		m := side.Get(b.name + ".mean")
		if m.Exists() {
			return m.Float() * b.toMicr, true
		}
	}
	return 0, false
}

func maxLatency(side gjson.Result) (float64, bool) {
	for _, b := range latencyBuckets {
		m := side.Get(b.name + ".max")
		if m.Exists() {
			return m.Float() * b.toMicr, true
		}
	}
	return 0, false
}

func sumSide(jobs []gjson.Result, side string) sideTotals {
	var t sideTotals
	for _, job := range jobs {
		s := job.Get(side)
		if !s.Exists() {
			continue
		}
		if v := s.Get("iops"); v.Exists() {
			t.iops += v.Float()
			t.iopsSeen = true
		}
		if v := s.Get("bw_bytes"); v.Exists() {
			t.bw += v.Float()
			t.bwSeen = true
		} else if v := s.Get("bw"); v.Exists() {
			// fio reports "bw" in KiB/s
			t.bw += v.Float() * 1024
			t.bwSeen = true
		}
		ios := s.Get("total_ios").Float()
		if ios <= 0 {
			continue
		}
		if mean, ok := meanLatency(s); ok {
			t.latSum += mean * ios
			t.ios += ios
		}
		if mx, ok := maxLatency(s); ok && (!t.maxSeen || mx > t.maxLat) {
			t.maxLat = mx
			t.maxSeen = true
		}
	}
	return t
}

// percentiles reads the requested percentiles of one side of the first job.
// Grouped reports repeat the same distribution for every job, so averaging
// across jobs would be wrong.
func percentiles(job gjson.Result, side string, wanted []string) map[string]dataframe.Value {
	out := make(map[string]dataframe.Value, len(wanted))
	s := job.Get(side)
	if s.Get("total_ios").Float() <= 0 {
		return out
	}
	for _, b := range percentileBuckets {
		pct := s.Get(b.name + ".percentile")
		if !pct.Exists() || !pct.IsObject() {
			continue
		}
		for _, p := range wanted {
			key, err := FioPercentileKey(p)
			if err != nil {
				continue
			}
			if v := pct.Get(escapePath(key)); v.Exists() {
				out[key] = dataframe.Of(v.Float() * b.toMicr)
			}
		}
		return out
	}
	return out
}

func (FioJSON) Extract(content []byte, hint Hint) ([]Row, error) {
	doc, err := cutJSON(content)
	if err != nil {
		return nil, err
	}
	jobs := gjson.GetBytes(doc, "jobs").Array()
	if len(jobs) == 0 {
		return nil, fmt.Errorf("fio report has no jobs")
	}

	wanted := hint.Percentiles
	if len(wanted) == 0 {
		wanted = DefaultFioPercentiles
	}

	read := sumSide(jobs, "read")
	write := sumSide(jobs, "write")
	b := dataframe.NewBuilder()

	setSum := func(name string, a float64, aSeen bool, c float64, cSeen bool) {
		if !aSeen && !cSeen {
			b.SetMissing(name)
			return
		}
		b.SetFloat(name, a+c)
	}
	setOne := func(name string, v float64, seen bool) {
		if !seen {
			b.SetMissing(name)
			return
		}
		b.SetFloat(name, v)
	}

	setSum("iops", read.iops, read.iopsSeen, write.iops, write.iopsSeen)
	setOne("read_iops", read.iops, read.iopsSeen)
	setOne("write_iops", write.iops, write.iopsSeen)
	setSum("bw_mbps", units.BytesToMB(read.bw), read.bwSeen, units.BytesToMB(write.bw), write.bwSeen)
	setOne("read_bw_mbps", units.BytesToMB(read.bw), read.bwSeen)
	setOne("write_bw_mbps", units.BytesToMB(write.bw), write.bwSeen)

	combined := sideTotals{latSum: read.latSum + write.latSum, ios: read.ios + write.ios}
	if combined.ios <= 0 {
		combined = jobLevelLatency(jobs)
	}
	b.Set("read_lat_avg_us", read.latAvg())
	b.Set("write_lat_avg_us", write.latAvg())
	switch hint.Direction {
	case Read:
		b.Set("lat_avg_us", read.latAvg())
	case Write:
		b.Set("lat_avg_us", write.latAvg())
	default:
		b.Set("lat_avg_us", combined.latAvg())
	}

	maxV := dataframe.Missing()
	for _, s := range []sideTotals{read, write} {
		if s.maxSeen && (!maxV.Present() || s.maxLat > maxV.Or(0)) {
			maxV = dataframe.Of(s.maxLat)
		}
	}
	if !maxV.Present() {
		if mx, ok := maxLatency(jobs[0]); ok {
			maxV = dataframe.Of(mx)
		}
	}
	b.Set("max_lat_us", maxV)

	readPct := percentiles(jobs[0], "read", wanted)
	writePct := percentiles(jobs[0], "write", wanted)
	primary := readPct
	switch hint.Direction {
	case Write:
		primary = writePct
	case AnyDirection:
		if len(readPct) == 0 {
			primary = writePct
		}
	}
	for _, p := range wanted {
		key, err := FioPercentileKey(p)
		if err != nil {
			continue
		}
		b.Set(PercentileMetric("", key), primary[key])
		b.Set(PercentileMetric("read", key), readPct[key])
		b.Set(PercentileMetric("write", key), writePct[key])
	}

	b.Set("usr_cpu_pct", cpuMean(jobs, "usr_cpu"))
	b.Set("sys_cpu_pct", cpuMean(jobs, "sys_cpu"))

	return single(b.Build()), nil
}

// jobLevelLatency handles reports that only carry lat_ns at job level,
// weighted by the job's read plus write operations.
func jobLevelLatency(jobs []gjson.Result) sideTotals {
	var t sideTotals
	for _, job := range jobs {
		ios := job.Get("read.total_ios").Float() + job.Get("write.total_ios").Float()
		if ios <= 0 {
			continue
		}
		if mean, ok := meanLatency(job); ok {
			t.latSum += mean * ios
			t.ios += ios
		}
	}
	return t
}

func cpuMean(jobs []gjson.Result, field string) dataframe.Value {
	var data stats.Float64Data
	for _, job := range jobs {
		if v := job.Get(field); v.Exists() {
			data = append(data, v.Float())
		}
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return dataframe.Missing()
	}
	return dataframe.Of(units.NormalizeCPUPercent(mean))
}
