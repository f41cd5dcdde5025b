// Package extractors turns the raw output of benchmark tools into metric
// samples. There is one Extractor per source format.
package extractors

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
)

type Direction int

const (
	AnyDirection Direction = iota
	Read
	Write
)

func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "any"
	}
}

// DirectionOf guesses the direction from a fio section or workload name such
// as "randread" or "seqwrite".
func DirectionOf(section string) Direction {
	s := strings.ToLower(section)
	for _, p := range []string{"seqread", "randread", "read"} {
		if strings.HasPrefix(s, p) {
			return Read
		}
	}
	for _, p := range []string{"seqwrite", "randwrite", "write"} {
		if strings.HasPrefix(s, p) {
			return Write
		}
	}
	return AnyDirection
}

// Hint carries per-file extraction options.
type Hint struct {
	Direction Direction
	// Percentiles in fio notation, e.g. "99.000000".
	Percentiles []string
	// Opcodes kept by the breakdown extractor.
	Opcodes []string
}

// Label adds an axis to the key of the file a row came from.
type Label struct {
	Axis  experiment.Axis
	Value string
}

// Row is one sample produced from a file. Scalar formats produce a single row
// without labels; timeline formats produce one row per time bucket.
type Row struct {
	Labels []Label
	Sample dataframe.Sample
}

// Apply extends base with the row labels.
func (r Row) Apply(base experiment.Key) experiment.Key {
	k := base
	for _, l := range r.Labels {
		k = k.Extend(l.Axis, l.Value)
	}
	return k
}

// Extractor parses one source format. A returned error means the whole file
// is unusable; fields that cannot be found are reported as missing values
// inside the sample instead.
type Extractor interface {
	Name() string
	Extract(content []byte, hint Hint) ([]Row, error)
}

var registry = map[string]Extractor{}

func register(e Extractor) {
	registry[e.Name()] = e
}

func init() {
	register(FioJSON{})
	register(FioText{})
	register(YCSB{})
	register(Filebench{})
	register(ProcVmstat{})
	register(Vmstat{})
	register(Mpstat{})
	register(Iostat{})
	register(PerfStat{})
	register(Cachestat{})
	register(DmesgRing{})
	register(Breakdown{})
}

func Lookup(name string) (Extractor, error) {
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown extractor %q", name)
	}
	return e, nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FioPercentileKey normalizes "99.9" or "99.900000" to fio's JSON key form.
func FioPercentileKey(p string) (string, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
	if err != nil {
		return "", fmt.Errorf("invalid percentile %q: %w", p, err)
	}
	return strconv.FormatFloat(f, 'f', 6, 64), nil
}

// PercentileLabel turns "99.950000" into "p99.95".
func PercentileLabel(p string) string {
	f, err := strconv.ParseFloat(p, 64)
	if err != nil {
		return "p" + p
	}
	return "p" + strconv.FormatFloat(f, 'f', -1, 64)
}

// PercentileMetric names a percentile latency metric, e.g. "p99_lat_us" or
// "read_p99.99_lat_us".
func PercentileMetric(prefix, p string) string {
	name := PercentileLabel(p) + "_lat_us"
	if prefix != "" {
		name = prefix + "_" + name
	}
	return name
}

func single(s dataframe.Sample) []Row {
	return []Row{{Sample: s}}
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseLocaleFloat accepts a comma as decimal separator, as sysstat prints
// under some locales.
func parseLocaleFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
