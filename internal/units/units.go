// Package units decodes the unit suffixes and time units found in benchmark
// logs and file names.
package units

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	dockerunits "github.com/docker/go-units"
)

// BytesPerMiB is the divisor used for every bytes/s to MB/s conversion.
const BytesPerMiB = 1024 * 1024

var quantityRe = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*([kKmMgGtT]?)(i?)[bB]?$`)

// Multiplier returns the scale factor for a k/M/G/T suffix. A trailing "i"
// selects the binary table (Ki = 1024); otherwise the suffix is decimal unless
// binary is set, which is how fio block sizes like "4k" are meant.
func Multiplier(prefix string, iec bool, binary bool) (float64, error) {
	if prefix == "" {
		return 1, nil
	}
	if iec || binary {
		n, err := dockerunits.RAMInBytes("1" + prefix)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	}
	n, err := dockerunits.FromHumanSize("1" + prefix)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}

func parse(s string, binary bool) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	m := quantityRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	mult, err := Multiplier(m[2], m[3] != "", binary)
	if err != nil {
		return 0, fmt.Errorf("invalid suffix in %q: %w", s, err)
	}
	return v * mult, nil
}

// ParseQuantity decodes numbers such as "12.3k" (12300) or "4Ki" (4096).
func ParseQuantity(s string) (float64, error) {
	return parse(s, false)
}

// ParseSize decodes a size label. With binary set, a bare k/M/G suffix is
// read as a power of 1024.
func ParseSize(s string, binary bool) (float64, error) {
	return parse(s, binary)
}

var microsPer = map[string]float64{
	"nsec": 1e-3, "ns": 1e-3,
	"usec": 1, "us": 1, "µs": 1,
	"msec": 1e3, "ms": 1e3,
	"sec": 1e6, "s": 1e6,
}

// ToMicros converts v from the tagged unit to microseconds. It reports false
// for an unknown unit.
func ToMicros(v float64, unit string) (float64, bool) {
	f, ok := microsPer[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return 0, false
	}
	return v * f, true
}

// FromMicros is the inverse of ToMicros.
func FromMicros(us float64, unit string) (float64, bool) {
	f, ok := microsPer[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return 0, false
	}
	return us / f, true
}

// NormalizeCPUPercent rescales a fraction in [0,1] to percent. Values above 1
// are already percent and are returned unchanged.
func NormalizeCPUPercent(v float64) float64 {
	if v >= 0 && v <= 1 {
		return v * 100
	}
	return v
}

// BytesToMB converts a byte count (or rate) to MiB-based megabytes.
func BytesToMB(b float64) float64 {
	return b / BytesPerMiB
}

var rateRe = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*([kKmMgG]?)(i?)B/s$`)

// RateToMB converts a fio bandwidth token such as "48.0MiB/s" or "50.3MB/s"
// to MB/s. Binary rates are converted to decimal megabytes, so
// 1MiB/s = 1.048576MB/s.
func RateToMB(s string) (float64, error) {
	m := rateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid rate %q", s)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, err
	}
	mult, err := Multiplier(m[2], m[3] != "", false)
	if err != nil {
		return 0, err
	}
	return v * mult / 1e6, nil
}
