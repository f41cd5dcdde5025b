package extractors

import (
	"errors"
	"regexp"
	"strings"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/units"
)

// FioText reads fio's default human readable report. Only the first job
// block is used, which is the whole report under group_reporting.
type FioText struct{}

func (FioText) Name() string { return "fio-text" }

var (
	fioSectionRe   = regexp.MustCompile(`(?m)^\s*(read|write|trim)\s*:\s*IOPS=`)
	fioIOPSRe      = regexp.MustCompile(`IOPS=\s*([0-9.,]+\s*[kKmMgG]?)`)
	fioBWDecimalRe = regexp.MustCompile(`BW=[^(\n]*\(\s*([0-9.]+\s*[kKMG]?B/s)\s*\)`)
	fioBWRe        = regexp.MustCompile(`BW=\s*([0-9.]+\s*[kKMG]?i?B/s)`)
	fioLatRe       = regexp.MustCompile(`(?m)^\s*lat\s*\((nsec|usec|msec|sec)\)\s*:\s*min=.*?avg=\s*([0-9.]+)`)
	fioCLatRe      = regexp.MustCompile(`(?m)^\s*clat\s*\((nsec|usec|msec|sec)\)\s*:\s*min=.*?avg=\s*([0-9.]+)`)
	fioPctHeadRe   = regexp.MustCompile(`(?m)^\s*(?:clat|lat)\s+percentiles\s*\((nsec|usec|msec|sec)\)\s*:`)
	fioPctRe       = regexp.MustCompile(`([0-9]+\.[0-9]+)th=\[\s*([0-9.]+)\s*\]`)
	fioCPURe       = regexp.MustCompile(`(?m)^\s*cpu\s*:\s*usr=([0-9.]+)%,\s*sys=([0-9.]+)%`)
)

type fioSection struct {
	dir  string
	text string
}

func splitFioSections(text string) []fioSection {
	locs := fioSectionRe.FindAllStringSubmatchIndex(text, -1)
	sections := make([]fioSection, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := text[loc[0]:end]
		// the section ends where the job summary starts
		if idx := fioCPURe.FindStringIndex(body); idx != nil {
			body = body[:idx[0]]
		}
		sections = append(sections, fioSection{dir: text[loc[2]:loc[3]], text: body})
	}
	return sections
}

func pickSection(sections []fioSection, d Direction) (fioSection, bool) {
	if len(sections) == 0 {
		return fioSection{}, false
	}
	if d == AnyDirection {
		return sections[0], true
	}
	for _, s := range sections {
		if s.dir == d.String() {
			return s, true
		}
	}
	return fioSection{}, false
}

// textPercentiles maps "99.99" style labels to microseconds.
func textPercentiles(section string) map[string]float64 {
	out := make(map[string]float64)
	head := fioPctHeadRe.FindStringSubmatchIndex(section)
	if head == nil {
		return out
	}
	unit := section[head[2]:head[3]]
	var block strings.Builder
	for _, line := range strings.Split(section[head[1]:], "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "|") {
			break
		}
		block.WriteString(trimmed)
		block.WriteByte('\n')
	}
	for _, m := range fioPctRe.FindAllStringSubmatch(block.String(), -1) {
		v, ok := parseFloat(m[2])
		if !ok {
			continue
		}
		us, ok := units.ToMicros(v, unit)
		if !ok {
			continue
		}
		key, err := FioPercentileKey(m[1])
		if err != nil {
			continue
		}
		out[key] = us
	}
	return out
}

func textLatency(section string) dataframe.Value {
	for _, re := range []*regexp.Regexp{fioLatRe, fioCLatRe} {
		m := re.FindStringSubmatch(section)
		if m == nil {
			continue
		}
		v, ok := parseFloat(m[2])
		if !ok {
			continue
		}
		if us, ok := units.ToMicros(v, m[1]); ok {
			return dataframe.Of(us)
		}
	}
	return dataframe.Missing()
}

func textBandwidth(section string) dataframe.Value {
	for _, re := range []*regexp.Regexp{fioBWDecimalRe, fioBWRe} {
		m := re.FindStringSubmatch(section)
		if m == nil {
			continue
		}
		if mb, err := units.RateToMB(strings.ReplaceAll(m[1], " ", "")); err == nil {
			return dataframe.Of(mb)
		}
	}
	return dataframe.Missing()
}

func (FioText) Extract(content []byte, hint Hint) ([]Row, error) {
	text := string(content)
	sections := splitFioSections(text)
	if len(sections) == 0 {
		return nil, errors.New("no fio read/write section found")
	}

	wanted := hint.Percentiles
	if len(wanted) == 0 {
		wanted = DefaultFioPercentiles
	}

	b := dataframe.NewBuilder()
	section, ok := pickSection(sections, hint.Direction)
	if ok {
		iops := dataframe.Missing()
		if m := fioIOPSRe.FindStringSubmatch(section.text); m != nil {
			if v, err := units.ParseQuantity(m[1]); err == nil {
				iops = dataframe.Of(v)
			}
		}
		b.Set("iops", iops)
		b.Set("bw_mbps", textBandwidth(section.text))
		b.Set("lat_avg_us", textLatency(section.text))
		pct := textPercentiles(section.text)
		for _, p := range wanted {
			key, err := FioPercentileKey(p)
			if err != nil {
				continue
			}
			if v, ok := pct[key]; ok {
				b.SetFloat(PercentileMetric("", key), v)
			} else {
				b.SetMissing(PercentileMetric("", key))
			}
		}
	} else {
		for _, name := range []string{"iops", "bw_mbps", "lat_avg_us"} {
			b.SetMissing(name)
		}
		for _, p := range wanted {
			if key, err := FioPercentileKey(p); err == nil {
				b.SetMissing(PercentileMetric("", key))
			}
		}
	}

	if m := fioCPURe.FindStringSubmatch(text); m != nil {
		usr, okU := parseFloat(m[1])
		sys, okS := parseFloat(m[2])
		if okU {
			b.SetFloat("usr_cpu_pct", usr)
		} else {
			b.SetMissing("usr_cpu_pct")
		}
		if okS {
			b.SetFloat("sys_cpu_pct", sys)
		} else {
			b.SetMissing("sys_cpu_pct")
		}
	} else {
		b.SetMissing("usr_cpu_pct")
		b.SetMissing("sys_cpu_pct")
	}

	return single(b.Build()), nil
}
