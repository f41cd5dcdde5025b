package experiment

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Grammar maps a log file path, relative to the scanned directory, to an
// experiment key. Parsing depends on the path string alone.
type Grammar interface {
	Name() string
	Schema() []Axis
	Parse(relPath string) (Key, bool)
}

type grammar struct {
	name   string
	axes   []Axis
	parseF func(relPath string) ([]string, bool)
}

func (g *grammar) Name() string { return g.name }

func (g *grammar) Schema() []Axis {
	out := make([]Axis, len(g.axes))
	copy(out, g.axes)
	return out
}

func (g *grammar) Parse(relPath string) (Key, bool) {
	labels, ok := g.parseF(filepath.ToSlash(relPath))
	if !ok || len(labels) != len(g.axes) {
		return Key{}, false
	}
	return NewKey(g.axes, labels), true
}

// Stem strips the directory and the last extension.
func Stem(relPath string) string {
	base := filepath.Base(relPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SchedBound parses "<sched>_<bound>" after stripping "_<suffix>" from the
// stem. The bound is everything after the first underscore, or "default".
// With firstTwo set only the second token is kept as the bound.
func SchedBound(suffix string, firstTwo bool) Grammar {
	name := "sched-bound"
	if suffix != "" {
		name = "suffix:" + suffix
	}
	return &grammar{
		name: name,
		axes: []Axis{TextAxis("sched"), TextAxis("bound")},
		parseF: func(relPath string) ([]string, bool) {
			stem := Stem(relPath)
			if suffix != "" {
				if !strings.HasSuffix(stem, "_"+suffix) && stem != suffix {
					return nil, false
				}
				stem = strings.TrimSuffix(stem, "_"+suffix)
			}
			if stem == "" {
				return nil, false
			}
			parts := strings.SplitN(stem, "_", 2)
			if len(parts) == 1 {
				return []string{parts[0], "default"}, true
			}
			bound := parts[1]
			if firstTwo {
				bound = strings.SplitN(bound, "_", 2)[0]
			}
			return []string{parts[0], bound}, true
		},
	}
}

// SchedBoundPhase parses "<sched>_<bound...>_<phase>". A stem without any
// underscore yields empty bound and phase labels.
func SchedBoundPhase() Grammar {
	return &grammar{
		name: "sched-bound-phase",
		axes: []Axis{TextAxis("sched"), TextAxis("bound"), TextAxis("phase")},
		parseF: func(relPath string) ([]string, bool) {
			stem := Stem(relPath)
			if stem == "" {
				return nil, false
			}
			parts := strings.Split(stem, "_")
			if len(parts) < 2 {
				return []string{stem, "", ""}, true
			}
			return []string{
				parts[0],
				strings.Join(parts[1:len(parts)-1], "_"),
				parts[len(parts)-1],
			}, true
		},
	}
}

type regexGrammar struct {
	name   string
	re     *regexp.Regexp
	axes   []Axis
	groups []string
}

func (g *regexGrammar) Name() string { return g.name }

func (g *regexGrammar) Schema() []Axis {
	out := make([]Axis, len(g.axes))
	copy(out, g.axes)
	return out
}

func (g *regexGrammar) Parse(relPath string) (Key, bool) {
	m := g.re.FindStringSubmatch(filepath.ToSlash(relPath))
	if m == nil {
		return Key{}, false
	}
	labels := make([]string, len(g.groups))
	for i, group := range g.groups {
		labels[i] = m[g.re.SubexpIndex(group)]
	}
	return NewKey(g.axes, labels), true
}

// Regex builds a grammar from a pattern whose named groups match the axis
// names. The pattern is matched against the slash-separated relative path.
func Regex(name, pattern string, axes ...Axis) Grammar {
	re := regexp.MustCompile(pattern)
	groups := make([]string, len(axes))
	for i, a := range axes {
		if re.SubexpIndex(a.Name) < 0 {
			panic("experiment: pattern " + pattern + " has no group " + a.Name)
		}
		groups[i] = a.Name
	}
	return &regexGrammar{name: name, re: re, axes: axes, groups: groups}
}

// WorkloadBSNumjobs parses "<workload>_<bs>_<numjobs>.<ext>".
func WorkloadBSNumjobs(ext string) Grammar {
	return Regex("workload-bs-numjobs",
		`(?:^|/)(?P<workload>[A-Za-z0-9-]+)_(?P<bs>[^_/]+)_(?P<numjobs>\d+)\.`+regexp.QuoteMeta(ext)+`$`,
		TextAxis("workload"), Axis{Name: "bs", Kind: BinarySize}, IntAxis("numjobs"))
}

// CPUsWorkloadBSNumjobs parses "<cpus>_<workload>_<bs>k_<numjobs>.log".
func CPUsWorkloadBSNumjobs() Grammar {
	return Regex("cpus-workload-bs-numjobs",
		`(?:^|/)(?P<cpus>[\d,-]+)_(?P<workload>[A-Za-z]+)_(?P<bs>\d+[kKmM])_(?P<numjobs>\d+)\.log$`,
		Axis{Name: "cpus", Kind: CPUSet}, TextAxis("workload"), Axis{Name: "bs", Kind: BinarySize}, IntAxis("numjobs"))
}

// CPUDirWorkload parses "cpus_<set>/<workload>_bs<bs>_njs<numjobs>.log".
func CPUDirWorkload() Grammar {
	return Regex("cpudir-workload",
		`(?:^|/)cpus_(?P<cpus>[^/]+)/(?P<workload>read|write|randread|randwrite)_bs(?P<bs>[0-9]+[KkMmGg])_njs(?P<numjobs>[0-9]+)\.log$`,
		Axis{Name: "cpus", Kind: CPUSet}, TextAxis("workload"), Axis{Name: "bs", Kind: BinarySize}, IntAxis("numjobs"))
}

// WorkloadDir parses "<workload>/<source>.log", one directory per workload.
func WorkloadDir() Grammar {
	return &grammar{
		name: "workload-dir",
		axes: []Axis{TextAxis("workload"), TextAxis("source")},
		parseF: func(relPath string) ([]string, bool) {
			dir := filepath.Base(filepath.Dir(relPath))
			if dir == "." || dir == "/" || dir == "" {
				return nil, false
			}
			return []string{dir, Stem(relPath)}, true
		},
	}
}

// StemOnly keys a file by its stem.
func StemOnly() Grammar {
	return &grammar{
		name: "stem",
		axes: []Axis{TextAxis("name")},
		parseF: func(relPath string) ([]string, bool) {
			stem := Stem(relPath)
			return []string{stem}, stem != ""
		},
	}
}
