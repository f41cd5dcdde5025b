// Package experiment holds the experiment key derived from a log file name
// and the filename grammars that produce it.
package experiment

import (
	"strconv"
	"strings"

	"benchsheet/internal/config"
	"benchsheet/internal/units"
)

// Kind decides how labels on an axis are ordered.
type Kind int

const (
	Text Kind = iota
	Integer
	DecimalSize
	BinarySize
	CPUSet
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case DecimalSize:
		return "decimal_size"
	case BinarySize:
		return "binary_size"
	case CPUSet:
		return "cpuset"
	default:
		return "text"
	}
}

// ParseKind is the inverse of Kind.String. Unknown names map to Text.
func ParseKind(s string) Kind {
	switch s {
	case "integer":
		return Integer
	case "decimal_size":
		return DecimalSize
	case "binary_size":
		return BinarySize
	case "cpuset":
		return CPUSet
	default:
		return Text
	}
}

type Axis struct {
	Name string
	Kind Kind
}

func TextAxis(name string) Axis { return Axis{Name: name, Kind: Text} }
func IntAxis(name string) Axis  { return Axis{Name: name, Kind: Integer} }

// Key is an ordered tuple of labels, one per axis. Keys are values: every
// method returns a new Key and never modifies the receiver.
type Key struct {
	axes   []Axis
	labels []string
}

// NewKey builds a key from parallel axis and label slices. Both are copied.
func NewKey(axes []Axis, labels []string) Key {
	if len(axes) != len(labels) {
		panic("experiment: axes and labels differ in length")
	}
	k := Key{
		axes:   make([]Axis, len(axes)),
		labels: make([]string, len(labels)),
	}
	copy(k.axes, axes)
	copy(k.labels, labels)
	return k
}

func (k Key) Len() int { return len(k.axes) }

func (k Key) Axes() []Axis {
	out := make([]Axis, len(k.axes))
	copy(out, k.axes)
	return out
}

func (k Key) Labels() []string {
	out := make([]string, len(k.labels))
	copy(out, k.labels)
	return out
}

// Label returns the label on the named axis.
func (k Key) Label(axis string) (string, bool) {
	for i, a := range k.axes {
		if a.Name == axis {
			return k.labels[i], true
		}
	}
	return "", false
}

// Axis returns the named axis.
func (k Key) Axis(name string) (Axis, bool) {
	for _, a := range k.axes {
		if a.Name == name {
			return a, true
		}
	}
	return Axis{}, false
}

// Extend appends an axis. If the axis already exists its label is replaced.
func (k Key) Extend(axis Axis, label string) Key {
	for i, a := range k.axes {
		if a.Name == axis.Name {
			out := NewKey(k.axes, k.labels)
			out.axes[i] = axis
			out.labels[i] = label
			return out
		}
	}
	return NewKey(append(k.Axes(), axis), append(k.Labels(), label))
}

// Without drops the named axes.
func (k Key) Without(names ...string) Key {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var axes []Axis
	var labels []string
	for i, a := range k.axes {
		if drop[a.Name] {
			continue
		}
		axes = append(axes, a)
		labels = append(labels, k.labels[i])
	}
	return NewKey(axes, labels)
}

// ID is a stable string identity for map lookups.
func (k Key) ID() string {
	var b strings.Builder
	for i, a := range k.axes {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(a.Name)
		b.WriteByte('=')
		b.WriteString(k.labels[i])
	}
	return b.String()
}

func (k Key) String() string {
	parts := make([]string, len(k.axes))
	for i, a := range k.axes {
		parts[i] = a.Name + "=" + k.labels[i]
	}
	return strings.Join(parts, ",")
}

func (k Key) Equal(o Key) bool {
	return k.ID() == o.ID()
}

// Partial is a subset of axis labels used to select keys.
type Partial map[string]string

// Matches reports whether every axis in p carries the same label in k.
func (k Key) Matches(p Partial) bool {
	for axis, want := range p {
		got, ok := k.Label(axis)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Compare orders keys axis by axis using each axis kind. Keys with different
// axis names fall back to comparing the names; a key that is a prefix of the
// other sorts first.
func Compare(a, b Key) int {
	n := len(a.axes)
	if len(b.axes) < n {
		n = len(b.axes)
	}
	for i := 0; i < n; i++ {
		if a.axes[i].Name != b.axes[i].Name {
			return strings.Compare(a.axes[i].Name, b.axes[i].Name)
		}
		if c := CompareLabels(a.axes[i].Kind, a.labels[i], b.labels[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a.axes) < len(b.axes):
		return -1
	case len(a.axes) > len(b.axes):
		return 1
	}
	return 0
}

// CompareLabels orders two labels of the given kind. Labels that decode sort
// before labels that do not; ties fall back to byte order so the ordering is
// total.
func CompareLabels(kind Kind, a, b string) int {
	if a == b {
		return 0
	}
	switch kind {
	case Integer:
		return compareDecoded(a, b, func(s string) (float64, bool) {
			n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			return n, err == nil
		})
	case DecimalSize, BinarySize:
		binary := kind == BinarySize
		return compareDecoded(a, b, func(s string) (float64, bool) {
			n, err := units.ParseSize(trimSizePrefix(s), binary)
			return n, err == nil
		})
	case CPUSet:
		return compareCPUSets(a, b)
	}
	return strings.Compare(a, b)
}

// trimSizePrefix strips a leading "bs" as in "bs128k".
func trimSizePrefix(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 2 && strings.EqualFold(s[:2], "bs") {
		return s[2:]
	}
	return s
}

func compareDecoded(a, b string, decode func(string) (float64, bool)) int {
	va, okA := decode(a)
	vb, okB := decode(b)
	switch {
	case okA && okB:
		if va < vb {
			return -1
		}
		if va > vb {
			return 1
		}
	case okA:
		return -1
	case okB:
		return 1
	}
	return strings.Compare(a, b)
}

func compareCPUSets(a, b string) int {
	ca, errA := config.ParseCPUSpec(a)
	cb, errB := config.ParseCPUSpec(b)
	switch {
	case errA == nil && errB == nil:
		if ca[0] != cb[0] {
			if ca[0] < cb[0] {
				return -1
			}
			return 1
		}
		if len(ca) != len(cb) {
			if len(ca) < len(cb) {
				return -1
			}
			return 1
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
