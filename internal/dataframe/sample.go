package dataframe

import (
	"sort"
)

// Sample maps metric names to values for one input file (or one row of a
// timeline file). Samples are immutable; use a Builder to make one.
type Sample struct {
	values map[string]Value
}

func (s Sample) Get(metric string) Value {
	return s.values[metric]
}

// Has reports whether the metric was recorded, present or explicitly missing.
func (s Sample) Has(metric string) bool {
	_, ok := s.values[metric]
	return ok
}

func (s Sample) Len() int { return len(s.values) }

// Names returns the recorded metric names, sorted.
func (s Sample) Names() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values returns a copy of the underlying mapping.
func (s Sample) Values() map[string]Value {
	out := make(map[string]Value, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s Sample) Equal(o Sample) bool {
	if len(s.values) != len(o.values) {
		return false
	}
	for k, v := range s.values {
		ov, ok := o.values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

type Builder struct {
	values map[string]Value
}

func NewBuilder() *Builder {
	return &Builder{values: make(map[string]Value)}
}

func (b *Builder) Set(metric string, v Value) *Builder {
	b.values[metric] = v
	return b
}

func (b *Builder) SetFloat(metric string, v float64) *Builder {
	return b.Set(metric, Of(v))
}

func (b *Builder) SetMissing(metric string) *Builder {
	return b.Set(metric, Missing())
}

// Add sums into an existing present value. Adding to a missing or absent
// metric starts from v.
func (b *Builder) Add(metric string, v float64) *Builder {
	cur, ok := b.values[metric].Get()
	if !ok {
		return b.SetFloat(metric, v)
	}
	return b.SetFloat(metric, cur+v)
}

func (b *Builder) Merge(s Sample) *Builder {
	for k, v := range s.values {
		b.values[k] = v
	}
	return b
}

func (b *Builder) Len() int { return len(b.values) }

// Build returns the sample. The builder can keep being used without affecting
// samples it already built.
func (b *Builder) Build() Sample {
	out := make(map[string]Value, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return Sample{values: out}
}

// SampleOf is a shorthand for samples of present values.
func SampleOf(values map[string]float64) Sample {
	b := NewBuilder()
	for k, v := range values {
		b.SetFloat(k, v)
	}
	return b.Build()
}

// Delta computes after - before for every metric in either sample. A side
// that lacks the metric counts as zero here and nowhere else.
func Delta(before, after Sample) Sample {
	b := NewBuilder()
	for _, name := range unionNames(before, after) {
		bv := before.Get(name).Or(0)
		av := after.Get(name).Or(0)
		b.SetFloat(name, av-bv)
	}
	return b.Build()
}

func unionNames(samples ...Sample) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range samples {
		for name := range s.values {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
