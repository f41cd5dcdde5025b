// Package dataframe holds extracted metrics keyed by experiment.
package dataframe

import (
	"fmt"
	"sort"
	"sync"

	"benchsheet/internal/experiment"
	"benchsheet/internal/logging"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"
)

type Entry struct {
	Key    experiment.Key
	Sample Sample
	Source string
}

// Table maps experiment keys to samples. Each key holds at most one sample;
// a later insert under the same key replaces the earlier one and logs a
// warning.
type Table struct {
	name    string
	entries map[string]*Entry
	mutex   sync.RWMutex
}

func NewTable(name string) *Table {
	return &Table{
		name:    name,
		entries: make(map[string]*Entry),
	}
}

func (t *Table) Name() string { return t.name }

func (t *Table) Insert(key experiment.Key, sample Sample) {
	t.InsertFrom(key, sample, "")
}

// InsertFrom records where the sample came from so collisions can name both
// files. It reports whether an earlier entry was replaced.
func (t *Table) InsertFrom(key experiment.Key, sample Sample, source string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	id := key.ID()
	prev, exists := t.entries[id]
	t.entries[id] = &Entry{Key: key, Sample: sample, Source: source}

	if exists {
		logging.GetLogger().WithFields(logrus.Fields{
			"table":    t.name,
			"key":      key.String(),
			"previous": prev.Source,
			"source":   source,
		}).Warn("Duplicate experiment key, keeping the later sample")
	}
	return exists
}

func (t *Table) Get(key experiment.Key) (Sample, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	e, ok := t.entries[key.ID()]
	if !ok {
		return Sample{}, false
	}
	return e.Sample, true
}

func (t *Table) Len() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.entries)
}

// Entries returns every entry sorted by key.
func (t *Table) Entries() []Entry {
	t.mutex.RLock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	t.mutex.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return experiment.Compare(out[i].Key, out[j].Key) < 0
	})
	return out
}

// Query returns the sorted entries whose key matches every axis in partial.
func (t *Table) Query(partial experiment.Partial) []Entry {
	var out []Entry
	for _, e := range t.Entries() {
		if e.Key.Matches(partial) {
			out = append(out, e)
		}
	}
	return out
}

// Domain is the sorted set of distinct labels seen on one axis.
type Domain struct {
	Axis   experiment.Axis
	Labels []string
}

// Domains returns one domain per axis, in the order axes first appear in the
// sorted entries.
func (t *Table) Domains() []Domain {
	var order []experiment.Axis
	seen := make(map[string]map[string]bool)
	for _, e := range t.Entries() {
		axes := e.Key.Axes()
		labels := e.Key.Labels()
		for i, a := range axes {
			if _, ok := seen[a.Name]; !ok {
				seen[a.Name] = make(map[string]bool)
				order = append(order, a)
			}
			seen[a.Name][labels[i]] = true
		}
	}

	domains := make([]Domain, 0, len(order))
	for _, a := range order {
		labels := make([]string, 0, len(seen[a.Name]))
		for l := range seen[a.Name] {
			labels = append(labels, l)
		}
		kind := a.Kind
		sort.Slice(labels, func(i, j int) bool {
			return experiment.CompareLabels(kind, labels[i], labels[j]) < 0
		})
		domains = append(domains, Domain{Axis: a, Labels: labels})
	}
	return domains
}

// Domain returns the domain of one axis.
func (t *Table) Domain(axis string) (Domain, bool) {
	for _, d := range t.Domains() {
		if d.Axis.Name == axis {
			return d, true
		}
	}
	return Domain{}, false
}

// Metrics returns every metric name recorded in any sample, sorted.
func (t *Table) Metrics() []string {
	entries := t.Entries()
	samples := make([]Sample, len(entries))
	for i, e := range entries {
		samples[i] = e.Sample
	}
	return unionNames(samples...)
}

// Summary describes the present values of one metric. Missing values are
// left out, never counted as zero.
type Summary struct {
	Metric  string
	Count   int
	Missing int
	Mean    float64
	Median  float64
	Min     float64
	Max     float64
}

func (t *Table) Summarize(metric string, partial experiment.Partial) (Summary, error) {
	s := Summary{Metric: metric}
	var data stats.Float64Data
	for _, e := range t.Query(partial) {
		v, ok := e.Sample.Get(metric).Get()
		if !ok {
			s.Missing++
			continue
		}
		data = append(data, v)
	}
	s.Count = len(data)
	if s.Count == 0 {
		return s, fmt.Errorf("no values for metric %s", metric)
	}

	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, err
	}
	if s.Min, err = stats.Min(data); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, err
	}
	return s, nil
}

// Rekey returns a new table with every key passed through fn. Entries for
// which fn reports false are dropped.
func (t *Table) Rekey(name string, fn func(experiment.Key) (experiment.Key, bool)) *Table {
	out := NewTable(name)
	for _, e := range t.Entries() {
		k, ok := fn(e.Key)
		if !ok {
			continue
		}
		out.InsertFrom(k, e.Sample, e.Source)
	}
	return out
}

// Filter returns a new table holding only the selected metrics, in any entry
// that records at least one of them.
func (t *Table) Filter(name string, metrics []string) *Table {
	out := NewTable(name)
	for _, e := range t.Entries() {
		b := NewBuilder()
		for _, m := range metrics {
			if e.Sample.Has(m) {
				b.Set(m, e.Sample.Get(m))
			}
		}
		if b.Len() == 0 {
			continue
		}
		out.InsertFrom(e.Key, b.Build(), e.Source)
	}
	return out
}
