package config

import (
	"sort"
)

// Config parametrizes every tool. Values are handed to the pipeline at
// construction time; nothing in the module reads configuration globals.
type Config struct {
	DefaultInputDir string              `yaml:"default_input_dir"`
	Metrics         map[string][]string `yaml:"metrics"`
	Percentiles     map[string][]string `yaml:"percentiles"`
	CPUGroups       map[string]string   `yaml:"cpu_groups"`
	Influx          InfluxConfig        `yaml:"influx"`
	Snapshot        SnapshotConfig      `yaml:"snapshot"`

	// Parsed form of CPUGroups, filled by LoadConfig.
	Groups map[string][]int `yaml:"-"`
}

type InfluxConfig struct {
	Host   string `yaml:"host"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

type SnapshotConfig struct {
	Dir string `yaml:"dir"`
}

// MetricList returns the configured metric order for a tool, or def when the
// config has none.
func (c *Config) MetricList(tool string, def []string) []string {
	if c != nil {
		if list, ok := c.Metrics[tool]; ok && len(list) > 0 {
			return list
		}
	}
	return def
}

// PercentileList returns the configured percentiles (fio notation such as
// "99.000000") for a tool, or def.
func (c *Config) PercentileList(tool string, def []string) []string {
	if c != nil {
		if list, ok := c.Percentiles[tool]; ok && len(list) > 0 {
			return list
		}
	}
	return def
}

// InputDir returns the configured default input directory or ".".
func (c *Config) InputDir() string {
	if c == nil || c.DefaultInputDir == "" {
		return "."
	}
	return c.DefaultInputDir
}

// GroupLabelsSorted returns the CPU group labels in a stable order.
func (c *Config) GroupLabelsSorted() []string {
	var labels []string
	if c == nil {
		return labels
	}
	for label := range c.Groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
