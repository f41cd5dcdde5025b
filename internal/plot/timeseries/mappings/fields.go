package mappings

import "strings"

// FieldMapping describes how a metric or axis is labelled on a plot. Min and
// Max are a float64, "auto" (data range with a margin), or nil (0 and 100).
type FieldMapping struct {
	Label      string
	ShortLabel string
	Min        interface{}
	Max        interface{}
}

var fieldMappings = map[string]FieldMapping{
	"sec":          {Label: "Time (s)", ShortLabel: "Time", Min: "auto", Max: "auto"},
	"t":            {Label: "Sample", ShortLabel: "Sample", Min: "auto", Max: "auto"},
	"hits":         {Label: "Page cache hits", ShortLabel: "Hits", Min: 0.0, Max: "auto"},
	"misses":       {Label: "Page cache misses", ShortLabel: "Misses", Min: 0.0, Max: "auto"},
	"dirties":      {Label: "Dirtied pages", ShortLabel: "Dirties", Min: 0.0, Max: "auto"},
	"hitratio_pct": {Label: "Page cache hit ratio (\\%)", ShortLabel: "Hit ratio", Min: 0.0, Max: 100.0},
	"usage_pct":    {Label: "CPU usage (\\%)", ShortLabel: "CPU usage", Min: 0.0, Max: 100.0},
	"cycles":       {Label: "CPU cycles", ShortLabel: "Cycles", Min: 0.0, Max: "auto"},
	"instructions": {Label: "Instructions", ShortLabel: "Instructions", Min: 0.0, Max: "auto"},
	"cache-misses": {Label: "Cache misses", ShortLabel: "Cache misses", Min: 0.0, Max: "auto"},
	"iops":         {Label: "IOPS", ShortLabel: "IOPS", Min: 0.0, Max: "auto"},
	"bw_mbps":      {Label: "Bandwidth (MB/s)", ShortLabel: "Bandwidth", Min: 0.0, Max: "auto"},
	"lat_avg_us":   {Label: "Mean latency (\\textmu s)", ShortLabel: "Latency", Min: 0.0, Max: "auto"},
}

// GetFieldMapping returns the mapping for name. Unknown names get their own
// name as label and automatic limits.
func GetFieldMapping(name string) FieldMapping {
	if m, ok := fieldMappings[name]; ok {
		return m
	}
	label := strings.ReplaceAll(name, "_", "\\_")
	return FieldMapping{Label: label, ShortLabel: label, Min: "auto", Max: "auto"}
}
