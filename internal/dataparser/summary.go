package dataparser

import (
	"benchsheet/internal/dataframe"
	"benchsheet/internal/logging"

	"github.com/sirupsen/logrus"
)

// LogSummary logs per-metric statistics over the table at debug level and the
// table size at info level.
func LogSummary(table *dataframe.Table, metrics []string) {
	logger := logging.GetLogger()
	logger.WithFields(logrus.Fields{
		"table":   table.Name(),
		"entries": table.Len(),
		"metrics": len(table.Metrics()),
	}).Info("Table summary")

	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	if len(metrics) == 0 {
		metrics = table.Metrics()
	}
	for _, m := range metrics {
		s, err := table.Summarize(m, nil)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"table":   table.Name(),
				"metric":  m,
				"missing": s.Missing,
			}).Debug("No values for metric")
			continue
		}
		logger.WithFields(logrus.Fields{
			"table":   table.Name(),
			"metric":  m,
			"count":   s.Count,
			"missing": s.Missing,
			"mean":    s.Mean,
			"median":  s.Median,
			"min":     s.Min,
			"max":     s.Max,
		}).Debug("Metric summary")
	}
}
