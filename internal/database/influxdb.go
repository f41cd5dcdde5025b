package database

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"benchsheet/internal/config"
	"benchsheet/internal/dataframe"
	"benchsheet/internal/logging"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

const metaMeasurement = "benchsheet_meta"

// RunMetadata describes one tool run exported to InfluxDB.
type RunMetadata struct {
	RunID          int    `json:"run_id"`
	Tool           string `json:"tool"`
	InputDir       string `json:"input_dir"`
	Entries        int    `json:"entries"`
	Metrics        int    `json:"metrics"`
	ConfigChecksum string `json:"config_checksum"`
	Created        string `json:"created"` // RFC3339 timestamp
	Hostname       string `json:"hostname"`
	OSInfo         string `json:"os_info"`
	KernelVersion  string `json:"kernel_version"`
	CPUModel       string `json:"cpu_model"`
	CPUThreads     int    `json:"cpu_threads"`
}

// SystemInfo contains host system information
type SystemInfo struct {
	Hostname      string
	OSInfo        string
	KernelVersion string
	CPUModel      string
	CPUThreads    int
}

// collectSystemInfo gathers host system information
func collectSystemInfo() *SystemInfo {
	info := &SystemInfo{
		OSInfo:     runtime.GOOS + "/" + runtime.GOARCH,
		CPUThreads: runtime.NumCPU(),
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	info.Hostname = hostname

	if data, err := os.ReadFile("/proc/version"); err == nil {
		parts := strings.Fields(string(data))
		if len(parts) >= 3 {
			info.KernelVersion = parts[2]
		}
	}
	if info.KernelVersion == "" {
		info.KernelVersion = "unknown"
	}

	if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "model name") {
				if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
					info.CPUModel = strings.TrimSpace(parts[1])
					break
				}
			}
		}
	}
	if info.CPUModel == "" {
		info.CPUModel = "unknown"
	}

	return info
}

type InfluxDBClient struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
	org      string
}

func NewInfluxDBClient(cfg config.InfluxConfig) (*InfluxDBClient, error) {
	logger := logging.GetLogger()

	client := influxdb2.NewClient(cfg.Host, cfg.Token)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		logger.WithField("host", cfg.Host).WithError(err).Error("Failed to connect to InfluxDB")
		client.Close()
		return nil, err
	}

	if health.Status != "pass" {
		message := ""
		if health.Message != nil {
			message = *health.Message
		}
		logger.WithFields(logrus.Fields{
			"host":    cfg.Host,
			"status":  health.Status,
			"message": message,
		}).Error("InfluxDB health check failed")
		client.Close()
		return nil, fmt.Errorf("influxdb at %s is not healthy: %s", cfg.Host, health.Status)
	}

	logger.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"bucket": cfg.Bucket,
		"org":    cfg.Org,
	}).Info("Connected to InfluxDB")

	return &InfluxDBClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
		org:      cfg.Org,
	}, nil
}

// GetLastRunID returns the highest run id recorded for tool in the last 30
// days, or 0.
func (idb *InfluxDBClient) GetLastRunID(ctx context.Context, tool string) (int, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: -30d)
		|> filter(fn: (r) => r._measurement == "%s" and r.tool == "%s")
		|> distinct(column: "run_id")
		|> map(fn: (r) => ({_value: int(v: r.run_id)}))
		|> max()
		|> yield(name: "max_run_id")
	`, idb.bucket, metaMeasurement, tool)

	result, err := idb.queryAPI.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to query last run ID: %w", err)
	}
	defer result.Close()

	maxID := 0
	for result.Next() {
		if id, ok := result.Record().Value().(int64); ok && int(id) > maxID {
			maxID = int(id)
		}
	}

	if result.Err() != nil {
		return 0, fmt.Errorf("error reading query results: %w", result.Err())
	}

	return maxID, nil
}

// TablePoints turns every entry of table into one point: the measurement is
// the table name, the key axes become tags and present metrics become fields.
// Entries without a single present metric produce no point.
func TablePoints(table *dataframe.Table, runID int, ts time.Time) []*write.Point {
	var points []*write.Point
	for _, e := range table.Entries() {
		fields := make(map[string]interface{})
		for name, v := range e.Sample.Values() {
			if f, ok := v.Get(); ok {
				fields[name] = f
			}
		}
		if len(fields) == 0 {
			continue
		}

		tags := map[string]string{"run_id": strconv.Itoa(runID)}
		labels := e.Key.Labels()
		for i, a := range e.Key.Axes() {
			tags[a.Name] = labels[i]
		}
		points = append(points, influxdb2.NewPoint(table.Name(), tags, fields, ts))
	}
	return points
}

func (idb *InfluxDBClient) WriteTable(ctx context.Context, table *dataframe.Table, runID int, ts time.Time) error {
	points := TablePoints(table, runID, ts)
	if len(points) > 0 {
		if err := idb.writeAPI.WritePoint(ctx, points...); err != nil {
			return fmt.Errorf("failed to write data points: %w", err)
		}
	}

	logging.GetLogger().WithFields(logrus.Fields{
		"table":  table.Name(),
		"run_id": runID,
		"points": len(points),
	}).Info("Wrote table to InfluxDB")
	return nil
}

func (idb *InfluxDBClient) WriteMetadata(ctx context.Context, metadata *RunMetadata) error {
	point := influxdb2.NewPoint(metaMeasurement,
		map[string]string{
			"run_id": strconv.Itoa(metadata.RunID),
			"tool":   metadata.Tool,
		},
		map[string]interface{}{
			"input_dir":       metadata.InputDir,
			"entries":         metadata.Entries,
			"metrics":         metadata.Metrics,
			"config_checksum": metadata.ConfigChecksum,
			"created":         metadata.Created,
			"hostname":        metadata.Hostname,
			"os_info":         metadata.OSInfo,
			"kernel_version":  metadata.KernelVersion,
			"cpu_model":       metadata.CPUModel,
			"cpu_threads":     metadata.CPUThreads,
		},
		time.Now())

	if err := idb.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

// CollectRunMetadata describes a finished run of tool over table.
func CollectRunMetadata(runID int, tool, inputDir string, table *dataframe.Table, cfg *config.Config) *RunMetadata {
	sysInfo := collectSystemInfo()
	checksum := config.ChecksumOrEmpty(cfg)

	return &RunMetadata{
		RunID:          runID,
		Tool:           tool,
		InputDir:       inputDir,
		Entries:        table.Len(),
		Metrics:        len(table.Metrics()),
		ConfigChecksum: checksum,
		Created:        time.Now().Format(time.RFC3339),
		Hostname:       sysInfo.Hostname,
		OSInfo:         sysInfo.OSInfo,
		KernelVersion:  sysInfo.KernelVersion,
		CPUModel:       sysInfo.CPUModel,
		CPUThreads:     sysInfo.CPUThreads,
	}
}

func (idb *InfluxDBClient) Close() {
	if idb.client != nil {
		idb.client.Close()
	}
}
