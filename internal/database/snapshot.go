package database

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"benchsheet/internal/config"
	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
)

const SnapshotVersion = 1

type SnapshotAxis struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// SnapshotRecord is one table entry. Every record carries its own axes, so a
// snapshot can hold keys of different shapes. Missing metrics are null.
type SnapshotRecord struct {
	Axes    []SnapshotAxis             `json:"axes"`
	Labels  []string                   `json:"labels"`
	Metrics map[string]dataframe.Value `json:"metrics"`
	Source  string                     `json:"source,omitempty"`
}

// Snapshot is the machine-readable form of a table, written next to or
// instead of the workbook.
type Snapshot struct {
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`

	Tool          string `json:"tool"`
	Table         string `json:"table"`
	InputDir      string `json:"input_dir"`
	TraceChecksum string `json:"trace_checksum"`

	Records []SnapshotRecord `json:"records"`
}

func DefaultSnapshotDir() string {
	if v := strings.TrimSpace(os.Getenv("BENCHSHEET_SNAPSHOT_DIR")); v != "" {
		return v
	}
	return "snapshots"
}

// BuildSnapshot captures table in entry order.
func BuildSnapshot(tool, inputDir string, table *dataframe.Table, cfg *config.Config) *Snapshot {
	checksum := config.ChecksumOrEmpty(cfg)

	entries := table.Entries()
	records := make([]SnapshotRecord, 0, len(entries))
	for _, e := range entries {
		axes := e.Key.Axes()
		rec := SnapshotRecord{
			Axes:    make([]SnapshotAxis, len(axes)),
			Labels:  e.Key.Labels(),
			Metrics: e.Sample.Values(),
			Source:  e.Source,
		}
		for i, a := range axes {
			rec.Axes[i] = SnapshotAxis{Name: a.Name, Kind: a.Kind.String()}
		}
		records = append(records, rec)
	}

	return &Snapshot{
		Version:       SnapshotVersion,
		CreatedAt:     time.Now(),
		Tool:          tool,
		Table:         table.Name(),
		InputDir:      inputDir,
		TraceChecksum: checksum,
		Records:       records,
	}
}

// ToTable rebuilds the table a snapshot was taken from.
func (s *Snapshot) ToTable() (*dataframe.Table, error) {
	table := dataframe.NewTable(s.Table)
	for i, rec := range s.Records {
		if len(rec.Axes) != len(rec.Labels) {
			return nil, fmt.Errorf("record %d has %d axes and %d labels", i, len(rec.Axes), len(rec.Labels))
		}
		axes := make([]experiment.Axis, len(rec.Axes))
		for j, a := range rec.Axes {
			axes[j] = experiment.Axis{Name: a.Name, Kind: experiment.ParseKind(a.Kind)}
		}
		b := dataframe.NewBuilder()
		for name, v := range rec.Metrics {
			b.Set(name, v)
		}
		table.InsertFrom(experiment.NewKey(axes, rec.Labels), b.Build(), rec.Source)
	}
	return table, nil
}

// WriteSnapshot writes a gzip-compressed JSON snapshot to disk atomically.
// It returns the final file path.
func WriteSnapshot(dir string, snapshot *Snapshot) (string, error) {
	if snapshot == nil {
		return "", fmt.Errorf("snapshot is nil")
	}
	if dir == "" {
		dir = DefaultSnapshotDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	checksum := snapshot.TraceChecksum
	if checksum == "" {
		checksum = "nocsum"
	}
	name := fmt.Sprintf(
		"%s_%s_%s.json.gz",
		snapshot.Tool,
		snapshot.CreatedAt.UTC().Format("20060102T150405Z"),
		checksum,
	)
	finalPath := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, name+".tmp.*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()

	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(tmpPath)
		}
	}()

	gz := gzip.NewWriter(tmp)
	enc := json.NewEncoder(gz)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		_ = gz.Close()
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", err
	}
	ok = true
	return finalPath, nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer gz.Close()

	var s Snapshot
	if err := json.NewDecoder(gz).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("%s has snapshot version %d, expected %d", path, s.Version, SnapshotVersion)
	}
	return &s, nil
}

// IsSnapshot reports whether path names a snapshot file.
func IsSnapshot(path string) bool {
	return strings.HasSuffix(path, ".json.gz")
}
