package database

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"benchsheet/internal/config"
	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func sampleTable() *dataframe.Table {
	axes := []experiment.Axis{
		experiment.TextAxis("workload"),
		{Name: "bs", Kind: experiment.BinarySize},
		experiment.IntAxis("numjobs"),
	}
	table := dataframe.NewTable("fio-io")
	table.InsertFrom(experiment.NewKey(axes, []string{"randread", "4k", "1"}),
		dataframe.SampleOf(map[string]float64{"iops": 1200, "lat_avg_us": 0}), "randread_4k_1.json")
	table.InsertFrom(experiment.NewKey(axes, []string{"randwrite", "4k", "2"}),
		dataframe.NewBuilder().SetFloat("iops", 900).SetMissing("lat_avg_us").Build(), "randwrite_4k_2.json")
	table.Insert(experiment.NewKey(axes, []string{"randwrite", "128k", "2"}),
		dataframe.NewBuilder().SetMissing("iops").Build())
	return table
}

func TestSnapshotRoundTrip(t *testing.T) {
	table := sampleTable()
	cfg := config.Default()

	snap := BuildSnapshot("fio-io", "logs", table, cfg)
	dir := filepath.Join(t.TempDir(), "snap")
	path, err := WriteSnapshot(dir, snap)
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if !IsSnapshot(path) || filepath.Dir(path) != dir {
		t.Fatalf("unexpected snapshot path %s", path)
	}
	if !strings.HasPrefix(filepath.Base(path), "fio-io_") {
		t.Fatalf("snapshot name should start with the tool: %s", path)
	}

	read, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if read.Tool != "fio-io" || read.TraceChecksum != snap.TraceChecksum || len(read.Records) != 3 {
		t.Fatalf("snapshot header mismatch: %+v", read)
	}

	back, err := read.ToTable()
	if err != nil {
		t.Fatalf("ToTable: %v", err)
	}
	if back.Len() != table.Len() {
		t.Fatalf("expected %d entries, got %d", table.Len(), back.Len())
	}
	want := table.Entries()
	got := back.Entries()
	for i := range want {
		if !want[i].Key.Equal(got[i].Key) {
			t.Fatalf("entry %d: key %s, want %s", i, got[i].Key, want[i].Key)
		}
		if !want[i].Sample.Equal(got[i].Sample) {
			t.Fatalf("entry %d: sample differs for %s", i, want[i].Key)
		}
		if want[i].Source != got[i].Source {
			t.Fatalf("entry %d: source %q, want %q", i, got[i].Source, want[i].Source)
		}
		if a, _ := got[i].Key.Axis("bs"); a.Kind != experiment.BinarySize {
			t.Fatalf("axis kind lost: %v", a)
		}
	}
}

func TestReadSnapshot_NotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json.gz")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatal("expected an error for a plain file")
	}
}

func TestTablePoints(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	points := TablePoints(sampleTable(), 7, ts)
	// the all-missing entry has no fields
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}

	var lines []string
	for _, p := range points {
		lines = append(lines, write.PointToLineProtocol(p, time.Second))
	}
	joined := strings.Join(lines, "")
	for _, want := range []string{
		"fio-io,bs=4k,numjobs=1,run_id=7,workload=randread iops=1200,lat_avg_us=0 1700000000",
		"fio-io,bs=4k,numjobs=2,run_id=7,workload=randwrite iops=900 1700000000",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing line %q in\n%s", want, joined)
		}
	}
}

func TestWriteTable(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/write" {
			b, _ := io.ReadAll(r.Body)
			body += string(b)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := influxdb2.NewClient(srv.URL, "token")
	idb := &InfluxDBClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking("org", "bucket"),
		bucket:   "bucket",
		org:      "org",
	}
	defer idb.Close()

	if err := idb.WriteTable(context.Background(), sampleTable(), 1, time.Unix(1, 0)); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	if !strings.Contains(body, "workload=randwrite") || strings.Contains(body, "128k") {
		t.Fatalf("unexpected write body:\n%s", body)
	}
}
