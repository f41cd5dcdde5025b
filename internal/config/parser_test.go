package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "benchsheet.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseCPUSpec(t *testing.T) {
	cases := map[string][]int{
		"0":       {0},
		"0,2,4":   {0, 2, 4},
		"0-3":     {0, 1, 2, 3},
		"8,10-12": {8, 10, 11, 12},
		"2,2,1":   {2, 1},
	}
	for in, want := range cases {
		got, err := ParseCPUSpec(in)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
	for _, bad := range []string{"", "a", "3-1", "1-2-3"} {
		if _, err := ParseCPUSpec(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestLoadConfig_ExpandsEnvAndParsesGroups(t *testing.T) {
	t.Setenv("BENCHSHEET_TEST_DIR", "/data/logs")
	path := writeConfig(t, `
default_input_dir: ${BENCHSHEET_TEST_DIR}
metrics:
  fio: [read_bw_mbps, write_bw_mbps, lat_avg_us]
percentiles:
  fio-io: ["99.950000", "99.990000"]
cpu_groups:
  even: "0,2,4,8"
  range: "0-3"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.InputDir() != "/data/logs" {
		t.Fatalf("expected expanded input dir, got %q", cfg.InputDir())
	}
	if got := cfg.MetricList("fio", nil); len(got) != 3 || got[2] != "lat_avg_us" {
		t.Fatalf("unexpected fio metric list %v", got)
	}
	if got := cfg.MetricList("ycsb", []string{"x"}); !reflect.DeepEqual(got, []string{"x"}) {
		t.Fatalf("expected default metric list, got %v", got)
	}
	if !reflect.DeepEqual(cfg.Groups["range"], []int{0, 1, 2, 3}) {
		t.Fatalf("unexpected range group %v", cfg.Groups["range"])
	}
	if !reflect.DeepEqual(cfg.GroupLabelsSorted(), []string{"even", "range"}) {
		t.Fatalf("unexpected group labels %v", cfg.GroupLabelsSorted())
	}
}

func TestLoadConfig_DefaultGroupsWhenUnset(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "default_input_dir: logs\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Groups) != 2 {
		t.Fatalf("expected the two default groups, got %v", cfg.Groups)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := []string{
		"cpu_groups:\n  bad: \"4-1\"\n",
		"metrics:\n  fio: [iops, iops]\n",
		"percentiles:\n  fio: [ninety]\n",
		"influx:\n  host: http://localhost:8086\n",
	}
	for _, content := range cases {
		_, err := LoadConfig(writeConfig(t, content))
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid for %q, got %v", content, err)
		}
	}
}
