package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"benchsheet/internal/experiment"
)

const fioLog = `randwrite: (groupid=0, jobs=1): err= 0: pid=1
  write: IOPS=1.5k, BW=6000KiB/s (6144kB/s)(351MiB/60001msec)
    clat (nsec): min=1000, max=20000, avg=4000.00, stdev=10.00
    clat percentiles (nsec):
     | 95.00th=[ 8000], 99.00th=[ 9000], 99.99th=[12000]
  cpu          : usr=1.00%, sys=2.00%, ctx=1, majf=0, minf=1
`

func run(args ...string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.Execute()
}

func TestToolCommand_WritesWorkbook(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "randwrite_4k_1.log"), []byte(fioLog), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "nested", "fio_summary.xlsx")
	csvDir := filepath.Join(t.TempDir(), "csv")

	if err := run("fio-cpu", "-i", dir, "-o", out, "--csv-dir", csvDir, "--percentiles", "99"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("workbook not written: %v", err)
	}
	files, err := os.ReadDir(csvDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d CSV files, want 2", len(files))
	}
}

func TestToolCommand_ExitCodes(t *testing.T) {
	empty := t.TempDir()
	out := filepath.Join(t.TempDir(), "out.xlsx")

	err := run("fio-io", "-i", empty, "-o", out)
	if err == nil {
		t.Fatal("expected an error for an empty input directory")
	}
	if got := ExitCode(err); got != ExitNoInput {
		t.Fatalf("got exit code %d, want %d", got, ExitNoInput)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("workbook written without input")
	}

	err = run("fio-io", "-i", filepath.Join(empty, "missing"), "-o", out)
	if err == nil {
		t.Fatal("expected an error for a missing input directory")
	}
	if got := ExitCode(err); got != ExitFailure {
		t.Fatalf("got exit code %d, want %d", got, ExitFailure)
	}
}

func TestToolCommand_ToolFlags(t *testing.T) {
	root := NewRootCommand()
	for name, flag := range map[string]string{
		"fio-cpu":      "percentiles",
		"cpu-scaling":  "bs",
		"fio-affinity": "cpu-groups",
		"breakdown":    "opcodes",
		"perf":         "tikz",
	} {
		sub, _, err := root.Find([]string{name})
		if err != nil {
			t.Fatalf("command %s: %v", name, err)
		}
		if sub.Flags().Lookup(flag) == nil {
			t.Fatalf("command %s lacks --%s", name, flag)
		}
	}
	sub, _, _ := root.Find([]string{"dmesg"})
	if sub.Flags().Lookup("percentiles") != nil {
		t.Fatal("dmesg should not take --percentiles")
	}
}

func TestParseAxis(t *testing.T) {
	a, err := parseAxis("bs:binary_size")
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != "bs" || a.Kind != experiment.BinarySize {
		t.Fatalf("got %+v", a)
	}
	a, _ = parseAxis("workload")
	if a.Kind != experiment.Text {
		t.Fatalf("got %+v, want a text axis", a)
	}
	if _, err := parseAxis(":integer"); err == nil {
		t.Fatal("expected an error for an empty name")
	}
}

func TestValidateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := "metrics:\n  fio-cpu: [iops, lat_avg_us]\ncpu_groups:\n  a: \"0,2\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run("validate", "-c", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(path, []byte("percentiles:\n  fio: [high]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run("validate", "-c", path); err == nil {
		t.Fatal("expected a validation error")
	}
}
