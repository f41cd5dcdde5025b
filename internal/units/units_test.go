package units

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseQuantity(t *testing.T) {
	cases := map[string]float64{
		"128":   128,
		"128k":  128000,
		"128Ki": 131072,
		"12.3k": 12300,
		"1M":    1e6,
		"1Mi":   1048576,
		"2G":    2e9,
		"1,024": 1024,
		"4KiB":  4096,
	}
	for in, want := range cases {
		got, err := ParseQuantity(in)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if !almostEqual(got, want) {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}

	if _, err := ParseQuantity("fast"); err == nil {
		t.Fatalf("expected error for non-numeric quantity")
	}
}

func TestParseSizeBinary(t *testing.T) {
	got, err := ParseSize("4k", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4096 {
		t.Fatalf("expected 4096, got %v", got)
	}
	got, _ = ParseSize("4k", false)
	if got != 4000 {
		t.Fatalf("expected 4000, got %v", got)
	}
}

func TestToMicros(t *testing.T) {
	if v, ok := ToMicros(5000, "nsec"); !ok || !almostEqual(v, 5.0) {
		t.Fatalf("expected 5us from 5000nsec, got %v (ok=%v)", v, ok)
	}
	if v, ok := ToMicros(5, "msec"); !ok || !almostEqual(v, 5000.0) {
		t.Fatalf("expected 5000us from 5msec, got %v (ok=%v)", v, ok)
	}
	if v, ok := ToMicros(2, "sec"); !ok || !almostEqual(v, 2e6) {
		t.Fatalf("expected 2e6us from 2sec, got %v (ok=%v)", v, ok)
	}
	if _, ok := ToMicros(1, "fortnight"); ok {
		t.Fatalf("expected unknown unit to be rejected")
	}
}

func TestMicrosRoundTrip(t *testing.T) {
	for _, unit := range []string{"nsec", "usec", "msec", "sec"} {
		us, _ := ToMicros(1234.5, unit)
		back, ok := FromMicros(us, unit)
		if !ok || !almostEqual(back, 1234.5) {
			t.Fatalf("%s: expected 1234.5 after round trip, got %v", unit, back)
		}
	}
}

func TestNormalizeCPUPercent(t *testing.T) {
	if got := NormalizeCPUPercent(45.0); got != 45.0 {
		t.Fatalf("expected 45.0 unchanged, got %v", got)
	}
	if got := NormalizeCPUPercent(0.45); !almostEqual(got, 45.0) {
		t.Fatalf("expected 0.45 to become 45.0, got %v", got)
	}
	once := NormalizeCPUPercent(0.45)
	twice := NormalizeCPUPercent(once)
	if once != twice {
		t.Fatalf("normalization applied twice changed %v to %v", once, twice)
	}
}

func TestRateToMB(t *testing.T) {
	cases := map[string]float64{
		"50.3MB/s": 50.3,
		"1MiB/s":   1.048576,
		"500kB/s":  0.5,
		"1GB/s":    1000,
	}
	for in, want := range cases {
		got, err := RateToMB(in)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if !almostEqual(got, want) {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestBytesToMB(t *testing.T) {
	if got := BytesToMB(3 * BytesPerMiB); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
}
