package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"volume-sage/internal/disk"
)

func findFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := Registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func counterValue(t *testing.T, name string) float64 {
	t.Helper()
	mf := findFamily(t, name)
	if mf == nil || len(mf.GetMetric()) == 0 {
		t.Fatalf("metric %s not found", name)
	}
	return mf.GetMetric()[0].GetCounter().GetValue()
}

func labeledValue(t *testing.T, name, label, value string) (float64, bool) {
	t.Helper()
	mf := findFamily(t, name)
	if mf == nil {
		return 0, false
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue(), true
				}
				return m.GetGauge().GetValue(), true
			}
		}
	}
	return 0, false
}

// TestMetricsInit verifies that Init() is idempotent and registers metrics
func TestMetricsInit(t *testing.T) {
	Init()
	Init()
	Init()

	if SweepDuration == nil || BytesFreedTotal == nil || FilesDeletedTotal == nil {
		t.Fatal("sweep metrics should be initialized")
	}
	if ErrorsTotal == nil || VolumeFreeBytes == nil {
		t.Fatal("volume metrics should be initialized")
	}

	expected := []string{
		"volumesage_sweep_duration_seconds",
		"volumesage_bytes_freed_total",
		"volumesage_files_deleted_total",
		"volumesage_sweep_last_run_timestamp",
		"volumesage_sweep_last_mode",
		"volumesage_errors_total",
	}
	for _, name := range expected {
		if findFamily(t, name) == nil {
			t.Errorf("Expected metric %s not found in registry", name)
		}
	}
}

func TestRecordDeletion(t *testing.T) {
	Init()

	files := counterValue(t, "volumesage_files_deleted_total")
	bytes := counterValue(t, "volumesage_bytes_freed_total")

	RecordDeletion(4096)
	RecordDeletion(512)

	if got := counterValue(t, "volumesage_files_deleted_total") - files; got != 2 {
		t.Errorf("Expected 2 more deletions, got %v", got)
	}
	if got := counterValue(t, "volumesage_bytes_freed_total") - bytes; got != 4608 {
		t.Errorf("Expected 4608 more bytes freed, got %v", got)
	}
}

func TestRecordEvent(t *testing.T) {
	Init()

	before, _ := labeledValue(t, "volumesage_sweep_events_total", "action", "DECLINE")
	RecordEvent("DECLINE")
	RecordEvent("DECLINE")
	after, ok := labeledValue(t, "volumesage_sweep_events_total", "action", "DECLINE")
	if !ok {
		t.Fatal("DECLINE series not found")
	}
	if after-before != 2 {
		t.Errorf("Expected 2 more declines, got %v", after-before)
	}
}

func TestSetSweepMode(t *testing.T) {
	Init()

	SetSweepMode("CONFIRM")
	SetSweepMode("FORCE")

	if v, ok := labeledValue(t, "volumesage_sweep_last_mode", "mode", "FORCE"); !ok || v != 1 {
		t.Errorf("Expected FORCE=1, got %v (present=%v)", v, ok)
	}
	if _, ok := labeledValue(t, "volumesage_sweep_last_mode", "mode", "CONFIRM"); ok {
		t.Error("previous mode should have been reset")
	}
}

func TestRecordSweepRun(t *testing.T) {
	Init()

	RecordSweepRun(250 * time.Millisecond)

	mf := findFamily(t, "volumesage_sweep_last_run_timestamp")
	if mf == nil {
		t.Fatal("last run timestamp not found")
	}
	if mf.GetMetric()[0].GetGauge().GetValue() <= 0 {
		t.Error("last run timestamp should be set")
	}
}

func TestUpdateVolumeMetrics(t *testing.T) {
	Init()

	UpdateVolumeMetrics("/Volumes/TEST", disk.Usage{FreeBytes: 300, TotalBytes: 1200})

	if v, ok := labeledValue(t, "volumesage_volume_free_bytes", "path", "/Volumes/TEST"); !ok || v != 300 {
		t.Errorf("unexpected free bytes %v (present=%v)", v, ok)
	}
	if v, ok := labeledValue(t, "volumesage_volume_free_percent", "path", "/Volumes/TEST"); !ok || v != 25 {
		t.Errorf("unexpected free percent %v (present=%v)", v, ok)
	}
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collector", "volume_sage.prom")

	RecordEvent("DELETE")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "volumesage_sweep_events_total") {
		t.Error("textfile is missing sweep events")
	}
	if strings.Contains(text, "go_goroutines") {
		t.Error("textfile should not carry runtime metrics")
	}
}

// TestStandardBuckets verifies bucket definitions are sorted
func TestStandardBuckets(t *testing.T) {
	for name, buckets := range map[string][]float64{
		"duration": DurationBuckets,
		"bytes":    BytesBuckets,
	} {
		for i := 1; i < len(buckets); i++ {
			if buckets[i] <= buckets[i-1] {
				t.Errorf("%s buckets not increasing at %d: %v", name, i, buckets)
			}
		}
	}
}
