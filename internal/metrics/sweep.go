package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sweep subsystem metrics
var (
	// SweepDuration tracks how long a sweep takes, prompts included
	SweepDuration prometheus.Histogram

	// BytesFreedTotal tracks total bytes freed by deletions
	BytesFreedTotal prometheus.Counter

	// FilesDeletedTotal tracks total AppleDouble files deleted
	FilesDeletedTotal prometheus.Counter

	// DeletedFileSize tracks the size distribution of deleted files
	DeletedFileSize prometheus.Histogram

	// EventsTotal counts every per-file decision by action
	// (DELETE, DRY_RUN, DECLINE, SKIP, VANISHED, ERROR)
	EventsTotal *prometheus.CounterVec

	// SweepLastRunTimestamp records Unix timestamp of the last sweep
	SweepLastRunTimestamp prometheus.Gauge

	// SweepLastMode tracks the mode of the last sweep (FORCE, CONFIRM)
	SweepLastMode *prometheus.GaugeVec
)

func initSweepMetrics() {
	SweepDuration = NewDurationHistogram(
		"volumesage_sweep_duration_seconds",
		"Duration of sweeps in seconds.",
	)

	BytesFreedTotal = NewCounter(
		"volumesage_bytes_freed_total",
		"Total bytes freed by deleting AppleDouble files.",
	)

	FilesDeletedTotal = NewCounter(
		"volumesage_files_deleted_total",
		"Total number of AppleDouble files deleted.",
	)

	DeletedFileSize = NewBytesHistogram(
		"volumesage_deleted_file_size_bytes",
		"Size of deleted AppleDouble files in bytes.",
	)

	EventsTotal = NewCounterVec(
		"volumesage_sweep_events_total",
		"Per-file sweep decisions by action.",
		[]string{"action"},
	)

	SweepLastRunTimestamp = NewGauge(
		"volumesage_sweep_last_run_timestamp",
		"Timestamp of the last sweep (Unix epoch seconds).",
	)

	SweepLastMode = NewGaugeVec(
		"volumesage_sweep_last_mode",
		"Mode of the last sweep, 1 for the active mode.",
		[]string{"mode"},
	)
}

func registerSweepMetrics() {
	Registry.MustRegister(SweepDuration)
	Registry.MustRegister(BytesFreedTotal)
	Registry.MustRegister(FilesDeletedTotal)
	Registry.MustRegister(DeletedFileSize)
	Registry.MustRegister(EventsTotal)
	Registry.MustRegister(SweepLastRunTimestamp)
	Registry.MustRegister(SweepLastMode)
}

// SetSweepMode resets all mode gauges to 0, then sets the active mode to 1
func SetSweepMode(mode string) {
	modeMutex.Lock()
	defer modeMutex.Unlock()

	SweepLastMode.Reset()
	SweepLastMode.WithLabelValues(mode).Set(1)
}

// RecordSweepRun stamps the last run time and observes the sweep duration
func RecordSweepRun(d time.Duration) {
	SweepLastRunTimestamp.Set(float64(time.Now().Unix()))
	SweepDuration.Observe(d.Seconds())
}

// RecordEvent counts one per-file decision
func RecordEvent(action string) {
	EventsTotal.WithLabelValues(action).Inc()
}

// RecordDeletion accounts for one removed file
func RecordDeletion(size int64) {
	FilesDeletedTotal.Inc()
	BytesFreedTotal.Add(float64(size))
	DeletedFileSize.Observe(float64(size))
}
