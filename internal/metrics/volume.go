package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"volume-sage/internal/disk"
)

// Volume metrics
var (
	// ErrorsTotal tracks total errors encountered during a run
	ErrorsTotal prometheus.Counter

	// VolumeFreeBytes tracks free space on the swept volume
	VolumeFreeBytes *prometheus.GaugeVec

	// VolumeTotalBytes tracks capacity of the swept volume
	VolumeTotalBytes *prometheus.GaugeVec

	// VolumeFreePercent tracks free space percentage of the swept volume
	VolumeFreePercent *prometheus.GaugeVec
)

func initVolumeMetrics() {
	ErrorsTotal = NewCounter(
		"volumesage_errors_total",
		"Total number of errors encountered by volume-sage.",
	)

	VolumeFreeBytes = NewGaugeVec(
		"volumesage_volume_free_bytes",
		"Free space available on the swept volume.",
		[]string{"path"},
	)

	VolumeTotalBytes = NewGaugeVec(
		"volumesage_volume_total_bytes",
		"Total capacity of the swept volume.",
		[]string{"path"},
	)

	VolumeFreePercent = NewGaugeVec(
		"volumesage_volume_free_percent",
		"Free space percentage of the swept volume.",
		[]string{"path"},
	)
}

func registerVolumeMetrics() {
	Registry.MustRegister(ErrorsTotal)
	Registry.MustRegister(VolumeFreeBytes)
	Registry.MustRegister(VolumeTotalBytes)
	Registry.MustRegister(VolumeFreePercent)
}

// UpdateVolumeMetrics publishes the filesystem usage of a swept root
func UpdateVolumeMetrics(path string, u disk.Usage) {
	VolumeFreeBytes.WithLabelValues(path).Set(float64(u.FreeBytes))
	VolumeTotalBytes.WithLabelValues(path).Set(float64(u.TotalBytes))
	VolumeFreePercent.WithLabelValues(path).Set(u.FreePercent())
}
