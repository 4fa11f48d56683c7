package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce  sync.Once
	modeMutex sync.Mutex

	// Registry holds every volume-sage metric. It is kept apart from the
	// default registry so the textfile carries no go_* or process_* series,
	// which node_exporter already exports itself.
	Registry = prometheus.NewRegistry()
)

// Init initializes all metrics subsystems and registers them.
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initSweepMetrics()
		initVolumeMetrics()

		registerSweepMetrics()
		registerVolumeMetrics()

		// Present in the textfile even when the sweep never ran
		SweepLastRunTimestamp.Set(0)
		SweepLastMode.WithLabelValues("NONE").Set(0)
	})
}

// WriteTextfile writes the current metric values in the Prometheus text
// exposition format for the node_exporter textfile collector. The file is
// replaced atomically so a scrape never sees a partial write.
func WriteTextfile(path string) error {
	Init()

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metrics directory %s: %w", dir, err)
		}
	}

	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		ErrorsTotal.Inc()
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
