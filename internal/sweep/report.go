package sweep

import (
	"fmt"
	"io"
	"time"

	"volume-sage/internal/database"
	"volume-sage/internal/disk"
	"volume-sage/internal/styles"
)

// Report summarises one sweep
type Report struct {
	RunID  string
	Root   string
	Mode   string
	DryRun bool

	DirsVisited  int
	FilesVisited int
	Candidates   int
	Deleted      int
	WouldDelete  int
	Declined     int
	Skipped      int
	Vanished     int
	Failed       int
	Unreadable   int
	BytesFreed   int64
	Duration     time.Duration
	Volume       disk.Usage
}

func (r *Report) count(action string, size int64) {
	switch action {
	case database.ActionDelete:
		r.Deleted++
		r.BytesFreed += size
	case database.ActionDryRun:
		r.WouldDelete++
	case database.ActionSkip:
		r.Skipped++
	case database.ActionVanished:
		r.Vanished++
	case database.ActionError:
		r.Failed++
	}
}

// Print writes a short operator-facing summary
func (r Report) Print(w io.Writer) {
	if r.DryRun {
		fmt.Fprintf(w, "%s %d file(s) would be deleted under %s\n",
			styles.Render(&styles.Info, "[dry run]"), r.WouldDelete, r.Root)
	} else {
		fmt.Fprintf(w, "%s %d file(s) deleted under %s, %s freed\n",
			styles.Render(&styles.Success, "Done."), r.Deleted, r.Root, formatBytes(r.BytesFreed))
	}

	details := fmt.Sprintf("%d dirs, %d files scanned, %d matched", r.DirsVisited, r.FilesVisited, r.Candidates)
	if r.Declined > 0 {
		details += fmt.Sprintf(", %d kept", r.Declined)
	}
	if r.Skipped > 0 {
		details += fmt.Sprintf(", %d skipped", r.Skipped)
	}
	if r.Vanished > 0 {
		details += fmt.Sprintf(", %d already gone", r.Vanished)
	}
	fmt.Fprintln(w, styles.Render(&styles.Dimmed, details))

	if r.Volume.TotalBytes > 0 {
		fmt.Fprintln(w, styles.Render(&styles.Dimmed, fmt.Sprintf("Drive: %s used of %s, %.0f%% free",
			formatBytes(r.Volume.UsedBytes()), formatBytes(r.Volume.TotalBytes), r.Volume.FreePercent())))
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
