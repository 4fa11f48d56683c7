package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"volume-sage/internal/config"
	"volume-sage/internal/database"
	"volume-sage/internal/exitcodes"
	"volume-sage/internal/styles"
)

type queryFlags struct {
	configPath  string
	dbPath      string
	recent      int
	action      string
	pathPattern string
	runID       string
	largest     int
	stats       bool
	days        int
	jsonOutput  bool
	pruneDays   int
	since       string
	until       string
	dbStats     bool
}

var (
	errUsage  = errors.New("nothing to query")
	errConfig = errors.New("invalid config")
)

func newQueryCmd() *cobra.Command {
	var f queryFlags

	cmd := &cobra.Command{
		Use:   "volume-sage-query",
		Short: "Inspect the volume-sage sweep history",
		Example: `  volume-sage-query --recent 10              # 10 most recent events
  volume-sage-query --stats --days 7          # Totals for the last week
  volume-sage-query --action DECLINE          # Files the operator kept
  volume-sage-query --path '/Volumes/%/lib/%' # Events below lib/ on any drive
  volume-sage-query --run <run-id>            # Everything one sweep did
  volume-sage-query --largest 10              # Largest deletions
  volume-sage-query --since 2026-01-01        # Events since a date (until now)
  volume-sage-query --db-stats                # Size and age of the history file
  volume-sage-query --prune-days 90           # Forget events older than 90 days`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, &f)
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", config.DefaultConfigPath, "Configuration file holding database_path")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "Path to sweep history database (overrides config)")
	cmd.Flags().IntVar(&f.recent, "recent", 0, "Show N most recent events")
	cmd.Flags().StringVar(&f.action, "action", "", "Filter by action (DELETE, DRY_RUN, DECLINE, SKIP, VANISHED, ERROR)")
	cmd.Flags().StringVar(&f.pathPattern, "path", "", "Filter by path pattern (SQL LIKE syntax)")
	cmd.Flags().StringVar(&f.runID, "run", "", "Show every event of one sweep")
	cmd.Flags().IntVar(&f.largest, "largest", 0, "Show N largest deletions")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "Show sweep statistics")
	cmd.Flags().IntVar(&f.days, "days", 30, "Number of days for statistics")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().IntVar(&f.pruneDays, "prune-days", 0, "Delete events older than N days, then vacuum")
	cmd.Flags().StringVar(&f.since, "since", "", "Show events from this date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&f.until, "until", "", "Upper bound for --since (default now)")
	cmd.Flags().BoolVar(&f.dbStats, "db-stats", false, "Show record count, size and age of the history database")

	return cmd
}

func runQuery(cmd *cobra.Command, f *queryFlags) error {
	dbPath := f.dbPath
	if dbPath == "" {
		cfg, err := config.LoadOrDefault(f.configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return fmt.Errorf("%w: %v", errConfig, err)
		}
		dbPath = cfg.DatabasePath
	}
	if dbPath == "" {
		return fmt.Errorf("%w: pass --db or set database_path in the config", errUsage)
	}

	db, err := database.NewSweepDB(config.ExpandHome(dbPath))
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	switch {
	case f.pruneDays > 0:
		return pruneOld(out, db, f.pruneDays)
	case f.dbStats:
		return showDatabaseStats(out, db, f.jsonOutput)
	case f.stats:
		return showStats(out, db, f.days, f.jsonOutput)
	case f.recent > 0:
		return show(out, f.jsonOutput, "", func() ([]database.SweepRecord, error) {
			return db.GetRecentEvents(f.recent)
		})
	case f.runID != "":
		return show(out, f.jsonOutput, "Events of run "+f.runID, func() ([]database.SweepRecord, error) {
			return db.GetEventsByRun(f.runID)
		})
	case f.action != "":
		return show(out, f.jsonOutput, "Records with action: "+f.action, func() ([]database.SweepRecord, error) {
			return db.GetEventsByAction(f.action)
		})
	case f.pathPattern != "":
		return show(out, f.jsonOutput, "Events matching path pattern: "+f.pathPattern, func() ([]database.SweepRecord, error) {
			return db.GetEventsByPath(f.pathPattern)
		})
	case f.since != "" || f.until != "":
		start, end, err := dateRange(f.since, f.until, time.Now())
		if err != nil {
			return err
		}
		title := fmt.Sprintf("Events from %s to %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
		return show(out, f.jsonOutput, title, func() ([]database.SweepRecord, error) {
			return db.GetEventsByDateRange(start, end)
		})
	case f.largest > 0:
		return show(out, f.jsonOutput, fmt.Sprintf("Largest %d deletions:", f.largest), func() ([]database.SweepRecord, error) {
			return db.GetLargestDeletions(f.largest)
		})
	default:
		_ = cmd.Usage()
		return errUsage
	}
}

// dateRange parses --since/--until. A bare date means local midnight; a
// bare --until date covers that whole day.
func dateRange(since, until string, now time.Time) (time.Time, time.Time, error) {
	start, end := time.Time{}, now
	if since != "" {
		t, _, err := parseWhen(since)
		if err != nil {
			return start, end, fmt.Errorf("%w: --since %q: %v", errUsage, since, err)
		}
		start = t
	}
	if until != "" {
		t, dateOnly, err := parseWhen(until)
		if err != nil {
			return start, end, fmt.Errorf("%w: --until %q: %v", errUsage, until, err)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		end = t
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("%w: --until is before --since", errUsage)
	}
	return start, end, nil
}

func parseWhen(s string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, false, err
}

func showDatabaseStats(out io.Writer, db *database.SweepDB, jsonOutput bool) error {
	stats, err := db.GetDatabaseStats()
	if err != nil {
		return fmt.Errorf("failed to get database statistics: %w", err)
	}
	if jsonOutput {
		return writeJSON(out, stats)
	}

	fmt.Fprintln(out, styles.Render(&styles.Bold, "History Database"))
	fmt.Fprintf(out, "Records:          %d\n", stats["total_records"])
	if size, ok := stats["database_size_bytes"].(int64); ok {
		fmt.Fprintf(out, "Size:             %s\n", formatBytes(size))
	}
	for _, k := range []string{"oldest_record", "newest_record"} {
		if t, ok := stats[k].(time.Time); ok {
			label := "Oldest:"
			if k == "newest_record" {
				label = "Newest:"
			}
			fmt.Fprintf(out, "%-17s %s\n", label, t.Local().Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func pruneOld(out io.Writer, db *database.SweepDB, days int) error {
	n, err := db.DeleteOldRecords(days)
	if err != nil {
		return fmt.Errorf("failed to delete old records: %w", err)
	}
	if err := db.Vacuum(); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	fmt.Fprintf(out, "Deleted %d record(s) older than %d days\n", n, days)
	return nil
}

func showStats(out io.Writer, db *database.SweepDB, days int, jsonOutput bool) error {
	stats, err := db.GetSweepStats(days)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	if jsonOutput {
		return writeJSON(out, stats)
	}

	fmt.Fprintln(out, styles.Render(&styles.Bold, fmt.Sprintf("Sweep Statistics (Last %d days)", days)))
	fmt.Fprintf(out, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(out, "Sweeps:           %d\n", stats.Runs)
	fmt.Fprintf(out, "Files Deleted:    %d\n", stats.TotalDeleted)
	fmt.Fprintf(out, "Files Kept:       %d\n", stats.TotalDeclined)
	fmt.Fprintf(out, "Total Skipped:    %d\n", stats.TotalSkipped)
	fmt.Fprintf(out, "Total Errors:     %d\n", stats.TotalErrors)
	fmt.Fprintf(out, "Space Freed:      %s\n", formatBytes(stats.TotalSpaceFreed))

	printCounts(out, "By Action:", stats.ByAction)
	printCounts(out, "Deletions By Drive:", stats.ByRoot)
	return nil
}

func printCounts(out io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(out, "\n%s\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-20s %d\n", k, counts[k])
	}
}

func show(out io.Writer, jsonOutput bool, title string, query func() ([]database.SweepRecord, error)) error {
	records, err := query()
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if jsonOutput {
		if records == nil {
			records = []database.SweepRecord{}
		}
		return writeJSON(out, records)
	}

	if title != "" {
		fmt.Fprintf(out, "%s\n\n", title)
	}
	printRecords(out, records)
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecords(out io.Writer, records []database.SweepRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tAction\tMode\tSize\tPath")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t----\t----\t----")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Action, r.Mode, formatBytes(r.Size), r.Path)
	}
	_ = w.Flush()
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func main() {
	cmd := newQueryCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", styles.Render(&styles.Error, "Error:"), err)
		if errors.Is(err, errUsage) || errors.Is(err, errConfig) {
			os.Exit(exitcodes.InvalidConfig)
		}
		os.Exit(exitcodes.RuntimeError)
	}
}
