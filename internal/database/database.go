package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"volume-sage/internal/scan"
)

// Sweep event actions
const (
	ActionDelete   = "DELETE"
	ActionDryRun   = "DRY_RUN"
	ActionDecline  = "DECLINE"
	ActionSkip     = "SKIP"
	ActionVanished = "VANISHED"
	ActionError    = "ERROR"
)

// Sweep modes
const (
	ModeForce   = "FORCE"
	ModeConfirm = "CONFIRM"
)

// SweepDB manages the SQLite database for sweep history
type SweepDB struct {
	db *sql.DB
}

// Event is one decision taken by a sweep
type Event struct {
	RunID        string
	Action       string
	Mode         string
	Candidate    scan.Candidate
	ErrorMessage string
}

// SweepRecord represents a stored sweep event
type SweepRecord struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	RunID        string    `json:"run_id"`
	Action       string    `json:"action"`
	Path         string    `json:"path"`
	FileName     string    `json:"file_name"`
	Size         int64     `json:"size"`
	Mode         string    `json:"mode"`
	Root         string    `json:"root,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// NewSweepDB creates a new database connection and initializes schema
func NewSweepDB(dbPath string) (*SweepDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Forces creation of the file, unlike Ping
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	sdb := &SweepDB{db: db}
	if err = sdb.initSchema(); err != nil {
		return nil, err
	}
	return sdb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *SweepDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sweep_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		run_id TEXT NOT NULL,
		action TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT,
		size INTEGER NOT NULL,
		mode TEXT NOT NULL,
		root TEXT,
		reason TEXT,
		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON sweep_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_run_id ON sweep_events(run_id);
	CREATE INDEX IF NOT EXISTS idx_action ON sweep_events(action);
	CREATE INDEX IF NOT EXISTS idx_path ON sweep_events(path);
	CREATE INDEX IF NOT EXISTS idx_size ON sweep_events(size);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// RecordEvent inserts a sweep event into the database
func (d *SweepDB) RecordEvent(ev Event) error {
	cand := ev.Candidate
	ts := cand.Reason.EvaluatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
	INSERT INTO sweep_events (
		timestamp, run_id, action, path, file_name, size,
		mode, root, reason, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(
		query,
		ts.UTC(),
		ev.RunID,
		ev.Action,
		cand.Path,
		filepath.Base(cand.Path),
		cand.Size,
		ev.Mode,
		cand.Reason.Root,
		cand.Reason.ToLogString(),
		ev.ErrorMessage,
	)
	return err
}

// Close closes the database connection
func (d *SweepDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database
func (d *SweepDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// GetDatabaseStats returns database statistics
func (d *SweepDB) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalRecords int64
	if err := d.db.QueryRow("SELECT COUNT(*) FROM sweep_events").Scan(&totalRecords); err != nil {
		return nil, err
	}
	stats["total_records"] = totalRecords

	var pageCount, pageSize int64
	if err := d.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats["database_size_bytes"] = pageCount * pageSize

	var oldest, newest sql.NullString
	err := d.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM sweep_events").Scan(&oldest, &newest)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if t, ok := parseSQLiteTime(oldest); ok {
		stats["oldest_record"] = t
	}
	if t, ok := parseSQLiteTime(newest); ok {
		stats["newest_record"] = t
	}

	return stats, nil
}

// Aggregates lose the DATETIME column type, so the driver hands back strings
var sqliteTimeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseSQLiteTime(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	for _, layout := range sqliteTimeFormats {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
