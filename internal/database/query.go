package database

import (
	"database/sql"
	"time"
)

const selectColumns = `
	SELECT id, timestamp, run_id, action, path, file_name, size,
	       mode, root, reason, error_message
	FROM sweep_events
`

// GetRecentEvents returns the N most recent sweep events
func (d *SweepDB) GetRecentEvents(limit int) ([]SweepRecord, error) {
	return d.queryEvents(selectColumns+`
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetEventsByDateRange returns events within a time range
func (d *SweepDB) GetEventsByDateRange(start, end time.Time) ([]SweepRecord, error) {
	return d.queryEvents(selectColumns+`
	WHERE timestamp BETWEEN ? AND ?
	ORDER BY timestamp DESC, id DESC
	`, start.UTC(), end.UTC())
}

// GetEventsByAction returns events filtered by action
func (d *SweepDB) GetEventsByAction(action string) ([]SweepRecord, error) {
	return d.queryEvents(selectColumns+`
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	`, action)
}

// GetEventsByPath returns events matching a path pattern (SQL LIKE syntax)
func (d *SweepDB) GetEventsByPath(pathPattern string) ([]SweepRecord, error) {
	return d.queryEvents(selectColumns+`
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	`, pathPattern)
}

// GetEventsByRun returns every event of one sweep, in the order it happened
func (d *SweepDB) GetEventsByRun(runID string) ([]SweepRecord, error) {
	return d.queryEvents(selectColumns+`
	WHERE run_id = ?
	ORDER BY id ASC
	`, runID)
}

// GetLargestDeletions returns the N largest deletions by size
func (d *SweepDB) GetLargestDeletions(limit int) ([]SweepRecord, error) {
	return d.queryEvents(selectColumns+`
	WHERE action = 'DELETE'
	ORDER BY size DESC
	LIMIT ?
	`, limit)
}

// GetTotalSpaceFreed returns total bytes freed in a time range
func (d *SweepDB) GetTotalSpaceFreed(start, end time.Time) (int64, error) {
	query := `
	SELECT COALESCE(SUM(size), 0)
	FROM sweep_events
	WHERE action = 'DELETE' AND timestamp BETWEEN ? AND ?
	`

	var total int64
	err := d.db.QueryRow(query, start.UTC(), end.UTC()).Scan(&total)
	return total, err
}

// GetEventCountByAction returns count of events grouped by action since a time
func (d *SweepDB) GetEventCountByAction(since time.Time) (map[string]int, error) {
	return d.countBy(`
	SELECT action, COUNT(*)
	FROM sweep_events
	WHERE timestamp >= ?
	GROUP BY action
	`, since.UTC())
}

// GetDeletionCountByRoot returns deletions grouped by sweep root since a time
func (d *SweepDB) GetDeletionCountByRoot(since time.Time) (map[string]int, error) {
	return d.countBy(`
	SELECT COALESCE(root, ''), COUNT(*)
	FROM sweep_events
	WHERE action = 'DELETE' AND timestamp >= ?
	GROUP BY root
	`, since.UTC())
}

// SweepStats holds aggregated statistics
type SweepStats struct {
	TotalDeleted    int            `json:"total_deleted"`
	TotalDeclined   int            `json:"total_declined"`
	TotalSkipped    int            `json:"total_skipped"`
	TotalErrors     int            `json:"total_errors"`
	TotalSpaceFreed int64          `json:"total_space_freed"`
	Runs            int            `json:"runs"`
	ByAction        map[string]int `json:"by_action"`
	ByRoot          map[string]int `json:"by_root"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         time.Time      `json:"end_date"`
}

// GetSweepStats returns statistics for the last N days
func (d *SweepDB) GetSweepStats(days int) (*SweepStats, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -days)

	stats := &SweepStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'DELETE' THEN 1 END),
			COUNT(CASE WHEN action = 'DECLINE' THEN 1 END),
			COUNT(CASE WHEN action = 'SKIP' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END),
			COUNT(DISTINCT run_id)
		FROM sweep_events
		WHERE timestamp >= ?
	`, since).Scan(&stats.TotalDeleted, &stats.TotalDeclined, &stats.TotalSkipped, &stats.TotalErrors, &stats.Runs)
	if err != nil {
		return nil, err
	}

	if stats.TotalSpaceFreed, err = d.GetTotalSpaceFreed(since, now); err != nil {
		return nil, err
	}
	if stats.ByAction, err = d.GetEventCountByAction(since); err != nil {
		return nil, err
	}
	if stats.ByRoot, err = d.GetDeletionCountByRoot(since); err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOldRecords removes records older than specified days
func (d *SweepDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`DELETE FROM sweep_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (d *SweepDB) countBy(query string, args ...interface{}) (map[string]int, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// queryEvents executes a query and scans sweep records
func (d *SweepDB) queryEvents(query string, args ...interface{}) ([]SweepRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SweepRecord
	for rows.Next() {
		var r SweepRecord
		var fileName, root, reason, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.RunID, &r.Action, &r.Path, &fileName,
			&r.Size, &r.Mode, &root, &reason, &errMsg,
		)
		if err != nil {
			return nil, err
		}
		r.FileName = fileName.String
		r.Root = root.String
		r.Reason = reason.String
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}

	return records, rows.Err()
}
