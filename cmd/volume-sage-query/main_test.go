package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volume-sage/internal/database"
	"volume-sage/internal/scan"
	"volume-sage/internal/styles"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := database.NewSweepDB(path)
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	for _, ev := range []struct {
		run, action, name string
		size               int64
	}{
		{"run-a", database.ActionDelete, "._code.py", 4096},
		{"run-a", database.ActionDecline, "._boot.py", 4096},
		{"run-b", database.ActionDelete, "._big.bin", 1 << 20},
	} {
		require.NoError(t, db.RecordEvent(database.Event{
			RunID:  ev.run,
			Action: ev.action,
			Mode:   database.ModeConfirm,
			Candidate: scan.Candidate{
				Path:   "/Volumes/CIRCUITPY/" + ev.name,
				Size:   ev.size,
				Reason: scan.Evaluate("/Volumes/CIRCUITPY", ev.name, now),
			},
		}))
	}
	return path
}

func query(t *testing.T, args ...string) (string, error) {
	t.Helper()
	styles.SetPlain(true)
	cmd := newQueryCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0o644))
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestQueryRecent(t *testing.T) {
	db := seedDB(t)

	out, err := query(t, "--db", db, "--recent", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "._big.bin")
	assert.Contains(t, out, "._boot.py")
	assert.NotContains(t, out, "._code.py")
}

func TestQueryRunAsJSON(t *testing.T) {
	db := seedDB(t)

	out, err := query(t, "--db", db, "--run", "run-a", "--json")
	require.NoError(t, err)

	var records []database.SweepRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.Equal(t, database.ActionDelete, records[0].Action)
	assert.Equal(t, database.ActionDecline, records[1].Action)
}

func TestQueryStats(t *testing.T) {
	db := seedDB(t)

	out, err := query(t, "--db", db, "--stats", "--days", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Sweeps:           2")
	assert.Contains(t, out, "Files Deleted:    2")
	assert.Contains(t, out, "Files Kept:       1")
	assert.Contains(t, out, "1.0 MB")
}

func TestQueryEmptyJSONIsArray(t *testing.T) {
	db := seedDB(t)

	out, err := query(t, "--db", db, "--action", "ERROR", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestQueryPrune(t *testing.T) {
	db := seedDB(t)

	out, err := query(t, "--db", db, "--prune-days", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 record(s) older than 30 days")
}

func TestQueryUsageErrors(t *testing.T) {
	// Empty config, so no database_path
	_, err := query(t)
	assert.True(t, errors.Is(err, errUsage), "no database configured: %v", err)

	_, err = query(t, "--db", seedDB(t))
	assert.True(t, errors.Is(err, errUsage), "no query selected: %v", err)
}

func TestQueryDateRange(t *testing.T) {
	db := seedDB(t)
	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")

	out, err := query(t, "--db", db, "--since", yesterday, "--json")
	require.NoError(t, err)
	var records []database.SweepRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	assert.Len(t, records, 3)

	out, err = query(t, "--db", db, "--since", "2000-01-01", "--until", "2000-12-31")
	require.NoError(t, err)
	assert.Contains(t, out, "No records found")

	_, err = query(t, "--db", db, "--since", "yesterday")
	assert.True(t, errors.Is(err, errUsage), "bad date: %v", err)

	_, err = query(t, "--db", db, "--since", "2020-02-01", "--until", "2020-01-01")
	assert.True(t, errors.Is(err, errUsage), "inverted range: %v", err)
}

func TestDateRangeUntilCoversWholeDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

	start, end, err := dateRange("2026-03-01", "2026-03-02", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local), start)
	assert.Equal(t, time.Date(2026, 3, 2, 23, 59, 59, 999999999, time.Local), end)

	start, end, err = dateRange("", "", now)
	require.NoError(t, err)
	assert.True(t, start.IsZero())
	assert.Equal(t, now, end)
}

func TestQueryDatabaseStats(t *testing.T) {
	db := seedDB(t)

	out, err := query(t, "--db", db, "--db-stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Records:          3")
	assert.Contains(t, out, "Size:")
	assert.Contains(t, out, "Oldest:")

	out, err = query(t, "--db", db, "--db-stats", "--json")
	require.NoError(t, err)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.EqualValues(t, 3, stats["total_records"])
}
