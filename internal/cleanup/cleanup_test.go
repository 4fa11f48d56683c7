package cleanup

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"volume-sage/internal/database"
	"volume-sage/internal/fsops"
	"volume-sage/internal/safety"
	"volume-sage/internal/scan"
)

func newCandidate(t *testing.T, root, name string) scan.Candidate {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("resource fork"), 0644); err != nil {
		t.Fatal(err)
	}
	return scan.Candidate{
		Path:   path,
		Size:   int64(len("resource fork")),
		Reason: scan.Evaluate(root, filepath.Base(path), time.Now()),
	}
}

func openDB(t *testing.T) *database.SweepDB {
	t.Helper()
	db, err := database.NewSweepDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDryRunNeverDeletes proves the dry-run contract:
// when DryRun is set, zero delete calls occur
func TestDryRunNeverDeletes(t *testing.T) {
	root := t.TempDir()
	fake := &fsops.FakeDeleter{}

	cleaner := NewCleaner(nil, safety.NewValidator([]string{root}, nil), nil, Options{DryRun: true})
	cleaner.SetDeleter(fake)

	for _, name := range []string{"._a", "._b", "lib/._c"} {
		action, err := cleaner.Delete(context.Background(), newCandidate(t, root, name))
		if err != nil {
			t.Fatalf("Delete returned error in dry run: %v", err)
		}
		if action != database.ActionDryRun {
			t.Errorf("expected DRY_RUN, got %s", action)
		}
	}

	if len(fake.Calls) != 0 {
		t.Errorf("dry run made %d delete calls: %v", len(fake.Calls), fake.Calls)
	}
}

func TestDeleteRemovesFile(t *testing.T) {
	root := t.TempDir()
	cand := newCandidate(t, root, "._code.py")

	cleaner := NewCleaner(nil, safety.NewValidator([]string{root}, nil), nil, Options{Mode: database.ModeForce})

	action, err := cleaner.Delete(context.Background(), cand)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if action != database.ActionDelete {
		t.Errorf("expected DELETE, got %s", action)
	}
	if _, err := os.Lstat(cand.Path); !os.IsNotExist(err) {
		t.Errorf("file still exists after delete: %v", err)
	}
}

func TestDeleteOutsideRootIsSkipped(t *testing.T) {
	root := t.TempDir()
	outside := newCandidate(t, t.TempDir(), "._elsewhere")
	fake := &fsops.FakeDeleter{}

	cleaner := NewCleaner(nil, safety.NewValidator([]string{root}, nil), nil, Options{})
	cleaner.SetDeleter(fake)

	action, err := cleaner.Delete(context.Background(), outside)
	if err != nil {
		t.Fatalf("a safety skip is not an error: %v", err)
	}
	if action != database.ActionSkip {
		t.Errorf("expected SKIP, got %s", action)
	}
	if len(fake.Calls) != 0 {
		t.Errorf("skipped target reached the deleter: %v", fake.Calls)
	}
}

func TestDeleteVanishedIsNotAnError(t *testing.T) {
	root := t.TempDir()
	cand := newCandidate(t, root, "._gone")
	fake := &fsops.FakeDeleter{Errs: map[string]error{
		cand.Path: &fs.PathError{Op: "remove", Path: cand.Path, Err: fs.ErrNotExist},
	}}

	cleaner := NewCleaner(nil, nil, nil, Options{})
	cleaner.SetDeleter(fake)

	action, err := cleaner.Delete(context.Background(), cand)
	if err != nil {
		t.Fatalf("vanished file should not fail: %v", err)
	}
	if action != database.ActionVanished {
		t.Errorf("expected VANISHED, got %s", action)
	}
}

func TestDeleteFailureReturnsDeleteError(t *testing.T) {
	root := t.TempDir()
	cand := newCandidate(t, root, "._locked")
	denied := &fs.PathError{Op: "remove", Path: cand.Path, Err: fs.ErrPermission}
	fake := &fsops.FakeDeleter{Errs: map[string]error{cand.Path: denied}}

	db := openDB(t)
	cleaner := NewCleaner(nil, nil, db, Options{RunID: "run-err"})
	cleaner.SetDeleter(fake)

	action, err := cleaner.Delete(context.Background(), cand)
	if action != database.ActionError {
		t.Errorf("expected ERROR, got %s", action)
	}

	var delErr *DeleteError
	if !errors.As(err, &delErr) {
		t.Fatalf("expected *DeleteError, got %T: %v", err, err)
	}
	if delErr.Path != cand.Path {
		t.Errorf("error names %s, want %s", delErr.Path, cand.Path)
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Errorf("underlying error lost: %v", err)
	}
	if errors.Is(err, ErrVolumeStale) {
		t.Error("a healthy temp dir should not be reported stale")
	}

	records, qerr := db.GetEventsByRun("run-err")
	if qerr != nil {
		t.Fatalf("GetEventsByRun failed: %v", qerr)
	}
	if len(records) != 1 || records[0].Action != database.ActionError || records[0].ErrorMessage == "" {
		t.Errorf("unexpected history: %+v", records)
	}
}

func TestDecisionsAreRecorded(t *testing.T) {
	root := t.TempDir()
	db := openDB(t)

	cleaner := NewCleaner(nil, safety.NewValidator([]string{root}, nil), db, Options{RunID: "r1", Mode: database.ModeConfirm})
	cleaner.SetDeleter(&fsops.FakeDeleter{})

	kept := newCandidate(t, root, "._kept")
	removed := newCandidate(t, root, "._removed")

	cleaner.Decline(kept)
	if _, err := cleaner.Delete(context.Background(), removed); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	records, err := db.GetEventsByRun("r1")
	if err != nil {
		t.Fatalf("GetEventsByRun failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Action != database.ActionDecline || records[0].Path != kept.Path {
		t.Errorf("first record should be the decline: %+v", records[0])
	}
	if records[1].Action != database.ActionDelete || records[1].Mode != database.ModeConfirm {
		t.Errorf("second record should be a confirmed delete: %+v", records[1])
	}
}

func TestDeleteHonoursCancelledContext(t *testing.T) {
	root := t.TempDir()
	fake := &fsops.FakeDeleter{}

	cleaner := NewCleaner(nil, nil, nil, Options{})
	cleaner.SetDeleter(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := cleaner.Delete(ctx, newCandidate(t, root, "._a")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(fake.Calls) != 0 {
		t.Errorf("cancelled delete reached the deleter: %v", fake.Calls)
	}
}
