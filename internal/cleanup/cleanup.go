package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"volume-sage/internal/database"
	"volume-sage/internal/disk"
	"volume-sage/internal/fsops"
	"volume-sage/internal/logging"
	"volume-sage/internal/metrics"
	"volume-sage/internal/safety"
	"volume-sage/internal/scan"
)

// DefaultStaleTimeout bounds the liveness check run after a failed delete
const DefaultStaleTimeout = 2 * time.Second

// ErrVolumeStale marks a deletion that failed because the volume stopped
// answering, typically a drive pulled out mid-sweep.
var ErrVolumeStale = errors.New("volume not responding")

// DeleteError reports a deletion that failed for a reason other than the
// file having already disappeared.
type DeleteError struct {
	Path string
	Err  error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("failed to delete %s: %v", e.Path, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// Options fixes how a Cleaner behaves for one run
type Options struct {
	DryRun       bool
	RunID        string
	Mode         string
	StaleTimeout time.Duration
}

// Cleaner carries out one deletion decision at a time: it validates the
// target, removes it (unless dry-running), then logs, records and counts
// the outcome.
type Cleaner struct {
	logger    logging.Logger
	deleter   fsops.Deleter
	validator *safety.Validator
	db        *database.SweepDB // optional history
	opts      Options
}

// NewCleaner creates a new Cleaner. A nil db disables history, a nil
// validator disables safety checks.
func NewCleaner(logger logging.Logger, validator *safety.Validator, db *database.SweepDB, opts Options) *Cleaner {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.Mode == "" {
		opts.Mode = database.ModeConfirm
	}
	if opts.StaleTimeout <= 0 {
		opts.StaleTimeout = DefaultStaleTimeout
	}
	metrics.Init()
	return &Cleaner{
		logger:    logger,
		deleter:   fsops.OSDeleter{},
		validator: validator,
		db:        db,
		opts:      opts,
	}
}

// SetDeleter replaces the filesystem primitive, used by tests
func (c *Cleaner) SetDeleter(d fsops.Deleter) {
	c.deleter = d
}

// Delete removes one candidate and returns the action taken. Only a real
// deletion failure is returned as an error, wrapped in *DeleteError.
func (c *Cleaner) Delete(ctx context.Context, cand scan.Candidate) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if c.validator != nil {
		if err := c.validator.ValidateDeleteTarget(cand.Path); err != nil {
			c.finish(database.ActionSkip, cand, err.Error())
			return database.ActionSkip, nil
		}
	}

	if c.opts.DryRun {
		c.logger.Info("[DRY RUN] Would delete file", "path", cand.Path, "size", cand.Size)
		c.finish(database.ActionDryRun, cand, "")
		return database.ActionDryRun, nil
	}

	err := c.deleter.Remove(cand.Path)
	switch {
	case err == nil:
		c.finish(database.ActionDelete, cand, "")
		metrics.RecordDeletion(cand.Size)
		return database.ActionDelete, nil

	case errors.Is(err, os.ErrNotExist):
		// Gone between listing and removal, nothing left to do
		c.logger.Info("File already deleted", "path", cand.Path)
		c.finish(database.ActionVanished, cand, "")
		return database.ActionVanished, nil

	default:
		if disk.IsStale(cand.Reason.Root, c.opts.StaleTimeout) {
			err = fmt.Errorf("%w: %v", ErrVolumeStale, err)
		}
		c.finish(database.ActionError, cand, err.Error())
		metrics.ErrorsTotal.Inc()
		return database.ActionError, &DeleteError{Path: cand.Path, Err: err}
	}
}

// Decline records that the operator chose to keep a candidate
func (c *Cleaner) Decline(cand scan.Candidate) {
	c.finish(database.ActionDecline, cand, "")
}

func (c *Cleaner) finish(action string, cand scan.Candidate, detail string) {
	c.logStructured(action, cand, detail)
	metrics.RecordEvent(action)

	if c.db == nil {
		return
	}
	ev := database.Event{
		RunID:        c.opts.RunID,
		Action:       action,
		Mode:         c.opts.Mode,
		Candidate:    cand,
		ErrorMessage: detail,
	}
	if err := c.db.RecordEvent(ev); err != nil {
		// History is best effort, the sweep goes on
		c.logger.Error("Failed to record to database", "path", cand.Path, "error", err)
		metrics.ErrorsTotal.Inc()
	}
}

// logStructured emits one line per decision: action, path, size and reason
func (c *Cleaner) logStructured(action string, cand scan.Candidate, detail string) {
	keyvals := []interface{}{
		"action", action,
		"path", cand.Path,
		"size", cand.Size,
		"mode", c.opts.Mode,
	}
	if cand.IsSymlink {
		keyvals = append(keyvals, "object", "symlink")
	}
	if cand.Reason.HasReason() {
		keyvals = append(keyvals, "reason", cand.Reason.GetPrimaryReason(), "match_reason", cand.Reason.ToLogString())
	}
	if detail != "" {
		keyvals = append(keyvals, "detail", detail)
	}

	switch action {
	case database.ActionError:
		c.logger.Error("sweep event", keyvals...)
	case database.ActionSkip:
		c.logger.Warn("sweep event", keyvals...)
	default:
		c.logger.Info("sweep event", keyvals...)
	}
}
