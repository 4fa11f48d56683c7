package sweep

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"volume-sage/internal/cleanup"
	"volume-sage/internal/database"
	"volume-sage/internal/disk"
	"volume-sage/internal/fsops"
	"volume-sage/internal/logging"
	"volume-sage/internal/metrics"
	"volume-sage/internal/prompt"
	"volume-sage/internal/safety"
	"volume-sage/internal/scan"
	"volume-sage/internal/styles"
)

// ErrRootNotFound is returned when the sweep root is missing or not a directory
var ErrRootNotFound = scan.ErrRootNotFound

// Options are fixed for one sweep
type Options struct {
	// Force deletes every match without asking
	Force bool
	// DryRun decides and reports but removes nothing
	DryRun bool
	// Exclude holds doublestar patterns relative to the root
	Exclude []string
	// ProtectedPaths extends the built-in list of paths never touched
	ProtectedPaths []string
	// RunID tags history records, generated when empty
	RunID string
}

// Sweeper removes AppleDouble files below a root
type Sweeper struct {
	logger    logging.Logger
	confirmer prompt.Confirmer
	out       io.Writer
	db        *database.SweepDB
	deleter   fsops.Deleter
	opts      Options
}

// New creates a Sweeper. confirmer is only consulted when opts.Force is off;
// out receives the operator-facing announcements. db may be nil.
func New(logger logging.Logger, confirmer prompt.Confirmer, out io.Writer, db *database.SweepDB, opts Options) *Sweeper {
	if logger == nil {
		logger = logging.Nop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Sweeper{
		logger:    logger,
		confirmer: confirmer,
		out:       out,
		db:        db,
		deleter:   fsops.OSDeleter{},
		opts:      opts,
	}
}

// SetDeleter replaces the filesystem primitive, used by tests
func (s *Sweeper) SetDeleter(d fsops.Deleter) {
	s.deleter = d
}

func (s *Sweeper) mode() string {
	if s.opts.Force {
		return database.ModeForce
	}
	return database.ModeConfirm
}

// Sweep walks root depth-first and deletes every file whose name starts
// with "._", asking first unless Force is set. A missing root returns
// ErrRootNotFound without touching anything. The first failed deletion
// stops the sweep and is returned.
func (s *Sweeper) Sweep(ctx context.Context, root string) (Report, error) {
	start := time.Now()
	report := Report{Root: root, DryRun: s.opts.DryRun, Mode: s.mode()}

	if err := scan.CheckRoot(root); err != nil {
		return report, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return report, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}
	root = filepath.Clean(abs)
	report.Root = root

	validator := safety.NewValidator([]string{root}, s.opts.ProtectedPaths)
	if err := validator.ValidateRoot(root); err != nil {
		return report, fmt.Errorf("refusing to sweep %s: %w", root, err)
	}

	if !s.opts.Force && s.confirmer == nil {
		return report, fmt.Errorf("sweep %s: no confirmer for interactive mode", root)
	}

	scanner, err := scan.NewScanner(s.logger, s.opts.Exclude)
	if err != nil {
		return report, err
	}

	report.RunID = s.opts.RunID
	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}

	cleaner := cleanup.NewCleaner(s.logger, validator, s.db, cleanup.Options{
		DryRun: s.opts.DryRun,
		RunID:  report.RunID,
		Mode:   report.Mode,
	})
	cleaner.SetDeleter(s.deleter)

	s.logger.Info("Starting sweep",
		"root", root,
		"run_id", report.RunID,
		"mode", report.Mode,
		"dry_run", s.opts.DryRun,
	)
	metrics.SetSweepMode(report.Mode)

	stats, walkErr := scanner.Walk(ctx, root, func(ctx context.Context, cand scan.Candidate) error {
		return s.handle(ctx, cleaner, cand, &report)
	})

	report.DirsVisited = stats.DirsVisited
	report.FilesVisited = stats.FilesVisited
	report.Candidates = stats.Candidates
	report.Skipped += stats.Excluded
	report.Unreadable = stats.Unreadable
	report.Duration = time.Since(start)

	metrics.RecordSweepRun(report.Duration)
	if usage, err := disk.GetUsage(root); err == nil {
		report.Volume = usage
		metrics.UpdateVolumeMetrics(root, usage)
	} else {
		s.logger.Debug("Volume usage unavailable", "root", root, "error", err)
	}

	if walkErr != nil {
		s.logger.Error("Sweep aborted", "root", root, "run_id", report.RunID, "error", walkErr)
		return report, fmt.Errorf("sweep %s: %w", root, walkErr)
	}

	s.logger.Info("Sweep complete",
		"root", root,
		"run_id", report.RunID,
		"candidates", report.Candidates,
		"deleted", report.Deleted,
		"declined", report.Declined,
		"skipped", report.Skipped,
		"vanished", report.Vanished,
		"bytes_freed", report.BytesFreed,
		"duration", report.Duration,
	)
	return report, nil
}

// handle applies the force/confirm policy to one candidate
func (s *Sweeper) handle(ctx context.Context, cleaner *cleanup.Cleaner, cand scan.Candidate, report *Report) error {
	if !s.opts.Force {
		yes, err := s.confirmer.Confirm(ctx, fmt.Sprintf("Delete %s ?", cand.Path))
		if err != nil {
			return err
		}
		if !yes {
			cleaner.Decline(cand)
			report.Declined++
			return nil
		}
	}

	action, err := cleaner.Delete(ctx, cand)
	report.count(action, cand.Size)
	s.announce(action, cand.Path)
	return err
}

// announce tells the operator what happened to a candidate once the
// outcome is known. Confirmed deletions stay silent, the prompt said it all.
func (s *Sweeper) announce(action, path string) {
	switch action {
	case database.ActionDelete:
		if s.opts.Force {
			fmt.Fprintf(s.out, "%s %s\n", styles.Render(&styles.Warning, "Deleting"), path)
		}
	case database.ActionDryRun:
		fmt.Fprintf(s.out, "%s %s\n", styles.Render(&styles.Warning, "Would delete"), path)
	case database.ActionSkip:
		fmt.Fprintf(s.out, "%s %s\n", styles.Render(&styles.Error, "Skipped (unsafe)"), path)
	case database.ActionVanished:
		fmt.Fprintf(s.out, "%s %s\n", styles.Render(&styles.Dimmed, "Already gone"), path)
	}
}
