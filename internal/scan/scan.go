package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"volume-sage/internal/logging"
)

var (
	// ErrRootNotFound means the sweep root is missing or not a directory
	ErrRootNotFound = errors.New("root not found")

	errInvalidPattern = errors.New("invalid exclude pattern")
)

type Candidate struct {
	Path      string
	Size      int64
	ModTime   time.Time
	IsSymlink bool
	Reason    MatchReason
}

// Stats summarises one walk
type Stats struct {
	DirsVisited  int
	FilesVisited int
	Candidates   int
	Excluded     int
	Unreadable   int
}

// VisitFunc is called for each candidate, in traversal order.
// A non-nil error stops the walk and is returned from Walk.
type VisitFunc func(ctx context.Context, cand Candidate) error

// Scanner walks a tree depth-first and reports AppleDouble files
type Scanner struct {
	logger  logging.Logger
	exclude []string
	now     func() time.Time
}

// NewScanner creates a Scanner. exclude holds doublestar patterns matched
// against slash-separated paths relative to the walk root.
func NewScanner(logger logging.Logger, exclude []string) (*Scanner, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", errInvalidPattern, p)
		}
	}
	return &Scanner{
		logger:  logger,
		exclude: exclude,
		now:     time.Now,
	}, nil
}

// CheckRoot verifies root exists and is a directory
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}
	return nil
}

// Walk visits root depth-first. Each directory is listed in full before any
// of its entries is handled, so a deletion made by visit never hides a
// sibling. Subdirectories are descended into as they are met and are never
// passed to visit, whatever their name.
func (s *Scanner) Walk(ctx context.Context, root string, visit VisitFunc) (Stats, error) {
	var stats Stats
	if err := CheckRoot(root); err != nil {
		return stats, err
	}
	root = filepath.Clean(root)
	err := s.walkDir(ctx, root, root, visit, &stats)
	return stats, err
}

func (s *Scanner) walkDir(ctx context.Context, root, dir string, visit VisitFunc, stats *Stats) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if dir == root {
			return fmt.Errorf("failed to list %s: %w", dir, err)
		}
		// Log and continue on unreadable subdirectories
		s.logger.Warn("Cannot list directory", "path", dir, "error", err)
		stats.Unreadable++
		return nil
	}
	stats.DirsVisited++

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, entry.Name())
		if s.excluded(root, path) {
			s.logger.Debug("Excluded", "path", path)
			stats.Excluded++
			continue
		}

		if entry.IsDir() {
			if err := s.walkDir(ctx, root, path, visit, stats); err != nil {
				return err
			}
			continue
		}

		stats.FilesVisited++
		reason := Evaluate(root, entry.Name(), s.now())
		if !reason.HasReason() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Debug("Entry vanished before inspection", "path", path)
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		stats.Candidates++
		cand := Candidate{
			Path:      path,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			IsSymlink: info.Mode()&fs.ModeSymlink != 0,
			Reason:    reason,
		}
		s.logger.Debug("File selected for deletion", "path", path, "size", cand.Size, "reason", reason.ToLogString())

		if err := visit(ctx, cand); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) excluded(root, path string) bool {
	if len(s.exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range s.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
