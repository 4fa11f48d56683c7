package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrNotCanonical   = errors.New("path is not absolute and clean")
	ErrProtectedPath  = errors.New("protected path")
	ErrOutsideAllowed = errors.New("outside sweep root")
	ErrSymlinkEscape  = errors.New("symlink escape detected")
)

// Validator enforces the safety contract for all delete operations
type Validator struct {
	AllowedRoots   []string
	ProtectedPaths []string

	// AllowedRoots with symlinks resolved, used for escape detection
	resolvedRoots []string
}

// NewValidator creates a validator for the given sweep roots. Roots that
// cannot be made absolute are dropped, which only narrows what is allowed.
func NewValidator(allowed []string, extraProtected []string) *Validator {
	roots := make([]string, 0, len(allowed))
	for _, r := range allowed {
		if p, err := NormalizePath(r); err == nil {
			roots = append(roots, p)
		}
	}
	return &Validator{
		AllowedRoots:   roots,
		ProtectedPaths: defaultProtected(extraProtected),
		resolvedRoots:  resolveRoots(roots),
	}
}

// ValidateRoot refuses sweep roots that are, or live under, protected paths
func (v *Validator) ValidateRoot(root string) error {
	p, err := NormalizePath(root)
	if err != nil {
		return err
	}
	if IsProtectedPath(p, v.ProtectedPaths) {
		return ErrProtectedPath
	}
	return nil
}

// ValidateDeleteTarget is the single-source-of-truth for delete authorization.
// Targets must be absolute and clean, the form the walk produces; anything
// else is refused rather than interpreted.
func (v *Validator) ValidateDeleteTarget(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrInvalidPath
	}
	if !filepath.IsAbs(path) || filepath.Clean(path) != path {
		return fmt.Errorf("%w: %s", ErrNotCanonical, path)
	}

	if IsProtectedPath(path, v.ProtectedPaths) {
		return ErrProtectedPath
	}
	if !IsWithinAllowedRoots(path, v.AllowedRoots) {
		return ErrOutsideAllowed
	}

	// The target itself may be a symlink; removing a link never touches its
	// target, so only the directory holding it has to stay inside the root.
	escaped, err := DetectSymlinkEscape(filepath.Dir(path), v.resolvedRoots)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if escaped {
		return ErrSymlinkEscape
	}
	return nil
}

// NormalizePath returns the absolute, cleaned form of path
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return abs, nil
}

// IsWithinAllowedRoots reports whether path is one of the roots or below one
func IsWithinAllowedRoots(path string, allowedRoots []string) bool {
	for _, r := range allowedRoots {
		if under(path, r) {
			return true
		}
	}
	return false
}

// DetectSymlinkEscape resolves symlinks and checks if resolved path escapes allowed roots
func DetectSymlinkEscape(cleanAbs string, resolvedRoots []string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(cleanAbs)
	if err != nil {
		return false, err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return false, err
	}
	return !IsWithinAllowedRoots(resolvedAbs, resolvedRoots), nil
}

// IsProtectedPath reports whether path is the filesystem root or lies
// under one of the protected directories
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)
	if p == string(filepath.Separator) {
		return true
	}
	for _, prot := range protected {
		if under(p, prot) {
			return true
		}
	}
	return false
}

// under reports whether path equals dir or is nested below it.
// Comparison is lexical; "/Volumes/CIRCUITPY2" is not under "/Volumes/CIRCUITPY".
func under(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveRoots evaluates symlinks in each root, keeping the lexical form
// when the root cannot be resolved
func resolveRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if resolved, err := filepath.EvalSymlinks(r); err == nil {
			out = append(out, filepath.Clean(resolved))
			continue
		}
		out = append(out, r)
	}
	return out
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	base := []string{
		"/System",
		"/Library",
		"/Applications",
		"/etc",
		"/bin",
		"/sbin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
	}
	return append(base, extra...)
}
