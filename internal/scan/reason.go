package scan

import (
	"fmt"
	"strings"
	"time"
)

// AppleDoublePrefix marks the sidecar files macOS writes on non-native filesystems.
const AppleDoublePrefix = "._"

// IsAppleDouble reports whether a base name carries the AppleDouble prefix.
func IsAppleDouble(name string) bool {
	return strings.HasPrefix(name, AppleDoublePrefix)
}

// MatchReason captures why a file was selected for deletion.
type MatchReason struct {
	// Prefix is the marker the base name started with; empty when nothing matched
	Prefix string
	// Name is the base name that was tested
	Name string

	Root        string    // Sweep root the file was found under
	EvaluatedAt time.Time // When the predicate was checked
}

// Evaluate applies the AppleDouble predicate to a base name.
func Evaluate(root, name string, now time.Time) MatchReason {
	r := MatchReason{Name: name, Root: root, EvaluatedAt: now}
	if IsAppleDouble(name) {
		r.Prefix = AppleDoublePrefix
	}
	return r
}

// HasReason returns true if the file is a deletion candidate.
func (r MatchReason) HasReason() bool {
	return r.Prefix != ""
}

// ToLogString formats the reason for structured logging.
// Example: `name_prefix: "._code.py" starts with "._"`
func (r MatchReason) ToLogString() string {
	if !r.HasReason() {
		return "unknown"
	}
	return fmt.Sprintf("name_prefix: %q starts with %q", r.Name, r.Prefix)
}

// GetPrimaryReason returns a short label used when grouping history records.
func (r MatchReason) GetPrimaryReason() string {
	if r.HasReason() {
		return "appledouble"
	}
	return "unknown"
}
