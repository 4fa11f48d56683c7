package fsops

import "os"

// OSDeleter implements Deleter using real os package calls.
// Remove never follows symlinks, so a link named like a sidecar is unlinked
// without touching its target.
type OSDeleter struct{}

func (OSDeleter) Remove(path string) error {
	return os.Remove(path)
}
