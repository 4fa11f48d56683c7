package fsops

// Deleter abstracts filesystem delete operations
// Enables mocking in tests to prove dry-run and declined files are never removed
type Deleter interface {
	Remove(path string) error
}
