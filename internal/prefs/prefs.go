package prefs

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
	"howett.net/plist"
)

var (
	// ErrDecode means the preferences file is not a readable property list
	ErrDecode = errors.New("could not decode preferences")

	// ErrNoNetworkServices means the SystemConfiguration file has no NetworkServices dictionary
	ErrNoNetworkServices = errors.New("no NetworkServices dictionary")

	// ErrNoApps means the notification center file has no apps array
	ErrNoApps = errors.New("no apps array")

	// ErrEmptyPrefix means the interface prefix would match every device
	ErrEmptyPrefix = errors.New("interface prefix must not be empty")

	// ErrUnusableFlags means the app is registered but its flags are not a
	// non-negative integer
	ErrUnusableFlags = errors.New("unusable notification flags")
)

// readPlist loads a property list of any format into a generic dictionary.
// The raw bytes are returned too so callers can keep a backup.
func readPlist(path string) (map[string]interface{}, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var root map[string]interface{}
	if _, err := plist.Unmarshal(raw, &root); err != nil {
		return nil, nil, fmt.Errorf("%w %s: %v", ErrDecode, path, err)
	}
	if root == nil {
		return nil, nil, fmt.Errorf("%w %s: empty document", ErrDecode, path)
	}
	return root, raw, nil
}

// writePlist encodes root in the given plist format and replaces path atomically
func writePlist(path string, root map[string]interface{}, format int) error {
	var (
		data []byte
		err  error
	)
	if format == plist.XMLFormat {
		data, err = plist.MarshalIndent(root, format, "\t")
	} else {
		data, err = plist.Marshal(root, format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := renameio.WriteFile(path, data, filePerm(path)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// filePerm keeps the mode of an existing file, 0644 for a new one
func filePerm(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0644
}

// dict and str are comma-ok lookups into decoded plist values

func dict(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	v, ok := m[key].(map[string]interface{})
	return v, ok
}

func str(m map[string]interface{}, key string) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}
