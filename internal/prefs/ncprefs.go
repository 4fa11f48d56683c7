package prefs

import (
	"context"
	"fmt"
	"math"

	"github.com/google/renameio/v2"
	"howett.net/plist"

	"volume-sage/internal/logging"
)

// Notification Center flag bits
const (
	flagAlert    = 0b00010000
	flagBanner   = 0b00001000
	flagModified = 0b01000000
)

// BannerOptions controls the eject notification edit
type BannerOptions struct {
	PreferencesPath string
	BundleID        string
	// Revert switches the notification back from banner to alert
	Revert      bool
	SkipBackup  bool
	SkipRestart bool
}

// BannerResult describes what FixEjectBanner changed
type BannerResult struct {
	Found      bool
	OldFlags   uint64
	NewFlags   uint64
	BackupPath string
	Restarted  bool
}

// BannerFlags returns flags with the alert bit cleared and the banner and
// modified bits set, or the reverse when revert is true.
func BannerFlags(flags uint64, revert bool) uint64 {
	if revert {
		return (flags &^ (flagModified | flagBanner)) | flagAlert
	}
	return (flags &^ flagAlert) | flagModified | flagBanner
}

// FixEjectBanner turns the "disk not ejected properly" alert, which piles
// up with every board reset, into a banner that dismisses itself. The
// preferences are written back in binary form. Notification Center only
// rereads them once usernoted and cfprefsd restart.
func FixEjectBanner(ctx context.Context, logger logging.Logger, runner CommandRunner, opts BannerOptions) (*BannerResult, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	root, raw, err := readPlist(opts.PreferencesPath)
	if err != nil {
		return nil, err
	}

	apps, ok := root["apps"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w in %s", ErrNoApps, opts.PreferencesPath)
	}

	result := &BannerResult{}
	var badFlags interface{}
	unusable := false
	for _, entry := range apps {
		app, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if id, _ := str(app, "bundle-id"); id != opts.BundleID {
			continue
		}
		old, ok := toUint(app["flags"])
		if !ok {
			logger.Warn("App has no usable flags", "bundle_id", opts.BundleID, "flags", app["flags"])
			unusable, badFlags = true, app["flags"]
			continue
		}
		result.Found = true
		result.OldFlags = old
		result.NewFlags = BannerFlags(old, opts.Revert)
		app["flags"] = sameKind(app["flags"], result.NewFlags)
	}

	if !result.Found && unusable {
		return nil, fmt.Errorf("%w for %s in %s: %v", ErrUnusableFlags, opts.BundleID, opts.PreferencesPath, badFlags)
	}
	if !result.Found {
		logger.Info("Notification app not registered, nothing to change", "bundle_id", opts.BundleID)
		return result, nil
	}

	if !opts.SkipBackup {
		result.BackupPath = opts.PreferencesPath + ".bak"
		if err := renameio.WriteFile(result.BackupPath, raw, filePerm(opts.PreferencesPath)); err != nil {
			return nil, fmt.Errorf("failed to back up %s: %w", opts.PreferencesPath, err)
		}
	}

	if err := writePlist(opts.PreferencesPath, root, plist.BinaryFormat); err != nil {
		return nil, err
	}
	logger.Info("Updated notification flags",
		"bundle_id", opts.BundleID,
		"old_flags", result.OldFlags,
		"new_flags", result.NewFlags,
		"revert", opts.Revert,
	)

	if opts.SkipRestart || runner == nil {
		return result, nil
	}
	if err := runner.Run(ctx, "killall", "usernoted", "cfprefsd"); err != nil {
		// The edit is on disk, a logout applies it as well
		logger.Warn("Failed to restart Notification Center", "error", err)
		return result, nil
	}
	result.Restarted = true
	return result, nil
}

func toUint(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, false
		}
		return uint64(n), true
	}
	return 0, false
}

// sameKind returns n in the integer type the decoder produced for orig
func sameKind(orig interface{}, n uint64) interface{} {
	switch orig.(type) {
	case int64:
		return int64(n)
	case int:
		return int(n)
	}
	return n
}
