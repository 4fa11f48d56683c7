package disk

import (
	"errors"
	"os"
	"syscall"
	"time"
)

// Usage describes the filesystem holding a path
type Usage struct {
	FreeBytes  int64
	TotalBytes int64
}

// UsedBytes returns the number of bytes in use on the filesystem
func (u Usage) UsedBytes() int64 {
	return u.TotalBytes - u.FreeBytes
}

// FreePercent returns the percentage of free space, 100 for an empty report
func (u Usage) FreePercent() float64 {
	if u.TotalBytes <= 0 {
		return 100.0
	}
	return float64(u.FreeBytes) / float64(u.TotalBytes) * 100.0
}

// GetUsage returns free and total bytes of the volume that holds path
func GetUsage(path string) (Usage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return Usage{}, err
	}

	return Usage{
		FreeBytes:  int64(stat.Bavail) * int64(stat.Bsize),
		TotalBytes: int64(stat.Blocks) * int64(stat.Bsize),
	}, nil
}

// IsStale reports whether a volume stopped answering, which is what an
// unplugged or half-mounted USB drive looks like. A stat that does not
// return within timeout, or fails with EIO/ENXIO/ESTALE, counts as stale.
func IsStale(path string, timeout time.Duration) bool {
	done := make(chan error, 1)

	go func() {
		_, err := os.Stat(path)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			return false
		}
		return os.IsTimeout(err) ||
			errors.Is(err, syscall.EIO) ||
			errors.Is(err, syscall.ESTALE) ||
			errors.Is(err, syscall.ENXIO)
	case <-time.After(timeout):
		return true
	}
}
