package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"volume-sage/internal/config"
)

// Logger is the narrow structured-logging surface the sweep components use.
// keyvals are alternating key/value pairs.
type Logger interface {
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	Debug(msg string, keyvals ...interface{})
}

// Zero adapts a zerolog.Logger to Logger
type Zero struct {
	zerolog.Logger
}

func (z Zero) Info(msg string, keyvals ...interface{})  { z.emit(z.Logger.Info(), msg, keyvals) }
func (z Zero) Warn(msg string, keyvals ...interface{})  { z.emit(z.Logger.Warn(), msg, keyvals) }
func (z Zero) Error(msg string, keyvals ...interface{}) { z.emit(z.Logger.Error(), msg, keyvals) }
func (z Zero) Debug(msg string, keyvals ...interface{}) { z.emit(z.Logger.Debug(), msg, keyvals) }

func (z Zero) emit(ev *zerolog.Event, msg string, keyvals []interface{}) {
	if ev == nil {
		return
	}
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = "arg"
		}
		if i+1 >= len(keyvals) {
			ev = ev.Str(key, "MISSING")
			break
		}
		switch v := keyvals[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

// Nop returns a Logger that discards everything
func Nop() Logger {
	return Zero{Logger: zerolog.Nop()}
}

// NewWithWriter builds the process logger from config.
// Diagnostics go to console; when cfg.File is set they are also appended to
// that file after age-based rotation.
func NewWithWriter(cfg config.LoggingCfg, console io.Writer) (zerolog.Logger, io.Closer) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = console
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen}
	}

	closer := io.Closer(nopCloser{})
	var fileErr error
	if cfg.File != "" {
		var f *os.File
		if f, fileErr = openLogFile(cfg.File, cfg.RotationDays); fileErr == nil {
			out = zerolog.MultiLevelWriter(out, f)
			closer = f
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if fileErr != nil {
		logger.Warn().Err(fileErr).Str("file", cfg.File).Msg("log file unavailable, logging to console only")
	}
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openLogFile(path string, rotationDays int) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if rotationDays <= 0 {
		rotationDays = 30
	}
	rotateLogsIfNeeded(path, rotationDays)
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// rotateLogsIfNeeded renames the log aside once it is older than rotationDays
func rotateLogsIfNeeded(logPath string, rotationDays int) {
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	if info.ModTime().Before(cutoffTime) {
		timestamp := info.ModTime().Format("20060102-150405")
		rotatedPath := logPath + "." + timestamp

		if err := os.Rename(logPath, rotatedPath); err != nil {
			return
		}

		cleanupOldLogs(logPath, rotationDays)
	}
}

// cleanupOldLogs removes rotated log files older than rotation days
func cleanupOldLogs(logPath string, rotationDays int) {
	logDir := filepath.Dir(logPath)
	baseName := filepath.Base(logPath)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, baseName+".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			_ = os.Remove(filepath.Join(logDir, name))
		}
	}
}
