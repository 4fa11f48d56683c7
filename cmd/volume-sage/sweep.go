package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"volume-sage/internal/database"
	"volume-sage/internal/exitcodes"
	"volume-sage/internal/metrics"
	"volume-sage/internal/prompt"
	"volume-sage/internal/safety"
	"volume-sage/internal/styles"
	"volume-sage/internal/sweep"
)

// sweepFlags are shared by the root command and "sweep"
type sweepFlags struct {
	path        string
	force       bool
	dryRun      bool
	exclude     []string
	dbPath      string
	metricsFile string
}

func (f *sweepFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "path", "p", "", "Drive to sweep (default /Volumes/CIRCUITPY)")
	cmd.Flags().BoolVarP(&f.force, "force", "f", false, "Delete without asking")
	cmd.Flags().BoolVarP(&f.dryRun, "dry-run", "n", false, "Report what would be deleted, delete nothing")
	cmd.Flags().StringArrayVar(&f.exclude, "exclude", nil, "Glob relative to the drive to leave alone (repeatable)")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "SQLite file to record sweep history in")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
}

// apply copies explicitly set flags over the loaded config
func (f *sweepFlags) apply(cmd *cobra.Command, a *app) error {
	cfg := a.cfg
	if cmd.Flags().Changed("path") {
		cfg.Sweep.Path = f.path
	}
	if cmd.Flags().Changed("force") {
		cfg.Sweep.Force = f.force
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Sweep.DryRun = f.dryRun
	}
	if cmd.Flags().Changed("exclude") {
		cfg.Sweep.Exclude = append(cfg.Sweep.Exclude, f.exclude...)
	}
	if cmd.Flags().Changed("db") {
		cfg.DatabasePath = f.dbPath
	}
	if cmd.Flags().Changed("metrics-file") {
		cfg.Metrics.TextfilePath = f.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return withCode(exitcodes.InvalidConfig, fmt.Errorf("invalid config: %w", err))
	}
	return nil
}

func newSweepCmd(a *app) *cobra.Command {
	var sf sweepFlags

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete AppleDouble files from the drive",
		Long: `Walk the drive depth-first and delete every file whose name starts
with "._". Each deletion is confirmed unless --force is given.

Examples:
  volume-sage sweep                         # Ask before each file on /Volumes/CIRCUITPY
  volume-sage sweep --force                 # Delete without asking
  volume-sage sweep -p /Volumes/FEATHER -n  # Show what would go`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, a, &sf)
		},
	}
	sf.register(cmd)
	return cmd
}

func runSweep(cmd *cobra.Command, a *app, sf *sweepFlags) error {
	if err := sf.apply(cmd, a); err != nil {
		return err
	}
	cfg := a.cfg
	logger := a.logger()

	if !cfg.Sweep.Force {
		if f, ok := a.stdin.(*os.File); !ok || !prompt.IsInteractive(f) {
			logger.Warn("stdin is not a terminal and --force is off, the sweep waits for answers on stdin")
		}
	}

	var db *database.SweepDB
	if cfg.DatabasePath != "" {
		var err error
		db, err = database.NewSweepDB(cfg.DatabasePath)
		if err != nil {
			return withCode(exitcodes.RuntimeError, fmt.Errorf("failed to open database: %w", err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close database", "error", err)
			}
		}()
	}

	sweeper := sweep.New(logger, prompt.NewTerminal(a.stdin, a.stdout), a.stdout, db, sweep.Options{
		Force:          cfg.Sweep.Force,
		DryRun:         cfg.Sweep.DryRun,
		Exclude:        cfg.Sweep.Exclude,
		ProtectedPaths: cfg.Sweep.ProtectedPaths,
	})

	report, err := sweeper.Sweep(cmd.Context(), cfg.Sweep.Path)
	if errors.Is(err, sweep.ErrRootNotFound) {
		// Echo the drive the way the operator typed it
		drive := cfg.Sweep.Path
		if cmd.Flags().Changed("path") {
			drive = sf.path
		}
		fmt.Fprintf(a.stdout, "Drive %s not found\n", drive)
		return nil
	}

	if cfg.Metrics.TextfilePath != "" {
		if werr := metrics.WriteTextfile(cfg.Metrics.TextfilePath); werr != nil {
			logger.Warn("Failed to write metrics", "error", werr)
		}
	}

	switch {
	case err == nil:
		report.Print(a.stdout)
		return nil
	case errors.Is(err, safety.ErrProtectedPath):
		return withCode(exitcodes.SafetyViolation, err)
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(a.stdout, styles.Render(&styles.Warning, "Interrupted."))
		report.Print(a.stdout)
		return withCode(exitcodes.RuntimeError, err)
	default:
		return withCode(exitcodes.RuntimeError, err)
	}
}
