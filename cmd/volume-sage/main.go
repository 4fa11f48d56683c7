package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"volume-sage/internal/config"
	"volume-sage/internal/exitcodes"
	"volume-sage/internal/logging"
	"volume-sage/internal/prefs"
	"volume-sage/internal/styles"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

// exitError carries the process exit code chosen by a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// app holds what every command shares once the config is loaded
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	runner prefs.CommandRunner

	configPath string
	logLevel   string
	logFormat  string

	cfg       *config.Config
	log       zerolog.Logger
	logCloser io.Closer
}

func (a *app) logger() logging.Logger {
	return logging.Zero{Logger: a.log}
}

// setup loads the config, applies the global flag overrides and builds the logger
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadOrDefault(a.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return withCode(exitcodes.InvalidConfig, fmt.Errorf("failed to load config: %w", err))
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return withCode(exitcodes.InvalidConfig, fmt.Errorf("invalid config: %w", err))
	}

	a.cfg = cfg
	a.log, a.logCloser = logging.NewWithWriter(cfg.Logging, a.stderr)
	a.log.Debug().Str("config", a.configPath).Msg("Configuration loaded")
	return nil
}

func (a *app) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

func newRootCmd(a *app) *cobra.Command {
	var sf sweepFlags

	root := &cobra.Command{
		Use:   "volume-sage",
		Short: "Remove macOS AppleDouble files from a removable drive",
		Long: `volume-sage deletes the "._*" files macOS leaves on FAT drives such as
CircuitPython boards, and fixes two related macOS annoyances.

Without a subcommand it sweeps the drive, asking before each deletion
unless --force is given.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, a, &sf)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultConfigPath, "Path to configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "Log format (text, json)")
	sf.register(root)

	root.AddCommand(newSweepCmd(a))
	root.AddCommand(newServicesCmd(a))
	root.AddCommand(newEjectBannerCmd(a))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// No config needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "volume-sage %s\n", version)
		},
	}
}

// run executes the CLI and returns the process exit code
func run(ctx context.Context, args []string, a *app) int {
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitcodes.Success
	}

	fmt.Fprintf(a.stderr, "%s %v\n", styles.Render(&styles.Error, "Error:"), err)

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Flag parsing and argument errors
	return exitcodes.InvalidConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		// A second interrupt gets the default behaviour and kills the process
		<-ctx.Done()
		stop()
	}()

	code := run(ctx, os.Args[1:], &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		runner: prefs.ExecRunner{},
	})
	stop()
	os.Exit(code)
}
