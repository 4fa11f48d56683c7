package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"volume-sage/internal/config"
	"volume-sage/internal/exitcodes"
	"volume-sage/internal/prefs"
	"volume-sage/internal/styles"
)

func newServicesCmd(a *app) *cobra.Command {
	var prefsPath, output, prefix string

	cmd := &cobra.Command{
		Use:   "services",
		Short: "Drop the network services left behind by USB boards",
		Long: `Every CircuitPython board plugged in registers a network service that
stays in System Settings forever. This writes a copy of the system
network preferences without the services whose device name starts with
the prefix. The original file is not modified; the command to install
the copy is printed at the end.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Services
			if cmd.Flags().Changed("prefs") {
				cfg.PreferencesPath = config.ExpandHome(prefsPath)
			}
			if cmd.Flags().Changed("output") {
				cfg.OutputPath = config.ExpandHome(output)
			}
			if cmd.Flags().Changed("prefix") {
				cfg.InterfacePrefix = prefix
			}

			result, err := prefs.PruneNetworkServices(prefs.PruneOptions{
				PreferencesPath: cfg.PreferencesPath,
				OutputPath:      cfg.OutputPath,
				InterfacePrefix: cfg.InterfacePrefix,
			})
			if errors.Is(err, prefs.ErrEmptyPrefix) {
				return withCode(exitcodes.InvalidConfig, fmt.Errorf("--prefix: %w", err))
			}
			if err != nil {
				return withCode(exitcodes.RuntimeError, err)
			}

			out := cmd.OutOrStdout()
			for _, s := range result.Services {
				line := s.String()
				if s.Removed {
					line = styles.Render(&styles.Warning, line)
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)

			removed := result.Removed()
			a.logger().Info("Network services pruned",
				"source", cfg.PreferencesPath,
				"output", result.OutputPath,
				"removed", len(removed),
				"total", len(result.Services),
			)
			if len(removed) == 0 {
				fmt.Fprintln(out, "No service removed, nothing to do")
				return nil
			}
			fmt.Fprintln(out, "And now:")
			fmt.Fprintln(out, styles.Render(&styles.Bold, fmt.Sprintf("sudo cp %s %s", result.OutputPath, cfg.PreferencesPath)))
			return nil
		},
	}

	cmd.Flags().StringVar(&prefsPath, "prefs", config.DefaultSystemPrefs, "SystemConfiguration preferences file to read")
	cmd.Flags().StringVarP(&output, "output", "o", config.DefaultServicesOutput, "Where to write the pruned copy")
	cmd.Flags().StringVar(&prefix, "prefix", config.DefaultModemPrefix, "Interface device name prefix to remove")
	return cmd
}

func newEjectBannerCmd(a *app) *cobra.Command {
	var prefsPath string
	var revert, noRestart, noBackup bool

	cmd := &cobra.Command{
		Use:   "eject-banner",
		Short: `Turn "disk not ejected properly" alerts into banners`,
		Long: `macOS shows an alert that has to be dismissed by hand every time a
board resets or is unplugged. This switches the DiskArbitration
notification style to a banner that goes away on its own, then restarts
Notification Center so the change applies immediately.

A copy of the original preferences is kept next to it with a .bak suffix.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Banner
			if cmd.Flags().Changed("prefs") {
				cfg.PreferencesPath = config.ExpandHome(prefsPath)
			}
			if cmd.Flags().Changed("no-restart") {
				cfg.SkipRestart = noRestart
			}
			if cmd.Flags().Changed("no-backup") {
				cfg.SkipBackup = noBackup
			}

			result, err := prefs.FixEjectBanner(cmd.Context(), a.logger(), a.runner, prefs.BannerOptions{
				PreferencesPath: cfg.PreferencesPath,
				BundleID:        cfg.BundleID,
				Revert:          revert,
				SkipBackup:      cfg.SkipBackup,
				SkipRestart:     cfg.SkipRestart,
			})
			if err != nil {
				return withCode(exitcodes.RuntimeError, err)
			}

			out := cmd.OutOrStdout()
			if !result.Found {
				fmt.Fprintf(out, "%s not found in %s, nothing to do\n", cfg.BundleID, cfg.PreferencesPath)
				return nil
			}

			style := "banner"
			if revert {
				style = "alert"
			}
			fmt.Fprintf(out, "%s eject notifications now use the %s style (flags %#x -> %#x)\n",
				styles.Render(&styles.Success, "Done."), style, result.OldFlags, result.NewFlags)
			if result.BackupPath != "" {
				fmt.Fprintln(out, styles.Render(&styles.Dimmed, "Backup: "+result.BackupPath))
			}
			if !cfg.SkipRestart && !result.Restarted {
				fmt.Fprintln(out, styles.Render(&styles.Warning, "Notification Center was not restarted, log out to apply the change"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefsPath, "prefs", config.DefaultNCPrefs, "Notification Center preferences file")
	cmd.Flags().BoolVar(&revert, "revert", false, "Switch back to alerts")
	cmd.Flags().BoolVar(&noRestart, "no-restart", false, "Do not restart usernoted and cfprefsd")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Do not keep a .bak copy")
	return cmd
}
