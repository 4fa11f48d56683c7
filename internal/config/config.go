package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath     = "~/.config/volume-sage/config.yaml"
	DefaultDrive          = "/Volumes/CIRCUITPY"
	DefaultSystemPrefs    = "/Library/Preferences/SystemConfiguration/preferences.plist"
	DefaultServicesOutput = "output_preferences.plist"
	DefaultModemPrefix    = "usbmodem"
	DefaultNCPrefs        = "~/Library/Preferences/com.apple.ncprefs.plist"
	DefaultEjectBundleID  = "_SYSTEM_CENTER_:com.apple.DiskArbitration.DiskArbitrationAgent"
)

type SweepCfg struct {
	Path           string   `yaml:"path" json:"path"`
	Force          bool     `yaml:"force" json:"force"`
	DryRun         bool     `yaml:"dry_run" json:"dry_run"`
	Exclude        []string `yaml:"exclude" json:"exclude"`                 // doublestar globs relative to the root, e.g. ".Spotlight-V100/**"
	ProtectedPaths []string `yaml:"protected_paths" json:"protected_paths"` // Added to the built-in protected list
}

type ServicesCfg struct {
	PreferencesPath string `yaml:"preferences_path" json:"preferences_path"`
	OutputPath      string `yaml:"output_path" json:"output_path"`
	InterfacePrefix string `yaml:"interface_prefix" json:"interface_prefix"`
}

type BannerCfg struct {
	PreferencesPath string `yaml:"preferences_path" json:"preferences_path"`
	BundleID        string `yaml:"bundle_id" json:"bundle_id"`
	SkipRestart     bool   `yaml:"skip_restart" json:"skip_restart"` // Don't killall usernoted/cfprefsd afterwards
	SkipBackup      bool   `yaml:"skip_backup" json:"skip_backup"`
}

type LoggingCfg struct {
	Level        string `yaml:"level" json:"level"`
	Format       string `yaml:"format" json:"format"` // text or json
	File         string `yaml:"file" json:"file"`     // Optional log file, teed with stderr
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"`
}

type MetricsCfg struct {
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"` // node_exporter textfile collector target
}

type Config struct {
	Sweep        SweepCfg    `yaml:"sweep" json:"sweep"`
	Services     ServicesCfg `yaml:"services" json:"services"`
	Banner       BannerCfg   `yaml:"banner" json:"banner"`
	Logging      LoggingCfg  `yaml:"logging" json:"logging"`
	Metrics      MetricsCfg  `yaml:"metrics" json:"metrics"`
	DatabasePath string      `yaml:"database_path" json:"database_path"` // Empty disables sweep history
}

var (
	errInvalidPath    = errors.New("path must not be empty")
	errInvalidPattern = errors.New("invalid exclude pattern")
	errInvalidFormat  = errors.New("logging.format must be text or json")
	errNegativeDays   = errors.New("logging.rotation_days cannot be negative")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	// Defaults alone always validate.
	_ = cfg.validateAndDefault()
	return cfg
}

func Load(path string) (*Config, error) {
	f, err := os.Open(ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist and the caller did not ask for it explicitly.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return nil, err
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file
			return cfg, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate re-checks a config after flag overrides have been applied.
func (c *Config) Validate() error {
	return c.validateAndDefault()
}

func (c *Config) validateAndDefault() error {
	if c.Sweep.Path == "" {
		c.Sweep.Path = DefaultDrive
	}
	for _, pattern := range c.Sweep.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: %q", errInvalidPattern, pattern)
		}
	}

	if c.Services.PreferencesPath == "" {
		c.Services.PreferencesPath = DefaultSystemPrefs
	}
	if c.Services.OutputPath == "" {
		c.Services.OutputPath = DefaultServicesOutput
	}
	if c.Services.InterfacePrefix == "" {
		c.Services.InterfacePrefix = DefaultModemPrefix
	}

	if c.Banner.PreferencesPath == "" {
		c.Banner.PreferencesPath = DefaultNCPrefs
	}
	if c.Banner.BundleID == "" {
		c.Banner.BundleID = DefaultEjectBundleID
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Format {
	case "":
		c.Logging.Format = "text"
	case "text", "json":
	default:
		return errInvalidFormat
	}
	if c.Logging.RotationDays < 0 {
		return errNegativeDays
	}
	if c.Logging.RotationDays == 0 {
		c.Logging.RotationDays = 30 // Default: keep logs for 30 days
	}

	var err error
	if c.Sweep.Path, err = cleanPath(c.Sweep.Path); err != nil {
		return err
	}
	for i, p := range c.Sweep.ProtectedPaths {
		if c.Sweep.ProtectedPaths[i], err = cleanPath(p); err != nil {
			return err
		}
	}
	c.Services.PreferencesPath = ExpandHome(c.Services.PreferencesPath)
	c.Services.OutputPath = ExpandHome(c.Services.OutputPath)
	c.Banner.PreferencesPath = ExpandHome(c.Banner.PreferencesPath)
	c.Logging.File = ExpandHome(c.Logging.File)
	c.Metrics.TextfilePath = ExpandHome(c.Metrics.TextfilePath)
	c.DatabasePath = ExpandHome(c.DatabasePath)

	return nil
}

func cleanPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errInvalidPath
	}
	abs, err := filepath.Abs(ExpandHome(p))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return filepath.Clean(abs), nil
}

// ExpandHome replaces a leading "~/" with the current user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
