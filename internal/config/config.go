// Package config provides configuration types, defaults and loading for the indexer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cpw/indexer/internal/log"
	"github.com/cpw/indexer/internal/paths"
	"github.com/cpw/indexer/internal/placer"
	"github.com/cpw/indexer/internal/rebuild"
	"github.com/cpw/indexer/internal/tracing"
)

// EnvPrefix prefixes every environment override, e.g. CPW_ARTIFACTS_ROOT.
const EnvPrefix = "CPW"

// DefaultConfigPath is the project-local config file, relative to the
// working directory.
const DefaultConfigPath = ".indexer/config.yaml"

// Config holds all configuration options for the indexer.
type Config struct {
	// RepoRoot anchors the default and relative paths below.
	// Empty means: search upward for modules/registry.
	RepoRoot string `mapstructure:"repo_root"`

	// ArtifactsRoot is where the PY/, SID/ and CID/ trees are built.
	// Default: <repo>/Artifacts
	ArtifactsRoot string `mapstructure:"artifacts_root"`

	// RegistryDB is the registry SQLite file.
	// Default: <repo>/modules/registry/registry.sqlite
	RegistryDB string `mapstructure:"registry_db"`

	// Workers is the number of concurrent placements.
	Workers int `mapstructure:"workers"`

	DryRun bool `mapstructure:"dry_run"`

	Placement PlacementConfig `mapstructure:"placement"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// PlacementConfig controls how artifact files are placed.
type PlacementConfig struct {
	Mode string `mapstructure:"mode"` // "auto" (symlink, fall back to copy) or "copy"
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// LogConfig controls log output.
type LogConfig struct {
	// Path is a log file to append to. Empty logs to stderr.
	Path  string `mapstructure:"path"`
	Debug bool   `mapstructure:"debug"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/indexer/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/indexer/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "indexer", "traces", "traces.jsonl")
}

// Defaults returns a Config with default values. Paths are left empty and
// derived from the repository root by RebuildOptions.
func Defaults() Config {
	return Config{
		Workers: 1,
		Placement: PlacementConfig{
			Mode: string(placer.ModeAuto),
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: time.Second,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// SetDefaults registers every key with its default on v and binds the
// CPW_* environment overrides. Every key must have a default for
// viper.Unmarshal to see its environment variable.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("repo_root", d.RepoRoot)
	v.SetDefault("artifacts_root", d.ArtifactsRoot)
	v.SetDefault("registry_db", d.RegistryDB)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("placement.mode", d.Placement.Mode)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("repo_root", EnvPrefix+"_REPO_ROOT")
	_ = v.BindEnv("artifacts_root", EnvPrefix+"_ARTIFACTS_ROOT")
	_ = v.BindEnv("registry_db", EnvPrefix+"_REGISTRY_DB")
}

// Load reads configuration into a Config. An explicit cfgFile must exist;
// otherwise .indexer/config.yaml and then ~/.config/indexer/config.yaml are
// tried, and finding neither is not an error.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if _, err := os.Stat(DefaultConfigPath); err == nil {
		v.SetConfigFile(DefaultConfigPath)
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "indexer"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.ErrorErr(log.CatConfig, "Failed to read config", err, "path", cfgFile)
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		log.Debug(log.CatConfig, "No config file found, using defaults")
	} else {
		log.Debug(log.CatConfig, "Loaded config", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func Validate(cfg Config) error {
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if !placer.ValidMode(placer.Mode(cfg.Placement.Mode)) {
		return fmt.Errorf("placement.mode must be \"auto\" or \"copy\", got %q", cfg.Placement.Mode)
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", cfg.Watch.Debounce)
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// file_path falls back to DefaultTracesFilePath, so only the endpoint is required.
	if tracing.Enabled && tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}
	return nil
}

// RebuildOptions resolves cfg into the explicit options of one rebuild.
// start is the directory the repository root search begins from; empty
// means the working directory.
func RebuildOptions(cfg Config, start string) (rebuild.Options, error) {
	root, err := paths.ResolveRepoRoot(cfg.RepoRoot, start)
	if err != nil {
		return rebuild.Options{}, fmt.Errorf("resolving repository root: %w", err)
	}

	artifacts := filepath.Join(root, "Artifacts")
	if cfg.ArtifactsRoot != "" {
		artifacts = paths.Anchor(root, cfg.ArtifactsRoot)
	}
	registryDB := filepath.Join(root, paths.RegistryDir, "registry.sqlite")
	if cfg.RegistryDB != "" {
		registryDB = paths.Anchor(root, cfg.RegistryDB)
	}

	log.Debug(log.CatConfig, "Resolved paths", "repo", root,
		"artifacts", artifacts, "registry", registryDB)
	return rebuild.Options{
		ArtifactsRoot: artifacts,
		RegistryPath:  registryDB,
		Workers:       cfg.Workers,
		DryRun:        cfg.DryRun,
	}, nil
}

// TracingOptions converts the tracing section into a tracing.Config.
func (t TracingConfig) TracingOptions() tracing.Config {
	out := tracing.DefaultConfig()
	out.Enabled = t.Enabled
	if t.Exporter != "" {
		out.Exporter = t.Exporter
	}
	out.FilePath = t.FilePath
	if out.FilePath == "" {
		out.FilePath = DefaultTracesFilePath()
	}
	if t.OTLPEndpoint != "" {
		out.OTLPEndpoint = t.OTLPEndpoint
	}
	out.SampleRate = t.SampleRate
	return out
}
