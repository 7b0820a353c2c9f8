// Package cmd implements the indexer command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cpw/indexer/internal/config"
	"github.com/cpw/indexer/internal/log"
	"github.com/cpw/indexer/internal/placer"
	"github.com/cpw/indexer/internal/rebuild"
	"github.com/cpw/indexer/internal/report"
	"github.com/cpw/indexer/internal/tracing"
)

var version = "dev"

var rootCmd = newRootCmd()

// options carries per-invocation command state.
type options struct {
	v       *viper.Viper
	cfgFile string
	copy    bool
}

func newRootCmd() *cobra.Command {
	o := &options{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "indexer",
		Short: "Build browsable views of registered artifacts",
		Long: `Rebuild the Artifacts/ view trees (PY/, SID/, CID/) from the current
identity records in the registry. Each artifact file is symlinked into every
view it belongs to, or copied when links are unavailable. Reruns only add
what is missing.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&o.cfgFile, "config", "c", "",
		"config file (default: .indexer/config.yaml or ~/.config/indexer/config.yaml)")

	flags := cmd.Flags()
	flags.String("artifacts-root", "", "artifacts view root (default: <repo>/Artifacts)")
	flags.String("registry-db", "", "registry database (default: <repo>/modules/registry/registry.sqlite)")
	flags.String("repo-root", "", "repository root used for default paths")
	flags.Int("workers", 1, "number of concurrent placements")
	flags.Bool("dry-run", false, "print the planned placements without touching the filesystem")
	flags.Bool("watch", false, "keep running and rebuild whenever the registry changes")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("log-file", "", "append logs to this file instead of stderr")
	flags.BoolVar(&o.copy, "copy", false, "always copy files instead of symlinking")

	_ = o.v.BindPFlag("artifacts_root", flags.Lookup("artifacts-root"))
	_ = o.v.BindPFlag("registry_db", flags.Lookup("registry-db"))
	_ = o.v.BindPFlag("repo_root", flags.Lookup("repo-root"))
	_ = o.v.BindPFlag("workers", flags.Lookup("workers"))
	_ = o.v.BindPFlag("dry_run", flags.Lookup("dry-run"))
	_ = o.v.BindPFlag("watch.enabled", flags.Lookup("watch"))
	_ = o.v.BindPFlag("log.debug", flags.Lookup("debug"))
	_ = o.v.BindPFlag("log.path", flags.Lookup("log-file"))

	cmd.AddCommand(newConfigCmd())
	return cmd
}

func (o *options) run(cmd *cobra.Command) error {
	cfg, err := config.Load(o.v, o.cfgFile)
	if err != nil {
		return err
	}
	if o.copy {
		cfg.Placement.Mode = string(placer.ModeCopy)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer cleanup()

	opts, err := config.RebuildOptions(cfg, "")
	if err != nil {
		return err
	}

	provider, err := tracing.NewProvider(cfg.Tracing.TracingOptions())
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			log.ErrorErr(log.CatTrace, "Tracing shutdown failed", err)
		}
	}()

	r := rebuild.New(
		rebuild.WithPlacer(placer.New(placer.Mode(cfg.Placement.Mode))),
		rebuild.WithTracer(provider.Tracer()),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if err := runOnce(ctx, r, opts, out); err != nil {
		return err
	}
	if !cfg.Watch.Enabled {
		return nil
	}
	return watchRegistry(ctx, r, opts, cfg.Watch.Debounce, out)
}

// runOnce performs one rebuild and prints its summary. Cancellation is not
// reported as a failure.
func runOnce(ctx context.Context, r *rebuild.Rebuilder, opts rebuild.Options, out io.Writer) error {
	summary, err := r.Rebuild(ctx, opts)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}
	if summary.DryRun {
		_, _ = fmt.Fprint(out, report.Plan(summary, terminalWidth(out)))
	}
	_, _ = fmt.Fprintln(out, report.Summary(summary))
	return nil
}

// terminalWidth returns the width of out when it is a terminal, else 0.
func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(f.Fd()) {
		return 0
	}
	w, _, err := term.GetSize(f.Fd())
	if err != nil {
		return 0
	}
	return w
}

func setupLogging(cfg config.LogConfig) (func(), error) {
	if cfg.Debug {
		log.SetMinLevel(log.LevelDebug)
	}
	if cfg.Path == "" {
		return func() {}, nil
	}
	cleanup, err := log.Init(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return cleanup, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
