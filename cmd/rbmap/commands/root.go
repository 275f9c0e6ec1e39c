// Package commands implements the rbmap subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/internal/kvstore"
	"github.com/Sumatoshi-tech/rbmap/pkg/config"
	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/version"
)

// globalOptions holds the persistent root flags.
type globalOptions struct {
	configPath string
	verbose    bool
	quiet      bool
}

// NewRootCommand builds the rbmap command tree.
func NewRootCommand() *cobra.Command {
	globals := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "rbmap",
		Short: "rbmap - ordered key-value buckets on red-black trees",
		Long: `rbmap keeps named buckets of ordered keys, each backed by a red-black tree.

Commands:
  run       Execute a JSON or YAML script of bucket operations
  dump      Inspect a snapshot file
  serve     Serve the buckets over HTTP
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globals.configPath, "config", "c", "", "config file (default: ./rbmap.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&globals.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globals.quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(NewRunCommand(globals))
	rootCmd.AddCommand(NewDumpCommand())
	rootCmd.AddCommand(NewServeCommand(globals))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// environment is what every store-backed command needs.
type environment struct {
	cfg         *config.Config
	providers   observability.Providers
	red         *observability.REDMetrics
	treeMetrics *observability.TreeMetrics
}

func (g *globalOptions) setup(mode observability.AppMode) (*environment, error) {
	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}

	obsCfg := cfg.Observability(mode, version.Version)

	switch {
	case g.verbose:
		obsCfg.LogLevel = slog.LevelDebug
	case g.quiet:
		obsCfg.LogLevel = slog.LevelError
	}

	return newEnvironment(cfg, obsCfg)
}

func newEnvironment(cfg *config.Config, obsCfg observability.Config) (*environment, error) {
	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	slog.SetDefault(providers.Logger)

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("create RED metrics: %w", err)
	}

	treeMetrics, err := observability.NewTreeMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("create tree metrics: %w", err)
	}

	return &environment{cfg: cfg, providers: providers, red: red, treeMetrics: treeMetrics}, nil
}

// openStore creates an empty store from the loaded configuration.
func (e *environment) openStore() (*kvstore.Store, error) {
	codec, err := e.cfg.Storage.SnapshotCodec()
	if err != nil {
		return nil, err
	}

	limit, err := e.cfg.Storage.SnapshotLimit()
	if err != nil {
		return nil, err
	}

	return kvstore.New(kvstore.Options{
		MaxSize:              e.cfg.Tree.MaxSize,
		SelfCheck:            e.cfg.Tree.SelfCheck,
		Shards:               e.cfg.Tree.Shards,
		HibernationThreshold: e.cfg.Tree.HibernationThreshold,
		Dir:                  e.cfg.Storage.Directory,
		Basename:             e.cfg.Storage.Basename,
		Codec:                codec,
		MaxSnapshotSize:      limit,
		Tracer:               e.providers.Tracer,
		RED:                  e.red,
		TreeMetrics:          e.treeMetrics,
		Logger:               e.providers.Logger,
	})
}

func (e *environment) shutdown(ctx context.Context) {
	err := e.providers.Shutdown(ctx)
	if err != nil {
		e.providers.Logger.WarnContext(ctx, "telemetry shutdown failed", "error", err)
	}
}
