// Command ignite runs the discovery scoring and gating engine: a
// one-shot scan, a long-lived ops server, or a store health probe.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ignitelab/ignite/internal/config"
	ophttp "github.com/ignitelab/ignite/internal/interfaces/http"
	ilog "github.com/ignitelab/ignite/internal/log"
	"github.com/ignitelab/ignite/internal/persistence"
	"github.com/ignitelab/ignite/internal/pipeline"
	"github.com/ignitelab/ignite/internal/providers"
	"github.com/ignitelab/ignite/internal/publish"
	"github.com/ignitelab/ignite/internal/telemetry"
)

const version = "1.4.0"

var (
	flagConfig   string
	flagLogLevel string
	flagSymbols  string
	flagStrategy string
	flagDryRun   bool
	flagStream   string
	flagHost     string
	flagPort     int
)

// defaultUniverse backs scans invoked without --symbols.
var defaultUniverse = []string{
	"ABVX", "BKSY", "CRDO", "DNUT", "EVGO", "FUBO",
	"GRND", "HOOD", "IONQ", "JOBY", "KLTR", "LUNR",
}

func main() {
	root := &cobra.Command{
		Use:     "ignite",
		Short:   "Discovery scoring and gating engine",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ilog.Setup(flagLogLevel)
		},
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "calibration yaml path (defaults built in)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "trace|debug|info|warn|error")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one discovery scan and print the result",
		RunE:  runScan,
	}
	scanCmd.Flags().StringVar(&flagSymbols, "symbols", "", "comma-separated universe override")
	scanCmd.Flags().StringVar(&flagStrategy, "strategy", "", "publish strategy key override")
	scanCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "simulated providers, no publish store")
	addStreamFlag(scanCmd.Flags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ops HTTP server with on-demand scans",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&flagHost, "host", "0.0.0.0", "listen host")
	serveCmd.Flags().IntVar(&flagPort, "port", 8090, "listen port")
	addStreamFlag(serveCmd.Flags())

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the publish store",
		RunE:  runHealth,
	}

	root.AddCommand(scanCmd, serveCmd, healthCmd)

	if err := root.Execute(); err != nil {
		if !errors.Is(err, pipeline.ErrReadiness) {
			log.Error().Err(err).Msg("command failed")
		}
		os.Exit(1)
	}
}

// addStreamFlag is shared by scan and serve: both can swap the sim
// quote adapter for a live websocket feed.
func addStreamFlag(fs *pflag.FlagSet) {
	fs.StringVar(&flagStream, "stream-url", "", "websocket quote feed url")
}

func loadConfig() (*config.Config, error) {
	if flagConfig == "" {
		return config.Default(), nil
	}
	return config.Load(flagConfig)
}

// buildEngine assembles the facade, runner, and optional store/archiver
// from flags and config.
func buildEngine(ctx context.Context, cfg *config.Config) (*pipeline.Runner, *telemetry.Metrics, *publish.Store, func(), error) {
	metrics := telemetry.NewMetrics()
	facade := providers.NewFacade()
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if flagStream != "" && !flagDryRun {
		stream := providers.NewStreamAdapter("stream-quotes", flagStream)
		stream.Start(ctx)
		cleanups = append(cleanups, stream.Stop)
		facade.Register(stream, providers.DefaultGuardConfig(stream.Name()))
		// Enrichment tiers still come from the sim suite until real
		// regulatory/aggregator adapters land.
		for _, a := range providers.NewSimSuite(nil)[1:] {
			facade.Register(a, providers.DefaultGuardConfig(a.Name()))
		}
	} else {
		for _, a := range providers.NewSimSuite(nil) {
			facade.Register(a, providers.DefaultGuardConfig(a.Name()))
		}
	}

	var opts []pipeline.Option
	var store *publish.Store
	if !flagDryRun {
		store = publish.Dial(cfg.Publish.Addr)
		opts = append(opts, pipeline.WithPublisher(store))
		if cfg.Archive.DSN != "" {
			archiver, err := persistence.Open(ctx, cfg.Archive.DSN)
			if err != nil {
				cleanup()
				return nil, nil, nil, nil, err
			}
			cleanups = append(cleanups, func() { _ = archiver.Close() })
			opts = append(opts, pipeline.WithArchiver(archiver))
		}
	}

	runner, err := pipeline.NewRunner(cfg, facade, metrics, opts...)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}
	return runner, metrics, store, cleanup, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagStrategy != "" {
		cfg.Publish.Strategy = flagStrategy
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, _, _, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	universe := defaultUniverse
	if flagSymbols != "" {
		universe = splitSymbols(flagSymbols)
	}

	result, err := runner.Run(ctx, universe)
	if err != nil && result == nil {
		return err
	}

	out, merr := json.MarshalIndent(result, "", "  ")
	if merr != nil {
		return merr
	}
	fmt.Println(string(out))
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, metrics, store, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	server := ophttp.NewServer(runner, metrics, store, cfg.Publish.Strategy, defaultUniverse)
	addr := fmt.Sprintf("%s:%d", flagHost, flagPort)
	return server.ListenAndServe(ctx, addr)
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := publish.Dial(cfg.Publish.Addr)
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("publish store %s: %w", cfg.Publish.Addr, err)
	}
	fmt.Printf("publish store %s: ok\n", cfg.Publish.Addr)
	return nil
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if sym := strings.ToUpper(strings.TrimSpace(p)); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}
