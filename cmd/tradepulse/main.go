package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/tradepulse/internal/config"
	"github.com/sawpanic/tradepulse/internal/datasource"
	"github.com/sawpanic/tradepulse/internal/engine"
	"github.com/sawpanic/tradepulse/internal/executor"
	"github.com/sawpanic/tradepulse/internal/gates"
	"github.com/sawpanic/tradepulse/internal/history"
	httpiface "github.com/sawpanic/tradepulse/internal/interfaces/http"
	"github.com/sawpanic/tradepulse/internal/ledger"
	"github.com/sawpanic/tradepulse/internal/perf"
	"github.com/sawpanic/tradepulse/internal/rulestore"
	"github.com/sawpanic/tradepulse/internal/scheduler"
)

const (
	appName = "tradepulse"
	version = "v0.3.0"
)

var configPath string

func main() {
	setupLogging()

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Bounded, auditable trading decisions from periodic market data",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the decision loop",
		RunE:  runLoop,
	}

	evalCmd := &cobra.Command{
		Use:   "eval <instrument>",
		Short: "Evaluate one instrument's pipeline once and print the decision",
		Args:  cobra.ExactArgs(1),
		RunE:  runEval,
	}

	perfCmd := &cobra.Command{
		Use:   "perf",
		Short: "Print the performance summary recomputed from the ledger",
		RunE:  runPerf,
	}

	rootCmd.AddCommand(runCmd, evalCmd, perfCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// components bundles everything the subcommands wire up.
type components struct {
	cfg    config.Config
	source datasource.Source
	feed   *datasource.WSFeed
	store  ledger.Store
	rules  rulestore.Store
	window *history.Window
	gate   *gates.PositionGate
	engine *engine.Engine
	perf   *perf.Aggregator
}

func build(ctx context.Context) (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	c := &components{cfg: cfg}

	if cfg.Postgres.DSN != "" {
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.store = ledger.NewPostgresStore(db, 5*time.Second)
		log.Info().Msg("using postgres trade ledger")
	} else {
		c.store = ledger.NewMemoryStore()
		log.Info().Msg("using in-memory trade ledger (paper mode)")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		c.rules = rulestore.NewRedisStore(client)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis strategy store")
	} else {
		c.rules = rulestore.NewMemoryStore(cfg.Rules)
	}

	if cfg.Feed.URL != "" {
		c.feed = datasource.NewWSFeed(cfg.Feed.URL, cfg.Instruments,
			time.Duration(cfg.Feed.BarIntervalSec)*time.Second, cfg.Feed.MaxBars)
		c.source = datasource.NewRateLimitedSource(
			datasource.NewBreakerSource(c.feed, "ws-feed"),
			cfg.Feed.RateRPS, cfg.Feed.RateBurst)
	} else {
		c.source = datasource.NewMemorySource()
		log.Warn().Msg("no feed configured; instruments will be skipped until snapshots arrive")
	}

	c.window = history.NewWindow(cfg.History.Capacity)
	c.gate = gates.NewPositionGate(c.store, cfg.Gate)
	c.engine = engine.New(c.source, c.rules, c.gate, c.window, engine.Options{
		Instruments: cfg.Instruments,
		TickTimeout: cfg.TickTimeout(),
	})
	c.perf = perf.NewAggregator(c.store, cfg.Paper.StartingBalance)
	return c, nil
}

func runLoop(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := build(ctx)
	if err != nil {
		return err
	}

	if c.feed != nil {
		go func() {
			if err := c.feed.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("feed stopped")
			}
		}()
	}

	server := httpiface.NewServer(c.cfg.HTTP.Addr, c.engine, c.perf, c.source, c.cfg.Instruments)
	go func() {
		if err := server.Run(ctx); err != nil {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	paper := executor.NewPaper(c.store, c.source, c.window,
		c.cfg.Paper.Quantity, c.cfg.Paper.MinConfidence)

	sched := scheduler.New(c.engine, paper, c.cfg.TickInterval())
	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runEval(cmd *cobra.Command, args []string) error {
	c, err := build(cmd.Context())
	if err != nil {
		return err
	}

	dec, err := c.engine.EvaluateInstrument(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(dec)
}

func runPerf(cmd *cobra.Command, _ []string) error {
	c, err := build(cmd.Context())
	if err != nil {
		return err
	}

	prices := make(map[string]float64, len(c.cfg.Instruments))
	for _, instrument := range c.cfg.Instruments {
		snap, err := c.source.GetSnapshot(cmd.Context(), instrument)
		if err != nil {
			continue
		}
		prices[instrument] = snap.Price
	}

	summary, err := c.perf.Summary(cmd.Context(), prices)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
