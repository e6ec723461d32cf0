// Command roulette-sim runs a martingale simulation on the red-and-odd bet
// and reports how long the bankroll survives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MJE43/stake-roulette-sim/internal/config"
	"github.com/MJE43/stake-roulette-sim/internal/engine"
	"github.com/MJE43/stake-roulette-sim/internal/logger"
	"github.com/MJE43/stake-roulette-sim/internal/progress"
	"github.com/MJE43/stake-roulette-sim/internal/scripting"
	"github.com/MJE43/stake-roulette-sim/internal/seeds"
	"github.com/MJE43/stake-roulette-sim/internal/simulation"
	"github.com/MJE43/stake-roulette-sim/internal/sink"
	"github.com/MJE43/stake-roulette-sim/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "roulette-sim:", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	rounds     int
	csvPath    string
	dbPath     string
	stopRule   string
	vault      bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("roulette-sim", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "config.yaml", "path to the YAML config (optional)")
	fs.IntVar(&f.rounds, "rounds", 0, "maximum rounds, overrides the config")
	fs.StringVar(&f.csvPath, "csv", "", "write every round to this CSV file")
	fs.StringVar(&f.dbPath, "db", "", "record the session in this SQLite database")
	fs.StringVar(&f.stopRule, "stop-rule", "", "script or expression that ends the run early")
	fs.BoolVar(&f.vault, "vault", false, "keep the server seed in the OS keyring instead of printing it")
	err := fs.Parse(args)
	return f, err
}

func (f flags) apply(cfg *config.Config) {
	if f.rounds > 0 {
		cfg.Simulation.MaxRounds = f.rounds
	}
	if f.csvPath != "" {
		cfg.Output.CSVPath = f.csvPath
	}
	if f.dbPath != "" {
		cfg.Output.SQLitePath = f.dbPath
	}
	if f.stopRule != "" {
		cfg.Simulation.StopRule = f.stopRule
	}
}

func resolveSeeds(cfg config.Config) (engine.Seeds, uint64, error) {
	if cfg.NeedsRandomSeeds() {
		return seeds.Random()
	}
	return engine.Seeds{Server: cfg.Seeds.Server, Client: cfg.Seeds.Client}, cfg.Seeds.StartNonce, nil
}

// closer releases one output after the run.
type closer func(ctx context.Context) error

func run(ctx context.Context, args []string, stdout io.Writer) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	f.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Service, cfg.Log.Env)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	s, startNonce, err := resolveSeeds(cfg)
	if err != nil {
		return err
	}
	simCfg, err := cfg.SimulationConfig(s, startNonce)
	if err != nil {
		return err
	}

	revealed := s.Server
	if f.vault {
		v := seeds.NewVault(cfg.Seeds.VaultService, cfg.Seeds.VaultFallback)
		hash, err := v.Store(s.Server)
		if err != nil {
			return err
		}
		revealed = ""
		log.Info("server seed stored in vault", zap.String("server_seed_hash", hash))
	}

	opts := []simulation.Option{
		simulation.WithLogger(log),
		simulation.WithReporter(progress.NewLog(log)),
	}
	var closers []closer
	defer func() {
		// Outputs are closed in reverse order even when the run is
		// interrupted; the rows already played are kept.
		cctx := context.WithoutCancel(ctx)
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](cctx); err != nil {
				log.Error("close output", zap.Error(err))
			}
		}
	}()

	if cfg.Output.CSVPath != "" {
		csv, err := sink.CreateCSV(cfg.Output.CSVPath, cfg.Output.CSVBuffer)
		if err != nil {
			return err
		}
		opts = append(opts, simulation.WithSink(csv))
		closers = append(closers, func(context.Context) error { return csv.Close() })
	}

	var (
		db  *store.Store
		rec *store.Recorder
	)
	if cfg.Output.SQLitePath != "" {
		db, err = store.New(cfg.Output.SQLitePath)
		if err != nil {
			return err
		}
		closers = append(closers, func(context.Context) error { return db.Close() })
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		id, err := db.CreateSession(ctx, store.NewSession(simCfg, cfg.Simulation.StopRule))
		if err != nil {
			return err
		}
		rec = store.NewRecorder(db, id, store.DefaultFlushSize)
		opts = append(opts, simulation.WithSink(rec))
		closers = append(closers, rec.Close)
		log.Info("recording session", zap.String("session_id", id), zap.String("path", cfg.Output.SQLitePath))
	}

	session := ""
	if rec != nil {
		session = rec.SessionID()
	}

	if len(cfg.Output.KafkaBrokers) > 0 {
		w := sink.NewKafkaWriter(strings.Join(cfg.Output.KafkaBrokers, ","), cfg.Output.KafkaTopic)
		k := sink.NewKafka(w, session, sink.DefaultKafkaBatch)
		opts = append(opts, simulation.WithSink(k))
		closers = append(closers, k.Close)
	}

	if cfg.Output.RedisAddr != "" {
		rdb, err := progress.Connect(ctx, cfg.Output.RedisAddr)
		if err != nil {
			return err
		}
		closers = append(closers, func(context.Context) error { return rdb.Close() })
		opts = append(opts, simulation.WithReporter(progress.NewRedis(rdb, cfg.Output.RedisChannel, session)))
	}

	if cfg.Simulation.StopRule != "" {
		rule, err := scripting.NewStopRule(cfg.Simulation.StopRule, log)
		if err != nil {
			return err
		}
		opts = append(opts, simulation.WithStopRule(rule))
	}

	start := time.Now()
	sum, runErr := simulation.New(simCfg, opts...).Run(ctx)
	elapsed := time.Since(start)

	if rec != nil {
		// Flush before EndSession so the stored totals match the rows.
		cctx := context.WithoutCancel(ctx)
		if err := rec.Flush(cctx); err != nil {
			runErr = errors.Join(runErr, err)
		}
		if err := db.EndSession(cctx, rec.SessionID(), sum); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}

	printSummary(stdout, sum, elapsed, revealed)
	return runErr
}
