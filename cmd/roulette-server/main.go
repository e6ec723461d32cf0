// Command roulette-server serves spin verification, bounded simulations
// and Prometheus metrics over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/stake-roulette-sim/internal/api"
	"github.com/MJE43/stake-roulette-sim/internal/config"
	"github.com/MJE43/stake-roulette-sim/internal/logger"
	"github.com/MJE43/stake-roulette-sim/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], nil); err != nil {
		fmt.Fprintln(os.Stderr, "roulette-server:", err)
		os.Exit(1)
	}
}

// run serves until ctx is done. onListen, when set, receives the bound
// address once the listener is open.
func run(ctx context.Context, args []string, onListen func(net.Addr)) error {
	fs := flag.NewFlagSet("roulette-server", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML config (optional)")
	addr := fs.String("addr", "", "listen address, overrides the config")
	dbPath := fs.String("db", "", "SQLite database for persisted simulations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Output.SQLitePath = *dbPath
	}

	log, err := logger.New(cfg.Log.Service, cfg.Log.Env)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	defaults, err := cfg.BettingConfig()
	if err != nil {
		return err
	}

	var st *store.Store
	if cfg.Output.SQLitePath != "" {
		st, err = store.New(cfg.Output.SQLitePath)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := api.NewServer(api.Config{
		Logger:    log,
		Store:     st,
		Registry:  reg,
		Defaults:  defaults,
		MaxRounds: cfg.Server.MaxRounds,
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	httpSrv := &http.Server{
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("roulette-server listening", zap.String("addr", ln.Addr().String()))
		if onListen != nil {
			onListen(ln.Addr())
		}
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}
