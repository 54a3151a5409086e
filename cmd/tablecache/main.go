package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moeryomenko/synx"
	"github.com/tailored-agentic-units/tablecache/api"
	"github.com/tailored-agentic-units/tablecache/engine"
	"github.com/tailored-agentic-units/tablecache/observability"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configFile = flag.String("config", "", "Path to tablecache config JSON file (required)")
		addr       = flag.String("addr", "", "Admin server listen address (overrides config)")
		storeType  = flag.String("store", "", "Store type: memory, file, or remote (overrides config)")
		storePath  = flag.String("store-path", "", "File store directory (overrides config)")
		storeAddr  = flag.String("store-addr", "", "Remote store base URL (overrides config)")
		maxSize    = flag.Int("max-cache-size", 0, "Maximum cached records (overrides config)")
		retention  = flag.Duration("retention", 0, "Cache retention period (overrides config)")
		interval   = flag.Duration("interval", 0, "Expiry tick interval (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: tablecache -config <file>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := engine.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *storeType != "" {
		cfg.Store.Type = *storeType
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if *storeAddr != "" {
		cfg.Store.Address = *storeAddr
	}
	if *maxSize > 0 {
		cfg.Cache.MaxSize = *maxSize
	}
	if *retention > 0 {
		cfg.Cache.RetentionPeriod = engine.Duration(*retention)
	}
	if *interval > 0 {
		cfg.Cache.Interval = engine.Duration(*interval)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))

	eng, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(eng).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("admin server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return synx.CallWithTimeout(shutdownTimeout, server.Shutdown)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("tablecache stopped: %v", err)
	}
}
