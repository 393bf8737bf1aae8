package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"AllowanceLogger/internal/collector"
	"AllowanceLogger/internal/config"
	"AllowanceLogger/internal/logging"
	"AllowanceLogger/internal/metrics"
	"AllowanceLogger/internal/model"
	"AllowanceLogger/internal/notifier"
	"AllowanceLogger/internal/recorder"
	"AllowanceLogger/internal/scheduler"
	"AllowanceLogger/internal/tracker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "allowance-logger: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	pflag.StringVar(&cfgPath, "config", cfgPath, "path to the YAML or JSON config file (env: CONFIG_PATH)")
	modeFlag := pflag.String("mode", "", "change | reward (env: LOGGER_MODE)")
	runOnStart := pflag.Bool("run-on-start", true, "poll once immediately at startup")
	pflag.Parse()

	// Load config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *modeFlag != "" {
		cfg.SetMode(*modeFlag)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	mode := cfg.ParsedMode()

	log, err := logging.New(logging.Options{Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	log.Info("The Logger is starting",
		zap.String("mode", string(mode)),
		zap.Duration("interval", cfg.Poll.Interval),
		zap.Int("wallets", len(cfg.Wallets)))

	// Init fetcher
	fetcher := collector.NewGalaChainFetcher(collector.GalaChainOptions{
		BaseURL:           cfg.API.BaseURL,
		Collection:        cfg.API.Collection,
		ProxyURL:          cfg.Proxy,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Log:               log,
	})
	log.Info("data source", zap.String("fetcher", fetcher.Name()), zap.String("url", cfg.API.BaseURL))

	// Init recorders
	ledger := recorder.NewCSVRecorder(cfg.LogDir, mode)
	var history recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "off" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			history = sr
		}
	}
	rec := recorder.MultiRecorder{ledger, history}
	defer rec.Close()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.Register()
	if cfg.Metrics.Listen != "" {
		srv := startMetricsServer(cfg.Metrics.Listen, log)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sched := scheduler.NewScheduler(ctx, scheduler.Deps{
		Collector: collector.NewCollector(fetcher),
		State:     tracker.NewState(),
		Wallets:   model.NewRegistry(cfg.Wallets),
		Notifier:  notifier.NewDiscordNotifier(cfg.WebhookURL, cfg.Notify.Footer, cfg.Proxy),
		Ledger:    ledger,
		Recorder:  rec,
		Mode:      mode,
		Symbol:    cfg.Notify.Symbol,
		Log:       log,
	})
	if err := sched.Register(cfg.Poll.Interval); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if *runOnStart {
		go sched.RunNow()
	}

	log.Info("The Logger has started. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping")
	cancel()
	return nil
}

func startMetricsServer(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	log.Info("metrics server listening", zap.String("addr", addr))
	return srv
}
