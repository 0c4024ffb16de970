package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/presenterkit/slidepilot/config"
	"github.com/presenterkit/slidepilot/metrics"
	"github.com/presenterkit/slidepilot/relay"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", slog.String("error", err.Error()))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.ValidateRelay(); err != nil {
		slog.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Logging)
	m := metrics.New()

	hub := relay.NewHub(cfg.Relay.SyncOnConnect, logger)
	hub.OnBroadcast = func(ev relay.Event) { m.EventsBroadcast.WithLabelValues(ev.Name).Inc() }
	hub.OnSessions = func(count int) { m.ConnectedSessions.Set(float64(count)) }

	app := relay.NewApp(hub, logger)

	var metricsServer *metrics.Server
	if cfg.Relay.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.Relay.MetricsAddr, logger)
		go metricsServer.Start()
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("relay server listening", slog.String("addr", cfg.Relay.ListenAddr))
		errc <- app.Listen(cfg.Relay.ListenAddr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-errc:
		logger.Error("relay server failed", slog.String("error", err.Error()))
	}

	// Broadcasts run synchronously on the session read loops, so once the
	// server has shut down no deliveries are in flight.
	if err := app.Shutdown(); err != nil {
		logger.Warn("server shutdown error", slog.String("error", err.Error()))
	}
	if metricsServer != nil {
		metricsServer.Shutdown()
	}
	logger.Info("relay server stopped")
}
