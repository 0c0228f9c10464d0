package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/RAVBLACK/StrawHats/internal/alert"
	"github.com/RAVBLACK/StrawHats/internal/config"
	"github.com/RAVBLACK/StrawHats/internal/digest"
	"github.com/RAVBLACK/StrawHats/internal/domain"
	"github.com/RAVBLACK/StrawHats/internal/engine"
	"github.com/RAVBLACK/StrawHats/internal/linesource"
	"github.com/RAVBLACK/StrawHats/internal/logging"
	"github.com/RAVBLACK/StrawHats/internal/notify"
	"github.com/RAVBLACK/StrawHats/internal/scorer"
	"github.com/RAVBLACK/StrawHats/internal/server"
	"github.com/RAVBLACK/StrawHats/internal/storage"
	"github.com/RAVBLACK/StrawHats/internal/websocket"
)

const (
	defaultConfigPath = "./sentiguard.yaml"
	maxFeedClients    = 32
)

func setupConfig() config.Config {
	cfg, err := config.Load(defaultConfigPath)
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(cfg config.Config) *storage.Store {
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	return store
}

// setupMessenger picks the delivery channel. SMTP wins when both are
// configured; with neither, alerts still accumulate and fail delivery
// observably instead of silently dropping.
func setupMessenger(cfg config.Config) notify.Messenger {
	if cfg.SMTP.Configured() {
		slog.Info("using SMTP delivery channel", "server", cfg.SMTP.Server)
		return notify.NewSMTPMessenger(cfg.SMTP)
	}
	if cfg.Telegram.Configured() {
		messenger, err := notify.NewTelegramMessenger(cfg.Telegram)
		if err != nil {
			slog.Error("Failed to initialize Telegram channel", "error", err)
			os.Exit(1)
		}
		slog.Info("using Telegram delivery channel")
		return messenger
	}
	slog.Warn("no delivery channel configured, alerts will not be delivered")
	return nil
}

func setupDigest(cfg config.Config, d *digest.Digester) *digest.Scheduler {
	if !cfg.Digest.Enabled {
		return nil
	}

	scheduler, err := digest.NewScheduler(cfg.Digest.Timezone)
	if err != nil {
		slog.Error("Failed to create digest scheduler", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Schedule(cfg.Digest.Time, func() {
		if err := d.Run(context.Background()); err != nil {
			slog.Error("Digest run failed", "error", err)
		}
	}); err != nil {
		slog.Error("Failed to schedule digest", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	slog.Info("daily digest scheduled", "time", cfg.Digest.Time, "timezone", cfg.Digest.Timezone)
	return scheduler
}

func runGracefulShutdown(srv *server.Server, eng *engine.Engine, hub *websocket.Hub, scheduler *digest.Scheduler, store *storage.Store) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		eng.Stop()
		hub.Stop()
		if scheduler != nil {
			scheduler.Stop()
		}
		if err := store.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	store := setupStore(cfg)

	messenger := setupMessenger(cfg)
	notifier := notify.NewAlertNotifier(messenger)

	machine := alert.NewMachine(store, store, notifier, clock, domain.ThresholdConfig{
		ScoreThreshold: cfg.Alerting.ScoreThreshold,
		CountLimit:     cfg.Alerting.CountLimit,
		Cooldown:       cfg.Alerting.Cooldown,
	}, alert.Options{
		DeliverTimeout:      cfg.Alerting.DeliverTimeout,
		MaxDeliveryAttempts: cfg.Alerting.MaxDeliveryAttempts,
	})

	hub := websocket.NewHub(clock, maxFeedClients)

	source := linesource.New(cfg.LinesPath, clock)
	eng := engine.New(source, scorer.New(), store, store, machine, hub, clock, engine.Options{
		PollInterval: cfg.PollInterval,
	})

	var scheduler *digest.Scheduler
	if messenger != nil {
		scheduler = setupDigest(cfg, digest.NewDigester(store, store, messenger, clock))
	}

	healthChecks := []server.HealthCheck{
		{Name: "database", Check: store.Ping},
	}
	srv := server.NewServer(&cfg, store, store, eng, machine, store, hub, healthChecks)

	done := runGracefulShutdown(srv, eng, hub, scheduler, store)

	if err := srv.Start(); err != nil {
		slog.Error("Server stopped", "error", err)
	}
	<-done
	slog.Info("Shutdown complete")
}
