package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"llmgate/internal/config"
	"llmgate/internal/constants"
	"llmgate/internal/events"
	"llmgate/internal/limits"
	"llmgate/internal/logging"
	mw "llmgate/internal/middleware"
	srv "llmgate/internal/server"
	"llmgate/internal/upstream"
	"llmgate/internal/usage"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	cfgMgr, err := config.NewManager(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if *debug {
		_ = cfgMgr.Update(func(s *config.Settings) { s.Server.Debug = true })
	}

	settings := cfgMgr.Current()
	if err := logging.Setup(settings); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}
	log.WithFields(log.Fields{
		"config":  *configPath,
		"version": constants.Version,
	}).Info("starting llmgate")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := upstream.NewClient(settings.Proxy)
	cfgMgr.OnChange(func(s *config.Settings) {
		client.SetProxy(s.Proxy)
	})

	mw.SafeGoWithContext("config-watcher", func() {
		if err := cfgMgr.Watch(ctx); err != nil {
			log.WithError(err).Warn("settings watcher stopped")
		}
	})

	ledger := buildLedger(settings)
	defer ledger.Close()

	var rpmBackend limits.RPMWindow
	if settings.Server.RedisAddr != "" {
		redisWindow := limits.NewRedisWindow(settings.Server.RedisAddr, "")
		defer redisWindow.Close()
		rpmBackend = redisWindow
		log.WithField("addr", settings.Server.RedisAddr).Info("redis rpm window enabled")
	}

	hub := events.NewHub()
	tracker := usage.NewTracker(ledger, hub)
	tracker.Start()
	defer tracker.Stop()

	engine := srv.BuildEngine(srv.Dependencies{
		Config:  cfgMgr,
		Client:  client,
		Limits:  limits.NewManager(rpmBackend),
		Ledger:  ledger,
		Tracker: tracker,
		Hub:     hub,
	})

	httpSrv := &http.Server{Addr: settings.Server.Listen, Handler: engine}
	go func() {
		log.WithField("listen", settings.Server.Listen).Info("gateway listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
}

// buildLedger prefers postgres when a DSN is configured, falling back to the
// JSONL file ledger.
func buildLedger(s *config.Settings) usage.Ledger {
	if s.Server.PostgresDSN != "" {
		ledger, err := usage.NewPostgresLedger(s.Server.PostgresDSN)
		if err == nil {
			return ledger
		}
		log.WithError(err).Error("postgres ledger unavailable, using file ledger")
	}
	ledger, err := usage.NewFileLedger(s.Server.DataDir)
	if err != nil {
		log.WithError(err).Fatal("usage ledger init failed")
	}
	return ledger
}
