package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"ForexSentinel/internal/analyzer"
	"ForexSentinel/internal/collector"
	"ForexSentinel/internal/config"
	"ForexSentinel/internal/model"
	"ForexSentinel/internal/notifier"
	"ForexSentinel/internal/recorder"
	"ForexSentinel/internal/scheduler"
	"ForexSentinel/internal/server"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.Info("ForexSentinel starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("config validation: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}

	// Init fetcher
	fetcher := collector.NewRSSFetcher(cfg.Feed.URL, cfg.Feed.ProxyPrefix, cfg.Feed.Timeout, cfg.Proxy)
	logrus.WithFields(logrus.Fields{"source": fetcher.Name(), "feed": cfg.Feed.URL}).Info("news source configured")
	col := collector.NewCollector(fetcher)

	// Init analyzer
	an := analyzer.New(analyzer.NewOpenAIClient(cfg.LLM.BaseURL))

	// Init recorder
	rec, err := recorder.New(cfg.Database.SQLitePath)
	if err != nil {
		logrus.Warnf("init sqlite recorder failed, using noop: %v", err)
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	// Init Telegram notifier
	var tn scheduler.Notifier
	var bot *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		bot, err = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, "")
		if err != nil {
			logrus.Warnf("init telegram notifier failed, alerts disabled: %v", err)
		} else {
			tn = bot
		}
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init scheduler
	store := scheduler.NewStore(model.Settings{Model: cfg.LLM.DefaultModel})
	sched := scheduler.NewScheduler(ctx, col, an, tn, rec, store, cfg.LLM.Models)
	if err := sched.RegisterAll(cfg.Feed.PollCron); err != nil {
		logrus.Fatalf("register cron tasks: %v", err)
	}
	sched.Start()
	sched.RefreshNews()

	// Start Telegram polling
	if tn != nil {
		go bot.StartPolling(ctx, sched.HandleCommand)
		logrus.Info("Telegram polling started")
	}

	// Start HTTP server
	srv := server.New(server.Options{
		ListenAddr:     cfg.Server.ListenAddr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Debug:          cfg.Server.Debug,
	}, store, sched, cfg.LLM.Models)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	logrus.Info("ForexSentinel is running. Press Ctrl+C to stop.")

	select {
	case <-ctx.Done():
		logrus.Info("shutdown signal received, stopping...")
	case err := <-errCh:
		if err != nil {
			logrus.Errorf("http server: %v", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("http shutdown: %v", err)
	}
	sched.Stop()
	logrus.Info("ForexSentinel stopped")
}
