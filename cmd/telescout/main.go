// Command telescout monitors Telegram channels for keywords and forwards
// matching messages to a configured recipient.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/telescout/telescout/internal/config"
	"github.com/telescout/telescout/internal/events"
	"github.com/telescout/telescout/internal/logger"
	"github.com/telescout/telescout/internal/matcher"
	"github.com/telescout/telescout/internal/pipeline"
	"github.com/telescout/telescout/internal/ratelimit"
	"github.com/telescout/telescout/internal/storage"
	"github.com/telescout/telescout/internal/telegram"
	"github.com/telescout/telescout/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	noLogFile := flag.Bool("no-log-file", false, "disable logging to file")
	scanOnly := flag.Bool("scan-only", false, "scan historical messages and exit")
	noHistorical := flag.Bool("no-historical", false, "skip the historical scan")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	logFile := cfg.LogFile
	if *noLogFile {
		logFile = ""
	}
	if err := logger.Init(level, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()
	log.Info().Int("channels", len(cfg.Channels)).Int("keywords", len(cfg.Keywords)).
		Msg("starting telescout")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	var pub events.Publisher
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, outcome events disabled")
		} else {
			defer nc.Close()
			pub = events.NewNATSPublisher(nc)
		}
	}

	tgManager := telegram.NewManager(telegram.Credentials{
		APIID:         cfg.Telegram.APIID,
		APIHash:       cfg.Telegram.APIHash,
		SessionString: cfg.Telegram.SessionString,
	}, store.DB())

	if err := tgManager.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("telegram client initialization failed")
	}
	if tgManager.Status() != telegram.StatusReady {
		log.Fatal().Str("status", string(tgManager.Status())).
			Msg("no telegram session available, run tg-auth first")
	}

	client := telegram.NewClient(tgManager)
	defer client.Close()

	// forwarding has no valid destination without the recipient, fail fast
	if err := client.ResolveRecipient(ctx, cfg.ForwardToUserID); err != nil {
		log.Fatal().Err(err).Int64("recipient", cfg.ForwardToUserID).
			Msg("could not resolve forward recipient")
	}
	log.Info().Str("recipient", client.RecipientName()).Msg("forward target resolved")

	var channels []telegram.Channel
	for _, ident := range cfg.Channels {
		ch, err := client.ResolveChannel(ctx, ident)
		if err != nil {
			log.Error().Err(err).Str("channel", ident).Msg("could not resolve channel, skipping")
			continue
		}
		log.Info().Str("channel", ident).Str("title", ch.Title).Msg("monitoring channel")
		channels = append(channels, *ch)
	}
	if len(channels) == 0 {
		log.Fatal().Msg("no valid channels to monitor")
	}

	m, err := matcher.New(cfg.Keywords)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid keyword set")
	}

	limiter, err := ratelimit.New(cfg.MaxMessagesPerHour, cfg.MaxMessagesPerChannelPerHour, cfg.RateWindow())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rate limit configuration")
	}

	pipe := pipeline.New(client, m, limiter, pipeline.Options{
		Channels:     channels,
		TimeWindow:   cfg.TimeWindow(),
		ForwardDelay: cfg.ForwardDelay(),
		MaxLength:    cfg.MaxMessageLength,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BaseBackoff:  cfg.Retry.BaseBackoff(),
	}, store, pub)

	if cfg.SeedDedupFromLog {
		records, err := store.SentRecords(ctx, 10000)
		if err != nil {
			log.Warn().Err(err).Msg("could not seed dedup set from forward log")
		} else {
			pipe.SeedDedup(records)
			log.Info().Int("records", len(records)).Msg("dedup set seeded from forward log")
		}
	}

	runManager := pipeline.NewManager(pipe)

	handler := web.NewHandler(runManager, limiter, store, client)
	server := web.NewServer(cfg.HTTPPort, web.NewRouter(handler))
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("control api listening")
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("control api server error")
		}
	}()

	historical := !*noHistorical && cfg.TimeWindowHours > 0
	live := !*scanOnly
	if _, err := runManager.Start(historical, live); err != nil {
		log.Fatal().Err(err).Msg("failed to start run")
	}

	// blocks until the run ends (scan-only) or a signal arrives
	runManager.Wait(ctx)

	log.Info().Msg("shutting down")
	runManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Stop(shutdownCtx)

	if err := runManager.LastError(); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("run ended with error")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}
