package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/starprep/starprep/internal/coach"
	"github.com/starprep/starprep/internal/config"
	"github.com/starprep/starprep/internal/handoff"
	"github.com/starprep/starprep/internal/httpapi"
	"github.com/starprep/starprep/internal/llm"
	"github.com/starprep/starprep/internal/observability"
	"github.com/starprep/starprep/internal/profile"
	"github.com/starprep/starprep/internal/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.LogLevel, cfg.LogPretty)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	transcripts, err := handoff.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("transcript store init failed")
	}
	defer transcripts.Close()

	kv, err := profile.NewKV(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("profile store init failed")
	}
	defer kv.Close()
	profiles := profile.NewStore(kv)

	var notifier *handoff.Notifier
	if cfg.KafkaEnabled() {
		notifier = handoff.NewNotifier(handoff.NotifierConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, log)
		defer notifier.Close()
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("handoff notifications enabled")
	}
	submitter := &handoff.StoreSubmitter{Store: transcripts, Notifier: notifier, Log: log}

	llmClient := llm.NewHTTPClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
	scoringSvc := scoring.NewService(llmClient, cfg.ScoringModel, metrics)
	coachSvc := coach.NewService(llmClient, cfg.CoachModel, metrics)

	api := httpapi.New(cfg, transcripts, submitter, scoringSvc, coachSvc, profiles, metrics, log)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info().Msg("shutdown complete")
}
