package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voicedesk/voicedesk/internal/auth"
	"github.com/voicedesk/voicedesk/internal/brain"
	"github.com/voicedesk/voicedesk/internal/callsession"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/httpapi"
	"github.com/voicedesk/voicedesk/internal/observability"
	"github.com/voicedesk/voicedesk/internal/sentiment"
	"github.com/voicedesk/voicedesk/internal/speech"
	"github.com/voicedesk/voicedesk/internal/store"
	"github.com/voicedesk/voicedesk/internal/telephony"
	"github.com/voicedesk/voicedesk/internal/transport"
	"github.com/voicedesk/voicedesk/internal/turn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	interactionStore, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer interactionStore.Close()

	analyzer, err := sentiment.New(cfg.SentimentMode, cfg.SentimentURL)
	if err != nil {
		log.Fatalf("sentiment analyzer init failed: %v", err)
	}

	adapter, err := brain.NewAdapter(brain.Config{
		Mode:    cfg.BrainMode,
		HTTPURL: cfg.BrainURL,
	})
	if err != nil {
		log.Fatalf("brain adapter init failed: %v", err)
	}

	tts, stt, err := speech.NewProviders(speech.Config{
		Mode:   cfg.SpeechMode,
		TTSURL: cfg.TTSURL,
		STTURL: cfg.STTURL,
	})
	if err != nil {
		log.Fatalf("speech providers init failed: %v", err)
	}

	dialer, err := telephony.New(cfg.TelephonyProvider)
	if err != nil {
		log.Fatalf("telephony provider init failed: %v", err)
	}

	registry := callsession.NewRegistry(cfg.CallInactivityTimeout)
	hub := transport.NewHub(metrics)
	registry.SetExpireHook(func(s *callsession.Session) {
		hub.BroadcastCallEnded(s.ID)
		metrics.CallEvents.WithLabelValues("expired").Inc()
		metrics.ActiveCalls.Set(float64(registry.ActiveCount()))
	})

	processor := turn.NewProcessor(
		registry,
		hub,
		analyzer,
		adapter,
		tts,
		stt,
		interactionStore,
		dialer,
		metrics,
		turn.Options{
			ContextWindow:      cfg.ContextWindow,
			TTSVoice:           cfg.TTSVoice,
			AgentDialNumber:    cfg.AgentDialNumber,
			SimulationInterval: cfg.SimulationInterval,
		},
	)

	authorizer := auth.NewAuthorizer(cfg.DemoAccessToken, nil)
	api := httpapi.New(cfg, registry, processor, hub, authorizer, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	registry.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	registry.Cleanup()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
