package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linguacall/walkie-gateway/internal/agent"
	"github.com/linguacall/walkie-gateway/internal/config"
	"github.com/linguacall/walkie-gateway/internal/observability"
	"github.com/linguacall/walkie-gateway/internal/resilience"
	"github.com/linguacall/walkie-gateway/internal/room"
	"github.com/linguacall/walkie-gateway/internal/stt"
	"github.com/linguacall/walkie-gateway/internal/translate"
	"github.com/linguacall/walkie-gateway/internal/tts"
)

// roomSession adapts the room client to the agent's session interface
type roomSession struct {
	client *room.Client
}

func (s *roomSession) PublishData(topic string, payload []byte) error {
	return s.client.PublishData(topic, payload)
}

func (s *roomSession) PublishTrack(name string, sampleRate int) (agent.TrackWriter, error) {
	track, err := s.client.PublishTrack(name, sampleRate)
	if err != nil {
		return nil, err
	}
	return track, nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("room_server", cfg.RoomServerURL).
		Str("room", cfg.RoomName).
		Str("identity", cfg.AgentIdentity).
		Str("log_level", cfg.LogLevel).
		Msg("Translation agent starting")

	translator := translate.NewClient(cfg)
	ttsClient := tts.NewCartesiaClient(cfg)

	session := &roomSession{}
	ag := agent.New(cfg, session, translator, ttsClient, func(language string) stt.STTClient {
		return stt.NewDeepgramClient(cfg, language)
	})

	reconnectCfg := &resilience.ReconnectConfig{
		MaxAttempts: cfg.ReconnectMaxAttempts,
		Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}

	roomClient := room.NewClient(
		cfg.RoomServerURL,
		cfg.RoomName,
		room.ParticipantInfo{Identity: cfg.AgentIdentity, Name: "Translator"},
		ag.Handlers(),
		reconnectCfg,
	)
	session.client = roomClient

	if err := roomClient.Connect(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to join room")
	}

	// HTTP server for health checks and metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	roomCheck := func(ctx context.Context) (bool, error) {
		if !roomClient.IsActive() {
			return false, fmt.Errorf("room connection is down")
		}
		return true, nil
	}
	cartesiaCheck := func(ctx context.Context) (bool, error) {
		// Validates config without spending an API call
		if tts.NewCartesiaClient(cfg) == nil {
			return false, fmt.Errorf("failed to create Cartesia client")
		}
		return true, nil
	}
	deepgramCheck := func(ctx context.Context) (bool, error) {
		if stt.NewDeepgramClient(cfg, cfg.DeepgramLanguage) == nil {
			return false, fmt.Errorf("failed to create Deepgram client")
		}
		return true, nil
	}
	translatorCheck := func(ctx context.Context) (bool, error) {
		if cfg.TranslatorBaseURL == "" {
			return false, fmt.Errorf("translator endpoint not configured")
		}
		return true, nil
	}

	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"room":       roomCheck,
		"deepgram":   deepgramCheck,
		"cartesia":   cartesiaCheck,
		"translator": translatorCheck,
	}))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down...")

	ag.Close()
	if err := roomClient.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to leave room cleanly")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Agent exited gracefully")
}
