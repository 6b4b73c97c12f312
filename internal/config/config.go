package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the demo-call voice service.
type Config struct {
	BindAddr              string
	ShutdownTimeout       time.Duration
	CallInactivityTimeout time.Duration
	MetricsNamespace      string

	AllowAnyOrigin bool

	// DemoAccessToken is the fixed token accepted for demo-call joins.
	DemoAccessToken string

	// ContextWindow bounds how many prior transcript entries are fed back
	// into the AI reply generator.
	ContextWindow int

	// SimulationInterval paces scripted turns when voice mode is disabled.
	SimulationInterval time.Duration

	SentimentMode string
	SentimentURL  string

	BrainMode string
	BrainURL  string

	SpeechMode string
	TTSURL     string
	TTSVoice   string
	STTURL     string

	TelephonyProvider string
	AgentDialNumber   string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:              envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:      envOrDefault("APP_METRICS_NAMESPACE", "voicedesk"),
		AllowAnyOrigin:        false,
		DemoAccessToken:       envOrDefault("APP_DEMO_ACCESS_TOKEN", "demo-access"),
		ContextWindow:         8,
		SimulationInterval:    4 * time.Second,
		SentimentMode:         envOrDefault("SENTIMENT_MODE", "auto"),
		SentimentURL:          trimEnv("SENTIMENT_HTTP_URL"),
		BrainMode:             envOrDefault("BRAIN_MODE", "auto"),
		BrainURL:              trimEnv("BRAIN_HTTP_URL"),
		SpeechMode:            envOrDefault("SPEECH_MODE", "auto"),
		TTSURL:                trimEnv("TTS_HTTP_URL"),
		TTSVoice:              envOrDefault("TTS_VOICE_ID", "support_female_1"),
		STTURL:                trimEnv("STT_HTTP_URL"),
		TelephonyProvider:     envOrDefault("TELEPHONY_PROVIDER", "mock"),
		AgentDialNumber:       trimEnv("TELEPHONY_AGENT_NUMBER"),
		DatabaseURL:           trimEnv("DATABASE_URL"),
		ShutdownTimeout:       15 * time.Second,
		CallInactivityTimeout: 5 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CallInactivityTimeout, err = durationFromEnv("APP_CALL_INACTIVITY_TIMEOUT", cfg.CallInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SimulationInterval, err = durationFromEnv("APP_SIMULATION_INTERVAL", cfg.SimulationInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextWindow, err = intFromEnv("APP_CONTEXT_WINDOW", cfg.ContextWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.DemoAccessToken) == "" {
		return Config{}, fmt.Errorf("APP_DEMO_ACCESS_TOKEN must not be empty")
	}
	if cfg.ContextWindow <= 0 {
		return Config{}, fmt.Errorf("APP_CONTEXT_WINDOW must be positive")
	}
	if cfg.CallInactivityTimeout < 10*time.Second {
		return Config{}, fmt.Errorf("APP_CALL_INACTIVITY_TIMEOUT must be at least 10s")
	}
	if cfg.SimulationInterval < 500*time.Millisecond {
		return Config{}, fmt.Errorf("APP_SIMULATION_INTERVAL must be at least 500ms")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
