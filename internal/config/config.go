package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the walkie gateway
type Config struct {
	// HTTP server configuration (agent binary)
	Port string `envconfig:"PORT" default:"8080"`

	// Room transport configuration
	RoomServerURL string `envconfig:"ROOM_SERVER_URL" default:"ws://localhost:7880/rooms"`
	RoomName      string `envconfig:"ROOM_NAME" default:""`

	// Turn protocol configuration
	SignalTopic   string `envconfig:"SIGNAL_TOPIC" default:"walkie-talkie"`
	AgentIdentity string `envconfig:"AGENT_IDENTITY" default:"translation-agent"`
	TrackPrefix   string `envconfig:"TRACK_PREFIX" default:"translated-"`

	// Turn budgets in milliseconds. A turn that sees no corroborating
	// signal within the budget resets the local state machine to idle.
	RecordingTimeoutMs  int `envconfig:"RECORDING_TIMEOUT_MS" default:"30000"`
	ProcessingTimeoutMs int `envconfig:"PROCESSING_TIMEOUT_MS" default:"30000"`

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`  // fallback when a speaker has no language set

	// Cartesia TTS API configuration
	CartesiaAPIKey  string `envconfig:"CARTESIA_API_KEY" required:"true"`
	CartesiaVoiceID string `envconfig:"CARTESIA_VOICE_ID" default:"sonic-english"`
	CartesiaModelID string `envconfig:"CARTESIA_MODEL_ID" default:"sonic"`

	// Translation API (OpenAI-compatible chat completions endpoint)
	TranslatorBaseURL string `envconfig:"TRANSLATOR_BASE_URL" default:"https://api.openai.com/v1"`
	TranslatorAPIKey  string `envconfig:"TRANSLATOR_API_KEY" default:""`
	TranslatorModel   string `envconfig:"TRANSLATOR_MODEL" default:"gpt-4o-mini"`
	TranslatorTimeout int    `envconfig:"TRANSLATOR_TIMEOUT" default:"30"` // seconds

	// Audio processing configuration
	AudioBufferSize    int     `envconfig:"AUDIO_BUFFER_SIZE" default:"65536"`    // Capture buffer size in bytes
	CaptureSampleRate  int     `envconfig:"CAPTURE_SAMPLE_RATE" default:"16000"`  // Speaker PCM rate fed to STT
	PlaybackSampleRate int     `envconfig:"PLAYBACK_SAMPLE_RATE" default:"24000"` // Synthesized track rate
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy threshold for VAD
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"10"`      // Frames of silence to mark speech end

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// RecordingTimeout returns the maximum duration of a recording turn.
func (c *Config) RecordingTimeout() time.Duration {
	return time.Duration(c.RecordingTimeoutMs) * time.Millisecond
}

// ProcessingTimeout returns the maximum duration of the processing/playback
// phase of a turn.
func (c *Config) ProcessingTimeout() time.Duration {
	return time.Duration(c.ProcessingTimeoutMs) * time.Millisecond
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Validate required fields
	if cfg.DeepgramAPIKey == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if cfg.CartesiaAPIKey == "" {
		return nil, fmt.Errorf("CARTESIA_API_KEY is required")
	}
	if cfg.RecordingTimeoutMs <= 0 || cfg.ProcessingTimeoutMs <= 0 {
		return nil, fmt.Errorf("turn timeouts must be positive")
	}

	return &cfg, nil
}

// ClientConfig is the subset of configuration the terminal client needs.
// It carries no provider API keys, so the client starts without the
// agent's secrets.
type ClientConfig struct {
	RoomServerURL string `envconfig:"ROOM_SERVER_URL" default:"ws://localhost:7880/rooms"`
	RoomName      string `envconfig:"ROOM_NAME" default:""`

	SignalTopic   string `envconfig:"SIGNAL_TOPIC" default:"walkie-talkie"`
	AgentIdentity string `envconfig:"AGENT_IDENTITY" default:"translation-agent"`
	TrackPrefix   string `envconfig:"TRACK_PREFIX" default:"translated-"`

	RecordingTimeoutMs  int `envconfig:"RECORDING_TIMEOUT_MS" default:"30000"`
	ProcessingTimeoutMs int `envconfig:"PROCESSING_TIMEOUT_MS" default:"30000"`

	ReconnectMaxAttempts int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectBackoff     int `envconfig:"RECONNECT_BACKOFF" default:"1000"` // milliseconds

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// RecordingTimeout returns the maximum duration of a recording turn.
func (c *ClientConfig) RecordingTimeout() time.Duration {
	return time.Duration(c.RecordingTimeoutMs) * time.Millisecond
}

// ProcessingTimeout returns the maximum duration of the processing/playback
// phase of a turn.
func (c *ClientConfig) ProcessingTimeout() time.Duration {
	return time.Duration(c.ProcessingTimeoutMs) * time.Millisecond
}

// LoadClient reads the client configuration from the environment, loading
// a .env file first when one exists.
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.RecordingTimeoutMs <= 0 || cfg.ProcessingTimeoutMs <= 0 {
		return nil, fmt.Errorf("turn timeouts must be positive")
	}

	return &cfg, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
