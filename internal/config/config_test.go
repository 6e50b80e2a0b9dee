package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredKeys(t *testing.T) {
	t.Helper()
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	os.Setenv("CARTESIA_API_KEY", "test-cartesia-key")
	t.Cleanup(func() {
		os.Unsetenv("DEEPGRAM_API_KEY")
		os.Unsetenv("CARTESIA_API_KEY")
	})
}

func TestLoad(t *testing.T) {
	setRequiredKeys(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}

	if cfg.CartesiaAPIKey != "test-cartesia-key" {
		t.Errorf("Expected CartesiaAPIKey 'test-cartesia-key', got '%s'", cfg.CartesiaAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	// Clear environment variables
	os.Unsetenv("DEEPGRAM_API_KEY")
	os.Unsetenv("CARTESIA_API_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when required keys are missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredKeys(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	if cfg.SignalTopic != "walkie-talkie" {
		t.Errorf("Expected default SignalTopic 'walkie-talkie', got '%s'", cfg.SignalTopic)
	}

	if cfg.AgentIdentity != "translation-agent" {
		t.Errorf("Expected default AgentIdentity 'translation-agent', got '%s'", cfg.AgentIdentity)
	}

	if cfg.TrackPrefix != "translated-" {
		t.Errorf("Expected default TrackPrefix 'translated-', got '%s'", cfg.TrackPrefix)
	}

	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}

	if cfg.CartesiaVoiceID != "sonic-english" {
		t.Errorf("Expected default CartesiaVoiceID 'sonic-english', got '%s'", cfg.CartesiaVoiceID)
	}

	if cfg.TranslatorModel != "gpt-4o-mini" {
		t.Errorf("Expected default TranslatorModel 'gpt-4o-mini', got '%s'", cfg.TranslatorModel)
	}

	if cfg.CaptureSampleRate != 16000 {
		t.Errorf("Expected default CaptureSampleRate 16000, got %d", cfg.CaptureSampleRate)
	}

	if cfg.PlaybackSampleRate != 24000 {
		t.Errorf("Expected default PlaybackSampleRate 24000, got %d", cfg.PlaybackSampleRate)
	}

	if cfg.VADEnergyThreshold != 500.0 {
		t.Errorf("Expected default VADEnergyThreshold 500.0, got %f", cfg.VADEnergyThreshold)
	}
}

func TestLoad_TurnBudgets(t *testing.T) {
	setRequiredKeys(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.RecordingTimeout() != 30*time.Second {
		t.Errorf("Expected default recording timeout 30s, got %v", cfg.RecordingTimeout())
	}

	if cfg.ProcessingTimeout() != 30*time.Second {
		t.Errorf("Expected default processing timeout 30s, got %v", cfg.ProcessingTimeout())
	}
}

func TestLoad_InvalidTurnBudget(t *testing.T) {
	setRequiredKeys(t)
	os.Setenv("RECORDING_TIMEOUT_MS", "0")
	defer os.Unsetenv("RECORDING_TIMEOUT_MS")

	_, err := Load()
	if err == nil {
		t.Error("Expected error for zero recording timeout")
	}
}

func TestLoadFromEnv(t *testing.T) {
	setRequiredKeys(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
}

func TestLoadClient_WithoutProviderKeys(t *testing.T) {
	// The terminal client carries no provider secrets
	os.Unsetenv("DEEPGRAM_API_KEY")
	os.Unsetenv("CARTESIA_API_KEY")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() failed: %v", err)
	}

	if cfg.SignalTopic != "walkie-talkie" {
		t.Errorf("Expected default SignalTopic 'walkie-talkie', got '%s'", cfg.SignalTopic)
	}

	if cfg.AgentIdentity != "translation-agent" {
		t.Errorf("Expected default AgentIdentity 'translation-agent', got '%s'", cfg.AgentIdentity)
	}

	if cfg.RecordingTimeout() != 30*time.Second {
		t.Errorf("Expected default recording timeout 30s, got %v", cfg.RecordingTimeout())
	}
}

func TestLoadClient_InvalidTurnBudget(t *testing.T) {
	os.Setenv("PROCESSING_TIMEOUT_MS", "0")
	defer os.Unsetenv("PROCESSING_TIMEOUT_MS")

	_, err := LoadClient()
	if err == nil {
		t.Error("Expected error for zero processing timeout")
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	setRequiredKeys(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}

	if cfg.CircuitBreakerResetTimeout != 30 {
		t.Errorf("Expected default CircuitBreakerResetTimeout 30, got %d", cfg.CircuitBreakerResetTimeout)
	}

	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("Expected default RetryMaxAttempts 3, got %d", cfg.RetryMaxAttempts)
	}

	if cfg.ReconnectMaxAttempts != 5 {
		t.Errorf("Expected default ReconnectMaxAttempts 5, got %d", cfg.ReconnectMaxAttempts)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	setRequiredKeys(t)
	// Clear LOG_LEVEL to ensure we get the default
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
