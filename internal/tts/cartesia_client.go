package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/linguacall/walkie-gateway/internal/config"
	"github.com/linguacall/walkie-gateway/internal/observability"
)

// chunkBytes is roughly 100ms of mono 16-bit PCM at 24kHz
const chunkBytes = 4800

// CartesiaClient implements TTSClient using Cartesia's TTS API
type CartesiaClient struct {
	config     *config.Config
	apiKey     string
	apiURL     string
	voiceID    string
	httpClient *http.Client
	mu         sync.RWMutex
	isActive   bool
	logger     zerolog.Logger
}

// CartesiaRequest represents the request payload for Cartesia's TTS API
type CartesiaRequest struct {
	Text         string `json:"text"`
	VoiceID      string `json:"voice_id"`
	ModelID      string `json:"model_id,omitempty"`
	Language     string `json:"language,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
	SampleRate   int    `json:"sample_rate,omitempty"`
}

// NewCartesiaClient creates a new Cartesia TTS client
func NewCartesiaClient(cfg *config.Config) *CartesiaClient {
	return &CartesiaClient{
		config:     cfg,
		apiKey:     cfg.CartesiaAPIKey,
		apiURL:     "https://api.cartesia.ai/v1/tts",
		voiceID:    cfg.CartesiaVoiceID,
		httpClient: &http.Client{},
		logger:     observability.GetLogger().With().Str("component", "tts").Logger(),
	}
}

// Synthesize converts text to audio and streams it. The audio is raw
// 16-bit PCM at the configured playback rate, published as-is to the
// translated track.
func (c *CartesiaClient) Synthesize(ctx context.Context, text string) (<-chan *AudioChunk, error) {
	c.mu.Lock()
	if c.isActive {
		c.mu.Unlock()
		return nil, fmt.Errorf("cartesia client is already synthesizing")
	}
	c.isActive = true
	c.mu.Unlock()

	reqBody := CartesiaRequest{
		Text:         text,
		VoiceID:      c.voiceID,
		ModelID:      c.config.CartesiaModelID,
		OutputFormat: "pcm",
		SampleRate:   c.config.PlaybackSampleRate,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		c.setInactive()
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		c.setInactive()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setInactive()
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		c.setInactive()
		return nil, fmt.Errorf("cartesia API returned status %d", resp.StatusCode)
	}

	audioChan := make(chan *AudioChunk, 10)

	go func() {
		defer func() {
			resp.Body.Close()
			close(audioChan)
			c.setInactive()
		}()

		audioData, err := io.ReadAll(resp.Body)
		if err != nil {
			c.logger.Error().Err(err).Msg("Error reading Cartesia audio response")
			observability.RecordError("tts_read", "tts")
			return
		}

		if len(audioData) == 0 {
			c.logger.Warn().Msg("Cartesia returned empty audio data")
			return
		}

		for offset := 0; offset < len(audioData); offset += chunkBytes {
			end := offset + chunkBytes
			if end > len(audioData) {
				end = len(audioData)
			}

			chunk := &AudioChunk{
				Data:       audioData[offset:end],
				SampleRate: c.config.PlaybackSampleRate,
				Channels:   1,
			}

			select {
			case audioChan <- chunk:
			case <-ctx.Done():
				return
			}
		}

		c.logger.Debug().Int("bytes", len(audioData)).Msg("Synthesis complete")
	}()

	return audioChan, nil
}

func (c *CartesiaClient) setInactive() {
	c.mu.Lock()
	c.isActive = false
	c.mu.Unlock()
}

// Stop stops any ongoing synthesis
func (c *CartesiaClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isActive {
		return nil
	}

	c.isActive = false
	c.logger.Info().Msg("Cartesia TTS synthesis stopped")
	return nil
}

// Close closes the client and cleans up resources
func (c *CartesiaClient) Close() error {
	return c.Stop()
}

// IsActive returns whether the client is currently synthesizing
func (c *CartesiaClient) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isActive
}
