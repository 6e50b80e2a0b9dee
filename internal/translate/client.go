// Package translate produces a target-language rendering of a finished
// utterance using an OpenAI-compatible chat completions endpoint.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/linguacall/walkie-gateway/internal/config"
	"github.com/linguacall/walkie-gateway/internal/observability"
	"github.com/linguacall/walkie-gateway/internal/resilience"
)

// ErrPermanent marks failures that retrying cannot fix, such as a
// rejected request or an auth problem.
var ErrPermanent = errors.New("permanent translation error")

// Translator converts text between languages
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Client calls a chat completions endpoint to translate text
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client

	retryConfig    *resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker

	logger zerolog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a translation client from the configured endpoint
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.TranslatorBaseURL, "/"),
		apiKey:     cfg.TranslatorAPIKey,
		model:      cfg.TranslatorModel,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		retryConfig: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		circuitBreaker: resilience.NewCircuitBreaker(
			"translator",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		logger: observability.GetLogger().With().Str("component", "translate").Logger(),
	}
}

// Translate renders text from sourceLang into targetLang. Transient
// failures are retried with backoff; a tripped circuit fails fast.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if sourceLang == targetLang {
		return text, nil
	}

	var result string
	err := resilience.Retry(func() error {
		return c.circuitBreaker.Call(func() error {
			translated, err := c.translateOnce(ctx, text, sourceLang, targetLang)
			if err != nil {
				return err
			}
			result = translated
			return nil
		})
	}, c.retryConfig, func(err error) bool {
		if errors.Is(err, ErrPermanent) || errors.Is(err, resilience.ErrCircuitOpen) {
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		return true
	})

	observability.UpdateCircuitBreakerState("translator", int(c.circuitBreaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures("translator")
		return "", err
	}
	return result, nil
}

func (c *Client) translateOnce(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: fmt.Sprintf(
					"You are a translator. Translate the user's message from %s to %s. "+
						"Reply with the translation only, no explanations.",
					sourceLang, targetLang),
			},
			{Role: "user", Content: text},
		},
		MaxTokens:   512,
		Temperature: 0.2,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrPermanent, err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrPermanent, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode translation response: %w", err)
		}
		if len(out.Choices) == 0 {
			return "", fmt.Errorf("%w: empty choices in translation response", ErrPermanent)
		}
		translated := strings.TrimSpace(out.Choices[0].Message.Content)
		if translated == "" {
			return "", fmt.Errorf("%w: empty translation", ErrPermanent)
		}
		return translated, nil

	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("translation endpoint returned status %d", resp.StatusCode)

	default:
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d", ErrPermanent, resp.StatusCode)
	}
}
