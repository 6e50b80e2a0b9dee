package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/linguacall/walkie-gateway/internal/config"
)

func newTestClient(serverURL string) *Client {
	cfg := &config.Config{
		TranslatorBaseURL:          serverURL,
		TranslatorAPIKey:           "test-key",
		TranslatorModel:            "gpt-4o-mini",
		RetryMaxAttempts:           3,
		RetryInitialBackoff:        1,
		CircuitBreakerMaxFailures:  10,
		CircuitBreakerResetTimeout: 1,
	}
	return NewClient(cfg)
}

func completionResponse(content string) []byte {
	out := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	data, _ := json.Marshal(out)
	return data
}

func TestTranslateSuccess(t *testing.T) {
	var gotAuth, gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Expected valid request body, got %v", err)
		}
		gotModel = req.Model
		if len(req.Messages) != 2 {
			t.Errorf("Expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[1].Content != "hello" {
			t.Errorf("Expected user message hello, got %q", req.Messages[1].Content)
		}

		w.Write(completionResponse("hola"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	translated, err := c.Translate(context.Background(), "hello", "en", "es")
	if err != nil {
		t.Fatalf("Expected translation to succeed, got %v", err)
	}
	if translated != "hola" {
		t.Errorf("Expected hola, got %q", translated)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Expected bearer auth header, got %q", gotAuth)
	}
	if gotModel != "gpt-4o-mini" {
		t.Errorf("Expected configured model, got %q", gotModel)
	}
}

func TestTranslateRetriesTransientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(completionResponse("bonjour"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	translated, err := c.Translate(context.Background(), "hello", "en", "fr")
	if err != nil {
		t.Fatalf("Expected translation to succeed after retries, got %v", err)
	}
	if translated != "bonjour" {
		t.Errorf("Expected bonjour, got %q", translated)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("Expected 3 attempts, got %d", n)
	}
}

func TestTranslatePermanentErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Translate(context.Background(), "hello", "en", "de")
	if err == nil {
		t.Fatal("Expected error for rejected request")
	}
	if !errors.Is(err, ErrPermanent) {
		t.Errorf("Expected permanent error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected 1 attempt for permanent error, got %d", n)
	}
}

func TestTranslateSameLanguagePassthrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Expected no HTTP call for same-language translation")
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	translated, err := c.Translate(context.Background(), "hello", "en", "en")
	if err != nil {
		t.Fatalf("Expected passthrough, got %v", err)
	}
	if translated != "hello" {
		t.Errorf("Expected original text, got %q", translated)
	}
}

func TestTranslateEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Expected no HTTP call for empty text")
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	translated, err := c.Translate(context.Background(), "   ", "en", "es")
	if err != nil {
		t.Fatalf("Expected empty result, got %v", err)
	}
	if translated != "" {
		t.Errorf("Expected empty translation, got %q", translated)
	}
}

func TestTranslateEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Translate(context.Background(), "hello", "en", "es")
	if !errors.Is(err, ErrPermanent) {
		t.Errorf("Expected permanent error for empty choices, got %v", err)
	}
}
