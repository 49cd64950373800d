package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIProviderComplete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("expected auth header")
		}
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-test" {
			t.Fatalf("unexpected model %q", req.Model)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"Charming 3BR craftsman near downtown."}}]}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(Config{
		APIURL: server.URL,
		APIKey: "test-key",
		Model:  "gpt-test",
	})

	content, err := provider.Complete(context.Background(), []Message{
		{Role: "user", Content: "write a listing post"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if content != "Charming 3BR craftsman near downtown." {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestOpenAIProviderErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"rate limited"}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(Config{
		APIURL: server.URL,
		APIKey: "test-key",
		Model:  "gpt-test",
	})

	if _, err := provider.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatalf("expected error on non-2xx status")
	}
}

func TestAnthropicProviderComplete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Fatalf("expected api key header")
		}
		if r.URL.Path != "/v1/messages" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System != "You write real estate marketing copy." {
			t.Fatalf("unexpected system prompt %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Fatalf("unexpected messages %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"content":[{"type":"text","text":"Sunlit corner unit "},{"type":"text","text":"with skyline views."}]}`)
	}))
	defer server.Close()

	provider := NewAnthropicProvider(Config{
		APIURL: server.URL,
		APIKey: "test-key",
		Model:  "claude-test",
	})

	content, err := provider.Complete(context.Background(), []Message{
		{Role: "system", Content: "You write real estate marketing copy."},
		{Role: "user", Content: "write a listing post"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if content != "Sunlit corner unit with skyline views." {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		provider string
		wantErr  bool
	}{
		{"openai", false},
		{"Anthropic", false},
		{"ollama", false},
		{"watson", true},
	}

	for _, tt := range tests {
		_, err := NewProvider(Config{Provider: tt.provider, Model: "m"})
		if tt.wantErr && err == nil {
			t.Errorf("NewProvider(%q): expected error", tt.provider)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("NewProvider(%q): unexpected error %v", tt.provider, err)
		}
	}
}

func TestConfigIsConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"openai with key", Config{Provider: "openai", Model: "m", APIKey: "k"}, true},
		{"openai missing key", Config{Provider: "openai", Model: "m"}, false},
		{"missing model", Config{Provider: "openai", APIKey: "k"}, false},
		{"ollama no key", Config{Provider: "ollama", Model: "m"}, true},
	}

	for _, tt := range tests {
		if got := tt.cfg.IsConfigured(); got != tt.want {
			t.Errorf("%s: IsConfigured() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAnthropicMessagesFrom(t *testing.T) {
	t.Parallel()

	messages, system := anthropicMessagesFrom([]Message{
		{Role: "system", Content: "a"},
		{Role: "system", Content: "b"},
		{Role: "user", Content: "hi"},
	})
	if system != "a\nb" {
		t.Fatalf("unexpected system %q", system)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if !strings.EqualFold(messages[0].Role, "user") {
		t.Fatalf("unexpected role %q", messages[0].Role)
	}
}
