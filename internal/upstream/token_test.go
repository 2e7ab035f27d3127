package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lexiqai/chat-gateway/internal/config"
)

func TestStaticTokenSource(t *testing.T) {
	s := NewStaticTokenSource("tok-abc")

	token, err := s.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if token != "tok-abc" {
		t.Errorf("Expected 'tok-abc', got '%s'", token)
	}
}

func TestStaticTokenSource_Empty(t *testing.T) {
	s := NewStaticTokenSource("")
	if _, err := s.Token(context.Background()); err == nil {
		t.Error("Expected error for empty token")
	}
}

func TestNewTokenSource_PrefersStatic(t *testing.T) {
	cfg := &config.Config{
		BearerToken:       "tok",
		TokenEndpoint:     "https://login.example.test/token",
		TokenClientID:     "id",
		TokenClientSecret: "secret",
	}

	s, err := NewTokenSource(cfg)
	if err != nil {
		t.Fatalf("NewTokenSource() failed: %v", err)
	}
	if _, ok := s.(*StaticTokenSource); !ok {
		t.Errorf("Expected StaticTokenSource, got %T", s)
	}
}

func TestNewTokenSource_Unconfigured(t *testing.T) {
	if _, err := NewTokenSource(&config.Config{}); err == nil {
		t.Error("Expected error when no credential source is configured")
	}
}

func clientCredsConfig(endpoint string) *config.Config {
	return &config.Config{
		TokenEndpoint:              endpoint,
		TokenClientID:              "client-1",
		TokenClientSecret:          "secret-1",
		TokenScope:                 "https://ai.azure.com/.default",
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
		RetryMaxAttempts:           1,
		RetryInitialBackoff:        1,
	}
}

func TestClientCredentials_FetchAndCache(t *testing.T) {
	fetches := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Failed to parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" {
			t.Errorf("Unexpected grant_type: %s", r.Form.Get("grant_type"))
		}
		if r.Form.Get("client_id") != "client-1" {
			t.Errorf("Unexpected client_id: %s", r.Form.Get("client_id"))
		}
		if r.Form.Get("scope") != "https://ai.azure.com/.default" {
			t.Errorf("Unexpected scope: %s", r.Form.Get("scope"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh-token",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	s := NewClientCredentialsTokenSource(clientCredsConfig(server.URL))
	ctx := context.Background()

	token, err := s.Token(ctx)
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if token != "fresh-token" {
		t.Errorf("Expected 'fresh-token', got '%s'", token)
	}

	// Second call should come from cache.
	if _, err := s.Token(ctx); err != nil {
		t.Fatalf("Token() failed on cached call: %v", err)
	}
	if fetches != 1 {
		t.Errorf("Expected 1 fetch, got %d", fetches)
	}
}

func TestClientCredentials_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	s := NewClientCredentialsTokenSource(clientCredsConfig(server.URL))

	if _, err := s.Token(context.Background()); err == nil {
		t.Error("Expected error for 401 token response")
	}
}

func TestClientCredentials_MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"expires_in": 60})
	}))
	defer server.Close()

	s := NewClientCredentialsTokenSource(clientCredsConfig(server.URL))

	if _, err := s.Token(context.Background()); err == nil {
		t.Error("Expected error when access_token is absent")
	}
}
