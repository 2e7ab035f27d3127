package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lexiqai/chat-gateway/internal/config"
	"github.com/lexiqai/chat-gateway/internal/observability"
	"github.com/lexiqai/chat-gateway/internal/resilience"
)

// TokenSource supplies a bearer credential for the Responses API.
type TokenSource interface {
	// Token returns a credential valid for at least the next request.
	Token(ctx context.Context) (string, error)
}

// NewTokenSource builds the configured credential source. A pre-issued
// BEARER_TOKEN wins over the client-credentials settings.
func NewTokenSource(cfg *config.Config) (TokenSource, error) {
	if cfg.BearerToken != "" {
		return NewStaticTokenSource(cfg.BearerToken), nil
	}
	if cfg.TokenEndpoint != "" && cfg.TokenClientID != "" && cfg.TokenClientSecret != "" {
		return NewClientCredentialsTokenSource(cfg), nil
	}
	return nil, fmt.Errorf("no credential source configured")
}

// StaticTokenSource returns a fixed pre-issued token. Intended for local
// development against a token obtained out of band.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource wraps a pre-issued bearer token.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// Token returns the fixed token.
func (s *StaticTokenSource) Token(_ context.Context) (string, error) {
	if s.token == "" {
		return "", fmt.Errorf("no bearer token configured")
	}
	return s.token, nil
}

// ClientCredentialsTokenSource acquires tokens with the OAuth2 client
// credentials grant and caches them until shortly before expiry. Fetches
// go through retry and circuit breaker protection; a failing identity
// provider must not be hammered once per turn.
type ClientCredentialsTokenSource struct {
	tokenEndpoint string
	clientID      string
	clientSecret  string
	scope         string

	httpClient  *http.Client
	breaker     *resilience.CircuitBreaker
	retryConfig *resilience.RetryConfig

	mu     sync.Mutex
	cached string
	expiry time.Time
}

// expiryMargin renews a cached token this long before it actually expires.
const expiryMargin = 30 * time.Second

// NewClientCredentialsTokenSource builds a token source from config.
func NewClientCredentialsTokenSource(cfg *config.Config) *ClientCredentialsTokenSource {
	return &ClientCredentialsTokenSource{
		tokenEndpoint: cfg.TokenEndpoint,
		clientID:      cfg.TokenClientID,
		clientSecret:  cfg.TokenClientSecret,
		scope:         cfg.TokenScope,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		breaker: resilience.NewCircuitBreaker(
			"token-endpoint",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		retryConfig: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
	}
}

// Token returns a cached token or fetches a fresh one.
func (s *ClientCredentialsTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && time.Now().Before(s.expiry.Add(-expiryMargin)) {
		return s.cached, nil
	}

	var token string
	var expiresIn int
	err := s.breaker.Call(func() error {
		return resilience.Retry(ctx, func() error {
			var fetchErr error
			token, expiresIn, fetchErr = s.fetch(ctx)
			return fetchErr
		}, s.retryConfig, resilience.IsRetryableNetworkError)
	})

	observability.UpdateCircuitBreakerState("token-endpoint", int(s.breaker.GetState()))
	observability.RecordTokenFetch(err == nil)
	if err != nil {
		observability.IncrementCircuitBreakerFailures("token-endpoint")
		return "", fmt.Errorf("failed to acquire bearer token: %w", err)
	}

	s.cached = token
	s.expiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	return token, nil
}

func (s *ClientCredentialsTokenSource) fetch(ctx context.Context) (string, int, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	form.Set("scope", s.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Error bodies may echo credentials; report the status only.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", 0, fmt.Errorf("token endpoint returned HTTP %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", 0, fmt.Errorf("token response contained no access_token")
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = 300
	}

	return payload.AccessToken, payload.ExpiresIn, nil
}
