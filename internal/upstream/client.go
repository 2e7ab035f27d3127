// Package upstream opens streaming calls against the Foundry Responses API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/chat-gateway/internal/config"
	"github.com/lexiqai/chat-gateway/internal/observability"
)

// responsesPath is appended to the project endpoint; the Foundry API is
// OpenAI-compatible.
const responsesPath = "/openai/v1/responses"

// maxErrorBodyBytes bounds the upstream body snippet kept in error details.
const maxErrorBodyBytes = 300

// Request is the Responses API request body for one streamed turn.
// PreviousResponseID continues a paused or prior response; Input carries
// the new user message, absent on a resume.
type Request struct {
	Model              string    `json:"model"`
	Stream             bool      `json:"stream"`
	PreviousResponseID string    `json:"previous_response_id,omitempty"`
	Input              []Message `json:"input,omitempty"`
}

// Message is one input item in a Responses API request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StatusError reports a non-2xx upstream response, with a bounded snippet
// of the response body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream API HTTP %d: %s", e.StatusCode, e.Body)
}

// Client issues streaming Responses API calls.
type Client struct {
	endpoint   string
	agentID    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient builds an upstream client. The HTTP client timeout is the
// overall upper bound on one streamed call, including the body read.
func NewClient(cfg *config.Config, tokens TokenSource) *Client {
	return &Client{
		endpoint: strings.TrimRight(cfg.ProjectEndpoint, "/"),
		agentID:  cfg.AgentID,
		tokens:   tokens,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.UpstreamTimeout) * time.Second,
		},
	}
}

// OpenStream starts one streaming turn and returns the raw SSE body.
// userMessage may be empty (resume after consent); previousResponseID may
// be empty (fresh conversation). The caller owns the returned body and
// must close it.
func (c *Client) OpenStream(ctx context.Context, userMessage, previousResponseID string) (io.ReadCloser, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("credential acquisition failed: %w", err)
	}

	body := Request{
		Model:  c.agentID,
		Stream: true,
	}
	if previousResponseID != "" {
		body.PreviousResponseID = previousResponseID
	}
	if userMessage != "" {
		body.Input = []Message{{Role: "user", Content: userMessage}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+responsesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	observability.RecordUpstreamStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	return resp.Body, nil
}
