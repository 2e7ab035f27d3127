package relay

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lexiqai/chat-gateway/internal/events"
	"github.com/lexiqai/chat-gateway/internal/observability"
	"github.com/lexiqai/chat-gateway/internal/sse"
)

// ChatRequest starts or continues a conversation turn.
type ChatRequest struct {
	ConversationID string `json:"conversationId"`
	UserMessage    string `json:"userMessage"`
}

// ContinueRequest resumes a conversation paused for OAuth consent.
type ContinueRequest struct {
	ConversationID string `json:"conversationId"`
}

// sseSink writes client events as SSE data records over HTTP.
type sseSink struct {
	w *sse.Writer
}

func newSSESink(w http.ResponseWriter) (*sseSink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	// Disable proxy buffering (Nginx) so events reach the client promptly.
	h.Set("X-Accel-Buffering", "no")

	return &sseSink{w: sse.NewWriter(w, flusher.Flush)}, nil
}

func (s *sseSink) Send(ev events.StreamEvent) error {
	return s.w.SendJSON(ev)
}

// HandleChat starts a new conversation turn (or continues an existing
// one). A stored previous_response_id is included automatically so the
// agent keeps context across turns.
func HandleChat(relay *Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.ConversationID == "" || req.UserMessage == "" {
			http.Error(w, "conversationId and userMessage are required", http.StatusBadRequest)
			return
		}

		st, _, err := relay.Store().Get(r.Context(), req.ConversationID)
		if err != nil {
			observability.RecordError("store_get_error", "handler")
			http.Error(w, "failed to load conversation state", http.StatusInternalServerError)
			return
		}

		sink, err := newSSESink(w)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		relay.Run(r.Context(), TurnRequest{
			ConversationID:     req.ConversationID,
			UserMessage:        req.UserMessage,
			PreviousResponseID: st.PreviousResponseID,
		}, sink)
	}
}

// HandleContinue resumes a conversation after the user completed OAuth
// consent. The stored previous_response_id is sent upstream so the agent
// picks up exactly where it left off; no new user message is supplied.
func HandleContinue(relay *Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req ContinueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.ConversationID == "" {
			http.Error(w, "conversationId is required", http.StatusBadRequest)
			return
		}

		st, ok, err := relay.Store().Get(r.Context(), req.ConversationID)
		if err != nil {
			observability.RecordError("store_get_error", "handler")
			http.Error(w, "failed to load conversation state", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, fmt.Sprintf("no conversation found for conversationId=%s", req.ConversationID), http.StatusNotFound)
			return
		}
		if st.PreviousResponseID == "" {
			http.Error(w, "no previous_response_id stored; cannot continue", http.StatusBadRequest)
			return
		}

		sink, err := newSSESink(w)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		relay.Run(r.Context(), TurnRequest{
			ConversationID:     req.ConversationID,
			PreviousResponseID: st.PreviousResponseID,
		}, sink)
	}
}
