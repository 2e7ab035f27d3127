package relay

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lexiqai/chat-gateway/internal/conversation"
)

func TestHandleChat_StreamsSSE(t *testing.T) {
	body := sseBlock("response.created", `{"response": {"id": "resp_9"}}`) +
		sseBlock("response.output_text.delta", `{"delta": "hi there"}`) +
		sseBlock("response.completed", `{"response": {"id": "resp_9"}}`) +
		"data: [DONE]\n\n"

	relay, _ := newTestRelay(t, body, http.StatusOK)
	handler := HandleChat(relay)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"conversationId": "conv-1", "userMessage": "hello"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got %s", ct)
	}

	var dataLines []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		}
	}

	if len(dataLines) != 2 {
		t.Fatalf("Expected 2 data records, got %d: %v", len(dataLines), dataLines)
	}
	if !strings.Contains(dataLines[0], `"text.delta"`) || !strings.Contains(dataLines[0], "hi there") {
		t.Errorf("Unexpected first record: %s", dataLines[0])
	}
	if !strings.Contains(dataLines[1], `"done"`) || !strings.Contains(dataLines[1], "resp_9") {
		t.Errorf("Unexpected second record: %s", dataLines[1])
	}
}

func TestHandleChat_UsesStoredContinuation(t *testing.T) {
	var gotPrevID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		decodeJSONBody(t, r, &req)
		gotPrevID, _ = req["previous_response_id"].(string)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	relay, store := newRelayForURL(t, server.URL)
	_ = store.Put(context.Background(), "conv-1", conversation.State{PreviousResponseID: "resp_5"})

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"conversationId": "conv-1", "userMessage": "more"}`))
	rec := httptest.NewRecorder()
	HandleChat(relay)(rec, req)

	if gotPrevID != "resp_5" {
		t.Errorf("Expected previous_response_id 'resp_5' passed upstream, got '%s'", gotPrevID)
	}
}

func TestHandleChat_Validation(t *testing.T) {
	relay, _ := newTestRelay(t, "data: [DONE]\n\n", http.StatusOK)
	handler := HandleChat(relay)

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"malformed body", http.MethodPost, "{not json", http.StatusBadRequest},
		{"missing conversation id", http.MethodPost, `{"userMessage": "hi"}`, http.StatusBadRequest},
		{"missing user message", http.MethodPost, `{"conversationId": "c"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/chat", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestHandleContinue_UnknownConversation(t *testing.T) {
	relay, _ := newTestRelay(t, "data: [DONE]\n\n", http.StatusOK)

	req := httptest.NewRequest(http.MethodPost, "/api/continue",
		strings.NewReader(`{"conversationId": "nope"}`))
	rec := httptest.NewRecorder()
	HandleContinue(relay)(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown conversation, got %d", rec.Code)
	}
}

func TestHandleContinue_NoStoredContinuation(t *testing.T) {
	relay, store := newTestRelay(t, "data: [DONE]\n\n", http.StatusOK)
	_ = store.Put(context.Background(), "conv-1", conversation.State{})

	req := httptest.NewRequest(http.MethodPost, "/api/continue",
		strings.NewReader(`{"conversationId": "conv-1"}`))
	rec := httptest.NewRecorder()
	HandleContinue(relay)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a stored continuation, got %d", rec.Code)
	}
}

func TestHandleContinue_ResumesWithoutInput(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decodeJSONBody(t, r, &gotBody)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sseBlock("response.completed", `{"response": {"id": "resp_6"}}`) + "data: [DONE]\n\n"))
	}))
	defer server.Close()

	relay, store := newRelayForURL(t, server.URL)
	_ = store.Put(context.Background(), "conv-1", conversation.State{PreviousResponseID: "resp_5"})

	req := httptest.NewRequest(http.MethodPost, "/api/continue",
		strings.NewReader(`{"conversationId": "conv-1"}`))
	rec := httptest.NewRecorder()
	HandleContinue(relay)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotBody["previous_response_id"] != "resp_5" {
		t.Errorf("Expected previous_response_id 'resp_5', got %v", gotBody["previous_response_id"])
	}
	if _, hasInput := gotBody["input"]; hasInput {
		t.Error("Resume request must not carry an input array")
	}
	if !strings.Contains(rec.Body.String(), "resp_6") {
		t.Errorf("Expected done event with 'resp_6', got %s", rec.Body.String())
	}

	st, _, _ := store.Get(context.Background(), "conv-1")
	if st.PreviousResponseID != "resp_6" {
		t.Errorf("Expected stored continuation advanced to 'resp_6', got '%s'", st.PreviousResponseID)
	}
}
