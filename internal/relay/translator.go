package relay

import (
	"github.com/tidwall/gjson"

	"github.com/lexiqai/chat-gateway/internal/events"
	"github.com/lexiqai/chat-gateway/internal/sse"
)

// fallbackToolName is used when the upstream never named a tool call.
const fallbackToolName = "unknown_tool"

// turnState is the mutable state for one streamed turn. It never outlives
// the turn; tool call ids are meaningless across turns.
type turnState struct {
	responseID      string
	activeToolCalls map[string]string // call_id -> tool name
}

func newTurnState() *turnState {
	return &turnState{activeToolCalls: make(map[string]string)}
}

// action is the translator's verdict on one decoded record.
type action struct {
	event    events.StreamEvent // client event to emit, or nil
	persist  bool               // persist the continuation state now
	terminal bool               // stop the turn after this record (consent interrupt)
}

// translate maps one decoded upstream record to at most one client event,
// updating the turn state. The consent interrupt is recognized in either
// wire shape and takes priority over everything else in the record.
func (t *turnState) translate(rec sse.Event) action {
	data := gjson.ParseBytes(rec.Data)

	// Use the SSE event field, or fall back to the "type" key in the payload.
	eventType := rec.Type
	if eventType == "" {
		eventType = data.Get("type").String()
	}

	// Explicit consent event first, embedded key second.
	if eventType == "oauth_consent_request" {
		return t.consentAction(data)
	}
	if embedded := data.Get("oauth_consent_request"); embedded.Exists() {
		return t.consentAction(embedded)
	}

	switch eventType {
	case "response.created":
		if id := firstString(data, "response.id", "id"); id != "" {
			t.responseID = id
		}

	case "response.output_text.delta", "response.text.delta":
		if delta := data.Get("delta").String(); delta != "" {
			return action{event: events.NewTextDelta(delta)}
		}

	case "response.content_part.delta":
		delta := data.Get("delta")
		var text string
		if delta.IsObject() {
			text = delta.Get("text").String()
		} else {
			text = delta.String()
		}
		if text != "" {
			return action{event: events.NewTextDelta(text)}
		}

	case "response.output_item.added":
		item := data.Get("item")
		if item.Get("type").String() == "function_call" {
			callID := firstString(item, "call_id", "id")
			toolName := item.Get("name").String()
			if toolName == "" {
				toolName = fallbackToolName
			}
			t.activeToolCalls[callID] = toolName
			return action{event: events.NewToolStart(toolName, callID)}
		}

	case "response.output_item.done":
		item := data.Get("item")
		if item.Get("type").String() == "function_call" {
			callID := firstString(item, "call_id", "id")
			toolName, seen := t.activeToolCalls[callID]
			if !seen {
				// The added event for this call was missed.
				toolName = item.Get("name").String()
				if toolName == "" {
					toolName = fallbackToolName
				}
			}
			return action{event: events.NewToolEnd(toolName, callID)}
		}

	case "response.completed":
		if id := data.Get("response.id").String(); id != "" {
			t.responseID = id
		}
		return action{persist: true}

	case "error":
		return action{event: events.NewError(errorMessage(data))}
	}

	// Unknown event types are not failures.
	return action{}
}

// consentAction builds the terminal consent interrupt from either wire
// shape; obj is the object holding consent_link and connection_name.
func (t *turnState) consentAction(obj gjson.Result) action {
	return action{
		event: events.NewConsentRequired(
			obj.Get("consent_link").String(),
			t.responseID,
			obj.Get("connection_name").String(),
		),
		persist:  true,
		terminal: true,
	}
}

// errorMessage extracts a human-readable message from an upstream error
// payload, falling back to the raw JSON.
func errorMessage(data gjson.Result) string {
	errObj := data.Get("error")
	if !errObj.Exists() {
		errObj = data
	}
	if errObj.IsObject() {
		if msg := errObj.Get("message").String(); msg != "" {
			return msg
		}
		return errObj.Raw
	}
	return errObj.String()
}

// firstString returns the first non-empty string among the given paths.
func firstString(data gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := data.Get(path).String(); v != "" {
			return v
		}
	}
	return ""
}
