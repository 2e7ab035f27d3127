// Package events defines the client-facing stream event schema.
//
// Every streamed turn delivers a sequence of these events and ends with
// exactly one terminal event: Done, Error, or ConsentRequired.
package events

// Event type tags as they appear on the wire.
const (
	TypeTextDelta       = "text.delta"
	TypeToolStart       = "tool.start"
	TypeToolEnd         = "tool.end"
	TypeToolError       = "tool.error"
	TypeConsentRequired = "oauth_consent_required"
	TypeDone            = "done"
	TypeError           = "error"
)

// StreamEvent is any event sent to the client. Concrete types below carry
// their own JSON shape; the Type field discriminates on the wire.
type StreamEvent interface {
	EventType() string
}

// TextDelta carries an incremental chunk of assistant text.
type TextDelta struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
}

// ToolStart announces that the agent started executing a tool call.
type ToolStart struct {
	Type     string `json:"type"`
	ToolName string `json:"toolName"`
	CallID   string `json:"callId"`
}

// ToolEnd announces that a tool call finished.
type ToolEnd struct {
	Type     string `json:"type"`
	ToolName string `json:"toolName"`
	CallID   string `json:"callId"`
}

// ToolError reports a failed tool call. Part of the client contract; the
// upstream currently has no observed producer for it.
type ToolError struct {
	Type     string `json:"type"`
	ToolName string `json:"toolName"`
	CallID   string `json:"callId"`
	Error    string `json:"error"`
}

// ConsentRequired tells the client that the turn is paused until the user
// completes an out-of-band OAuth consent step. ResponseID is null when the
// upstream had not yet reported a response id at the time of the interrupt.
type ConsentRequired struct {
	Type           string  `json:"type"`
	ConsentLink    string  `json:"consentLink"`
	ResponseID     *string `json:"responseId"`
	ConnectionName string  `json:"connectionName"`
}

// Done terminates a successfully completed turn. ResponseID is the empty
// string if the upstream never reported one.
type Done struct {
	Type       string `json:"type"`
	ResponseID string `json:"responseId"`
}

// Error terminates a failed turn.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e TextDelta) EventType() string       { return e.Type }
func (e ToolStart) EventType() string       { return e.Type }
func (e ToolEnd) EventType() string         { return e.Type }
func (e ToolError) EventType() string       { return e.Type }
func (e ConsentRequired) EventType() string { return e.Type }
func (e Done) EventType() string            { return e.Type }
func (e Error) EventType() string           { return e.Type }

// NewTextDelta builds a text.delta event.
func NewTextDelta(delta string) TextDelta {
	return TextDelta{Type: TypeTextDelta, Delta: delta}
}

// NewToolStart builds a tool.start event.
func NewToolStart(toolName, callID string) ToolStart {
	return ToolStart{Type: TypeToolStart, ToolName: toolName, CallID: callID}
}

// NewToolEnd builds a tool.end event.
func NewToolEnd(toolName, callID string) ToolEnd {
	return ToolEnd{Type: TypeToolEnd, ToolName: toolName, CallID: callID}
}

// NewToolError builds a tool.error event.
func NewToolError(toolName, callID, errMsg string) ToolError {
	return ToolError{Type: TypeToolError, ToolName: toolName, CallID: callID, Error: errMsg}
}

// NewConsentRequired builds an oauth_consent_required event. responseID may
// be empty, in which case the wire value is null.
func NewConsentRequired(consentLink, responseID, connectionName string) ConsentRequired {
	ev := ConsentRequired{
		Type:           TypeConsentRequired,
		ConsentLink:    consentLink,
		ConnectionName: connectionName,
	}
	if responseID != "" {
		ev.ResponseID = &responseID
	}
	return ev
}

// NewDone builds a done event.
func NewDone(responseID string) Done {
	return Done{Type: TypeDone, ResponseID: responseID}
}

// NewError builds an error event.
func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}
