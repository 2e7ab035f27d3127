package relay

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/lexiqai/chat-gateway/internal/events"
	"github.com/lexiqai/chat-gateway/internal/observability"
)

// wsMessage is the single message a WebSocket client sends to open a turn.
// An empty userMessage resumes a conversation paused for OAuth consent.
type wsMessage struct {
	ConversationID string `json:"conversationId"`
	UserMessage    string `json:"userMessage,omitempty"`
}

// wsSink writes client events as JSON text frames.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(ev events.StreamEvent) error {
	return s.conn.WriteJSON(ev)
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no Origin header.
				return true
			}
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
}

// HandleChatWS serves the WebSocket equivalent of the chat and continue
// endpoints: one turn per connection. The client sends a single JSON text
// message, receives each stream event as one JSON frame, and the gateway
// closes the connection after the terminal event.
func HandleChatWS(relay *Relay, allowedOrigins []string) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)
	logger := observability.GetLogger()

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			logger.Warn().Err(err).Msg("Failed to read WebSocket turn request")
			return
		}

		sink := &wsSink{conn: conn}

		if msg.ConversationID == "" {
			_ = sink.Send(events.NewError("conversationId is required"))
			return
		}

		st, ok, err := relay.Store().Get(r.Context(), msg.ConversationID)
		if err != nil {
			observability.RecordError("store_get_error", "ws")
			_ = sink.Send(events.NewError("failed to load conversation state"))
			return
		}

		if msg.UserMessage == "" {
			// Resume semantics match the continue endpoint.
			if !ok {
				_ = sink.Send(events.NewError("no conversation found for conversationId=" + msg.ConversationID))
				return
			}
			if st.PreviousResponseID == "" {
				_ = sink.Send(events.NewError("no previous_response_id stored; cannot continue"))
				return
			}
		}

		// The request context outlives the upgrade; watch the socket for a
		// client close so the upstream call is cancelled promptly.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		relay.Run(ctx, TurnRequest{
			ConversationID:     msg.ConversationID,
			UserMessage:        msg.UserMessage,
			PreviousResponseID: st.PreviousResponseID,
		}, sink)

		// Tell well-behaved clients the turn is over before closing.
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}
