// Package relay drives streamed conversation turns: it opens the upstream
// streaming call, translates raw events into the client schema, detects
// OAuth consent interrupts, and keeps per-conversation continuation state.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/lexiqai/chat-gateway/internal/conversation"
	"github.com/lexiqai/chat-gateway/internal/events"
	"github.com/lexiqai/chat-gateway/internal/observability"
	"github.com/lexiqai/chat-gateway/internal/sse"
	"github.com/lexiqai/chat-gateway/internal/upstream"
)

// TurnRequest describes one client-initiated streamed turn. UserMessage is
// empty on a resume after consent; PreviousResponseID is empty on a fresh
// conversation.
type TurnRequest struct {
	ConversationID     string
	UserMessage        string
	PreviousResponseID string
}

// EventSink receives translated client events in arrival order. Send
// returning an error means the client connection is gone; the turn stops.
type EventSink interface {
	Send(ev events.StreamEvent) error
}

// Relay owns the turn pipeline and its collaborators.
type Relay struct {
	upstream *upstream.Client
	store    conversation.Store
}

// New builds a relay over the given upstream client and state store.
func New(up *upstream.Client, store conversation.Store) *Relay {
	return &Relay{upstream: up, store: store}
}

// Store exposes the conversation state store for transport-level checks.
func (r *Relay) Store() conversation.Store {
	return r.store
}

// Run drives one streamed turn end to end. Every turn ends with exactly
// one terminal event on the sink (done, error, or oauth_consent_required)
// unless the client connection itself is gone.
func (r *Relay) Run(ctx context.Context, req TurnRequest, sink EventSink) {
	logger := observability.WithCorrelationID("").With().
		Str("conversation_id", req.ConversationID).
		Logger()

	metrics := observability.NewTurnMetrics()

	logger.Info().
		Bool("resume", req.UserMessage == "").
		Str("previous_response_id", req.PreviousResponseID).
		Msg("Starting streamed turn")

	body, err := r.upstream.OpenStream(ctx, req.UserMessage, req.PreviousResponseID)
	if err != nil {
		r.fail(ctx, logger, metrics, sink, err)
		return
	}
	defer body.Close()

	decoder := sse.NewDecoder(body)
	state := newTurnState()

	for {
		rec, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				// Client went away; the upstream call is already cancelled.
				logger.Info().Msg("Turn cancelled by client")
				metrics.RecordTurnEnd(observability.OutcomeCancelled)
				return
			}
			r.fail(ctx, logger, metrics, sink, fmt.Errorf("upstream stream failed: %w", err))
			return
		}

		act := state.translate(rec)

		if act.persist {
			st := conversation.State{PreviousResponseID: state.responseID}
			if err := r.store.Put(ctx, req.ConversationID, st); err != nil {
				// The turn can still finish; only the continuation is at risk.
				logger.Error().Err(err).Msg("Failed to persist conversation state")
				observability.RecordError("store_put_error", "conversation")
			}
		}

		if act.event != nil {
			observability.RecordClientEvent(act.event.EventType())
			if ev, ok := act.event.(events.ToolStart); ok {
				logger.Info().
					Str("tool_name", ev.ToolName).
					Str("call_id", ev.CallID).
					Msg("Tool call started")
			}
			if err := sink.Send(act.event); err != nil {
				logger.Warn().Err(err).Msg("Client connection lost mid-turn")
				metrics.RecordTurnEnd(observability.OutcomeCancelled)
				return
			}
			if errEv, isErr := act.event.(events.Error); isErr {
				// The error event is terminal; a done must not follow it.
				logger.Error().Str("message", errEv.Message).Msg("Upstream reported an error, turn ended")
				observability.RecordError("upstream_error_event", "relay")
				metrics.RecordTurnEnd(observability.OutcomeFailed)
				return
			}
		}

		if act.terminal {
			// Consent links can carry OAuth state parameters; never log them.
			logger.Info().
				Str("response_id", state.responseID).
				Msg("OAuth consent required, turn paused")
			metrics.RecordTurnEnd(observability.OutcomeInterrupted)
			return
		}
	}

	done := events.NewDone(state.responseID)
	observability.RecordClientEvent(done.EventType())
	if err := sink.Send(done); err != nil {
		logger.Warn().Err(err).Msg("Client connection lost at turn end")
		metrics.RecordTurnEnd(observability.OutcomeCancelled)
		return
	}

	logger.Info().Str("response_id", state.responseID).Msg("Turn completed")
	metrics.RecordTurnEnd(observability.OutcomeCompleted)
}

// fail converts any turn failure into a single terminal error event.
func (r *Relay) fail(ctx context.Context, logger zerolog.Logger, metrics *observability.TurnMetrics, sink EventSink, err error) {
	logger.Error().Err(err).Msg("Turn failed")
	observability.RecordError("turn_failure", "relay")
	metrics.RecordTurnEnd(observability.OutcomeFailed)

	if ctx.Err() != nil {
		return
	}
	ev := events.NewError(err.Error())
	observability.RecordClientEvent(ev.EventType())
	if sendErr := sink.Send(ev); sendErr != nil {
		logger.Warn().Err(sendErr).Msg("Failed to deliver error event to client")
	}
}
