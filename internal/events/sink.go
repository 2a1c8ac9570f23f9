// Package events provides the aggregator's EventSink capability: a
// minimal observer notified of registry and connection lifecycle
// events, with a logging-backed implementation and a null object for
// when no observer is wired.
package events

import (
	"context"
	"fmt"

	"github.com/xenophobed/isA-MCP-sub015/pkg/logging"
)

// Sink is the capability interface implemented by every EventSink.
type Sink interface {
	Emit(ctx context.Context, eventName string, payload map[string]any)
}

// Logging emits every event as a structured audit log line. It never
// blocks or returns an error: observers must not be able to affect
// the outcome of the operation they're observing.
type Logging struct{}

// NewLogging constructs a Logging sink.
func NewLogging() Logging { return Logging{} }

func (Logging) Emit(_ context.Context, eventName string, payload map[string]any) {
	serverID, _ := payload["server_id"].(string)
	logging.Audit(logging.AuditEvent{
		Action:   eventName,
		Outcome:  "observed",
		ServerID: serverID,
		Details:  fmt.Sprintf("%v", payload),
	})
}

// Noop discards every event.
type Noop struct{}

// NewNoop constructs a Noop sink.
func NewNoop() Noop { return Noop{} }

func (Noop) Emit(context.Context, string, map[string]any) {}
