// Package notify reports node events to whoever is watching a run: the log,
// an external renderer, or both.
package notify

import (
	"context"
	"errors"

	"github.com/bvisness/landflow/app/core"
	"github.com/bvisness/landflow/app/ctxlog"
)

type EventType string

const (
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	// EventDirty means a sink received a new result.
	EventDirty EventType = "dirty"
)

type Event struct {
	Type    EventType        `json:"type"`
	NodeID  int              `json:"node_id"`
	Node    string           `json:"node"`
	Kind    core.Kind        `json:"kind"`
	Message string           `json:"message,omitempty"`
	Display core.DisplayKind `json:"display,omitempty"`
}

// NewEvent describes n at the moment of the event.
func NewEvent(typ EventType, n *core.Node, message string) Event {
	return Event{
		Type:    typ,
		NodeID:  n.ID,
		Node:    n.Name,
		Kind:    n.Kind,
		Message: message,
		Display: n.Display,
	}
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Log writes events to the context logger. Failures go out at Warn, the
// rest at Debug.
type Log struct{}

var _ Notifier = Log{}

func (Log) Notify(ctx context.Context, ev Event) error {
	logger := ctxlog.FromContext(ctx).With("node", ev.Node, "kind", string(ev.Kind))
	switch ev.Type {
	case EventFailed:
		logger.Warn("Node failed.", "error", ev.Message)
	case EventDirty:
		logger.Debug("Sink updated.", "display", ev.Display.Title())
	default:
		logger.Debug("Node event.", "event", string(ev.Type), "message", ev.Message)
	}
	return nil
}

// Multi fans an event out to several notifiers. Every notifier sees every
// event; errors are joined.
type Multi []Notifier

var _ Notifier = Multi{}

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
