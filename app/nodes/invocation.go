package nodes

import (
	"context"
	"fmt"

	"github.com/bvisness/landflow/app/compute"
	"github.com/bvisness/landflow/app/core"
	"github.com/bvisness/landflow/app/ctxlog"
)

// State is the progress of one node invocation within a run.
type State int

const (
	Pending State = iota
	Phase1Done
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Phase1Done:
		return "phase-1-done"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

var transitions = map[State][]State{
	Pending:    {Phase1Done, Completed, Failed},
	Phase1Done: {Completed, Failed},
}

// Invocation tracks the remote calls made on behalf of one node. Phases run
// strictly in order and a failed phase ends the invocation.
type Invocation struct {
	Node  *core.Node
	State State
	Err   error

	// Calls counts remote invocations actually issued.
	Calls int

	svc compute.Service
}

func NewInvocation(n *core.Node, svc compute.Service) *Invocation {
	return &Invocation{Node: n, svc: svc}
}

// Transition moves the invocation to the next state, rejecting moves the
// state machine does not allow.
func (inv *Invocation) Transition(to State) error {
	for _, allowed := range transitions[inv.State] {
		if allowed == to {
			inv.State = to
			return nil
		}
	}
	return fmt.Errorf("%s: invalid invocation transition %s -> %s", inv.Node, inv.State, to)
}

func (inv *Invocation) fail(err error) error {
	inv.Err = err
	if !inv.State.Terminal() {
		inv.State = Failed
	}
	return err
}

// call issues one remote operation. A cancelled context fails the call
// before anything is sent.
func (inv *Invocation) call(ctx context.Context, op compute.Operation, payload compute.Payload) (*core.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &compute.TransportError{Op: op.Name, Err: err}
	}
	inv.Calls++
	ctxlog.FromContext(ctx).Debug("Invoking operation.", "node", inv.Node.String(), "op", op.Name, "call", inv.Calls)
	return inv.svc.Invoke(ctx, op, payload)
}
