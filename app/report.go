package app

import (
	"fmt"
	"io"

	"github.com/bvisness/landflow/app/core"
	"github.com/go-stack/stack"
)

type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Entry is what happened to one transform during a run.
type Entry struct {
	Node    *core.Node
	Group   core.Group
	Outcome Outcome

	// Reason is set for skipped nodes, Err for failed ones.
	Reason core.SkipReason
	Err    error

	// Calls is the number of remote calls issued for the node.
	Calls int

	// Sinks are the sinks that received the node's result.
	Sinks []*core.Node
}

// Report lists the outcome of every transform visited by a run, in the order
// the run visited them. It lives only in memory.
type Report struct {
	Entries []Entry

	// Cancelled is the context error if the run stopped early.
	Cancelled error
}

func (r *Report) Lookup(n *core.Node) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Node == n {
			return e, true
		}
	}
	return Entry{}, false
}

func (r *Report) Count(o Outcome) int {
	count := 0
	for _, e := range r.Entries {
		if e.Outcome == o {
			count++
		}
	}
	return count
}

func (r *Report) Failed() []Entry {
	var res []Entry
	for _, e := range r.Entries {
		if e.Outcome == OutcomeFailed {
			res = append(res, e)
		}
	}
	return res
}

// WriteTo prints one line per entry followed by a summary line.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var total int64
	printf := func(format string, args ...any) error {
		n, err := fmt.Fprintf(w, format, args...)
		total += int64(n)
		return err
	}

	for _, e := range r.Entries {
		var err error
		switch e.Outcome {
		case OutcomeSkipped:
			err = printf("%-10s %s [%s]: %s\n", e.Outcome, e.Node.Name, e.Node.Kind, e.Reason)
		case OutcomeFailed:
			err = printf("%-10s %s [%s]: %v\n", e.Outcome, e.Node.Name, e.Node.Kind, e.Err)
		default:
			err = printf("%-10s %s [%s] -> %d sink(s)\n", e.Outcome, e.Node.Name, e.Node.Kind, len(e.Sinks))
		}
		if err != nil {
			return total, err
		}
	}
	if r.Cancelled != nil {
		if err := printf("run cancelled: %v\n", r.Cancelled); err != nil {
			return total, err
		}
	}
	err := printf("%d completed, %d skipped, %d failed\n", r.Count(OutcomeCompleted), r.Count(OutcomeSkipped), r.Count(OutcomeFailed))
	return total, err
}

// PanicError is a panic recovered while executing one node.
type PanicError struct {
	Node  string
	Value any
	Stack stack.CallStack
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: panic: %v", e.Node, e.Value)
}

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
