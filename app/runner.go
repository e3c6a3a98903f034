package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/bvisness/landflow/app/compute"
	"github.com/bvisness/landflow/app/core"
	"github.com/bvisness/landflow/app/ctxlog"
	"github.com/bvisness/landflow/app/nodes"
	"github.com/bvisness/landflow/app/notify"
	"github.com/go-stack/stack"
	"golang.org/x/sync/errgroup"
)

type RunOptions struct {
	// Workers bounds how many nodes of one group execute at once. Zero or
	// one runs every node strictly in graph order.
	Workers int

	Notifier notify.Notifier
}

// RunGraph walks the graph once: time-series transforms, then
// state-transition transforms, then spatial transforms. Sources and sinks
// are never executed. A node that fails or panics is recorded in the report
// and the run moves on. The returned error is non-nil only when ctx ended
// the run early.
func RunGraph(ctx context.Context, g *core.Graph, svc compute.Service, opts RunOptions) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{}
	}

	report := &Report{}
	for _, group := range core.RunGroups {
		members := g.NodesInGroup(group)
		if len(members) == 0 {
			continue
		}
		logger.Debug("Running group.", "group", group.String(), "nodes", len(members))

		entries, err := runGroup(ctx, g, svc, opts, members)
		report.Entries = append(report.Entries, entries...)
		if err != nil {
			report.Cancelled = err
			logger.Warn("Run cancelled.", "error", err)
			return report, err
		}
	}

	logger.Info("Run finished.",
		"completed", report.Count(OutcomeCompleted),
		"skipped", report.Count(OutcomeSkipped),
		"failed", report.Count(OutcomeFailed),
	)
	return report, nil
}

func runGroup(ctx context.Context, g *core.Graph, svc compute.Service, opts RunOptions, members []*core.Node) ([]Entry, error) {
	entries := make([]Entry, len(members))
	visited := make([]bool, len(members))

	if opts.Workers <= 1 {
		for i, n := range members {
			if err := ctx.Err(); err != nil {
				return entries[:i], err
			}
			entries[i] = runNode(ctx, g, svc, opts.Notifier, n)
		}
		return entries, nil
	}

	// Nodes of one group never feed each other, so they only contend on the
	// graph lock while caching and propagating.
	var eg errgroup.Group
	eg.SetLimit(opts.Workers)
	for i, n := range members {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			entries[i] = runNode(ctx, g, svc, opts.Notifier, n)
			visited[i] = true
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		var done []Entry
		for i, e := range entries {
			if visited[i] {
				done = append(done, e)
			}
		}
		return done, err
	}
	return entries, nil
}

// runNode resolves, executes, caches, and propagates a single transform.
func runNode(ctx context.Context, g *core.Graph, svc compute.Service, notifier notify.Notifier, n *core.Node) (entry Entry) {
	logger := ctxlog.FromContext(ctx).With("node", n.String(), "kind", string(n.Kind))
	entry = Entry{Node: n, Group: n.Spec().Group}
	inv := nodes.NewInvocation(n, svc)

	defer func() {
		if r := recover(); r != nil {
			err := &PanicError{Node: n.String(), Value: r, Stack: stack.Trace().TrimRuntime()}
			logger.Error("Node panicked.", "error", err, "stack", fmt.Sprintf("%+v", err.Stack))
			entry = failNode(ctx, g, notifier, entry, err)
			entry.Calls = inv.Calls
		}
	}()

	var in []core.Value
	var err error
	g.Locked(func() {
		in, err = nodes.Inputs(g, n)
	})
	if err != nil {
		var precondition *core.PreconditionError
		if errors.As(err, &precondition) {
			logger.Debug("Skipping node.", "reason", string(precondition.Reason))
			entry.Outcome = OutcomeSkipped
			entry.Reason = precondition.Reason
			return entry
		}
		return failNode(ctx, g, notifier, entry, err)
	}

	out, err := inv.Run(ctx, in)
	entry.Calls = inv.Calls
	if err != nil {
		logger.Debug("Invocation ended.", "state", inv.State.String(), "calls", inv.Calls)
		return failNode(ctx, g, notifier, entry, err)
	}

	g.Locked(func() {
		n.Err = nil
		n.Labels = out.Labels
		n.SetOutput(0, out.Result)
		entry.Sinks = Propagate(g, n, 0)
	})
	entry.Outcome = OutcomeCompleted
	logger.Info("Node completed.", "calls", inv.Calls, "sinks", len(entry.Sinks))

	notifyAll(ctx, notifier, notify.NewEvent(notify.EventCompleted, n, ""))
	for _, sink := range entry.Sinks {
		notifyAll(ctx, notifier, notify.NewEvent(notify.EventDirty, sink, ""))
	}
	return entry
}

// failNode records err on the node and clears its cached output. Sinks keep
// whatever they last received.
func failNode(ctx context.Context, g *core.Graph, notifier notify.Notifier, entry Entry, err error) Entry {
	n := entry.Node
	g.Locked(func() {
		n.Err = err
		n.Labels = nil
		n.ClearResult()
	})
	entry.Outcome = OutcomeFailed
	entry.Err = err
	notifyAll(ctx, notifier, notify.NewEvent(notify.EventFailed, n, err.Error()))
	return entry
}

func notifyAll(ctx context.Context, notifier notify.Notifier, ev notify.Event) {
	if err := notifier.Notify(ctx, ev); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to deliver node event.", "node", ev.Node, "event", string(ev.Type), "error", err)
	}
}
