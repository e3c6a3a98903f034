package app

import (
	"github.com/bvisness/landflow/app/core"
)

// InferDisplayKind guesses how a chart should render a result from the
// well-known fields it carries. Results matching no pattern stay unset.
func InferDisplayKind(r *core.Result) core.DisplayKind {
	switch {
	case r == nil:
		return core.DisplayUnset
	case r.Has("transition_matrix"):
		return core.DisplayStateTransition
	case r.Has("forecast"):
		return core.DisplayTrend
	case r.Has("coefficients"), r.Has("feature_importances"):
		return core.DisplaySpatial
	default:
		return core.DisplayUnset
	}
}

// Propagate writes the result cached on one of n's output ports to every
// sink wired directly to that port. All sinks get the same *core.Result;
// only chart sinks get n's labels. It returns the sinks written.
func Propagate(g *core.Graph, n *core.Node, port int) []*core.Node {
	v, _ := n.Output(port)
	r, ok := v.(*core.Result)
	if !ok {
		return nil
	}
	display := InferDisplayKind(r)

	var sinks []*core.Node
	for _, wire := range g.OutputWires(n, port) {
		sink := wire.EndNode
		if sink.Class() != core.ClassSink {
			continue
		}
		var labels []string
		if sink.Kind == core.KindChart {
			labels = n.Labels
		}
		sink.Receive(r, display, labels)
		sinks = append(sinks, sink)
	}
	return sinks
}
