// Package nodes holds the execution contract of every node kind. Kinds are a
// closed set; Invocation.Run dispatches on the kind tag and nothing else.
package nodes

import (
	"context"
	"fmt"

	"github.com/bvisness/landflow/app/compute"
	"github.com/bvisness/landflow/app/core"
	"github.com/bvisness/landflow/util"
)

// Output is what a successful transform produces.
type Output struct {
	Result *core.Result

	// Labels travel with the result to chart sinks.
	Labels []string
}

// Inputs resolves every input port of n. The error is a
// *core.PreconditionError for the first unsatisfied port.
func Inputs(g *core.Graph, n *core.Node) ([]core.Value, error) {
	in := make([]core.Value, len(n.InputPorts))
	for i := range n.InputPorts {
		v, err := g.InputValue(n, i)
		if err != nil {
			return nil, err
		}
		in[i] = v
	}
	return in, nil
}

// Run validates the node's properties and performs its remote calls. It
// never touches the node's cached outputs; caching and propagation belong
// to the caller.
func (inv *Invocation) Run(ctx context.Context, in []core.Value) (Output, error) {
	util.Assert(inv.State == Pending, fmt.Sprintf("%s: invocation already ran (%s)", inv.Node, inv.State))

	if err := inv.Node.Validate(); err != nil {
		return Output{}, inv.fail(err)
	}
	out, err := inv.execute(ctx, in)
	if err != nil {
		return Output{}, inv.fail(err)
	}
	if err := inv.Transition(Completed); err != nil {
		return Output{}, inv.fail(err)
	}
	return out, nil
}

func (inv *Invocation) execute(ctx context.Context, in []core.Value) (Output, error) {
	n := inv.Node
	switch n.Kind {
	case core.KindRegression:
		return inv.fitTrend(ctx, in)
	case core.KindArima:
		return inv.fitArima(ctx, in)
	case core.KindMarkov:
		return inv.projectTransition(ctx, in)
	case core.KindLogistic:
		return inv.fitSpatial(ctx, compute.SpatialLogistic, in)
	case core.KindRandomForest:
		return inv.fitSpatial(ctx, compute.SpatialEnsemble, in)
	default:
		return Output{}, fmt.Errorf("%s: %s nodes do not execute", n, n.Kind)
	}
}

func input[T core.Value](n *core.Node, in []core.Value, i int) (T, error) {
	var zero T
	if i >= len(in) {
		return zero, fmt.Errorf("%s: missing input %d", n, i)
	}
	v, ok := in[i].(T)
	if !ok {
		return zero, fmt.Errorf("%s: input %d is %T, expected %T", n, i, in[i], zero)
	}
	return v, nil
}

func (inv *Invocation) fitTrend(ctx context.Context, in []core.Value) (Output, error) {
	n := inv.Node
	ts, err := input[core.TimeSeries](n, in, 0)
	if err != nil {
		return Output{}, err
	}
	if err := ts.Validate(); err != nil {
		return Output{}, fmt.Errorf("%s: %w", n, err)
	}
	family, _ := n.Props.String("curve_family")
	horizon, _ := n.Props.Int("horizon")

	op, payload := compute.FitTrend(ts, family, horizon)
	res, err := inv.call(ctx, op, payload)
	if err != nil {
		return Output{}, err
	}
	return Output{Result: res}, nil
}

func (inv *Invocation) fitArima(ctx context.Context, in []core.Value) (Output, error) {
	n := inv.Node
	ts, err := input[core.TimeSeries](n, in, 0)
	if err != nil {
		return Output{}, err
	}
	if err := ts.Validate(); err != nil {
		return Output{}, fmt.Errorf("%s: %w", n, err)
	}
	horizon, _ := n.Props.Int("horizon")

	op, payload := compute.FitArima(ts, horizon)
	res, err := inv.call(ctx, op, payload)
	if err != nil {
		return Output{}, err
	}
	return Output{Result: res}, nil
}

// projectTransition is the two-phase state-transition contract: derive a
// transition matrix from the raster pair, then project it over the horizon.
// Only the phase 2 result is returned.
func (inv *Invocation) projectTransition(ctx context.Context, in []core.Value) (Output, error) {
	n := inv.Node
	pair, err := input[core.RasterPair](n, in, 0)
	if err != nil {
		return Output{}, err
	}
	if pair.T1.IsZero() || pair.T2.IsZero() {
		return Output{}, fmt.Errorf("%s: raster pair needs both T1 and T2", n)
	}
	horizon, _ := n.Props.Int("horizon")

	op, payload := compute.DeriveTransitionMatrix(pair)
	derived, err := inv.call(ctx, op, payload)
	if err != nil {
		return Output{}, err
	}
	matrix, err := derived.Matrix("matrix")
	if err == nil && (len(matrix) == 0 || len(matrix) != len(matrix[0])) {
		err = fmt.Errorf("transition matrix must be square and non-empty, got %d rows", len(matrix))
	}
	if err != nil {
		return Output{}, &compute.DecodeError{Op: op.Name, Err: err}
	}
	if err := inv.Transition(Phase1Done); err != nil {
		return Output{}, err
	}

	op, payload = compute.ProjectTransition(matrix, horizon)
	res, err := inv.call(ctx, op, payload)
	if err != nil {
		return Output{}, err
	}
	return Output{Result: res}, nil
}

func (inv *Invocation) fitSpatial(ctx context.Context, kind compute.SpatialKind, in []core.Value) (Output, error) {
	n := inv.Node
	drivers, err := input[core.DriverArray](n, in, 0)
	if err != nil {
		return Output{}, err
	}
	target, err := input[core.Raster](n, in, 1)
	if err != nil {
		return Output{}, err
	}

	op, payload, err := compute.FitSpatial(kind, drivers, target)
	if err != nil {
		return Output{}, fmt.Errorf("%s: %w", n, err)
	}
	res, err := inv.call(ctx, op, payload)
	if err != nil {
		return Output{}, err
	}
	return Output{Result: res, Labels: driverLabels(drivers)}, nil
}

func driverLabels(d core.DriverArray) []string {
	if len(d.Labels) == len(d.Files) {
		return append([]string(nil), d.Labels...)
	}
	return util.Map(d.Files, func(f core.File) string { return f.Name })
}
