package nodes

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bvisness/landflow/app/compute"
	"github.com/bvisness/landflow/app/compute/computetest"
	"github.com/bvisness/landflow/app/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(name string) core.File {
	return core.File{Name: name, Data: []byte(name)}
}

func newNode(t *testing.T, kind core.Kind) *core.Node {
	t.Helper()
	n, err := core.NewNode(kind, "")
	require.NoError(t, err)
	return n
}

func TestTransitions(t *testing.T) {
	inv := NewInvocation(newNode(t, core.KindMarkov), computetest.New())
	assert.Error(t, inv.Transition(Pending))
	require.NoError(t, inv.Transition(Phase1Done))
	assert.Error(t, inv.Transition(Phase1Done))
	require.NoError(t, inv.Transition(Completed))
	assert.True(t, inv.State.Terminal())
	assert.Error(t, inv.Transition(Failed), "terminal states are final")
}

func TestMarkov(t *testing.T) {
	pair := core.RasterPair{T1: file("2000.tif"), T2: file("2010.tif")}

	t.Run("both phases", func(t *testing.T) {
		svc := computetest.New().
			On(compute.OpDeriveTransitionMatrix, `{"status":"success","data":{"matrix":[[8,1,1],[1,8,1],[1,1,8]],"classes":[1,2,3]}}`).
			On(compute.OpProjectTransition, `{"transition_matrix":[[0.8,0.1,0.1],[0.1,0.8,0.1],[0.1,0.1,0.8]],"future_probability_matrix":[[0.4,0.3,0.3],[0.3,0.4,0.3],[0.3,0.3,0.4]]}`)
		n := newNode(t, core.KindMarkov)
		inv := NewInvocation(n, svc)

		out, err := inv.Run(context.Background(), []core.Value{pair})
		require.NoError(t, err)
		assert.Equal(t, Completed, inv.State)
		assert.Equal(t, 2, inv.Calls)
		assert.True(t, out.Result.Has("transition_matrix"))
		assert.False(t, out.Result.Has("matrix"), "only the phase 2 result is returned")

		calls := svc.Calls()
		require.Len(t, calls, 2)
		assert.Equal(t, compute.OpDeriveTransitionMatrix, calls[0].Op)
		assert.Equal(t, []string{"file_t1", "file_t2"}, calls[0].Multipart().FieldNames())
		assert.Equal(t, compute.OpProjectTransition, calls[1].Op)
		assert.Equal(t, int64(10), calls[1].Body().Get("years_diff").Int())
		assert.Equal(t, 8.0, calls[1].Body().Get("matrix.0.0").Float())
	})

	t.Run("phase 1 failure stops the chain", func(t *testing.T) {
		svc := computetest.New().
			On(compute.OpDeriveTransitionMatrix, `{"status":"error","message":"rasters differ in size"}`).
			On(compute.OpProjectTransition, `{"transition_matrix":[[1]]}`)
		inv := NewInvocation(newNode(t, core.KindMarkov), svc)

		_, err := inv.Run(context.Background(), []core.Value{pair})
		var se *compute.ServiceError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, Failed, inv.State)
		assert.Equal(t, 1, inv.Calls)
		assert.Len(t, svc.Calls(), 1)
		assert.Empty(t, svc.CallsTo(compute.OpProjectTransition))
	})

	t.Run("phase 1 without a matrix", func(t *testing.T) {
		svc := computetest.New().
			On(compute.OpDeriveTransitionMatrix, `{"status":"success","data":{"classes":[1,2]}}`)
		inv := NewInvocation(newNode(t, core.KindMarkov), svc)

		_, err := inv.Run(context.Background(), []core.Value{pair})
		var de *compute.DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, 1, inv.Calls)
	})

	t.Run("phase 1 matrix must be square", func(t *testing.T) {
		for name, body := range map[string]string{
			"empty":      `{"status":"success","data":{"matrix":[]}}`,
			"non-square": `{"status":"success","data":{"matrix":[[0.5,0.5,0],[0,1,0]]}}`,
		} {
			t.Run(name, func(t *testing.T) {
				svc := computetest.New().
					On(compute.OpDeriveTransitionMatrix, body).
					On(compute.OpProjectTransition, `{"transition_matrix":[[1]]}`)
				inv := NewInvocation(newNode(t, core.KindMarkov), svc)

				_, err := inv.Run(context.Background(), []core.Value{pair})
				var de *compute.DecodeError
				require.True(t, errors.As(err, &de))
				assert.Equal(t, compute.OpDeriveTransitionMatrix.Name, de.Op)
				assert.Equal(t, Failed, inv.State)
				assert.Empty(t, svc.CallsTo(compute.OpProjectTransition))
			})
		}
	})

	t.Run("phase 2 failure after phase 1", func(t *testing.T) {
		svc := computetest.New().
			On(compute.OpDeriveTransitionMatrix, `{"status":"success","data":{"matrix":[[1]]}}`).
			OnStatus(compute.OpProjectTransition, 500, `{"detail":"boom"}`)
		inv := NewInvocation(newNode(t, core.KindMarkov), svc)

		_, err := inv.Run(context.Background(), []core.Value{pair})
		var se *compute.ServiceError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, 500, se.StatusCode)
		assert.Equal(t, Failed, inv.State)
		assert.Equal(t, 2, inv.Calls)
	})

	t.Run("cancelled context issues no call", func(t *testing.T) {
		svc := computetest.New()
		inv := NewInvocation(newNode(t, core.KindMarkov), svc)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := inv.Run(ctx, []core.Value{pair})
		var te *compute.TransportError
		require.True(t, errors.As(err, &te))
		assert.Empty(t, svc.Calls())
	})
}

func TestRunTwicePanics(t *testing.T) {
	svc := computetest.New().
		On(compute.OpFitArima, `{"future_years":[2015],"forecast":[1]}`)
	n := newNode(t, core.KindArima)
	inv := NewInvocation(n, svc)
	ts := core.TimeSeries{Years: []int{2000, 2010}, Values: []float64{1, 2}}

	_, err := inv.Run(context.Background(), []core.Value{ts})
	require.NoError(t, err)
	assert.PanicsWithError(t, fmt.Sprintf("assertion failed: %s: invocation already ran (completed)", n), func() {
		_, _ = inv.Run(context.Background(), []core.Value{ts})
	})
}

func TestTrend(t *testing.T) {
	ts := core.TimeSeries{Years: []int{2000, 2005, 2010}, Values: []float64{10, 20, 35}}

	t.Run("regression payload", func(t *testing.T) {
		svc := computetest.New().
			On(compute.OpFitTrend, `{"future_years":[2015,2020,2025],"forecast":[46.7,59.2,71.7],"conf_int":[[40,53],[50,68],[60,83]]}`)
		n := newNode(t, core.KindRegression)
		require.NoError(t, n.SetProp("horizon", 3))
		inv := NewInvocation(n, svc)

		out, err := inv.Run(context.Background(), []core.Value{ts})
		require.NoError(t, err)

		calls := svc.CallsTo(compute.OpFitTrend)
		require.Len(t, calls, 1)
		body := calls[0].Body()
		assert.JSONEq(t, `[2000,2005,2010]`, body.Get("years").Raw)
		assert.JSONEq(t, `[10,20,35]`, body.Get("values").Raw)
		assert.Equal(t, "linear", body.Get("type").String())
		assert.Equal(t, int64(3), body.Get("periods").Int())

		assert.Len(t, out.Result.Get("forecast").Array(), 3)
		assert.Len(t, out.Result.Get("conf_int").Array(), 3)
	})

	t.Run("arima payload", func(t *testing.T) {
		svc := computetest.New().On(compute.OpFitArima, `{"forecast":[1,2,3,4,5]}`)
		inv := NewInvocation(newNode(t, core.KindArima), svc)

		_, err := inv.Run(context.Background(), []core.Value{ts})
		require.NoError(t, err)
		body := svc.Calls()[0].Body()
		assert.JSONEq(t, `[10,20,35]`, body.Get("data").Raw)
		assert.Equal(t, int64(5), body.Get("periods").Int())
		assert.False(t, body.Get("years").Exists())
	})

	t.Run("invalid property makes no call", func(t *testing.T) {
		svc := computetest.New()
		n := newNode(t, core.KindRegression)
		n.Props["horizon"] = 0
		inv := NewInvocation(n, svc)

		_, err := inv.Run(context.Background(), []core.Value{ts})
		var ce *core.ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, Failed, inv.State)
		assert.Empty(t, svc.Calls())
	})
}

func TestSpatial(t *testing.T) {
	drivers := core.DriverArray{Files: []core.File{file("slope.tif"), file("roads.tif")}}
	change := core.Raster{File: file("change.tif")}

	svc := computetest.New().
		On(compute.OpFitLogistic, `{"coefficients":[0.4,-0.2],"intercept":0.1}`).
		On(compute.OpFitForest, `{"feature_importances":[0.6,0.4]}`)

	out, err := NewInvocation(newNode(t, core.KindLogistic), svc).Run(context.Background(), []core.Value{drivers, change})
	require.NoError(t, err)
	assert.Equal(t, []string{"slope.tif", "roads.tif"}, out.Labels)

	_, err = NewInvocation(newNode(t, core.KindRandomForest), svc).Run(context.Background(), []core.Value{drivers, change})
	require.NoError(t, err)

	calls := svc.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"drivers", "drivers", "change_map"}, calls[0].Multipart().FieldNames())
	assert.Equal(t, []string{"drivers", "drivers", "labels"}, calls[1].Multipart().FieldNames())
}

func TestInputs(t *testing.T) {
	g := core.NewGraph()
	csv, err := g.Add(core.KindTimeSeriesSource, "csv")
	require.NoError(t, err)
	trend, err := g.Add(core.KindRegression, "trend")
	require.NoError(t, err)

	_, err = Inputs(g, trend)
	assert.ErrorIs(t, err, core.ErrPreconditionNotMet)

	_, err = g.Connect(csv, 0, trend, 0)
	require.NoError(t, err)
	_, err = Inputs(g, trend)
	var pe *core.PreconditionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, core.ReasonNotReady, pe.Reason)

	ts := core.TimeSeries{Years: []int{2000}, Values: []float64{1}}
	require.NoError(t, SetTimeSeries(csv, ts))
	in, err := Inputs(g, trend)
	require.NoError(t, err)
	assert.Equal(t, []core.Value{ts}, in)
}

func TestSources(t *testing.T) {
	t.Run("raster pair", func(t *testing.T) {
		n := newNode(t, core.KindRasterSource)
		assert.Error(t, AttachRasterPair(n, file("a.tif"), core.File{}))
		require.NoError(t, AttachRasterPair(n, file("a.tif"), file("b.tif")))
		v, ok := n.Output(0)
		require.True(t, ok)
		assert.Equal(t, "b.tif", v.(core.RasterPair).T2.Name)
	})

	t.Run("wrong kind", func(t *testing.T) {
		assert.Error(t, AttachRasterPair(newNode(t, core.KindDriverSource), file("a"), file("b")))
	})

	t.Run("drivers", func(t *testing.T) {
		n := newNode(t, core.KindDriverSource)
		assert.Error(t, AttachDrivers(n, nil, file("change.tif")))
		require.NoError(t, AttachDrivers(n, []core.File{file("slope.tif")}, file("change.tif")))
		v, _ := n.Output(0)
		assert.Equal(t, []string{"slope.tif"}, v.(core.DriverArray).Labels)
		v, _ = n.Output(1)
		assert.Equal(t, "change.tif", v.(core.Raster).File.Name)
	})

	t.Run("time series upload", func(t *testing.T) {
		svc := computetest.New().
			On(compute.OpParseTimeSeries, `{"status":"success","data":{"years":[2000,2005,2010],"values":[10,20,35]}}`)
		n := newNode(t, core.KindTimeSeriesSource)

		require.NoError(t, LoadTimeSeries(context.Background(), svc, n, file("pop.csv")))
		v, ok := n.Output(0)
		require.True(t, ok)
		assert.Equal(t, []int{2000, 2005, 2010}, v.(core.TimeSeries).Years)
		assert.Equal(t, []string{"file"}, svc.Calls()[0].Multipart().FieldNames())
	})

	t.Run("failed upload leaves the source empty", func(t *testing.T) {
		svc := computetest.New().
			On(compute.OpParseTimeSeries, `{"status":"error","message":"no numeric column"}`)
		n := newNode(t, core.KindTimeSeriesSource)
		require.NoError(t, SetTimeSeries(n, core.TimeSeries{Years: []int{1}, Values: []float64{1}}))

		assert.Error(t, LoadTimeSeries(context.Background(), svc, n, file("pop.csv")))
		_, ok := n.Output(0)
		assert.False(t, ok)
		assert.Error(t, n.Err)
	})
}
