package nodes

import (
	"context"
	"fmt"

	"github.com/bvisness/landflow/app/compute"
	"github.com/bvisness/landflow/app/core"
	"github.com/bvisness/landflow/app/ctxlog"
	"github.com/bvisness/landflow/util"
)

func requireKind(n *core.Node, kind core.Kind) error {
	if n.Kind != kind {
		return fmt.Errorf("%s is a %s node, not %s", n, n.Kind, kind)
	}
	return nil
}

// AttachRasterPair stores the T1/T2 maps on a paired-raster source.
func AttachRasterPair(n *core.Node, t1, t2 core.File) error {
	if err := requireKind(n, core.KindRasterSource); err != nil {
		return err
	}
	if t1.IsZero() || t2.IsZero() {
		return fmt.Errorf("%s: both T1 and T2 maps are required", n)
	}
	n.SetOutput(0, core.RasterPair{T1: t1, T2: t2})
	return nil
}

// SetTimeSeries stores an already parsed table on a time-series source.
func SetTimeSeries(n *core.Node, ts core.TimeSeries) error {
	if err := requireKind(n, core.KindTimeSeriesSource); err != nil {
		return err
	}
	if err := ts.Validate(); err != nil {
		return fmt.Errorf("%s: %w", n, err)
	}
	n.SetOutput(0, ts)
	return nil
}

// LoadTimeSeries uploads a tabular file for parsing and stores the parsed
// series on the source. This happens on upload, outside any run. On failure
// the source is left empty so downstream transforms skip as not ready.
func LoadTimeSeries(ctx context.Context, svc compute.Service, n *core.Node, f core.File) error {
	if err := requireKind(n, core.KindTimeSeriesSource); err != nil {
		return err
	}
	logger := ctxlog.FromContext(ctx).With("node", n.String())

	n.ClearResult()
	n.Err = nil

	op, payload := compute.ParseTimeSeries(f)
	res, err := svc.Invoke(ctx, op, payload)
	if err != nil {
		n.Err = err
		return fmt.Errorf("%s: parsing %s: %w", n, f.Name, err)
	}
	ts, err := core.TimeSeriesFromResult(res)
	if err != nil {
		n.Err = &compute.DecodeError{Op: op.Name, Err: err}
		return fmt.Errorf("%s: parsing %s: %w", n, f.Name, n.Err)
	}
	n.SetOutput(0, ts)
	logger.Info("Parsed time series.", "file", f.Name, "periods", len(ts.Years))
	return nil
}

// AttachDrivers stores the driver rasters and the change map on a driver-set
// source. Driver labels default to the file names.
func AttachDrivers(n *core.Node, drivers []core.File, changeMap core.File) error {
	if err := requireKind(n, core.KindDriverSource); err != nil {
		return err
	}
	if len(drivers) == 0 {
		return fmt.Errorf("%s: at least one driver raster is required", n)
	}
	if changeMap.IsZero() {
		return fmt.Errorf("%s: a change map is required", n)
	}
	n.SetOutput(0, core.DriverArray{
		Files:  append([]core.File(nil), drivers...),
		Labels: util.Map(drivers, func(f core.File) string { return f.Name }),
	})
	n.SetOutput(1, core.Raster{File: changeMap})
	return nil
}
