package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bvisness/landflow/app/compute"
	"github.com/bvisness/landflow/app/core"
	"github.com/bvisness/landflow/app/ctxlog"
	"github.com/bvisness/landflow/app/graphfile"
	"github.com/bvisness/landflow/app/nodes"
	"github.com/bvisness/landflow/app/notify"
)

// HeadlessRun loads the graph at path, runs it once against the configured
// compute service, and writes the report to out.
func HeadlessRun(ctx context.Context, path string, s *Settings, out io.Writer) (*Report, error) {
	logger := ctxlog.FromContext(ctx)

	loaded, err := graphfile.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	logger.Info("Graph loaded.", "path", path, "nodes", len(loaded.Graph.Nodes), "wires", len(loaded.Graph.Wires))

	svc := compute.NewHTTPService(s.ServiceURL, time.Duration(s.RequestTimeout))
	defer svc.Close()

	notifiers := notify.Multi{notify.Log{}}
	if s.RendererURL != "" {
		renderer, err := notify.Dial(ctx, s.RendererURL, s.RendererNamespace, time.Duration(s.RendererTimeout))
		if err != nil {
			logger.Warn("Renderer unavailable, continuing without it.", "error", err)
		} else {
			defer renderer.Close()
			notifiers = append(notifiers, renderer)
		}
	}

	return Execute(ctx, loaded, svc, RunOptions{Workers: s.Workers, Notifier: notifiers}, out)
}

// Execute parses any pending time-series uploads, runs the graph, and writes
// the report followed by one line per sink that holds a result.
func Execute(ctx context.Context, loaded *graphfile.Loaded, svc compute.Service, opts RunOptions, out io.Writer) (*Report, error) {
	logger := ctxlog.FromContext(ctx)

	// A failed upload leaves its source empty; dependent transforms then
	// skip as not ready instead of failing.
	for _, up := range loaded.Uploads {
		if err := nodes.LoadTimeSeries(ctx, svc, up.Node, up.File); err != nil {
			logger.Warn("Failed to parse time series.", "node", up.Node.String(), "file", up.File.Name, "error", err)
		}
	}

	report, runErr := RunGraph(ctx, loaded.Graph, svc, opts)
	if _, err := report.WriteTo(out); err != nil {
		return report, err
	}
	if err := writeSinks(out, loaded.Graph); err != nil {
		return report, err
	}
	return report, runErr
}

func writeSinks(out io.Writer, g *core.Graph) error {
	for _, n := range g.Nodes {
		if n.Class() != core.ClassSink || n.Received == nil {
			continue
		}
		if _, err := fmt.Fprintf(out, "sink %s [%s]: %s\n", n.Name, n.Display.Title(), n.Received); err != nil {
			return err
		}
	}
	return nil
}
