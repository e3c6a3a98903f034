// Package graphfile loads a graph description written in HCL:
//
//	node "input/raster" "maps" {
//	  t1 = "lulc_2000.tif"
//	  t2 = "lulc_2010.tif"
//	}
//
//	node "process/markov" "projection" {
//	  horizon = 10
//	}
//
//	node "output/table" "table" {}
//
//	link {
//	  from = "maps.0"
//	  to   = "projection.0"
//	}
//
// Source attributes name files relative to the description; every other
// attribute is a node property. Port references are "node.index" or
// "node.Port Name". The engine only ever reads these files.
package graphfile

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bvisness/landflow/app/core"
	"github.com/bvisness/landflow/app/ctxlog"
	"github.com/bvisness/landflow/app/nodes"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

type fileRoot struct {
	Nodes []*nodeBlock `hcl:"node,block"`
	Links []*linkBlock `hcl:"link,block"`
}

type nodeBlock struct {
	Kind string   `hcl:"kind,label"`
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type linkBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// Upload is a time-series file that still has to go through the compute
// service's parser before the source can feed anything.
type Upload struct {
	Node *core.Node
	File core.File
}

type Loaded struct {
	Graph   *core.Graph
	Uploads []Upload
}

// Load reads and builds the graph described at path.
func Load(ctx context.Context, path string) (*Loaded, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph: %w", err)
	}
	return Parse(ctx, src, path, filepath.Dir(path))
}

// Parse builds a graph from HCL source. File attributes resolve against
// baseDir.
func Parse(ctx context.Context, src []byte, filename, baseDir string) (*Loaded, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse graph %s: %w", filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode graph %s: %w", filename, diags)
	}

	b := &builder{
		g:       core.NewGraph(),
		baseDir: baseDir,
		loaded:  &Loaded{},
	}
	for _, block := range root.Nodes {
		if err := b.addNode(block); err != nil {
			return nil, err
		}
	}
	for _, link := range root.Links {
		if err := b.addLink(link); err != nil {
			return nil, err
		}
	}

	b.loaded.Graph = b.g
	logger.Debug("Graph loaded.", "file", filename, "nodes", len(b.g.Nodes), "wires", len(b.g.Wires), "uploads", len(b.loaded.Uploads))
	return b.loaded, nil
}

type builder struct {
	g       *core.Graph
	baseDir string
	loaded  *Loaded
}

func (b *builder) addNode(block *nodeBlock) error {
	kind, err := core.ParseKind(block.Kind)
	if err != nil {
		return fmt.Errorf("node %q: %w", block.Name, err)
	}
	if _, exists := b.g.FindNode(block.Name); exists {
		return fmt.Errorf("node %q is declared twice", block.Name)
	}
	n, err := b.g.Add(kind, block.Name)
	if err != nil {
		return err
	}

	hclAttrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return fmt.Errorf("node %q: %w", block.Name, diags)
	}
	values := make(map[string]any, len(hclAttrs))
	ranges := make(map[string]hcl.Range, len(hclAttrs))
	for name, attr := range hclAttrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return fmt.Errorf("node %q: %w", block.Name, diags)
		}
		native, err := ctyToNative(v)
		if err != nil {
			return fmt.Errorf("%s: node %q attribute %q: %w", attr.Range, block.Name, name, err)
		}
		values[name] = native
		ranges[name] = attr.Range
	}

	if n.Class() == core.ClassSource {
		err = b.attachSource(n, values)
	} else {
		err = setProps(n, values, ranges)
	}
	if err != nil {
		return fmt.Errorf("node %q: %w", block.Name, err)
	}
	return nil
}

func setProps(n *core.Node, values map[string]any, ranges map[string]hcl.Range) error {
	for name, v := range values {
		if err := n.SetProp(name, v); err != nil {
			return fmt.Errorf("%s: %w", ranges[name], err)
		}
	}
	return nil
}

func (b *builder) attachSource(n *core.Node, values map[string]any) error {
	a := attrs(values)
	var err error
	switch n.Kind {
	case core.KindRasterSource:
		var t1, t2 core.File
		if t1, err = b.readFile(a, "t1"); err != nil {
			return err
		}
		if t2, err = b.readFile(a, "t2"); err != nil {
			return err
		}
		err = nodes.AttachRasterPair(n, t1, t2)
	case core.KindTimeSeriesSource:
		err = b.timeSeries(n, a)
	case core.KindDriverSource:
		var paths []string
		var changeMap core.File
		if paths, err = a.getStrings("files"); err != nil {
			return err
		}
		if changeMap, err = b.readFile(a, "change_map"); err != nil {
			return err
		}
		drivers := make([]core.File, len(paths))
		for i, p := range paths {
			if drivers[i], err = b.read(p); err != nil {
				return err
			}
		}
		err = nodes.AttachDrivers(n, drivers, changeMap)
	}
	if err != nil {
		return err
	}
	return a.checkUsed()
}

// timeSeries takes either an uploaded file or inline years and values.
func (b *builder) timeSeries(n *core.Node, a attrs) error {
	if _, ok := a["file"]; ok {
		f, err := b.readFile(a, "file")
		if err != nil {
			return err
		}
		b.loaded.Uploads = append(b.loaded.Uploads, Upload{Node: n, File: f})
		return nil
	}

	years, err := a.getFloats("years")
	if err != nil {
		return err
	}
	values, err := a.getFloats("values")
	if err != nil {
		return err
	}
	ts := core.TimeSeries{Values: values}
	for _, y := range years {
		if y != math.Trunc(y) {
			return fmt.Errorf("year %v is not an integer", y)
		}
		ts.Years = append(ts.Years, int(y))
	}
	return nodes.SetTimeSeries(n, ts)
}

func (b *builder) readFile(a attrs, name string) (core.File, error) {
	p, err := a.getString(name)
	if err != nil {
		return core.File{}, err
	}
	return b.read(p)
}

func (b *builder) read(p string) (core.File, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(b.baseDir, p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return core.File{}, err
	}
	return core.File{Name: filepath.Base(p), Data: data}, nil
}

func (b *builder) addLink(link *linkBlock) error {
	from, fromPort, err := b.portRef(link.From, core.Output)
	if err != nil {
		return fmt.Errorf("link from %q: %w", link.From, err)
	}
	to, toPort, err := b.portRef(link.To, core.Input)
	if err != nil {
		return fmt.Errorf("link to %q: %w", link.To, err)
	}
	if _, err := b.g.Connect(from, fromPort, to, toPort); err != nil {
		return fmt.Errorf("link %s -> %s: %w", link.From, link.To, err)
	}
	return nil
}

// portRef resolves "node.port", where port is an index or a port name. A
// bare node name means port 0.
func (b *builder) portRef(ref string, dir core.Direction) (*core.Node, int, error) {
	name, port := ref, ""
	if i := strings.LastIndex(ref, "."); i >= 0 {
		name, port = ref[:i], ref[i+1:]
	}
	n, ok := b.g.FindNode(name)
	if !ok {
		return nil, 0, fmt.Errorf("no node named %q", name)
	}
	if port == "" {
		return n, 0, nil
	}
	if i, err := strconv.Atoi(port); err == nil {
		return n, i, nil
	}

	ports := n.InputPorts
	if dir == core.Output {
		ports = n.OutputPorts
	}
	for i, p := range ports {
		if strings.EqualFold(p.Name, port) {
			return n, i, nil
		}
	}
	return nil, 0, fmt.Errorf("%s has no port named %q", n, port)
}

// attrs tracks which source attributes were consumed so typos are reported.
type attrs map[string]any

func (a attrs) take(name string) (any, error) {
	v, ok := a[name]
	if !ok {
		return nil, fmt.Errorf("missing attribute %q", name)
	}
	delete(a, name)
	return v, nil
}

func (a attrs) getString(name string) (string, error) {
	v, err := a.take(name)
	if err != nil {
		return "", err
	}
	s, err := asString(v)
	if err != nil {
		return "", fmt.Errorf("attribute %q: %w", name, err)
	}
	return s, nil
}

func (a attrs) getStrings(name string) ([]string, error) {
	v, err := a.take(name)
	if err != nil {
		return nil, err
	}
	s, err := asStrings(v)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	return s, nil
}

func (a attrs) getFloats(name string) ([]float64, error) {
	v, err := a.take(name)
	if err != nil {
		return nil, err
	}
	f, err := asFloats(v)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	return f, nil
}

func (a attrs) checkUsed() error {
	for name := range a {
		return fmt.Errorf("unknown attribute %q", name)
	}
	return nil
}
