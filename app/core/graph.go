package core

import (
	"fmt"
	"slices"
	"sync"
)

type Wire struct {
	StartNode, EndNode *Node
	StartPort, EndPort int
}

func (w *Wire) Type() PortType {
	return w.StartNode.OutputPorts[w.StartPort].Type
}

func (w *Wire) String() string {
	return fmt.Sprintf("%s.%d -> %s.%d", w.StartNode, w.StartPort, w.EndNode, w.EndPort)
}

// Graph is a set of nodes and the wires between them. It must be acyclic;
// the orchestrator makes a single pass and does not detect cycles.
type Graph struct {
	Nodes      []*Node
	Wires      []*Wire
	NextNodeID int

	mu sync.Mutex
}

func NewGraph() *Graph {
	return &Graph{
		Nodes: []*Node{},
		Wires: []*Wire{},
	}
}

func (g *Graph) AddNode(n *Node) {
	g.NextNodeID++
	n.ID = g.NextNodeID
	n.Graph = g
	g.Nodes = append(g.Nodes, n)
}

// Add creates a node of the given kind and adds it to the graph.
func (g *Graph) Add(kind Kind, name string) (*Node, error) {
	n, err := NewNode(kind, name)
	if err != nil {
		return nil, err
	}
	g.AddNode(n)
	return n, nil
}

func (g *Graph) DeleteNode(id int) {
	// Sinks fed by the deleted node keep their last result; transforms lose
	// their input and so their output is no longer current.
	for _, wire := range g.Wires {
		if wire.StartNode.ID == id && wire.EndNode.Class() == ClassTransform {
			wire.EndNode.ClearResult()
		}
	}

	g.Nodes = slices.DeleteFunc(g.Nodes, func(node *Node) bool { return node.ID == id })
	g.Wires = slices.DeleteFunc(g.Wires, func(wire *Wire) bool { return wire.StartNode.ID == id || wire.EndNode.ID == id })
}

func (g *Graph) GetNode(id int) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// FindNode looks a node up by name.
func (g *Graph) FindNode(name string) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// Connect wires an output port to an input port. An input accepts at most
// one wire; outputs may fan out.
func (g *Graph) Connect(from *Node, fromPort int, to *Node, toPort int) (*Wire, error) {
	out, ok := from.Port(Output, fromPort)
	if !ok {
		return nil, fmt.Errorf("%s has no output port %d", from, fromPort)
	}
	in, ok := to.Port(Input, toPort)
	if !ok {
		return nil, fmt.Errorf("%s has no input port %d", to, toPort)
	}
	if from == to {
		return nil, fmt.Errorf("cannot wire %s to itself", from)
	}
	if !in.Type.Accepts(out.Type) {
		return nil, fmt.Errorf("cannot wire %s output %q (%s) to %s input %q (%s)", from, out.Name, out.Type, to, in.Name, in.Type)
	}
	if existing, ok := g.InputWire(to, toPort); ok {
		return nil, fmt.Errorf("%s input %d is already wired from %s", to, toPort, existing.StartNode)
	}

	w := &Wire{StartNode: from, StartPort: fromPort, EndNode: to, EndPort: toPort}
	g.Wires = append(g.Wires, w)
	return w, nil
}

func (g *Graph) InputWire(n *Node, port int) (*Wire, bool) {
	for _, wire := range g.Wires {
		if wire.EndNode == n && wire.EndPort == port {
			return wire, true
		}
	}
	return nil, false
}

func (g *Graph) OutputWires(n *Node, port int) []*Wire {
	var res []*Wire
	for _, wire := range g.Wires {
		if wire.StartNode == n && wire.StartPort == port {
			res = append(res, wire)
		}
	}
	return res
}

// InputValue resolves the value flowing into an input port. It returns a
// PreconditionError when the port is unwired or the upstream slot is empty.
func (g *Graph) InputValue(n *Node, port int) (Value, error) {
	wire, ok := g.InputWire(n, port)
	if !ok {
		return nil, &PreconditionError{Node: n.String(), Port: port, Reason: ReasonUnconnected}
	}
	v, ok := wire.StartNode.Output(wire.StartPort)
	if !ok {
		return nil, &PreconditionError{Node: n.String(), Port: port, Reason: ReasonNotReady}
	}
	return v, nil
}

// NodesInGroup returns the transforms of one run group in graph order.
func (g *Graph) NodesInGroup(group Group) []*Node {
	var res []*Node
	for _, n := range g.Nodes {
		if n.Class() == ClassTransform && n.Spec().Group == group {
			res = append(res, n)
		}
	}
	return res
}

// Locked runs f while holding the graph's write lock. Only needed when
// several nodes of a group execute concurrently.
func (g *Graph) Locked(f func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f()
}
