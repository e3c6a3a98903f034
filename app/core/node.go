package core

import (
	"fmt"
	"sync/atomic"
)

type Node struct {
	ID   int
	Kind Kind
	Name string

	InputPorts  []NodePort
	OutputPorts []NodePort

	Props Props

	// Labels is auxiliary context that travels with this node's result to
	// chart sinks (driver names for spatial transforms).
	Labels []string

	// Err is the failure recorded by the last run, if any.
	Err error

	// Sink state, written only by propagation.
	Received *Result
	Display  DisplayKind

	Graph *Graph

	spec    *KindSpec
	outputs []Value
	dirty   atomic.Bool
}

func (n *Node) String() string {
	return fmt.Sprintf("Node#%d(%s)", n.ID, n.Name)
}

func (n *Node) Spec() *KindSpec {
	if n.spec == nil {
		n.spec, _ = LookupKind(n.Kind)
	}
	return n.spec
}

func (n *Node) Class() Class {
	return n.Spec().Class
}

// Port returns the port at index i in the given direction.
func (n *Node) Port(dir Direction, i int) (NodePort, bool) {
	ports := n.InputPorts
	if dir == Output {
		ports = n.OutputPorts
	}
	if i < 0 || i >= len(ports) {
		return NodePort{}, false
	}
	return ports[i], true
}

// Output returns the cached value of an output slot.
func (n *Node) Output(port int) (Value, bool) {
	if port < 0 || port >= len(n.outputs) {
		panic(fmt.Errorf("node %s has no output port %d", n, port))
	}
	v := n.outputs[port]
	return v, v != nil
}

// SetOutput caches v on an output slot and marks the node dirty.
func (n *Node) SetOutput(port int, v Value) {
	if port < 0 || port >= len(n.outputs) {
		panic(fmt.Errorf("node %s has no output port %d", n, port))
	}
	n.outputs[port] = v
	n.MarkDirty()
}

// Result returns the transform result cached on output 0.
func (n *Node) Result() (*Result, bool) {
	if len(n.outputs) == 0 {
		return nil, false
	}
	r, ok := n.outputs[0].(*Result)
	return r, ok
}

func (n *Node) ClearResult() {
	for i := range n.outputs {
		n.outputs[i] = nil
	}
	n.MarkDirty()
}

// Receive stores a propagated result on a sink.
func (n *Node) Receive(r *Result, display DisplayKind, labels []string) {
	n.Received = r
	n.Display = display
	n.Labels = labels
	n.MarkDirty()
}

func (n *Node) MarkDirty() {
	n.dirty.Store(true)
}

func (n *Node) Dirty() bool {
	return n.dirty.Load()
}

// TakeDirty reports whether the node was dirty and clears the flag. Renderers
// call it once per frame.
func (n *Node) TakeDirty() bool {
	return n.dirty.Swap(false)
}
