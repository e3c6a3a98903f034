package core

import (
	"fmt"
	"math"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

type PropType int

const (
	PropInt PropType = iota
	PropString
)

// PropSpec describes one configuration property of a node kind.
type PropSpec struct {
	Name    string
	Type    PropType
	Default any

	// Allowed restricts string properties to a discrete set.
	Allowed []string

	// Rule is an expr boolean expression over `value`, e.g. "value > 0".
	Rule string

	program *vm.Program
}

func (s *PropSpec) compile() (*vm.Program, error) {
	if s.Rule == "" {
		return nil, nil
	}
	program, err := expr.Compile(s.Rule, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("property %q: bad rule %q: %w", s.Name, s.Rule, err)
	}
	return program, nil
}

// Normalize converts v to the property's Go type and checks it against the
// allowed set and rule.
func (s *PropSpec) Normalize(v any) (any, error) {
	var norm any
	switch s.Type {
	case PropInt:
		i, err := toInt(v)
		if err != nil {
			return nil, err
		}
		norm = i
	case PropString:
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", v)
		}
		if len(s.Allowed) > 0 && !slices.Contains(s.Allowed, str) {
			return nil, fmt.Errorf("%q is not one of %q", str, s.Allowed)
		}
		norm = str
	}

	if s.program != nil {
		out, err := expr.Run(s.program, map[string]any{"value": norm})
		if err != nil {
			return nil, fmt.Errorf("evaluating %q: %w", s.Rule, err)
		}
		if ok, _ := out.(bool); !ok {
			return nil, fmt.Errorf("%v does not satisfy %q", norm, s.Rule)
		}
	}
	return norm, nil
}

func toInt(v any) (int, error) {
	switch v := v.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected an integer, got %v", v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

// Props is a node's configuration, keyed by property name.
type Props map[string]any

func (p Props) Int(name string) (int, error) {
	v, ok := p[name]
	if !ok {
		return 0, fmt.Errorf("missing property %q", name)
	}
	return toInt(v)
}

func (p Props) String(name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", fmt.Errorf("missing property %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("property %q is a %T, not a string", name, v)
	}
	return s, nil
}

// SetProp validates and stores a property value.
func (n *Node) SetProp(name string, v any) error {
	spec := n.Spec().Prop(name)
	if spec == nil {
		return &ConfigError{Node: n.String(), Prop: name, Err: fmt.Errorf("%s has no such property", n.Kind)}
	}
	norm, err := spec.Normalize(v)
	if err != nil {
		return &ConfigError{Node: n.String(), Prop: name, Err: err}
	}
	n.Props[name] = norm
	return nil
}

// Validate checks every property against the node's schema. Properties can
// be edited directly on Props, so the orchestrator validates before every
// invocation.
func (n *Node) Validate() error {
	for i := range n.Spec().Props {
		spec := &n.Spec().Props[i]
		v, ok := n.Props[spec.Name]
		if !ok {
			return &ConfigError{Node: n.String(), Prop: spec.Name, Err: fmt.Errorf("missing")}
		}
		if _, err := spec.Normalize(v); err != nil {
			return &ConfigError{Node: n.String(), Prop: spec.Name, Err: err}
		}
	}
	return nil
}
