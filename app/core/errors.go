package core

import (
	"errors"
	"fmt"
)

// ErrPreconditionNotMet marks a node that was skipped because its inputs
// were not satisfied. It is never surfaced to the user as a failure.
var ErrPreconditionNotMet = errors.New("precondition not met")

type SkipReason string

const (
	// ReasonUnconnected means a required input port has no incoming wire.
	ReasonUnconnected SkipReason = "unconnected"
	// ReasonNotReady means the wire exists but the upstream slot is empty.
	ReasonNotReady SkipReason = "not-ready"
)

type PreconditionError struct {
	Node   string
	Port   int
	Reason SkipReason
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: input %d %s", e.Node, e.Port, e.Reason)
}

func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionNotMet
}

// ConfigError reports a node property that does not satisfy its schema.
type ConfigError struct {
	Node string
	Prop string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: property %q: %v", e.Node, e.Prop, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type UnknownKindError struct {
	Kind        string
	Suggestions []Kind
}

func (e *UnknownKindError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown node kind %q", e.Kind)
	}
	return fmt.Sprintf("unknown node kind %q (did you mean %q?)", e.Kind, e.Suggestions[0])
}
