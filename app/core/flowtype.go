package core

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PortType is the semantic tag carried by a port. It is checked when a wire
// is created and never while a graph runs.
type PortType int

const (
	PortAny PortType = iota
	PortRasterPair
	PortTimeSeries
	PortDriverArray
	PortRaster
	PortResult
)

func (t PortType) String() string {
	switch t {
	case PortAny:
		return "any"
	case PortRasterPair:
		return "raster-pair"
	case PortTimeSeries:
		return "time-series"
	case PortDriverArray:
		return "driver-array"
	case PortRaster:
		return "raster"
	case PortResult:
		return "result-object"
	default:
		return fmt.Sprintf("<UNKNOWN PORT TYPE %d>", int(t))
	}
}

// Accepts reports whether a value of type other may flow into a port of type t.
func (t PortType) Accepts(other PortType) bool {
	return t == PortAny || other == PortAny || t == other
}

type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

type NodePort struct {
	Name string
	Type PortType
}

// DisplayKind is the rendering hint a chart sink infers from the shape of
// the result it received. The zero value means no pattern matched.
type DisplayKind string

const (
	DisplayUnset           DisplayKind = ""
	DisplayStateTransition DisplayKind = "state-transition"
	DisplayTrend           DisplayKind = "trend"
	DisplaySpatial         DisplayKind = "spatial"
)

// Title returns a human-readable label, e.g. "State Transition".
func (k DisplayKind) Title() string {
	if k == DisplayUnset {
		return "Unknown"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(k), "-", " "))
}
