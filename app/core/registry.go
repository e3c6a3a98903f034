package core

import (
	"sort"
	"strings"

	"github.com/bvisness/landflow/util"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Kind tags a node variant. The set is closed: every kind is declared in
// kindSpecs below and nowhere else.
type Kind string

const (
	KindRasterSource     Kind = "input/raster"
	KindTimeSeriesSource Kind = "input/csv"
	KindDriverSource     Kind = "input/drivers"
	KindRegression       Kind = "process/regression"
	KindArima            Kind = "process/arima"
	KindMarkov           Kind = "process/markov"
	KindLogistic         Kind = "process/logistic"
	KindRandomForest     Kind = "process/randomforest"
	KindChart            Kind = "output/chart"
	KindTable            Kind = "output/table"
)

type Class int

const (
	ClassSource Class = iota
	ClassTransform
	ClassSink
)

// Group is the run group a transform belongs to. Groups run in the order of
// RunGroups.
type Group int

const (
	GroupNone Group = iota
	GroupTimeSeries
	GroupStateTransition
	GroupSpatial
)

var RunGroups = []Group{GroupTimeSeries, GroupStateTransition, GroupSpatial}

func (g Group) String() string {
	switch g {
	case GroupTimeSeries:
		return "time-series"
	case GroupStateTransition:
		return "state-transition"
	case GroupSpatial:
		return "spatial"
	default:
		return "none"
	}
}

type KindSpec struct {
	Kind    Kind
	Title   string
	Class   Class
	Group   Group
	Inputs  []NodePort
	Outputs []NodePort
	Props   []PropSpec
}

func (s *KindSpec) Prop(name string) *PropSpec {
	for i := range s.Props {
		if s.Props[i].Name == name {
			return &s.Props[i]
		}
	}
	return nil
}

var horizon = func(def int) PropSpec {
	return PropSpec{Name: "horizon", Type: PropInt, Default: def, Rule: "value > 0"}
}

var resultIn = []NodePort{{Name: "Data", Type: PortResult}}
var resultOut = []NodePort{{Name: "Result", Type: PortResult}}
var spatialIn = []NodePort{
	{Name: "Drivers", Type: PortDriverArray},
	{Name: "Change Map", Type: PortRaster},
}

var kindSpecs = []*KindSpec{
	{
		Kind:    KindRasterSource,
		Title:   "Input: Raster Maps",
		Class:   ClassSource,
		Outputs: []NodePort{{Name: "T1/T2 Maps", Type: PortRasterPair}},
	},
	{
		Kind:    KindTimeSeriesSource,
		Title:   "Input: CSV Data",
		Class:   ClassSource,
		Outputs: []NodePort{{Name: "CSV Data", Type: PortTimeSeries}},
	},
	{
		Kind:  KindDriverSource,
		Title: "Input: Spatial Drivers",
		Class: ClassSource,
		Outputs: []NodePort{
			{Name: "Drivers", Type: PortDriverArray},
			{Name: "Change Map", Type: PortRaster},
		},
	},
	{
		Kind:    KindRegression,
		Title:   "Process: Regression",
		Class:   ClassTransform,
		Group:   GroupTimeSeries,
		Inputs:  []NodePort{{Name: "CSV Data", Type: PortTimeSeries}},
		Outputs: resultOut,
		Props: []PropSpec{
			{Name: "curve_family", Type: PropString, Default: "linear", Allowed: []string{"linear", "exponential"}},
			horizon(5),
		},
	},
	{
		Kind:    KindArima,
		Title:   "Process: ARIMA",
		Class:   ClassTransform,
		Group:   GroupTimeSeries,
		Inputs:  []NodePort{{Name: "CSV Data", Type: PortTimeSeries}},
		Outputs: resultOut,
		Props:   []PropSpec{horizon(5)},
	},
	{
		Kind:    KindMarkov,
		Title:   "Process: Markov Chain",
		Class:   ClassTransform,
		Group:   GroupStateTransition,
		Inputs:  []NodePort{{Name: "T1/T2 Maps", Type: PortRasterPair}},
		Outputs: resultOut,
		Props:   []PropSpec{horizon(10)},
	},
	{
		Kind:    KindLogistic,
		Title:   "Process: Logistic",
		Class:   ClassTransform,
		Group:   GroupSpatial,
		Inputs:  spatialIn,
		Outputs: resultOut,
	},
	{
		Kind:    KindRandomForest,
		Title:   "Process: Random Forest",
		Class:   ClassTransform,
		Group:   GroupSpatial,
		Inputs:  spatialIn,
		Outputs: resultOut,
	},
	{
		Kind:   KindChart,
		Title:  "Output: Chart Viz",
		Class:  ClassSink,
		Inputs: resultIn,
	},
	{
		Kind:   KindTable,
		Title:  "Output: Data Table",
		Class:  ClassSink,
		Inputs: resultIn,
	},
}

var registry = make(map[Kind]*KindSpec)

func init() {
	for _, spec := range kindSpecs {
		for i := range spec.Props {
			p := &spec.Props[i]
			p.program = util.Must1(p.compile())
		}
		registry[spec.Kind] = spec
	}
}

func LookupKind(kind Kind) (*KindSpec, bool) {
	spec, ok := registry[kind]
	return spec, ok
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	return util.Map(kindSpecs, func(s *KindSpec) Kind { return s.Kind })
}

// FindKinds ranks kinds by how closely they match query, best first.
func FindKinds(query string) []Kind {
	targets := util.Map(Kinds(), func(k Kind) string { return string(k) })
	ranks := fuzzy.RankFindNormalizedFold(query, targets)
	sort.Sort(ranks)
	return util.Map(ranks, func(r fuzzy.Rank) Kind { return Kind(r.Target) })
}

// ParseKind resolves a kind tag, suggesting close matches when it is unknown.
func ParseKind(s string) (Kind, error) {
	if _, ok := registry[Kind(s)]; ok {
		return Kind(s), nil
	}
	return "", &UnknownKindError{Kind: s, Suggestions: suggestKinds(s)}
}

// maxTypoDistance bounds how far a misspelled kind may be from a suggestion.
const maxTypoDistance = 3

// suggestKinds prefers subsequence matches and falls back to edit distance,
// which catches typos such as "process/markow".
func suggestKinds(s string) []Kind {
	if found := FindKinds(s); len(found) > 0 {
		return found
	}
	s = strings.ToLower(s)
	distance := make(map[Kind]int)
	var res []Kind
	for _, k := range Kinds() {
		if d := fuzzy.LevenshteinDistance(s, string(k)); d <= maxTypoDistance {
			distance[k] = d
			res = append(res, k)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return distance[res[i]] < distance[res[j]] })
	return res
}

// NewNode allocates a node of the given kind with default properties. The
// node has no ID until it is added to a graph.
func NewNode(kind Kind, name string) (*Node, error) {
	spec, ok := LookupKind(kind)
	if !ok {
		return nil, &UnknownKindError{Kind: string(kind), Suggestions: suggestKinds(string(kind))}
	}

	n := &Node{
		Kind:        kind,
		Name:        util.Tern(name != "", name, spec.Title),
		InputPorts:  append([]NodePort(nil), spec.Inputs...),
		OutputPorts: append([]NodePort(nil), spec.Outputs...),
		Props:       make(Props, len(spec.Props)),
		spec:        spec,
	}
	for _, p := range spec.Props {
		n.Props[p.Name] = p.Default
	}
	n.outputs = make([]Value, len(spec.Outputs))
	return n, nil
}
