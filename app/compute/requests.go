package compute

import (
	"fmt"

	"github.com/bvisness/landflow/app/core"
)

type TrendRequest struct {
	Years   []int     `json:"years"`
	Values  []float64 `json:"values"`
	Type    string    `json:"type"`
	Periods int       `json:"periods"`
}

type ArimaRequest struct {
	Data    []float64 `json:"data"`
	Periods int       `json:"periods"`
}

type ProjectRequest struct {
	Matrix    [][]float64 `json:"matrix"`
	YearsDiff int         `json:"years_diff"`
}

func ParseTimeSeries(f core.File) (Operation, Payload) {
	return OpParseTimeSeries, new(Multipart).AddFile("file", f)
}

func DeriveTransitionMatrix(pair core.RasterPair) (Operation, Payload) {
	return OpDeriveTransitionMatrix, new(Multipart).
		AddFile("file_t1", pair.T1).
		AddFile("file_t2", pair.T2)
}

func ProjectTransition(matrix [][]float64, horizon int) (Operation, Payload) {
	return OpProjectTransition, JSON{Body: ProjectRequest{Matrix: matrix, YearsDiff: horizon}}
}

func FitTrend(ts core.TimeSeries, curveFamily string, horizon int) (Operation, Payload) {
	return OpFitTrend, JSON{Body: TrendRequest{
		Years:   ts.Years,
		Values:  ts.Values,
		Type:    curveFamily,
		Periods: horizon,
	}}
}

func FitArima(ts core.TimeSeries, horizon int) (Operation, Payload) {
	return OpFitArima, JSON{Body: ArimaRequest{Data: ts.Values, Periods: horizon}}
}

type SpatialKind int

const (
	SpatialLogistic SpatialKind = iota
	SpatialEnsemble
)

// targetField is the multipart name of the binary change raster. The two
// endpoints disagree on it and each rejects the other's name.
func (k SpatialKind) targetField() string {
	if k == SpatialLogistic {
		return "change_map"
	}
	return "labels"
}

func (k SpatialKind) operation() Operation {
	if k == SpatialLogistic {
		return OpFitLogistic
	}
	return OpFitForest
}

func FitSpatial(kind SpatialKind, drivers core.DriverArray, target core.Raster) (Operation, Payload, error) {
	if len(drivers.Files) == 0 {
		return Operation{}, nil, fmt.Errorf("no driver rasters")
	}
	m := new(Multipart)
	for _, f := range drivers.Files {
		m.AddFile("drivers", f)
	}
	m.AddFile(kind.targetField(), target.File)
	return kind.operation(), m, nil
}
