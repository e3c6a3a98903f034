package core

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Value is anything that can sit in a node's output slot.
type Value interface {
	PortType() PortType
}

// File is a raw file handle held in memory, as picked by the user.
type File struct {
	Name string
	Data []byte
}

func (f File) IsZero() bool {
	return f.Name == "" && len(f.Data) == 0
}

type RasterPair struct {
	T1, T2 File
}

func (RasterPair) PortType() PortType { return PortRasterPair }

type TimeSeries struct {
	Years  []int
	Values []float64
}

func (TimeSeries) PortType() PortType { return PortTimeSeries }

type DriverArray struct {
	Files []File

	// Labels are the human-readable driver names, aligned with Files.
	Labels []string
}

func (DriverArray) PortType() PortType { return PortDriverArray }

type Raster struct {
	File File
}

func (Raster) PortType() PortType { return PortRaster }

// Result is a decoded response body from the compute service. It is shared
// by reference between a producer and all of its sinks and must be treated
// as read-only once stored.
type Result struct {
	raw []byte
}

var _ Value = &Result{}

func NewResult(raw []byte) *Result {
	return &Result{raw: raw}
}

func (*Result) PortType() PortType { return PortResult }

// Get queries the result with a gjson path.
func (r *Result) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Has reports whether the top-level field is present.
func (r *Result) Has(field string) bool {
	return r.Get(gjson.Escape(field)).Exists()
}

func (r *Result) Raw() []byte {
	return r.raw
}

func (r *Result) String() string {
	return string(r.raw)
}

func (r *Result) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return []byte("null"), nil
	}
	return r.raw, nil
}

// Floats reads a numeric array at path.
func (r *Result) Floats(path string) ([]float64, error) {
	v := r.Get(path)
	if !v.IsArray() {
		return nil, fmt.Errorf("%s is not an array", path)
	}
	var res []float64
	for _, item := range v.Array() {
		if item.Type != gjson.Number {
			return nil, fmt.Errorf("%s contains a non-numeric value %s", path, item.Raw)
		}
		res = append(res, item.Float())
	}
	return res, nil
}

// Matrix reads a rectangular numeric matrix at path.
func (r *Result) Matrix(path string) ([][]float64, error) {
	v := r.Get(path)
	if !v.IsArray() {
		return nil, fmt.Errorf("%s is not an array", path)
	}
	rows := v.Array()
	res := make([][]float64, 0, len(rows))
	for i, row := range rows {
		if !row.IsArray() {
			return nil, fmt.Errorf("%s row %d is not an array", path, i)
		}
		var cols []float64
		for _, cell := range row.Array() {
			if cell.Type != gjson.Number {
				return nil, fmt.Errorf("%s row %d contains a non-numeric value %s", path, i, cell.Raw)
			}
			cols = append(cols, cell.Float())
		}
		if len(res) > 0 && len(cols) != len(res[0]) {
			return nil, fmt.Errorf("%s is not rectangular: row %d has %d columns, expected %d", path, i, len(cols), len(res[0]))
		}
		res = append(res, cols)
	}
	return res, nil
}

// TimeSeriesFromResult converts a parsed table ({years, values}) into a
// TimeSeries.
func TimeSeriesFromResult(r *Result) (TimeSeries, error) {
	years := r.Get("years")
	if !years.IsArray() {
		return TimeSeries{}, fmt.Errorf("parsed table has no years")
	}
	values, err := r.Floats("values")
	if err != nil {
		return TimeSeries{}, err
	}

	ts := TimeSeries{Values: values}
	for _, y := range years.Array() {
		ts.Years = append(ts.Years, int(y.Int()))
	}
	if err := ts.Validate(); err != nil {
		return TimeSeries{}, err
	}
	return ts, nil
}

func (ts TimeSeries) Validate() error {
	if len(ts.Years) == 0 {
		return fmt.Errorf("time series is empty")
	}
	if len(ts.Years) != len(ts.Values) {
		return fmt.Errorf("time series has %d periods but %d values", len(ts.Years), len(ts.Values))
	}
	return nil
}
