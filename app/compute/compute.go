// Package compute is the boundary to the remote land-use compute service. It
// turns node inputs into named operations with a JSON or multipart payload
// and hands back the decoded response body. It never retries, caches, or
// interprets results.
package compute

import (
	"context"

	"github.com/bvisness/landflow/app/core"
)

// Service invokes one remote operation.
type Service interface {
	Invoke(ctx context.Context, op Operation, payload Payload) (*core.Result, error)
}

// Operation names a remote endpoint.
type Operation struct {
	Name string
	Path string

	// Enveloped operations answer {"status":"success","data":...}; the
	// adapter returns only the data member.
	Enveloped bool
}

func (o Operation) String() string {
	return o.Name
}

var (
	OpParseTimeSeries        = Operation{Name: "parse-time-series", Path: "/process/csv-data", Enveloped: true}
	OpDeriveTransitionMatrix = Operation{Name: "derive-transition-matrix", Path: "/process/markov-inputs", Enveloped: true}
	OpProjectTransition      = Operation{Name: "project-transition", Path: "/trend/markov"}
	OpFitTrend               = Operation{Name: "fit-trend", Path: "/trend/regression"}
	OpFitArima               = Operation{Name: "fit-arima", Path: "/trend/arima"}
	OpFitLogistic            = Operation{Name: "fit-spatial-logistic", Path: "/trend/logistic-spatial"}
	OpFitForest              = Operation{Name: "fit-spatial-ensemble", Path: "/trend/randomforest-spatial"}
)

// Payload is either JSON or *Multipart.
type Payload interface {
	payload()
}

// JSON is a request body serialized as application/json.
type JSON struct {
	Body any
}

func (JSON) payload() {}

type FilePart struct {
	Field string
	File  core.File
}

// Multipart is a bundle of named raw files plus scalar form fields. A field
// name may repeat.
type Multipart struct {
	Files  []FilePart
	Fields map[string]string
}

func (*Multipart) payload() {}

func (m *Multipart) AddFile(field string, f core.File) *Multipart {
	m.Files = append(m.Files, FilePart{Field: field, File: f})
	return m
}

// FieldNames lists the file field names in order, mostly for logs and tests.
func (m *Multipart) FieldNames() []string {
	names := make([]string, len(m.Files))
	for i, f := range m.Files {
		names[i] = f.Field
	}
	return names
}
