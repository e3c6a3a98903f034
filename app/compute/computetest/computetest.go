// Package computetest provides a scripted in-memory compute service that
// records every call it receives.
package computetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bvisness/landflow/app/compute"
	"github.com/bvisness/landflow/app/core"
	"github.com/tidwall/gjson"
)

type Call struct {
	Op      compute.Operation
	Payload compute.Payload
}

// Body returns the JSON payload of the call for gjson assertions. It is empty
// for multipart calls.
func (c Call) Body() gjson.Result {
	p, ok := c.Payload.(compute.JSON)
	if !ok {
		return gjson.Result{}
	}
	raw, err := json.Marshal(p.Body)
	if err != nil {
		panic(err)
	}
	return gjson.ParseBytes(raw)
}

// Multipart returns the multipart payload of the call, or nil.
func (c Call) Multipart() *compute.Multipart {
	m, _ := c.Payload.(*compute.Multipart)
	return m
}

type response struct {
	status int
	body   []byte
	err    error
}

type Service struct {
	mu        sync.Mutex
	responses map[string]response
	calls     []Call
}

var _ compute.Service = &Service{}

func New() *Service {
	return &Service{responses: make(map[string]response)}
}

// On scripts a 200 response with the given body. The body goes through the
// same decoding as the HTTP service, so envelopes and {"status":"error"}
// bodies behave as they would over the wire.
func (s *Service) On(op compute.Operation, body string) *Service {
	return s.OnStatus(op, 200, body)
}

func (s *Service) OnStatus(op compute.Operation, status int, body string) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[op.Name] = response{status: status, body: []byte(body)}
	return s
}

// Fail scripts a transport failure.
func (s *Service) Fail(op compute.Operation, err error) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[op.Name] = response{err: err}
	return s
}

func (s *Service) Invoke(ctx context.Context, op compute.Operation, payload compute.Payload) (*core.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Op: op, Payload: payload})
	resp, ok := s.responses[op.Name]
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &compute.TransportError{Op: op.Name, Err: err}
	}
	if !ok {
		return nil, &compute.ServiceError{Op: op.Name, Message: fmt.Sprintf("no response scripted for %s", op.Name)}
	}
	if resp.err != nil {
		return nil, &compute.TransportError{Op: op.Name, Err: resp.err}
	}
	return compute.DecodeResponse(op, resp.status, resp.body)
}

func (s *Service) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Service) CallsTo(op compute.Operation) []Call {
	var res []Call
	for _, c := range s.Calls() {
		if c.Op.Name == op.Name {
			res = append(res, c)
		}
	}
	return res
}
