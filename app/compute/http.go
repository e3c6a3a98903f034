package compute

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bvisness/landflow/app/core"
	"github.com/bvisness/landflow/app/ctxlog"
	"github.com/tidwall/gjson"
	"resty.dev/v3"
)

// HTTPService talks to the compute service over HTTP.
type HTTPService struct {
	client *resty.Client
}

var _ Service = &HTTPService{}

// NewHTTPService creates a service rooted at baseURL. A zero timeout means
// requests are bounded only by their context.
func NewHTTPService(baseURL string, timeout time.Duration) *HTTPService {
	client := resty.New().SetBaseURL(strings.TrimRight(baseURL, "/"))
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPService{client: client}
}

func (s *HTTPService) Close() error {
	return s.client.Close()
}

func (s *HTTPService) Invoke(ctx context.Context, op Operation, payload Payload) (*core.Result, error) {
	logger := ctxlog.FromContext(ctx).With("op", op.Name)

	req := s.client.R().SetContext(ctx)
	switch p := payload.(type) {
	case JSON:
		req.SetHeader("Content-Type", "application/json").SetBody(p.Body)
	case *Multipart:
		for _, part := range p.Files {
			req.SetMultipartField(part.Field, part.File.Name, "application/octet-stream", bytes.NewReader(part.File.Data))
		}
		if len(p.Fields) > 0 {
			req.SetMultipartFormData(p.Fields)
		}
		logger.Debug("Uploading files.", "fields", p.FieldNames())
	default:
		return nil, fmt.Errorf("%s: unsupported payload %T", op.Name, payload)
	}

	start := time.Now()
	resp, err := req.Post(op.Path)
	if err != nil {
		return nil, &TransportError{Op: op.Name, Err: err}
	}
	logger.Debug("Received response.", "status", resp.StatusCode(), "bytes", len(resp.Bytes()), "elapsed", time.Since(start))

	return DecodeResponse(op, resp.StatusCode(), resp.Bytes())
}

// DecodeResponse classifies a raw response. It is separate from Invoke so
// other transports can share the service's error conventions.
func DecodeResponse(op Operation, status int, body []byte) (*core.Result, error) {
	valid := gjson.ValidBytes(body)

	if status < 200 || status > 299 {
		msg := http.StatusText(status)
		if valid {
			if m := errorMessage(body); m != "" {
				msg = m
			}
		}
		return nil, &ServiceError{Op: op.Name, StatusCode: status, Message: msg}
	}

	if !valid {
		return nil, &DecodeError{Op: op.Name, Err: fmt.Errorf("response is not valid JSON")}
	}
	if gjson.GetBytes(body, "status").String() == "error" {
		msg := errorMessage(body)
		if msg == "" {
			msg = "unspecified error"
		}
		return nil, &ServiceError{Op: op.Name, StatusCode: status, Message: msg}
	}

	if op.Enveloped {
		data := gjson.GetBytes(body, "data")
		if !data.Exists() {
			return nil, &DecodeError{Op: op.Name, Err: fmt.Errorf("response has no data member")}
		}
		return core.NewResult([]byte(data.Raw)), nil
	}
	return core.NewResult(body), nil
}

func errorMessage(body []byte) string {
	for _, key := range []string{"message", "detail"} {
		v := gjson.GetBytes(body, key)
		if v.Exists() {
			if v.Type == gjson.String {
				return v.String()
			}
			return v.Raw
		}
	}
	return ""
}
