package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/bvisness/landflow/app/notify"
	"github.com/bvisness/landflow/util"
)

type Settings struct {
	ServiceURL        string   `json:"service_url"`
	RequestTimeout    Duration `json:"request_timeout"`
	Workers           int      `json:"workers"`
	LogLevel          string   `json:"log_level"`
	LogFormat         string   `json:"log_format"`
	RendererURL       string   `json:"renderer_url"`
	RendererNamespace string   `json:"renderer_namespace"`
	RendererTimeout   Duration `json:"renderer_timeout"`
}

const maxWorkers = 64

func DefaultSettings() *Settings {
	return &Settings{
		ServiceURL:        "http://localhost:8000",
		RequestTimeout:    Duration(2 * time.Minute),
		Workers:           1,
		LogLevel:          "info",
		LogFormat:         "text",
		RendererNamespace: "/",
		RendererTimeout:   Duration(notify.DefaultConnectTimeout),
	}
}

// LoadSettings reads settings from a JSON file over the defaults. A missing
// file is not an error.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// Validate normalizes the settings and rejects values nothing can use.
// Out-of-range numbers are clamped rather than rejected.
func (s *Settings) Validate() error {
	s.ServiceURL = strings.TrimSpace(s.ServiceURL)
	if s.ServiceURL == "" {
		return fmt.Errorf("service_url is required")
	}
	s.Workers = util.Clamp(s.Workers, 1, maxWorkers)
	s.RequestTimeout = util.Max(s.RequestTimeout, 0)
	s.RendererTimeout = util.Max(s.RendererTimeout, 0)

	s.LogLevel = strings.ToLower(s.LogLevel)
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q: must be 'debug', 'info', 'warn', or 'error'", s.LogLevel)
	}
	s.LogFormat = strings.ToLower(s.LogFormat)
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return fmt.Errorf("invalid log_format %q: must be 'text' or 'json'", s.LogFormat)
	}
	if s.RendererNamespace == "" {
		s.RendererNamespace = "/"
	}
	return nil
}

func SaveSettings(path string, s *Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Duration is a time.Duration written as a Go duration string ("30s") in
// JSON. Bare numbers are read as seconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case float64:
		*d = Duration(v * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}
