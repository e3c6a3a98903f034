package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/bvisness/landflow/app"
)

const usage = `
landflow - run land-use workflow graphs against a compute service.

Usage:
  landflow run [options] GRAPH.hcl
  landflow kinds [QUERY]

Run "landflow run -h" for run options.
`

// ExitError carries the process exit code for a failure.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

type runConfig struct {
	GraphPath string
	Settings  *app.Settings
}

// parseRun reads settings from the optional settings file, then applies
// flags on top. The boolean reports a clean exit (help was printed).
func parseRun(args []string, output io.Writer) (*runConfig, bool, error) {
	flagSet := flag.NewFlagSet("landflow run", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Usage:
  landflow run [options] GRAPH.hcl

Options:
`)
		flagSet.PrintDefaults()
	}

	settingsFlag := flagSet.String("settings", "settings.json", "Path to the settings file. A missing file means defaults.")
	serviceFlag := flagSet.String("service", "", "Base URL of the compute service.")
	timeoutFlag := flagSet.Duration("timeout", 0, "Per-request timeout, e.g. 30s. 0 keeps the settings value.")
	workersFlag := flagSet.Int("workers", 0, "Nodes of one group to run at once. 0 keeps the settings value.")
	logLevelFlag := flagSet.String("log-level", "", "Logging level: 'debug', 'info', 'warn', 'error'.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format: 'text' or 'json'.")
	rendererFlag := flagSet.String("renderer", "", "socket.io URL of a renderer to push node events to.")
	rendererTimeoutFlag := flagSet.Duration("renderer-timeout", 0, "How long to wait for the renderer to accept a connection. 0 keeps the settings value.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return nil, false, &ExitError{Code: 2, Message: "expected exactly one graph file"}
	}

	s, err := app.LoadSettings(*settingsFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if *serviceFlag != "" {
		s.ServiceURL = *serviceFlag
	}
	if *timeoutFlag > 0 {
		s.RequestTimeout = app.Duration(*timeoutFlag)
	}
	if *workersFlag > 0 {
		s.Workers = *workersFlag
	}
	if *logLevelFlag != "" {
		s.LogLevel = *logLevelFlag
	}
	if *logFormatFlag != "" {
		s.LogFormat = *logFormatFlag
	}
	if *rendererFlag != "" {
		s.RendererURL = *rendererFlag
	}
	if *rendererTimeoutFlag > 0 {
		s.RendererTimeout = app.Duration(*rendererTimeoutFlag)
	}
	if err := s.Validate(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return &runConfig{GraphPath: flagSet.Arg(0), Settings: s}, false, nil
}
