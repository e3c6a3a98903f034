package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bvisness/landflow/app"
	"github.com/bvisness/landflow/app/core"
	"github.com/bvisness/landflow/app/ctxlog"
)

func main() {
	// Use a minimal logger until settings are loaded.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if exitErr, ok := err.(*ExitError); ok {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return &ExitError{Code: 2}
	}

	switch args[0] {
	case "run":
		cfg, shouldExit, err := parseRun(args[1:], out)
		if err != nil || shouldExit {
			return err
		}
		logger := app.NewLogger(cfg.Settings.LogLevel, cfg.Settings.LogFormat, errOut)
		ctx = ctxlog.WithLogger(ctx, logger)

		report, err := app.HeadlessRun(ctx, cfg.GraphPath, cfg.Settings, out)
		if err != nil {
			return err
		}
		if len(report.Failed()) > 0 {
			return &ExitError{Code: 1, Message: fmt.Sprintf("%d node(s) failed", len(report.Failed()))}
		}
		return nil
	case "kinds":
		return listKinds(args[1:], out)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q\n%s", args[0], usage)}
	}
}

// listKinds prints every node kind, or the kinds matching a fuzzy query.
func listKinds(args []string, out io.Writer) error {
	kinds := core.Kinds()
	if len(args) > 0 {
		kinds = core.FindKinds(args[0])
		if len(kinds) == 0 {
			return &ExitError{Code: 1, Message: fmt.Sprintf("no node kind matches %q", args[0])}
		}
	}
	for _, kind := range kinds {
		spec, _ := core.LookupKind(kind)
		fmt.Fprintf(out, "%-22s %s\n", kind, spec.Title)
	}
	return nil
}
