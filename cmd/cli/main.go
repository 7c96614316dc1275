package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/envgate/internal/app"
	"github.com/vk/envgate/internal/cli"
)

// Exit codes. Resolution and manifest failures are distinguishable from
// component execution failures so callers can script around them.
const (
	exitOK         = 0
	exitRunFailed  = 1
	exitUsage      = 2
	exitConfigFail = 3
)

// main is the entrypoint for the envgate binary.
func main() {
	// Minimal logger until the app configures the real one.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	os.Exit(run(os.Stdout, os.Stderr, os.Args[1:]))
}

// run encapsulates the main application logic so tests can drive it without
// process exit side effects.
func run(outW, errW io.Writer, args []string) (code int) {
	// The app panics on programmer errors (a broken module registration);
	// recover here to give the user a clean message instead of a stack trace.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(errW, "A critical startup error occurred: %v\n", r)
			code = exitRunFailed
		}
	}()

	appConfig, shouldExit, err := cli.Parse(args, errW)
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(errW, exitErr.Message)
			return exitErr.Code
		}
		fmt.Fprintln(errW, err)
		return exitUsage
	}
	if shouldExit {
		return exitOK
	}

	envgateApp := app.NewApp(outW, errW, appConfig)

	if err := envgateApp.Run(context.Background()); err != nil {
		var configErr *app.ConfigError
		if errors.As(err, &configErr) {
			fmt.Fprintln(errW, configErr.Error())
			return exitConfigFail
		}

		var failedErr *app.ComponentsFailedError
		if errors.As(err, &failedErr) {
			// The summary already lists the failures; just signal them.
			return exitRunFailed
		}

		fmt.Fprintln(errW, err)
		return exitRunFailed
	}

	return exitOK
}
