package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	stepline "github.com/stepline-ci/stepline"
	"github.com/stepline-ci/stepline/flags"
	"github.com/stepline-ci/stepline/service"
)

var (
	Version   = "v1.3.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "stepline"
	app.Usage = "Annotated build step runner"
	app.Description = "stepline resolves a recipe and runs its steps, reporting them as annotated build steps"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			// Check for typed errors
			if stepline.IsSetupError(err) {
				// For setup errors, use exit code 2
				cli.HandleExitCoder(cli.Exit(err.Error(), 2))
			} else if stepline.IsStepFailureError(err) {
				// For step failures, use exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			} else {
				// For other unspecified errors, default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			}
		}
	}

	// Start telemetry
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server
	svc := service.New()
	svc.Start(ctx)
	defer svc.Shutdown()

	// Start CLI
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context) error {
	lvl, err := log.LvlFromString(ctx.String(flags.LogLevel.Name))
	if err != nil {
		lvl = log.LevelInfo
	}
	// Step output owns stdout; logs go to stderr.
	logger := log.NewLogger(slog.NewJSONHandler(
		os.Stderr, &slog.HandlerOptions{Level: lvl}))
	log.SetDefault(logger)

	cfg, err := stepline.NewConfig(ctx, logger, ctx.String(flags.Recipe.Name))
	if err != nil {
		// Wrap in SetupError to signal this should exit with code 2
		return stepline.NewSetupError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	appCtx, cancel := context.WithCancelCause(ctx.Context)
	defer cancel(nil)

	svc, err := stepline.New(appCtx, cfg, Version, cancel)
	if err != nil {
		// Wrap in SetupError to signal this should exit with code 2
		return stepline.NewSetupError(fmt.Errorf("failed to create stepline: %w", err))
	}

	if err := svc.Start(appCtx); err != nil {
		return err
	}

	// Block until the run-once shutdown callback fires, the periodic
	// service is interrupted, or the CLI context is canceled.
	<-appCtx.Done()
	if stopErr := svc.Stop(context.Background()); stopErr != nil {
		cfg.Log.Error("Failed to stop stepline", "error", stopErr)
	}

	if cause := context.Cause(appCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}
