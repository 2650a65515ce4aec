package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "STEPLINE"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Recipe = &cli.StringFlag{
		Name:     "recipe",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("RECIPE"),
		Usage:    "Recipe to run (eg. 'run_steps' or 'gtest:example')",
	}
	FactoryProperties = &cli.StringFlag{
		Name:    "factory-properties",
		Value:   "",
		EnvVars: prefixEnvVars("FACTORY_PROPERTIES"),
		Usage:   "Factory properties as a JSON object",
	}
	BuildProperties = &cli.StringFlag{
		Name:    "build-properties",
		Value:   "",
		EnvVars: prefixEnvVars("BUILD_PROPERTIES"),
		Usage:   "Build properties as a JSON object; override factory properties",
	}
	RecipesConfig = &cli.StringFlag{
		Name:    "recipes-config",
		Value:   "",
		EnvVars: prefixEnvVars("RECIPES_CONFIG"),
		Usage:   "Path to recipe resolution config file (eg. 'recipes.yaml')",
	}
	Workdir = &cli.StringFlag{
		Name:    "workdir",
		Value:   "",
		EnvVars: prefixEnvVars("WORKDIR"),
		Usage:   "Working directory for step subprocesses",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "",
		EnvVars: prefixEnvVars("LOGDIR"),
		Usage:   "Directory to store per-run step logs. Empty disables file logging.",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between build runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log.level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "The lowest log level that will be output",
	}
)

var requiredFlags = []cli.Flag{
	Recipe,
}

var optionalFlags = []cli.Flag{
	FactoryProperties,
	BuildProperties,
	RecipesConfig,
	Workdir,
	LogDir,
	RunInterval,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
