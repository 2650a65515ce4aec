package stepline

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stepline-ci/stepline/flags"
	"github.com/stepline-ci/stepline/recipe"
)

// Config holds the application configuration
type Config struct {
	RecipeName        string
	FactoryProperties map[string]any
	BuildProperties   map[string]any
	RecipesConfig     string        // Path to the recipe resolution config, empty for defaults
	Workdir           string        // Working directory for step subprocesses
	LogDir            string        // Directory to store per-run step logs, empty disables
	RunInterval       time.Duration // Interval between build runs
	RunOnce           bool          // Indicates if the service should exit after one run
	Log               log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger, recipeName string) (*Config, error) {
	// Parse flags
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if recipeName == "" {
		return nil, errors.New("recipe is required")
	}

	factoryProps, err := recipe.ParsePropertiesJSON(ctx.String(flags.FactoryProperties.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid factory properties: %w", err)
	}
	buildProps, err := recipe.ParsePropertiesJSON(ctx.String(flags.BuildProperties.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid build properties: %w", err)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	recipesConfig := ctx.String(flags.RecipesConfig.Name)
	if recipesConfig != "" {
		recipesConfig, err = filepath.Abs(recipesConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for recipes config '%s': %w",
				ctx.String(flags.RecipesConfig.Name), err)
		}
	}

	workdir := ctx.String(flags.Workdir.Name)
	if workdir != "" {
		workdir, err = filepath.Abs(workdir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for workdir '%s': %w",
				ctx.String(flags.Workdir.Name), err)
		}
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir != "" {
		logDir, err = filepath.Abs(logDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w",
				ctx.String(flags.LogDir.Name), err)
		}
	}

	return &Config{
		RecipeName:        recipeName,
		FactoryProperties: factoryProps,
		BuildProperties:   buildProps,
		RecipesConfig:     recipesConfig,
		Workdir:           workdir,
		LogDir:            logDir,
		RunInterval:       runInterval,
		RunOnce:           runOnce,
		Log:               log,
	}, nil
}
