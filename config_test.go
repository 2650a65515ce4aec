package stepline

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/stepline-ci/stepline/flags"
)

func parseConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var cfg *Config
	var cfgErr error
	app := &cli.App{
		Flags: flags.Flags,
		Action: func(ctx *cli.Context) error {
			cfg, cfgErr = NewConfig(ctx, log.New(), ctx.String(flags.Recipe.Name))
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"stepline"}, args...)))
	return cfg, cfgErr
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(t, "--recipe", "run_steps")
	require.NoError(t, err)

	assert.Equal(t, "run_steps", cfg.RecipeName)
	assert.Empty(t, cfg.FactoryProperties)
	assert.Empty(t, cfg.BuildProperties)
	assert.Empty(t, cfg.LogDir)
	assert.True(t, cfg.RunOnce)
	assert.Equal(t, time.Duration(0), cfg.RunInterval)
}

func TestNewConfigParsesProperties(t *testing.T) {
	cfg, err := parseConfig(t, "--recipe", "run_steps",
		"--factory-properties", `{"slave": "bot1"}`,
		"--build-properties", `{"revision": "abc"}`)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"slave": "bot1"}, cfg.FactoryProperties)
	assert.Equal(t, map[string]any{"revision": "abc"}, cfg.BuildProperties)
}

func TestNewConfigRejectsMalformedProperties(t *testing.T) {
	_, err := parseConfig(t, "--recipe", "run_steps",
		"--build-properties", `not json`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid build properties")
}

func TestNewConfigRunInterval(t *testing.T) {
	cfg, err := parseConfig(t, "--recipe", "run_steps", "--run-interval", "30m")
	require.NoError(t, err)
	assert.False(t, cfg.RunOnce)
	assert.Equal(t, 30*time.Minute, cfg.RunInterval)
}

func TestNewConfigResolvesPaths(t *testing.T) {
	cfg, err := parseConfig(t, "--recipe", "run_steps",
		"--logdir", "logs", "--workdir", "src")
	require.NoError(t, err)
	assert.True(t, len(cfg.LogDir) > len("logs"), "logdir should be absolute")
	assert.True(t, len(cfg.Workdir) > len("src"), "workdir should be absolute")
}
