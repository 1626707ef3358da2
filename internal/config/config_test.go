package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/verso/internal/app"
	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/logging"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, c *Config)
	}{
		{
			name:  "defaults",
			setup: func(*viper.Viper) {},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "pages", c.Paths.Pages)
				assert.Equal(t, "layouts", c.Paths.Layouts)
				assert.Equal(t, "partials", c.Paths.Partials)
				assert.Equal(t, "dist", c.Paths.Output)
				assert.Equal(t, "layout", c.Render.LayoutKey)
				assert.Equal(t, "info", c.Log.Level)
				assert.Equal(t, 300*time.Millisecond, c.Watch.Debounce)
			},
		},
		{
			name: "render settings",
			setup: func(v *viper.Viper) {
				v.Set("render.trim", true)
				v.Set("render.preserve_whitespace", true)
				v.Set("render.handlers", []string{"onPublish"})
				v.Set("render.engine", "md")
				v.Set("render.layout_regex", `\{\{\s*content\s*\}\}`)
				v.Set("watch.debounce", "1s")
			},
			check: func(t *testing.T, c *Config) {
				assert.True(t, c.Render.Trim)
				assert.True(t, c.Render.PreserveWhitespace)
				assert.Equal(t, []string{"onPublish"}, c.Render.Handlers)
				assert.Equal(t, "md", c.Render.Engine)
				require.NotNil(t, c.layoutRegex)
				assert.True(t, c.layoutRegex.MatchString("{{ content }}"))
				assert.Equal(t, time.Second, c.Watch.Debounce)
			},
		},
		{
			name: "engine false disables the default engine",
			setup: func(v *viper.Viper) {
				v.Set("render.engine", false)
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "", c.Render.Engine)
			},
		},
		{
			name: "invalid layout regex",
			setup: func(v *viper.Viper) {
				v.Set("render.layout_regex", "(")
			},
			expectError: true,
		},
		{
			name: "sync with async helpers",
			setup: func(v *viper.Viper) {
				v.Set("render.sync", true)
				v.Set("render.async_helpers", true)
			},
			expectError: true,
		},
		{
			name: "path traversal",
			setup: func(v *viper.Viper) {
				v.Set("paths.output", "../outside")
			},
			expectError: true,
		},
		{
			name: "unknown log level",
			setup: func(v *viper.Viper) {
				v.Set("log.level", "loud")
			},
			expectError: true,
		},
		{
			name: "unknown log format",
			setup: func(v *viper.Viper) {
				v.Set("log.format", "xml")
			},
			expectError: true,
		},
		{
			name: "log file traversal",
			setup: func(v *viper.Viper) {
				v.Set("log.file", "../verso.log")
			},
			expectError: true,
		},
		{
			name: "log file",
			setup: func(v *viper.Viper) {
				v.Set("log.file", "logs/verso.log")
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "logs/verso.log", c.Log.File)
			},
		},
		{
			name: "invalid type",
			setup: func(v *viper.Viper) {
				v.Set("watch.debounce", "soon")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			config, err := LoadFrom(v)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			tt.check(t, config)
		})
	}
}

func TestLoadValidationError(t *testing.T) {
	v := viper.New()
	v.Set("log.level", "loud")

	_, err := LoadFrom(v)
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
	assert.ErrorContains(t, err, "invalid configuration: log config")
}

func TestLoadGlobal(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("paths.pages", "content")

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "content", config.Paths.Pages)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".verso.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
render:
  engine: false
  layout_history: true
paths:
  output: public
log:
  format: json
`), 0o644))
	t.Setenv("VERSO_PATHS_PAGES", "site")

	v := viper.New()
	v.SetConfigFile(file)
	require.NoError(t, BindEnv(v))
	require.NoError(t, v.ReadInConfig())

	config, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "", config.Render.Engine)
	assert.True(t, config.Render.LayoutHistory)
	assert.Equal(t, "public", config.Paths.Output)
	assert.Equal(t, "site", config.Paths.Pages)
	assert.Equal(t, "json", config.Log.Format)
}

func TestToOptions(t *testing.T) {
	v := viper.New()
	v.Set("render.trim", true)
	v.Set("render.layout_tag", "<!-- body -->")
	v.Set("render.handlers", []string{"onPublish"})
	config, err := LoadFrom(v)
	require.NoError(t, err)

	a, err := app.New(config.ToOptions(logging.Discard())...)
	require.NoError(t, err)
	cfg := a.Config()
	assert.True(t, cfg.Trim)
	assert.Equal(t, "<!-- body -->", cfg.LayoutTag)
	assert.True(t, a.Router().HasStage("onPublish"))
}

func TestLoggerConfig(t *testing.T) {
	config := Default()
	config.Log.Level = "debug"
	config.Log.Format = "json"

	var buf bytes.Buffer
	logger := logging.NewLogger(config.LoggerConfig(&buf))
	logger.Debug(t.Context(), "hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}
