package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DefaultValues(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "lf", cfg.Output.LineEnding)
	assert.Equal(t, CaseNone, cfg.Output.HeaderCase)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 50*datasize.MB, cfg.Server.MaxBodySize)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce)
	assert.False(t, cfg.Watch.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_LoadFromYAML(t *testing.T) {
	yamlContent := `
output:
  line_ending: crlf
  header_case: snake
  column_names:
    "user__id": "User ID"
server:
  addr: "127.0.0.1:9000"
  max_body_size: 5MB
  read_timeout: 5s
log:
  level: debug
  format: json
watch:
  enabled: true
  dir: /in
  output_dir: /out
  debounce: 1s
`
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/jsonflat.yml", []byte(yamlContent), 0o644))

	cfg, err := LoadConfig(fs, "/etc/jsonflat.yml")
	require.NoError(t, err)

	assert.Equal(t, "crlf", cfg.Output.LineEnding)
	assert.Equal(t, CaseSnake, cfg.Output.HeaderCase)
	assert.Equal(t, "User ID", cfg.Output.ColumnNames["user__id"])
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 5*datasize.MB, cfg.Server.MaxBodySize)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	// untouched keys keep their defaults
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, "/in", cfg.Watch.Dir)
	assert.Equal(t, "/out", cfg.Watch.OutputDir)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
}

func TestConfig_LoadInvalidYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.yml", []byte("output: [unclosed"), 0o644))

	_, err := LoadConfig(fs, "/bad.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestConfig_LoadMissingFile(t *testing.T) {
	_, err := LoadConfig(afero.NewMemMapFs(), "/nope.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"line ending", func(c *Config) { c.Output.LineEnding = "cr" }, "output.line_ending"},
		{"header case", func(c *Config) { c.Output.HeaderCase = "title" }, "output.header_case"},
		{"addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"body size", func(c *Config) { c.Server.MaxBodySize = 0 }, "server.max_body_size"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestConfig_LoadRejectsInvalidValues(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.yml", []byte("output:\n  header_case: shouting\n"), 0o644))

	_, err := LoadConfig(fs, "/c.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.header_case")
}

func TestFindConfigFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	root := filepath.FromSlash("/project")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, fs.MkdirAll(nested, 0o755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, ".jsonflat.yml"), []byte("log:\n  level: warn\n"), 0o644))

	assert.Equal(t, filepath.Join(root, ".jsonflat.yml"), FindConfigFile(fs, nested))
	assert.Equal(t, "", FindConfigFile(afero.NewMemMapFs(), nested))
	assert.Equal(t, "", FindConfigFile(fs, ""))
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work/sub", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/work/jsonflat.yaml", []byte("log:\n  level: warn\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/other.yml", []byte("log:\n  level: error\n"), 0o644))

	found, err := Load(fs, "", "/work/sub")
	require.NoError(t, err)
	assert.Equal(t, "warn", found.Log.Level)

	explicit, err := Load(fs, "/other.yml", "/work/sub")
	require.NoError(t, err)
	assert.Equal(t, "error", explicit.Log.Level)

	defaults, err := Load(afero.NewMemMapFs(), "", "/empty")
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), defaults)
}

func TestConfig_ColumnName(t *testing.T) {
	tests := []struct {
		headerCase string
		key        string
		expected   string
	}{
		{CaseNone, "user__firstName", "user__firstName"},
		{CaseSnake, "user__firstName", "user__first_name"},
		{CaseScreamingSnake, "user__id", "USER__ID"},
		{CaseKebab, "address__zipCode", "address--zip-code"},
		{CaseCamel, "user__id", "UserId"},
		{CaseLowerCamel, "items__unit_price", "itemsUnitPrice"},
	}

	for _, tt := range tests {
		t.Run(tt.headerCase, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Output.HeaderCase = tt.headerCase
			assert.Equal(t, tt.expected, cfg.ColumnName(tt.key))
		})
	}
}

func TestConfig_ColumnNameExplicitRenameWins(t *testing.T) {
	cfg := NewConfig()
	cfg.Output.HeaderCase = CaseSnake
	cfg.Output.ColumnNames["user__id"] = "User ID"

	assert.Equal(t, "User ID", cfg.ColumnName("user__id"))
	assert.Equal(t, "user__first_name", cfg.ColumnName("user__firstName"))
}

func TestConfig_EncoderOptions(t *testing.T) {
	cfg := NewConfig()
	assert.Empty(t, cfg.EncoderOptions())

	cfg.Output.LineEnding = "crlf"
	cfg.Output.HeaderCase = CaseKebab
	assert.Len(t, cfg.EncoderOptions(), 2)
}
