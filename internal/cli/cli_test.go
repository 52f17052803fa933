package cli

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/jsonflat/internal/config"
	"github.com/mcncl/jsonflat/internal/encoder"
	"github.com/mcncl/jsonflat/internal/errors"
)

type testEnv struct {
	ctx    *Context
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestEnv(stdin string) *testEnv {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &testEnv{
		ctx: &Context{
			Context: context.Background(),
			Fs:      afero.NewMemMapFs(),
			Dir:     "/work",
			Stdin:   strings.NewReader(stdin),
			Stdout:  stdout,
			Stderr:  stderr,
		},
		stdout: stdout,
		stderr: stderr,
	}
}

func (e *testEnv) writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(e.ctx.Fs, path, []byte(content), 0o644))
}

func (e *testEnv) readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := afero.ReadFile(e.ctx.Fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestConvert_StdinToStdout(t *testing.T) {
	env := newTestEnv(`{"user": {"name": "Ann"}, "tags": ["a", "b"]}`)

	require.NoError(t, Main(env.ctx, nil))
	assert.Equal(t, encoder.BOM+"user__name,tags\nAnn,\"[\"\"a\"\",\"\"b\"\"]\"\n", env.stdout.String())
}

func TestConvert_FileToFile(t *testing.T) {
	env := newTestEnv("")
	env.writeFile(t, "/in/orders.json", `[{"id": 1, "lines": [{"sku": "A"}, {"sku": "B"}]}]`)

	require.NoError(t, Main(env.ctx, []string{"convert", "/in/orders.json", "-o", "/out.csv"}))

	assert.Equal(t, encoder.BOM+"id,sku\n1,A\n1,B\n", env.readFile(t, "/out.csv"))
	assert.Contains(t, env.stderr.String(), "CSV with 2 rows written to /out.csv")
	assert.Empty(t, env.stdout.String())
}

func TestConvert_DefaultCommandTakesInputArgument(t *testing.T) {
	env := newTestEnv("")
	env.writeFile(t, "/in/a.json", `{"x": 1}`)

	require.NoError(t, Main(env.ctx, []string{"/in/a.json"}))
	assert.Equal(t, encoder.BOM+"x\n1\n", env.stdout.String())
}

func TestConvert_OutputDirectory(t *testing.T) {
	env := newTestEnv("")
	env.writeFile(t, "/in/report.v2.json", `{"x": 1}`)
	require.NoError(t, env.ctx.Fs.MkdirAll("/out", 0o755))

	require.NoError(t, Main(env.ctx, []string{"/in/report.v2.json", "-o", "/out"}))
	assert.Equal(t, encoder.BOM+"x\n1\n", env.readFile(t, "/out/report.v2.csv"))
}

func TestConvert_Overrides(t *testing.T) {
	env := newTestEnv(`{"user": {"firstName": "Ann"}}`)

	require.NoError(t, Main(env.ctx, []string{"--crlf", "--header-case", "snake"}))
	assert.Equal(t, encoder.BOM+"user__first_name\r\nAnn\r\n", env.stdout.String())
}

func TestConvert_ConfigFileFromWorkingDirectory(t *testing.T) {
	env := newTestEnv(`{"id": 1}`)
	env.writeFile(t, "/work/.jsonflat.yml", "output:\n  column_names:\n    id: Identifier\n")

	require.NoError(t, Main(env.ctx, nil))
	assert.Equal(t, encoder.BOM+"Identifier\n1\n", env.stdout.String())
}

func TestConvert_Progress(t *testing.T) {
	env := newTestEnv(`[{"a": 1}, {"a": 2}]`)

	require.NoError(t, Main(env.ctx, []string{"--progress"}))
	assert.Equal(t, encoder.BOM+"a\n1\n2\n", env.stdout.String())
	assert.NotEmpty(t, env.stderr.String())
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name     string
		stdin    string
		args     []string
		errType  errors.ErrorType
		sentinel error
	}{
		{"missing file", "", []string{"/nope.json"}, errors.ErrorTypeInput, errors.ErrFileNotFound},
		{"empty file", "", []string{"/in/empty.json"}, errors.ErrorTypeInput, errors.ErrFileEmpty},
		{"empty stdin", "", nil, errors.ErrorTypeInput, errors.ErrEmptyInput},
		{"invalid json", `{"a": }`, nil, errors.ErrorTypeParsing, errors.ErrInvalidJSON},
		{"no rows", `[]`, nil, errors.ErrorTypeEmpty, errors.ErrNoRows},
		{"no columns", `[{}]`, nil, errors.ErrorTypeEmpty, errors.ErrNoColumns},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(tt.stdin)
			env.writeFile(t, "/in/empty.json", "")

			err := Main(env.ctx, tt.args)
			require.Error(t, err)
			assert.Equal(t, tt.errType, errors.TypeOf(err))
			assert.True(t, stderrors.Is(err, tt.sentinel), "got %v", err)
			assert.Empty(t, env.stdout.String())
		})
	}
}

func TestConvert_InvalidOverrideIsConfigError(t *testing.T) {
	env := newTestEnv(`{"a": 1}`)

	err := Main(env.ctx, []string{"--header-case", "shouting"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "output.header_case")
}

func TestMain_UnknownFlag(t *testing.T) {
	env := newTestEnv("")
	err := Main(env.ctx, []string{"--bogus"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeInput, errors.TypeOf(err))
}

func TestVersion(t *testing.T) {
	env := newTestEnv("")
	require.NoError(t, Main(env.ctx, []string{"version"}))
	assert.Equal(t, "jsonflat version "+Version+"\n", env.stdout.String())
}

func TestServe_WatcherEnabledFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Watch.Enabled = true
	cfg.Watch.Dir = "/from/config"

	(&ServeCmd{}).applyOverrides(cfg)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, "/from/config", cfg.Watch.Dir)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestServe_WatchDirFlagEnablesWatcher(t *testing.T) {
	cfg := config.NewConfig()

	(&ServeCmd{Addr: "127.0.0.1:9000", WatchDir: "/drop"}).applyOverrides(cfg)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, "/drop", cfg.Watch.Dir)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}
