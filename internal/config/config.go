package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mcncl/jsonflat/internal/encoder"
)

// Header cases
const (
	CaseNone           = "none"
	CaseSnake          = "snake"
	CaseScreamingSnake = "screaming_snake"
	CaseKebab          = "kebab"
	CaseCamel          = "camel"
	CaseLowerCamel     = "lower_camel"
)

// Config represents the complete configuration for jsonflat
type Config struct {
	Output OutputConfig `yaml:"output"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Watch  WatchConfig  `yaml:"watch"`
}

// OutputConfig controls how CSV is written
type OutputConfig struct {
	LineEnding  string            `yaml:"line_ending" validate:"oneof=lf crlf"`
	HeaderCase  string            `yaml:"header_case" validate:"oneof=none snake screaming_snake kebab camel lower_camel"`
	ColumnNames map[string]string `yaml:"column_names"`
}

// ServerConfig controls the HTTP endpoint
type ServerConfig struct {
	Addr            string            `yaml:"addr" validate:"required"`
	MaxBodySize     datasize.ByteSize `yaml:"max_body_size" validate:"gt=0"`
	ReadTimeout     time.Duration     `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration     `yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration     `yaml:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig controls logging
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// WatchConfig controls directory watching
type WatchConfig struct {
	// Enabled runs the watcher alongside the HTTP server.
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir"`
	OutputDir string        `yaml:"output_dir"`
	Debounce  time.Duration `yaml:"debounce" validate:"gte=0"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Output: OutputConfig{
			LineEnding:  "lf",
			HeaderCase:  CaseNone,
			ColumnNames: make(map[string]string),
		},
		Server: ServerConfig{
			Addr:            ":8080",
			MaxBodySize:     50 * datasize.MB,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Watch: WatchConfig{
			Dir:      ".",
			Debounce: 200 * time.Millisecond,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := NewConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load returns the configuration at path, or the nearest config file found
// from dir upwards, or the defaults when neither exists.
func Load(fs afero.Fs, path, dir string) (*Config, error) {
	if path == "" {
		path = FindConfigFile(fs, dir)
	}
	if path == "" {
		return NewConfig(), nil
	}
	return LoadConfig(fs, path)
}

// FindConfigFile searches for a config file in dir and its parents
func FindConfigFile(fs afero.Fs, dir string) string {
	configNames := []string{".jsonflat.yml", ".jsonflat.yaml", "jsonflat.yml", "jsonflat.yaml"}
	if dir == "" {
		return ""
	}

	currentDir := filepath.Clean(dir)
	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if ok, _ := afero.Exists(fs, configPath); ok {
				return configPath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root directory
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		// Use YAML field name in error messages
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := validate.Struct(c); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("invalid config: %w", err)
		}
		msgs := make([]string, 0, len(validationErrs))
		for _, e := range validationErrs {
			path := strings.TrimPrefix(e.Namespace(), "Config.")
			msgs = append(msgs, fmt.Sprintf("key=%q, value=%q, failed %q validation", path, fmt.Sprint(e.Value()), e.ActualTag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// ColumnName returns the CSV header name for a flattened key, applying
// explicit renames first and then the configured header case
func (c *Config) ColumnName(key string) string {
	if mapped, exists := c.Output.ColumnNames[key]; exists {
		return mapped
	}

	switch c.Output.HeaderCase {
	case CaseSnake:
		return strcase.ToSnake(key)
	case CaseScreamingSnake:
		return strcase.ToScreamingSnake(key)
	case CaseKebab:
		return strcase.ToKebab(key)
	case CaseCamel:
		return strcase.ToCamel(key)
	case CaseLowerCamel:
		return strcase.ToLowerCamel(key)
	default:
		return key
	}
}

// EncoderOptions translates the output section into encoder options
func (c *Config) EncoderOptions() []encoder.Option {
	opts := []encoder.Option{}
	if c.Output.LineEnding == "crlf" {
		opts = append(opts, encoder.WithLineEnding(encoder.CRLF))
	}
	if c.Output.HeaderCase != CaseNone || len(c.Output.ColumnNames) > 0 {
		opts = append(opts, encoder.WithColumnNamer(c.ColumnName))
	}
	return opts
}
