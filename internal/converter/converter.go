// Package converter runs the JSON to CSV pipeline shared by every entry
// point: parse, flatten and expand, encode.
package converter

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mcncl/jsonflat/internal/encoder"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/flattener"
	"github.com/mcncl/jsonflat/internal/models"
	"github.com/mcncl/jsonflat/internal/parser"
)

// DefaultBaseName names the output when no input file name is known.
const DefaultBaseName = "data"

// Result is a finished conversion.
type Result struct {
	CSV      []byte
	FileName string
	Rows     int
	Columns  int
	Duration time.Duration
}

// Hooks receive progress from the two phases of a conversion.
type Hooks struct {
	// Expanded is called after each top-level element is flattened.
	Expanded func(done, total int)
	// Encoded is called after each CSV row is written.
	Encoded func(done, total int)
}

// Converter ties the flattener and the encoder together.
type Converter struct {
	flattener *flattener.Flattener
	encoder   *encoder.Encoder
	logger    *zap.Logger
}

// New creates a Converter. A nil logger disables logging.
func New(logger *zap.Logger, opts ...encoder.Option) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{
		flattener: flattener.NewFlattener(),
		encoder:   encoder.NewEncoder(opts...),
		logger:    logger,
	}
}

// ConvertBytes parses data as JSON and converts it.
func (c *Converter) ConvertBytes(data []byte, fileName string, hooks Hooks) (*Result, error) {
	doc, err := parser.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	return c.ConvertDocument(doc, fileName, hooks)
}

// ConvertFile parses the JSON file at path on fs and converts it. The output
// is named after the file.
func (c *Converter) ConvertFile(fs afero.Fs, path string, hooks Hooks) (*Result, error) {
	doc, err := parser.ParseFile(fs, path)
	if err != nil {
		return nil, err
	}
	return c.ConvertDocument(doc, filepath.Base(path), hooks)
}

// ConvertDocument converts an already parsed document.
func (c *Converter) ConvertDocument(doc models.Document, fileName string, hooks Hooks) (*Result, error) {
	return c.ConvertValue(doc.Root, fileName, hooks)
}

// ConvertValue converts a JSON value. Arrays contribute one record per
// element, anything else is a single record.
func (c *Converter) ConvertValue(value models.JSONValue, fileName string, hooks Hooks) (*Result, error) {
	start := time.Now()
	doc := models.Document{Root: value}

	var expandOpts []flattener.Option
	if hooks.Expanded != nil {
		expandOpts = append(expandOpts, flattener.WithProgress(hooks.Expanded))
	}
	rows, err := c.flattener.Expand(doc.Elements(), expandOpts...)
	if err != nil {
		return nil, errors.NewEncodingError("failed to flatten input", err)
	}
	if len(rows) == 0 {
		return nil, errors.NewEmptyError("the input contains no records", errors.ErrNoRows)
	}

	enc := c.encoder
	if hooks.Encoded != nil {
		enc = enc.With(encoder.WithProgress(hooks.Encoded))
	}
	csv, err := enc.Encode(rows)
	if err != nil {
		return nil, err
	}

	result := &Result{
		CSV:      csv,
		FileName: OutputFileName(fileName),
		Rows:     len(rows),
		Columns:  len(encoder.Header(rows)),
		Duration: time.Since(start),
	}
	c.logger.Debug("conversion finished",
		zap.String("file", result.FileName),
		zap.Int("rows", result.Rows),
		zap.Int("columns", result.Columns),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// OutputFileName replaces the extension of name with .csv, dropping any
// directory part.
func OutputFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = DefaultBaseName
	}
	return base + ".csv"
}
