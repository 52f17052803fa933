// Package encoder serializes flat rows as CSV for spreadsheet tools.
package encoder

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/formatter"
	"github.com/mcncl/jsonflat/internal/models"
)

// BOM is the UTF-8 byte order mark written before the header line.
const BOM = "\xEF\xBB\xBF"

// Line terminators
const (
	LF   = "\n"
	CRLF = "\r\n"
)

// ProgressFunc receives the number of written data rows.
type ProgressFunc func(done, total int)

// Option configures an Encoder.
type Option func(*Encoder)

// WithLineEnding sets the record terminator, LF or CRLF.
func WithLineEnding(eol string) Option {
	return func(e *Encoder) {
		e.eol = eol
	}
}

// WithColumnNamer renames header columns. Row lookup still uses the
// original keys.
func WithColumnNamer(fn func(string) string) Option {
	return func(e *Encoder) {
		e.columnName = fn
	}
}

// WithProgress reports progress after each data row.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Encoder) {
		e.progress = fn
	}
}

// Encoder writes a RowSet as comma-separated values.
type Encoder struct {
	formatter  *formatter.Formatter
	eol        string
	columnName func(string) string
	progress   ProgressFunc
}

// NewEncoder creates an Encoder with LF line endings.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{
		formatter: formatter.NewFormatter(),
		eol:       LF,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// With returns a copy of the encoder with additional options applied.
func (e *Encoder) With(opts ...Option) *Encoder {
	c := *e
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Header returns every distinct key in first-seen order.
func Header(rows models.RowSet) []string {
	var header []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, key := range row.Keys() {
			if !seen[key] {
				seen[key] = true
				header = append(header, key)
			}
		}
	}
	return header
}

// Encode returns the BOM-prefixed CSV text of rows.
func (e *Encoder) Encode(rows models.RowSet) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.EncodeTo(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes the BOM-prefixed CSV text of rows to w.
func (e *Encoder) EncodeTo(w io.Writer, rows models.RowSet) error {
	if len(rows) == 0 {
		return errors.NewEmptyError("the input contains no records", errors.ErrNoRows)
	}
	header := Header(rows)
	if len(header) == 0 {
		return errors.NewEmptyError("the records contain no fields", errors.ErrNoColumns)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(BOM); err != nil {
		return errors.NewEncodingError("failed to write byte order mark", err)
	}

	names := make([]string, len(header))
	for i, key := range header {
		names[i] = key
		if e.columnName != nil {
			names[i] = e.columnName(key)
		}
	}
	if err := e.writeRecord(bw, names); err != nil {
		return errors.NewEncodingError("failed to write header", err)
	}

	record := make([]string, len(header))
	for n, row := range rows {
		for i, key := range header {
			v, ok := row.Get(key)
			if !ok {
				record[i] = ""
				continue
			}
			text, err := e.formatter.Field(v)
			if err != nil {
				return errors.NewEncodingError(fmt.Sprintf("failed to format column %q of row %d", key, n+1), err)
			}
			record[i] = text
		}
		if err := e.writeRecord(bw, record); err != nil {
			return errors.NewEncodingError(fmt.Sprintf("failed to write row %d", n+1), err)
		}
		if e.progress != nil {
			e.progress(n+1, len(rows))
		}
	}

	if err := bw.Flush(); err != nil {
		return errors.NewEncodingError("failed to flush output", err)
	}
	return nil
}

func (e *Encoder) writeRecord(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quote(f)); err != nil {
			return err
		}
	}
	_, err := w.WriteString(e.eol)
	return err
}

// quote wraps a field in double quotes when it holds a comma, a quote or a
// line break. Embedded quotes are doubled.
func quote(field string) string {
	if !strings.ContainsAny(field, ",\"\r\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// Decode reads CSV produced by Encode back into records, header first.
func Decode(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte(BOM))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to decode CSV: %w", err)
	}
	return records, nil
}
