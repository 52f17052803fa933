package formatter

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-json-experiment/json/jsontext"
	"github.com/mcncl/jsonflat/internal/models"
)

// Formatter renders JSON values as the text that ends up in a CSV cell
type Formatter struct{}

// NewFormatter creates a new Formatter instance
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Field renders a scalar for a CSV cell. nil becomes an empty field.
func (f *Formatter) Field(v models.JSONValue) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case models.Number:
		return f.Number(val), nil
	case models.JSONArray, *models.JSONObject:
		return "", fmt.Errorf("value of type %T is not a scalar", v)
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// Number returns the minimal decimal form of a JSON number literal.
// Integer literals are kept verbatim so large identifiers survive intact.
func (f *Formatter) Number(n models.Number) string {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if s == "-0" {
			return "0"
		}
		return s
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(value, 0) {
		return s
	}
	return formatFloat(value)
}

// formatFloat mirrors the shortest round-trip rendering spreadsheet users
// expect: plain decimals within [1e-6, 1e21), exponent form outside it.
func formatFloat(value float64) string {
	if value == 0 {
		return "0"
	}
	abs := math.Abs(value)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	s := strconv.FormatFloat(value, 'e', -1, 64)
	// strconv pads the exponent to two digits
	s = strings.Replace(s, "e+0", "e+", 1)
	s = strings.Replace(s, "e-0", "e-", 1)
	return s
}

// JSON returns the compact JSON text of v, keeping object member order.
func (f *Formatter) JSON(v models.JSONValue) (string, error) {
	var buf bytes.Buffer
	enc := jsontext.NewEncoder(&buf, jsontext.AllowInvalidUTF8(true))
	if err := f.writeValue(enc, v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (f *Formatter) writeValue(enc *jsontext.Encoder, v models.JSONValue) error {
	switch val := v.(type) {
	case nil:
		return enc.WriteToken(jsontext.Null)
	case bool:
		return enc.WriteToken(jsontext.Bool(val))
	case string:
		return enc.WriteToken(jsontext.String(val))
	case models.Number:
		return enc.WriteValue(jsontext.Value(f.Number(val)))
	case models.JSONArray:
		if err := enc.WriteToken(jsontext.BeginArray); err != nil {
			return err
		}
		for _, item := range val {
			if err := f.writeValue(enc, item); err != nil {
				return err
			}
		}
		return enc.WriteToken(jsontext.EndArray)
	case *models.JSONObject:
		if err := enc.WriteToken(jsontext.BeginObject); err != nil {
			return err
		}
		for _, m := range val.Members() {
			if err := enc.WriteToken(jsontext.String(m.Key)); err != nil {
				return err
			}
			if err := f.writeValue(enc, m.Value); err != nil {
				return err
			}
		}
		return enc.WriteToken(jsontext.EndObject)
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
}
