package parser

import (
	"bytes"
	stderrors "errors" // Standard errors package
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/afero"

	"github.com/mcncl/jsonflat/internal/errors" // Custom errors package
	"github.com/mcncl/jsonflat/internal/models"
)

// Parse reads a single JSON value from reader, keeping object member order.
func Parse(reader io.Reader) (models.Document, error) {
	// Duplicate names keep the last value, invalid UTF-8 passes through,
	// matching what browsers accept from JSON.parse.
	dec := jsontext.NewDecoder(reader,
		jsontext.AllowDuplicateNames(true),
		jsontext.AllowInvalidUTF8(true),
	)

	root, err := decodeValue(dec)
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return models.Document{}, errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
		}
		return models.Document{}, syntaxError(err)
	}

	// Only whitespace may follow the first value.
	if _, err := dec.ReadToken(); err == nil {
		return models.Document{}, errors.NewParsingError("multiple JSON values found at the root", errors.ErrMultipleJSON)
	} else if !stderrors.Is(err, io.EOF) {
		return models.Document{}, syntaxError(err)
	}

	return models.Document{Root: root}, nil
}

func syntaxError(err error) error {
	var synErr *jsontext.SyntacticError
	if stderrors.As(err, &synErr) {
		return errors.NewParsingError(
			fmt.Sprintf("JSON syntax error at offset %d", synErr.ByteOffset),
			fmt.Errorf("%w: %v", errors.ErrInvalidJSON, synErr),
		)
	}
	return errors.NewParsingError("failed to decode JSON", fmt.Errorf("%w: %v", errors.ErrInvalidJSON, err))
}

func decodeValue(dec *jsontext.Decoder) (models.JSONValue, error) {
	switch dec.PeekKind() {
	case '{':
		return decodeObject(dec)
	case '[':
		return decodeArray(dec)
	case '0':
		val, err := dec.ReadValue()
		if err != nil {
			return nil, err
		}
		return models.Number(string(val)), nil
	}

	tok, err := dec.ReadToken()
	if err != nil {
		return nil, err
	}
	switch tok.Kind() {
	case 'n':
		return nil, nil
	case 't', 'f':
		return tok.Bool(), nil
	case '"':
		return tok.String(), nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok.Kind())
	}
}

func decodeObject(dec *jsontext.Decoder) (*models.JSONObject, error) {
	if _, err := dec.ReadToken(); err != nil { // '{'
		return nil, err
	}
	obj := models.NewJSONObject()
	for dec.PeekKind() != '}' {
		tok, err := dec.ReadToken()
		if err != nil {
			return nil, err
		}
		// A token is only valid until the next decoder call.
		name := tok.String()
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj.Set(name, value)
	}
	if _, err := dec.ReadToken(); err != nil { // '}'
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *jsontext.Decoder) (models.JSONArray, error) {
	if _, err := dec.ReadToken(); err != nil { // '['
		return nil, err
	}
	arr := models.JSONArray{}
	for dec.PeekKind() != ']' {
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, value)
	}
	if _, err := dec.ReadToken(); err != nil { // ']'
		return nil, err
	}
	return arr, nil
}

// ParseString parses JSON from a string
func ParseString(jsonString string) (models.Document, error) {
	if strings.TrimSpace(jsonString) == "" {
		return models.Document{}, errors.NewInputError("input string is empty", errors.ErrEmptyInput)
	}
	return Parse(strings.NewReader(jsonString))
}

// ParseBytes parses JSON from a byte slice
func ParseBytes(data []byte) (models.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return models.Document{}, errors.NewInputError("input is empty", errors.ErrEmptyInput)
	}
	return Parse(bytes.NewReader(data))
}

// ParseFile parses JSON from a file path on fs
func ParseFile(fs afero.Fs, filePath string) (models.Document, error) {
	if strings.TrimSpace(filePath) == "" {
		return models.Document{}, errors.NewInputError("file path is empty", errors.ErrInvalidFilePath)
	}
	file, err := fs.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Document{}, errors.NewInputError(
				fmt.Sprintf("file '%s' not found", filePath),
				errors.ErrFileNotFound,
			)
		}
		return models.Document{}, errors.NewInputError(
			fmt.Sprintf("failed to open file '%s'", filePath),
			err,
		)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return models.Document{}, errors.NewInputError(
			fmt.Sprintf("failed to get file stats for '%s'", filePath),
			err,
		)
	}
	if stat.Size() == 0 {
		return models.Document{}, errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", filePath),
			errors.ErrFileEmpty,
		)
	}

	return Parse(file)
}
