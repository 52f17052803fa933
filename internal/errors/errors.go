package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard application errors
var (
	ErrEmptyInput      = errors.New("input is empty or contains only whitespace")
	ErrInvalidJSON     = errors.New("invalid JSON format")
	ErrMultipleJSON    = errors.New("multiple JSON values found at the root, only one is allowed")
	ErrMissingData     = errors.New("no data to convert")
	ErrNoRows          = errors.New("conversion produced no rows")
	ErrNoColumns       = errors.New("conversion produced no columns")
	ErrFileNotFound    = errors.New("file not found")
	ErrFileEmpty       = errors.New("file is empty")
	ErrNoInput         = errors.New("no input provided: please specify an input file or pipe JSON data to stdin")
	ErrInvalidFilePath = errors.New("invalid file path")
)

// ErrorType categorizes errors
type ErrorType string

const (
	ErrorTypeInput    ErrorType = "input"
	ErrorTypeParsing  ErrorType = "parsing"
	ErrorTypeEmpty    ErrorType = "empty"
	ErrorTypeEncoding ErrorType = "encoding"
	ErrorTypeOutput   ErrorType = "output"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// AppError is an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for comparison
func (e *AppError) Is(target error) bool {
	// Check if target is also an *AppError and if the types match
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewInputError creates a new error related to reading input
func NewInputError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeInput, Message: message, Err: err}
}

// NewParsingError creates a new error for input that is not parseable JSON
func NewParsingError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeParsing, Message: message, Err: err}
}

// NewEmptyError creates a new error for input that yields nothing to convert
func NewEmptyError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeEmpty, Message: message, Err: err}
}

// NewEncodingError creates a new error raised while serializing rows
func NewEncodingError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeEncoding, Message: message, Err: err}
}

// NewOutputError creates a new error related to output processing
func NewOutputError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeOutput, Message: message, Err: err}
}

// NewConfigError creates a new error related to configuration
func NewConfigError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeConfig, Message: message, Err: err}
}

// TypeOf returns the category of err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// HTTPStatus maps an error to the status code reported by the HTTP endpoint.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeInput, ErrorTypeParsing, ErrorTypeEmpty:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// UserFriendlyError returns a user-friendly error message
func UserFriendlyError(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrorTypeInput:
			return fmt.Sprintf("Input error: %s", appErr.Message)
		case ErrorTypeParsing:
			return fmt.Sprintf("JSON parsing error: %s", appErr.Message)
		case ErrorTypeEmpty:
			return fmt.Sprintf("Nothing to convert: %s", appErr.Message)
		case ErrorTypeEncoding:
			if appErr.Err != nil {
				return fmt.Sprintf("CSV encoding error: %s: %v", appErr.Message, appErr.Err)
			}
			return fmt.Sprintf("CSV encoding error: %s", appErr.Message)
		case ErrorTypeOutput:
			return fmt.Sprintf("Output error: %s", appErr.Message)
		case ErrorTypeConfig:
			return fmt.Sprintf("Configuration error: %s", appErr.Message)
		default:
			return fmt.Sprintf("Error: %s", appErr.Message)
		}
	}

	// Handle standard errors
	if errors.Is(err, ErrEmptyInput) {
		return "Error: The input is empty. Please provide valid JSON data."
	}
	if errors.Is(err, ErrInvalidJSON) {
		return "Error: The input contains invalid JSON. Please check your JSON syntax."
	}
	if errors.Is(err, ErrMultipleJSON) {
		return "Error: Multiple JSON values found. Please provide a single JSON object or array."
	}
	if errors.Is(err, ErrNoRows) || errors.Is(err, ErrNoColumns) || errors.Is(err, ErrMissingData) {
		return "Error: The input contains no data to convert."
	}
	if errors.Is(err, ErrFileNotFound) {
		return "Error: The specified file could not be found. Please check the file path."
	}
	if errors.Is(err, ErrFileEmpty) {
		return "Error: The specified file is empty. Please provide a file with valid JSON content."
	}
	if errors.Is(err, ErrNoInput) {
		return "Error: No input provided. Please specify an input file or pipe JSON data to stdin."
	}
	if errors.Is(err, ErrInvalidFilePath) {
		return "Error: Invalid file path. Please provide a valid file path."
	}

	// Generic error message for unknown errors
	return fmt.Sprintf("Error: %v", err)
}
