package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes carried in AppError.Code and in the HTTP error envelope.
const (
	CodeUnsupportedFormat  = "UNSUPPORTED_FORMAT"
	CodeEmptyDocument      = "EMPTY_DOCUMENT"
	CodeExtractionService  = "EXTRACTION_SERVICE_ERROR"
	CodeModelResponseParse = "MODEL_RESPONSE_PARSE_ERROR"
	CodeDatabaseLookup     = "DATABASE_LOOKUP_ERROR"
	CodePremiumExpired     = "PREMIUM_EXPIRED"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeConfig             = "CONFIG_ERROR"
	CodeInternal           = "INTERNAL"
)

// Common application errors
var (
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrEmptyDocument      = errors.New("empty document")
	ErrExtractionService  = errors.New("extraction service error")
	ErrModelResponseParse = errors.New("model response parse error")
	ErrDatabaseLookup     = errors.New("database lookup error")
	ErrPremiumExpired     = errors.New("premium expired")
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
)

var codeBySentinel = []struct {
	err  error
	code string
}{
	{ErrUnsupportedFormat, CodeUnsupportedFormat},
	{ErrEmptyDocument, CodeEmptyDocument},
	{ErrExtractionService, CodeExtractionService},
	{ErrModelResponseParse, CodeModelResponseParse},
	{ErrDatabaseLookup, CodeDatabaseLookup},
	{ErrPremiumExpired, CodePremiumExpired},
	{ErrNotFound, CodeNotFound},
	{ErrInvalidInput, CodeInvalidInput},
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func UnsupportedFormatError(message string) *AppError {
	return NewAppError(CodeUnsupportedFormat, message, ErrUnsupportedFormat)
}

func EmptyDocumentError(message string) *AppError {
	return NewAppError(CodeEmptyDocument, message, ErrEmptyDocument)
}

// ExtractionServiceError keeps the upstream message visible to the caller.
func ExtractionServiceError(upstream error) *AppError {
	msg := "document intelligence service failed"
	if upstream != nil {
		msg = upstream.Error()
	}
	return NewAppError(CodeExtractionService, msg, errors.Join(ErrExtractionService, upstream))
}

func DatabaseLookupError(message string, cause error) *AppError {
	return NewAppError(CodeDatabaseLookup, message, errors.Join(ErrDatabaseLookup, cause))
}

func NotFoundErrorf(format string, args ...any) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf(format, args...), ErrNotFound)
}

func InvalidInputError(message string) *AppError {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

func PremiumExpiredError(message string) *AppError {
	return NewAppError(CodePremiumExpired, message, ErrPremiumExpired)
}

// CodeOf returns the AppError code for err, falling back to sentinel matching.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	for _, s := range codeBySentinel {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return CodeInternal
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// HTTPStatus maps an error onto the status code used by the JSON envelope.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidInput, CodeUnsupportedFormat, CodeEmptyDocument:
		return http.StatusBadRequest
	case CodePremiumExpired:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeExtractionService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
