package models

import (
	"errors"
	"fmt"
)

// Error codes used in logs, progress reports and webhook payloads.
const (
	ErrCodeTransport     = "TRANSPORT_FAILURE"
	ErrCodeHTTPStatus    = "HTTP_STATUS"
	ErrCodeDiscovery     = "DISCOVERY_FAILURE"
	ErrCodeMalformedPage = "MALFORMED_PAGE"
	ErrCodePersistence   = "PERSISTENCE_FAILURE"
	ErrCodeArity         = "ARITY_MISMATCH"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeInternal      = "INTERNAL_ERROR"

	// Status server codes.
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeNotFound     = "NOT_FOUND"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CrawlError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type CrawlError struct {
	Code       string
	Message    string
	StatusCode int   // HTTP status for ErrCodeHTTPStatus, 0 otherwise
	Err        error // wrapped original error
}

func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// NewCrawlError creates a new CrawlError.
func NewCrawlError(code, message string, err error) *CrawlError {
	return &CrawlError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *CrawlError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the code of the first CrawlError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) string {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	var ce *CrawlError
	return errors.As(err, &ce) && ce.Code == code
}
