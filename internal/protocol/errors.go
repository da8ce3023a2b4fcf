// Package protocol defines the error taxonomy and XML response bodies of the
// observation exchange API.
package protocol

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is a stable numeric error code carried in error responses.
//
// Codes are partitioned by category: 1xx general/server faults, 2xx
// authentication, 3xx input validation, 4xx processing.
type Code int

// Error codes of the exchange API.
const (
	CodeServerError   Code = 101
	CodeDatabaseError Code = 102
	CodeCryptoError   Code = 103

	CodeMissingAuthHeader Code = 201
	CodeUnknownUser       Code = 202
	CodeNoPublicKey       Code = 203
	CodeInvalidSignature  Code = 204
	CodePermissionDenied  Code = 205

	CodeInvalidRequestType Code = 301
	CodeInvalidDateFilter  Code = 302
	// CodeInvalidFormatOption rejects an unrecognized format option on
	// either surface, an unknown input format name as much as an
	// unsupported output one.
	CodeInvalidFormatOption Code = 303
	CodeMalformedXML        Code = 304
	CodeFormatMismatch      Code = 305
	CodeUnknownUploadOption Code = 306

	CodePointNotFound    Code = 401
	CodePropertyNotFound Code = 402
	CodeTimeSeriesInit   Code = 403
	CodePointInactive    Code = 404
	CodeSelectorScope    Code = 405
)

// HTTPStatus maps the code's category to the response status: server faults
// surface as 500, everything client-originated as 400.
func (c Code) HTTPStatus() int {
	if c >= 100 && c < 200 {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// Error is an exchange API error: one stable code plus one or more
// human-readable messages. A single instance may carry several messages, for
// example one per schema violation.
type Error struct {
	Code     Code
	Messages []string

	wrapped error
}

// NewError creates an Error with the given code and message.
func NewError(code Code, msg string) *Error {
	return &Error{Code: code, Messages: []string{msg}}
}

// NewErrorf creates an Error with the given code and formatted message.
// The %w verb is honored, so the underlying cause stays inspectable.
func NewErrorf(code Code, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Code: code, Messages: []string{err.Error()}, wrapped: errors.Unwrap(err)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, strings.Join(e.Messages, "; "))
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.wrapped
}

// Append adds a further message to the error and returns it.
func (e *Error) Append(msg string) *Error {
	e.Messages = append(e.Messages, msg)
	return e
}

// Classify translates an arbitrary error into an *Error.
//
// Classified errors pass through unchanged. Anything else degrades to a
// generic server error whose primary message never leaks internal detail;
// audit context belongs in secondary entries added by the caller.
func Classify(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewError(CodeServerError, "Unknown error")
}
