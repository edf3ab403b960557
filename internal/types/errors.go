package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by graph operations.
type ErrorKind string

const (
	ConnectivityFailure      ErrorKind = "CONNECTIVITY_FAILURE"
	QueryExecutionFailure    ErrorKind = "QUERY_EXECUTION_FAILURE"
	TransactionCommitFailure ErrorKind = "TRANSACTION_COMMIT_FAILURE"
	FileNotFound             ErrorKind = "FILE_NOT_FOUND"
	ParseFailure             ErrorKind = "PARSE_FAILURE"
)

// NoIndex marks a failure that is not tied to a batch position.
const NoIndex = -1

// Error is the structured failure value returned across operation boundaries.
// Code holds the store's own error code when the driver reported one
// (e.g. "Neo.ClientError.Statement.SyntaxError"), otherwise it repeats Kind.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Index   int       `json:"index"`
	Cause   error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Index != NoIndex {
		return fmt.Sprintf("[%s] command %d: %s", e.Code, e.Index, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// NewError creates an Error with no store code and no cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Code:    string(kind),
		Message: message,
		Index:   NoIndex,
	}
}

// WrapError creates an Error of the given kind around cause.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	e := NewError(kind, message)
	e.Cause = cause
	if cause != nil && message == "" {
		e.Message = cause.Error()
	}
	return e
}

// WithCode returns a copy of e carrying the store error code.
func (e *Error) WithCode(code string) *Error {
	c := *e
	if code != "" {
		c.Code = code
	}
	return &c
}

// AtIndex returns a copy of e tied to a batch position.
func (e *Error) AtIndex(index int) *Error {
	c := *e
	c.Index = index
	return &c
}

// KindOf reports the ErrorKind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
