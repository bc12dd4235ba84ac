package kval

import (
	"errors"
	"fmt"
)

// Error is returned by every structural operation in this package.
// Message is the text the q process shows the user; Code classifies it.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed ("join", "get_row"...).
	Op string

	// Message is the runtime-facing description.
	Message string
}

// ErrorCode categorizes value-layer errors.
type ErrorCode string

const (
	// ErrCodeTypeMismatch indicates an operation was applied to a variant it does not support.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeShapeViolation indicates dictionary or table length parity is broken.
	ErrCodeShapeViolation ErrorCode = "SHAPE_VIOLATION"

	// ErrCodeOutOfRange indicates a row or column index beyond bounds.
	ErrCodeOutOfRange ErrorCode = "OUT_OF_RANGE"

	// ErrCodeMissingEnumSource indicates an enum with no source to resolve against.
	ErrCodeMissingEnumSource ErrorCode = "MISSING_ENUM_SOURCE"

	// ErrCodeUnimplemented indicates a variant this code path does not model.
	ErrCodeUnimplemented ErrorCode = "UNIMPLEMENTED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, op, msg string) *Error {
	return &Error{Code: code, Op: op, Message: msg}
}

func codeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not an *Error.
func CodeOf(err error) ErrorCode {
	return codeOf(err)
}

// IsTypeMismatch reports whether err is a type mismatch.
func IsTypeMismatch(err error) bool {
	return codeOf(err) == ErrCodeTypeMismatch
}

// IsShapeViolation reports whether err is a dictionary or table shape error.
func IsShapeViolation(err error) bool {
	return codeOf(err) == ErrCodeShapeViolation
}

// IsOutOfRange reports whether err is an index error.
func IsOutOfRange(err error) bool {
	return codeOf(err) == ErrCodeOutOfRange
}

// IsMissingEnumSource reports whether err is an unresolved enum.
func IsMissingEnumSource(err error) bool {
	return codeOf(err) == ErrCodeMissingEnumSource
}

// IsUnimplemented reports whether err names an unmodelled variant.
func IsUnimplemented(err error) bool {
	return codeOf(err) == ErrCodeUnimplemented
}

// Text returns the message to hand to the q process for err: the bare
// Message of an *Error, or err.Error() for anything else.
func Text(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// invariant panics when a structure reconstructed from runtime memory breaks
// a rule the runtime itself guarantees. Reaching it means dispatch is wrong.
func invariant(ok bool, format string, args ...any) {
	if !ok {
		panic(fmt.Sprintf("kval: invariant violated: "+format, args...))
	}
}
