package compose

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes composition errors.
type ErrorCode string

const (
	// CodeEmptyRegistration indicates registration was attempted with no modules.
	CodeEmptyRegistration ErrorCode = "EMPTY_REGISTRATION"

	// CodeDuplicateModule indicates the same descriptor, or two descriptors
	// sharing a name, were registered together.
	CodeDuplicateModule ErrorCode = "DUPLICATE_MODULE"

	// CodeDuplicateCapability indicates two contributions share an operation name.
	CodeDuplicateCapability ErrorCode = "DUPLICATE_CAPABILITY"

	// CodeInvalidDescriptor indicates a malformed descriptor or contribution.
	CodeInvalidDescriptor ErrorCode = "INVALID_DESCRIPTOR"

	// CodeInitFailed indicates a module's init returned an error.
	CodeInitFailed ErrorCode = "INIT_FAILED"

	// CodeMissingConfigField indicates a required configuration field is absent.
	CodeMissingConfigField ErrorCode = "MISSING_CONFIG_FIELD"

	// CodeInvalidConfigField indicates a configuration value has the wrong type.
	CodeInvalidConfigField ErrorCode = "INVALID_CONFIG_FIELD"

	// CodeUnsupportedCapability indicates a call to an operation no registered
	// module provides.
	CodeUnsupportedCapability ErrorCode = "UNSUPPORTED_CAPABILITY"

	// CodeInvalidArgument indicates call arguments do not match the signature.
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// CodeOperationFailed indicates an operation returned its own error.
	CodeOperationFailed ErrorCode = "OPERATION_FAILED"

	// CodeNotReady indicates use of a builder before registration completed.
	CodeNotReady ErrorCode = "NOT_READY"

	// CodeAlreadyComposed indicates a second registration or build on a
	// build-once registry.
	CodeAlreadyComposed ErrorCode = "ALREADY_COMPOSED"
)

// Error is the error type returned by every operation in this package.
//
// None of these errors are transient: each one points at a programming or
// configuration mistake and is never retried.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Module names the module involved, if any.
	Module string

	// Capability names the operation involved, if any.
	Capability string

	// Fields lists configuration paths involved (missing or mistyped fields).
	Fields []string

	// Err is the underlying cause (init or operation failures).
	Err error
}

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrEmptyRegistration     = &Error{Code: CodeEmptyRegistration}
	ErrDuplicateModule       = &Error{Code: CodeDuplicateModule}
	ErrDuplicateCapability   = &Error{Code: CodeDuplicateCapability}
	ErrInvalidDescriptor     = &Error{Code: CodeInvalidDescriptor}
	ErrInitFailed            = &Error{Code: CodeInitFailed}
	ErrMissingConfigField    = &Error{Code: CodeMissingConfigField}
	ErrInvalidConfigField    = &Error{Code: CodeInvalidConfigField}
	ErrUnsupportedCapability = &Error{Code: CodeUnsupportedCapability}
	ErrInvalidArgument       = &Error{Code: CodeInvalidArgument}
	ErrOperationFailed       = &Error{Code: CodeOperationFailed}
	ErrNotReady              = &Error{Code: CodeNotReady}
	ErrAlreadyComposed       = &Error{Code: CodeAlreadyComposed}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	var attrs []string
	if e.Module != "" {
		attrs = append(attrs, "module="+e.Module)
	}
	if e.Capability != "" {
		attrs = append(attrs, "capability="+e.Capability)
	}
	if len(attrs) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(attrs, ", "))
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Module == "" && t.Capability == "" && t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsUnsupportedCapability reports whether err is an unsupported capability error.
// Uses errors.As to handle wrapped errors.
func IsUnsupportedCapability(err error) bool {
	return CodeOf(err) == CodeUnsupportedCapability
}

// IsMissingConfigField reports whether err is a missing configuration field error.
func IsMissingConfigField(err error) bool {
	return CodeOf(err) == CodeMissingConfigField
}

// IsNotReady reports whether err is a not-ready error.
func IsNotReady(err error) bool {
	return CodeOf(err) == CodeNotReady
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
