// Package status defines the stable error codes surfaced across the
// command boundary. Every command either succeeds or returns a *status.Error
// carrying one of the codes below; internal errors are wrapped so the host
// can switch on Code without parsing messages.
package status

import (
	"errors"
	"fmt"
)

// Code identifies a command-boundary error class.
type Code string

const (
	// NotSupported: the platform lacks AR capability. Fatal to the
	// session, never retried in-process.
	NotSupported Code = "NotSupported"
	// PermissionDenied: camera access is missing. User-actionable; the
	// session does not start.
	PermissionDenied Code = "PermissionDenied"
	// NotInitialized: a command was issued before a successful initialize
	// (or after dispose).
	NotInitialized Code = "NotInitialized"
	// InvalidArguments: malformed command payload. No partial effect.
	InvalidArguments Code = "InvalidArguments"
	// AssetNotFound: the bundled-asset lookup returned nothing.
	AssetNotFound Code = "AssetNotFound"
	// FileNotFound: a file source path does not exist.
	FileNotFound Code = "FileNotFound"
	// InvalidURL: a url source could not be parsed or uses an
	// unsupported scheme.
	InvalidURL Code = "InvalidUrl"
	// UnsupportedModelFormat: the engine cannot parse the resolved file.
	UnsupportedModelFormat Code = "UnsupportedModelFormat"
	// DownloadFailed: network or transfer failure, including non-2xx
	// HTTP responses. The cache is left untouched.
	DownloadFailed Code = "DownloadFailed"
	// NodeNotFound: scene-graph lookup miss.
	NodeNotFound Code = "NodeNotFound"
	// CacheError: filesystem failure during cache store/clear. Callers
	// should treat the cache as best-effort afterwards.
	CacheError Code = "CacheError"
	// Unknown: an internal error that maps to no other code.
	Unknown Code = "Unknown"
)

// Error is a structured command-boundary error.
type Error struct {
	Code    Code
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with the given code and formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err
// yields a plain coded error so call sites need not branch.
func Wrap(code Code, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the code from an error chain. Nil maps to the empty
// code, a chain without a *Error maps to Unknown.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return Unknown
}

// Is reports whether the error chain carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// Convert returns err as a *Error, wrapping anything unclassified as
// Unknown. A nil err stays nil.
func Convert(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Code: Unknown, Message: err.Error(), Err: err}
}
