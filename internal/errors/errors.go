// Package errors provides standardized error codes for the bridge.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: the subsystem that generated the error (link, frame, session, config)
//   - error: the specific error type within that domain
//
// The codes are stable identifiers: log scrapers and the doctor command
// match on them, so human-readable messages can change freely but codes
// cannot.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
const (
	// Link domain - serial port and WebSocket transport errors.
	// Link errors are non-fatal: the loop skips the cycle and the next
	// flush or read retries naturally.
	CodeLinkOpenFailed  = "link.open_failed"  // Serial port or listener could not be opened
	CodeLinkWriteFailed = "link.write_failed" // Frame or token write failed
	CodeLinkReadFailed  = "link.read_failed"  // Link read failed
	CodeLinkUnsupported = "link.unsupported"  // Serial ports unavailable on this platform

	// Frame domain - wire protocol errors. The decoder resynchronizes on
	// these rather than surfacing them, so they appear mostly in logs.
	CodeFrameInvalid   = "frame.invalid"   // Malformed header or end marker
	CodeFrameTruncated = "frame.truncated" // Stream ended inside a frame

	// Session domain - shell process lifecycle.
	CodeSessionSpawnFailed = "session.spawn_failed" // PTY or shell start failed
	CodeSessionExited      = "session.exited"       // Shell process terminated (fatal to the host loop)

	// Config domain - startup validation. These fail fast with
	// descriptive diagnostics rather than being retried.
	CodeConfigBadPort         = "config.bad_port"         // Serial port missing or not a character device
	CodeConfigInvalidGeometry = "config.invalid_geometry" // Grid or display dimensions out of range
	CodeConfigParseFailed     = "config.parse_failed"     // Config file unreadable or malformed

	// Storage domain - session event log.
	CodeStorageOpenFailed  = "storage.open_failed"  // Database open failed
	CodeStorageWriteFailed = "storage.write_failed" // Failed to record an event

	// General domain - catch-all.
	CodeUnknown = "error.unknown"
)

// CodedError wraps an error with a stable error code.
// It carries a code for programmatic handling and a message for humans.
type CodedError struct {
	Code    string // Stable error code (e.g., "link.open_failed")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// Newf creates a new CodedError with a formatted message.
func Newf(code, format string, args ...any) *CodedError {
	return &CodedError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{Code: code, Message: message, Cause: cause}
}

// GetCode extracts the error code from an error, falling back to
// CodeUnknown for errors that carry no code.
func GetCode(err error) string {
	if err == nil {
		return ""
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeUnknown
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}
