package leadscout

import (
	"errors"
	"fmt"
)

// Application error codes.
const (
	ECONFLICT = "conflict"
	EINTERNAL = "internal"
	EINVALID  = "invalid"
	ENOTFOUND = "not_found"

	// ETRANSIENT marks a fetch failure worth retrying (timeouts, 5xx, 429).
	ETRANSIENT = "transient"
	// EPERMANENT marks a fetch failure that must not be retried (4xx, robots).
	EPERMANENT = "permanent"
	// ECHALLENGE marks an automation challenge. Callers pause, they don't fail.
	ECHALLENGE = "challenge"
	// EMODEL marks a failed or malformed language model invocation.
	EMODEL = "model"
	// ECORRUPT marks persisted state that cannot be read back.
	ECORRUPT = "corrupt"
)

// ErrDuplicateContent is returned when fetched content matches what is already
// stored. It signals an expected no-op.
var ErrDuplicateContent = Errorf(ECONFLICT, "duplicate content")

// Error represents an application-specific error.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("leadscout error: code=%s message=%s", e.Code, e.Message)
}

// Errorf is a helper function to return an Error with a given code and
// formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error."
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	return ErrorCode(err) == ETRANSIENT
}
