package core

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrSessionExpired is returned whenever the API answers 401 or the bearer token is past its expiry.
	// It is fatal to the session: callers sign out and go back to the login view, no retry.
	ErrSessionExpired = errors.New("session expired")

	// ErrForbidden is returned on 403. Views render a denied/empty state.
	ErrForbidden = errors.New("permission denied")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// APIError is a non-success response from the remote API (other than 401/403).
type APIError struct {
	StatusCode int
	Message    string
}

func (err *APIError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("api: %d %s", err.StatusCode, http.StatusText(err.StatusCode))
	}
	return fmt.Sprintf("api: %d %s", err.StatusCode, err.Message)
}

// TransportError wraps a failure to reach the remote API at all.
type TransportError struct {
	Err error
}

func (err *TransportError) Error() string { return "api transport: " + err.Err.Error() }
func (err *TransportError) Unwrap() error { return err.Err }

// IsSessionExpired reports whether err (possibly wrapped) is ErrSessionExpired.
func IsSessionExpired(err error) bool {
	return errors.Cause(err) == ErrSessionExpired
}

// IsForbidden reports whether err (possibly wrapped) is ErrForbidden.
func IsForbidden(err error) bool {
	return errors.Cause(err) == ErrForbidden
}

// IsRecoverable reports whether a failed mutation can be recovered locally by resyncing:
// transport failures and generic non-success responses are, auth failures are not.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if IsSessionExpired(err) || IsForbidden(err) {
		return false
	}
	return true
}
