package vfs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dualpane/navigator/internal/location"
)

// ErrNotFound indicates the target does not exist. Recoverable via
// workable-ancestor substitution when the caller enables it.
var ErrNotFound = errors.New("location does not exist")

// ErrPermissionDenied indicates the target exists but is unreadable. Always
// surfaced to the user, never substituted.
var ErrPermissionDenied = errors.New("permission denied")

// AuthError indicates that resolution failed for lack of (valid)
// credentials. The change task recovers by re-prompting and retrying.
type AuthError struct {
	Location location.Location
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication required for %s", e.Location.Redacted())
	}
	return fmt.Sprintf("authentication failed for %s: %v", e.Location.Redacted(), e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps err as an authentication failure at loc.
func NewAuthError(loc location.Location, err error) *AuthError {
	return &AuthError{Location: loc, Err: err}
}

// IsAuthError reports whether err is (or wraps) an AuthError and returns it.
func IsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// IsNotFound reports whether err indicates plain non-existence. Besides the
// sentinel, common backend phrasings are matched so that SDK errors which
// cannot be wrapped still classify correctly.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, indicator := range []string{"no such file", "not found", "does not exist", "nosuchkey", "nosuchbucket"} {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
