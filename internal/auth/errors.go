package auth

import "errors"

// Authentication failures. They are terminal: retrying with the same input
// yields the same error. The HTTP layer maps all of them to 401 and keeps
// the distinction for logs only.
var (
	// ErrInvalidCredentials covers both unknown users and wrong passwords so
	// callers cannot probe for existing usernames.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account inactive")
	ErrMalformedToken     = errors.New("malformed token")
	ErrInvalidSignature   = errors.New("invalid token signature")
	ErrTokenExpired       = errors.New("token expired")
	// ErrSubjectNotFound is raised by the gate when a validly signed token
	// names a user that no longer exists.
	ErrSubjectNotFound = errors.New("token subject not found")
)

// IsAuthError reports whether err is one of the authentication failures
// above, as opposed to an infrastructure error from the directory.
func IsAuthError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrMalformedToken),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrSubjectNotFound):
		return true
	}
	return false
}
