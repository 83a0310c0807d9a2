package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidToken covers signature, expiry and structural failures alike.
	// The single kind keeps callers from building an oracle out of which
	// check failed; wrapped messages stay available for diagnostics.
	ErrInvalidToken = errors.New("auth: invalid token")

	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrRevoked            = errors.New("auth: token revoked")
	ErrInactiveIdentity   = errors.New("auth: identity inactive")
	ErrForbidden          = errors.New("auth: forbidden")

	ErrDuplicateRevocation = errors.New("auth: token already revoked")
	ErrNotFound            = errors.New("auth: not found")
)

// WeakPasswordError reports every violated password rule, not just the first.
type WeakPasswordError struct {
	Reasons []string
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("auth: weak password: %s", strings.Join(e.Reasons, "; "))
}

// IsWeakPassword reports whether err is a password policy violation and
// returns the attached reasons.
func IsWeakPassword(err error) (*WeakPasswordError, bool) {
	var weak *WeakPasswordError
	if errors.As(err, &weak) {
		return weak, true
	}
	return nil, false
}
