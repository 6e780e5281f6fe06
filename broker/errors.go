package broker

import (
	"errors"
	"fmt"
)

// ErrCancelled reports that the user dismissed a signing prompt. It is
// an outcome, not a failure; callers drop the action silently.
var ErrCancelled = errors.New("broker: signing cancelled by user")

// ErrDuplicateInFlight reports that an identical action is already
// being authorized; the new request is rejected, not queued.
var ErrDuplicateInFlight = errors.New("broker: identical action already in flight")

// ErrNoCredential reports that no signing strategy is configured for
// the account.
var ErrNoCredential = errors.New("broker: no credential available")

// AuthorizationError reports that a signing backend rejected the
// request: an expired token, a revoked delegation, a key lacking the
// needed authority.
type AuthorizationError struct {
	Strategy string
	Reason   string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("broker: %s authorization failed: %s", e.Strategy, e.Reason)
}

// IsAuthorization reports whether err is an *AuthorizationError.
func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}
