package chain

import (
	"encoding/hex"
	"fmt"
	"time"
)

// Authority is the signing permission tier an operation requires.
type Authority string

const (
	AuthorityPosting Authority = "posting"
	AuthorityActive  Authority = "active"
)

// TimeFormat is the node-side timestamp layout (UTC, no zone suffix).
const TimeFormat = "2006-01-02T15:04:05"

// MainnetChainID is the default chain identifier used when signing.
const MainnetChainID = "beeab0de00000000000000000000000000000000000000000000000000000000"

// DecodeChainID parses a hex chain ID into the 32 raw bytes signing expects.
func DecodeChainID(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("chain: invalid chain id: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("chain: chain id must be 32 bytes, got %d", len(b))
	}
	return b, nil
}

// Time wraps time.Time with the node's JSON layout.
type Time struct {
	time.Time
}

func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(TimeFormat) + `"`), nil
}

func (t *Time) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := time.Parse(TimeFormat, s)
	if err != nil {
		return fmt.Errorf("chain: invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// ValidationError reports caller-supplied data that fails a precondition.
// It is always raised before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("chain: invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a named field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
