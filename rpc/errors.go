package rpc

import (
	"errors"
	"fmt"
)

// NetworkError reports a transport-level failure: dial, timeout, or a
// non-2xx HTTP response. It carries the endpoint of the final attempt.
type NetworkError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("rpc: network failure at %s after %d attempt(s): %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError reports a structured failure returned by a node.
type RemoteError struct {
	Endpoint string
	Attempts int
	Code     int
	Message  string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc: node %s returned error %d: %s", e.Endpoint, e.Code, e.Message)
}

// IsNetwork reports whether err is (or wraps) a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsRemote reports whether err is (or wraps) a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
