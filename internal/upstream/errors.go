package upstream

import (
	"errors"
	"fmt"
)

// ErrUpstream matches every failure returned by Client.Fetch.
var ErrUpstream = errors.New("upstream request failed")

// Error describes a failed call to the upstream API.
type Error struct {
	URL string
	// StatusCode is the upstream status, or zero when no response arrived.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s returned status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUpstream) match any *Error.
func (e *Error) Is(target error) bool { return target == ErrUpstream }
