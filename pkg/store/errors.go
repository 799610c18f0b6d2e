package store

import "errors"

// errUnavailable is returned by every operation when no Redis backend is
// configured or reachable.
var errUnavailable = errors.New("redis store unavailable")

// IsUnavailable reports whether err means the store has no backend.
func IsUnavailable(err error) bool {
	return errors.Is(err, errUnavailable)
}
