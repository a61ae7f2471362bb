// Package idempotency guarantees exactly-once observable effect for retried
// requests. A client-supplied key scopes one logical operation to one user;
// the first attempt to claim the (user, key) pair runs the effect and persists
// its response, every later attempt replays that response byte for byte.
package idempotency

import (
	"errors"
	"strings"
)

const maxKeyLength = 128

// Key is a validated idempotency key. The zero value is invalid; obtain one
// via ParseKey.
type Key struct {
	value string
}

// ParseKey validates a client-supplied idempotency key: non-empty after
// trimming and at most 128 bytes. The key is otherwise opaque.
func ParseKey(raw string) (Key, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Key{}, errors.New("idempotency key must not be empty")
	}
	if len(trimmed) > maxKeyLength {
		return Key{}, errors.New("idempotency key must not exceed 128 bytes")
	}
	return Key{value: trimmed}, nil
}

func (k Key) String() string { return k.value }

// IsZero reports whether k was never parsed.
func (k Key) IsZero() bool { return k.value == "" }
