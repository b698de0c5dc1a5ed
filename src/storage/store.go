package storage

import (
	"context"
	"errors"
	"line_chatbot/src/model"
	"time"
)

// ErrNotFound is returned by typed helpers when a key is absent or expired
var ErrNotFound = errors.New("storage: key not found")

// SessionStore is a string key/value cache with per-key TTL.
// Every write replaces the value and resets the TTL.
type SessionStore interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes the key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// SetNX writes the value only when the key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

const (
	sessionPrefix = "session:"
	profilePrefix = "line:profile:"
	eventPrefix   = "event:"
)

// SessionKey returns the key of the session of kind for userID
func SessionKey(kind model.FlowKind, userID string) string {
	return sessionPrefix + string(kind) + ":" + userID
}

func ProfileKey(userID string) string {
	return profilePrefix + userID
}

func EventKey(webhookEventID string) string {
	return eventPrefix + webhookEventID
}
