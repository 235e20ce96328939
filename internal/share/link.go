package share

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a token was never issued or has expired.
	ErrNotFound = errors.New("link not found or expired")
	// ErrStoreUnavailable wraps backend failures. Callers may retry.
	ErrStoreUnavailable = errors.New("link store unavailable")
	// ErrStoreExhausted is returned when no free token was found within the attempt bound.
	ErrStoreExhausted = errors.New("token space exhausted")
	// ErrInvalidInput is returned for empty urls or tokens.
	ErrInvalidInput = errors.New("invalid input")
)

// Token is an opaque short identifier.
type Token string

// Link is the record held by the store for a token.
type Link struct {
	Token     Token
	URL       string
	ExpiresAt time.Time
}

// Store is an expiring key-value store.
// Get returns ErrNotFound for absent or expired keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// ConditionalStore is implemented by stores that can write a key only when it is absent.
// SetNX reports false when another writer already holds the key.
type ConditionalStore interface {
	Store
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}
