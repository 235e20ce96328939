package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/serroba/share-links/internal/share"
)

// RetryPolicy bounds the exponential backoff applied to unavailable-store errors.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries three times starting at 50ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// Retrying wraps a store and retries calls that fail with share.ErrStoreUnavailable.
// Misses and other errors are returned immediately.
type Retrying struct {
	next   share.Store
	policy RetryPolicy
}

// RetryingConditional is Retrying over a store that also supports SetNX.
type RetryingConditional struct {
	*Retrying
	conditional share.ConditionalStore
}

// NewRetrying decorates next with retries. The result keeps SetNX when next has it.
func NewRetrying(next share.Store, policy RetryPolicy) share.Store {
	r := &Retrying{next: next, policy: policy}

	if c, ok := next.(share.ConditionalStore); ok {
		return &RetryingConditional{Retrying: r, conditional: c}
	}

	return r
}

func (r *Retrying) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.InitialInterval
	exp.MaxInterval = r.policy.MaxInterval
	exp.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.policy.MaxRetries)), ctx)
}

func classify(err error) error {
	if err == nil || errors.Is(err, share.ErrStoreUnavailable) {
		return err
	}

	return backoff.Permanent(err)
}

func (r *Retrying) Get(ctx context.Context, key string) (string, error) {
	return backoff.RetryWithData(func() (string, error) {
		v, err := r.next.Get(ctx, key)

		return v, classify(err)
	}, r.backOff(ctx))
}

func (r *Retrying) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return backoff.Retry(func() error {
		return classify(r.next.Set(ctx, key, value, ttl))
	}, r.backOff(ctx))
}

func (r *RetryingConditional) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return backoff.RetryWithData(func() (bool, error) {
		ok, err := r.conditional.SetNX(ctx, key, value, ttl)

		return ok, classify(err)
	}, r.backOff(ctx))
}

// Ping forwards to the wrapped store when it supports health checks.
func (r *Retrying) Ping(ctx context.Context) error {
	if p, ok := r.next.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}

	return nil
}

var (
	_ share.Store            = (*Retrying)(nil)
	_ share.ConditionalStore = (*RetryingConditional)(nil)
)
