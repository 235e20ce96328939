// Package ratelimit throttles the public share endpoints per client.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store records requests in sliding windows.
type Store interface {
	// Record adds a request for key and returns how many requests fall in the current window.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}

// Scope groups operations that share a budget.
type Scope string

const (
	// ScopeGlobal applies to every request.
	ScopeGlobal Scope = "global"
	// ScopeCreate applies to link creation.
	ScopeCreate Scope = "create"
	// ScopeResolve applies to link lookups and redirects.
	ScopeResolve Scope = "resolve"
)

// Limit allows Max requests per Window.
type Limit struct {
	Window time.Duration
	Max    int64
}

// Policy maps scopes to the limits enforced for them.
type Policy map[Scope][]Limit

// DefaultPolicy keeps creation much tighter than resolution.
func DefaultPolicy() Policy {
	return Policy{
		ScopeGlobal: {
			{Window: time.Minute, Max: 2000},
		},
		ScopeCreate: {
			{Window: time.Minute, Max: 10},
			{Window: time.Hour, Max: 100},
			{Window: 24 * time.Hour, Max: 500},
		},
		ScopeResolve: {
			{Window: time.Minute, Max: 1000},
		},
	}
}

// Exceeded describes the limit a request ran into.
type Exceeded struct {
	Scope Scope
	Limit Limit
	Count int64
}

func (e *Exceeded) String() string {
	return fmt.Sprintf("%s scope, %d/%d requests in %s", e.Scope, e.Count, e.Limit.Max, e.Limit.Window)
}

// Limiter enforces a Policy.
type Limiter struct {
	store  Store
	policy Policy
}

// NewLimiter creates a limiter.
func NewLimiter(store Store, policy Policy) *Limiter {
	return &Limiter{store: store, policy: policy}
}

// Allow records one request for client against every limit of the given scopes.
// It returns nil when all limits hold.
func (l *Limiter) Allow(ctx context.Context, client string, scopes ...Scope) (*Exceeded, error) {
	for _, scope := range scopes {
		for _, limit := range l.policy[scope] {
			// Each client/scope/window triple has its own counter.
			key := fmt.Sprintf("%s:%s:%d", client, scope, limit.Window.Milliseconds())

			count, err := l.store.Record(ctx, key, limit.Window)
			if err != nil {
				return nil, err
			}

			if count > limit.Max {
				return &Exceeded{Scope: scope, Limit: limit, Count: count}, nil
			}
		}
	}

	return nil, nil
}
