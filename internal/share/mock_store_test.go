package share_test

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/share-links/internal/share"
	"github.com/serroba/share-links/internal/store"
)

// countingStore counts reads and writes reaching the wrapped store.
type countingStore struct {
	share.Store
	mu     sync.Mutex
	reads  int
	writes int
}

func (c *countingStore) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()

	return c.Store.Get(ctx, key)
}

func (c *countingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()

	return c.Store.Set(ctx, key, value, ttl)
}

// racyStore lets another writer commit a stolen key between lookup and commit.
type racyStore struct {
	*store.MemoryStore
	steal map[string]bool
}

func (r *racyStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if r.steal[key] {
		_, _ = r.MemoryStore.SetNX(ctx, key, "https://thief.example", ttl)
	}

	return r.MemoryStore.SetNX(ctx, key, value, ttl)
}

// plainStore hides SetNX so the coordinator falls back to Set.
type plainStore struct {
	inner *store.MemoryStore
	sets  int
}

func (p *plainStore) Get(ctx context.Context, key string) (string, error) {
	return p.inner.Get(ctx, key)
}

func (p *plainStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	p.sets++

	return p.inner.Set(ctx, key, value, ttl)
}

type failingStore struct {
	getErr error
	setErr error
}

func (f *failingStore) Get(_ context.Context, _ string) (string, error) {
	return "", f.getErr
}

func (f *failingStore) Set(_ context.Context, _, _ string, _ time.Duration) error {
	return f.setErr
}

type recordingObserver struct {
	mu         sync.Mutex
	issued     []int
	collisions int
	exhausted  int
	resolved   []bool
}

func (o *recordingObserver) Issued(attempts int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.issued = append(o.issued, attempts)
}

func (o *recordingObserver) Collision() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.collisions++
}

func (o *recordingObserver) Exhausted() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.exhausted++
}

func (o *recordingObserver) Resolved(found bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.resolved = append(o.resolved, found)
}
