package share_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/serroba/share-links/internal/share"
	"github.com/serroba/share-links/internal/store"
	"github.com/serroba/share-links/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "https://example.edu/course/cs101"

func newTestCoordinator(t *testing.T, s share.Store, opts ...share.Option) *share.Coordinator {
	t.Helper()

	gen, err := token.NewGenerator(share.DefaultTokenLength)
	require.NoError(t, err)

	c, err := share.NewCoordinator(s, gen.Generate, share.DefaultConfig(), opts...)
	require.NoError(t, err)

	return c
}

// sequence returns the given tokens in order, repeating the last one.
func sequence(tokens ...string) share.TokenGenerator {
	var (
		mu sync.Mutex
		i  int
	)

	return func() string {
		mu.Lock()
		defer mu.Unlock()

		tok := tokens[min(i, len(tokens)-1)]
		i++

		return tok
	}
}

func TestCoordinator_RoundTrip(t *testing.T) {
	c := newTestCoordinator(t, store.NewMemoryStore())

	link, err := c.Create(context.Background(), testURL)
	require.NoError(t, err)
	assert.Len(t, string(link.Token), share.DefaultTokenLength)
	assert.Equal(t, testURL, link.URL)

	got, err := c.Resolve(context.Background(), string(link.Token))
	require.NoError(t, err)
	assert.Equal(t, testURL, got)
}

func TestCoordinator_Example(t *testing.T) {
	c, err := share.NewCoordinator(store.NewMemoryStore(), sequence("aZ3kQ9"), share.DefaultConfig())
	require.NoError(t, err)

	link, err := c.Create(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, share.Token("aZ3kQ9"), link.Token)
	assert.Equal(t, "https://beyondsyllabus.in/share/aZ3kQ9", c.ShortURL(link.Token))

	got, err := c.Resolve(context.Background(), "aZ3kQ9")
	require.NoError(t, err)
	assert.Equal(t, testURL, got)

	_, err = c.Resolve(context.Background(), "doesnotexist")
	assert.ErrorIs(t, err, share.ErrNotFound)
}

func TestCoordinator_ResolveUnknown(t *testing.T) {
	c := newTestCoordinator(t, store.NewMemoryStore())

	_, err := c.Resolve(context.Background(), "nope42")

	assert.ErrorIs(t, err, share.ErrNotFound)
}

func TestCoordinator_ResolveIsReadOnly(t *testing.T) {
	counting := &countingStore{Store: store.NewMemoryStore()}
	c := newTestCoordinator(t, counting)

	link, err := c.Create(context.Background(), testURL)
	require.NoError(t, err)

	writes := counting.writes

	for range 5 {
		got, err := c.Resolve(context.Background(), string(link.Token))

		require.NoError(t, err)
		assert.Equal(t, testURL, got)
	}

	assert.Equal(t, writes, counting.writes)
}

func TestCoordinator_ConcurrentCreates(t *testing.T) {
	c := newTestCoordinator(t, store.NewMemoryStore())

	const n = 200

	var wg sync.WaitGroup

	links := make([]*share.Link, n)
	errs := make([]error, n)

	for i := range n {
		wg.Add(1)

		go func() {
			defer wg.Done()

			links[i], errs[i] = c.Create(context.Background(), testURL+"?i="+strconv.Itoa(i))
		}()
	}

	wg.Wait()

	seen := make(map[share.Token]struct{}, n)

	for i := range n {
		require.NoError(t, errs[i])

		seen[links[i].Token] = struct{}{}

		got, err := c.Resolve(context.Background(), string(links[i].Token))
		require.NoError(t, err)
		assert.Equal(t, links[i].URL, got)
	}

	assert.Len(t, seen, n)
}

func TestCoordinator_ConcurrentCreatesSameCandidate(t *testing.T) {
	// Every racer draws "racer1" first; only one may commit it.
	s := store.NewMemoryStore()

	var wg sync.WaitGroup

	results := make([]*share.Link, 10)

	for i := range results {
		c, err := share.NewCoordinator(s, sequence("racer1", "other"+strconv.Itoa(i)), share.DefaultConfig())
		require.NoError(t, err)

		wg.Add(1)

		go func() {
			defer wg.Done()

			results[i], _ = c.Create(context.Background(), testURL)
		}()
	}

	wg.Wait()

	winners := 0

	for _, link := range results {
		require.NotNil(t, link)

		if link.Token == "racer1" {
			winners++
		}
	}

	assert.Equal(t, 1, winners)
}

func TestCoordinator_ExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	ttl := 604800 * time.Second
	cfg := share.DefaultConfig()
	cfg.TTL = ttl

	c, err := share.NewCoordinator(
		store.NewMemoryStore(store.WithClock(clock)),
		sequence("exp123"),
		cfg,
		share.WithClock(clock),
	)
	require.NoError(t, err)

	link, err := c.Create(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, now.Add(ttl), link.ExpiresAt)

	now = now.Add(ttl - time.Millisecond)

	got, err := c.Resolve(context.Background(), "exp123")
	require.NoError(t, err)
	assert.Equal(t, testURL, got)

	now = now.Add(2 * time.Millisecond)

	_, err = c.Resolve(context.Background(), "exp123")
	assert.ErrorIs(t, err, share.ErrNotFound)
}

func TestCoordinator_Exhaustion(t *testing.T) {
	t.Run("full token space fails within the attempt bound", func(t *testing.T) {
		const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

		mem := store.NewMemoryStore()

		for _, a := range alphabet {
			for _, b := range alphabet {
				_ = mem.Set(context.Background(), string(a)+string(b), "https://taken.example", time.Hour)
			}
		}

		require.Equal(t, int(token.Space(2)), mem.Len())

		counting := &countingStore{Store: mem}

		gen, err := token.NewGenerator(2)
		require.NoError(t, err)

		cfg := share.DefaultConfig()
		cfg.MaxAttempts = 50

		c, err := share.NewCoordinator(counting, gen.Generate, cfg)
		require.NoError(t, err)

		link, err := c.Create(context.Background(), testURL)

		assert.Nil(t, link)
		require.ErrorIs(t, err, share.ErrStoreExhausted)
		assert.NotErrorIs(t, err, share.ErrNotFound)
		assert.Equal(t, 50, counting.reads)
		assert.Equal(t, 0, counting.writes)
	})

	t.Run("collisions are retried with fresh tokens", func(t *testing.T) {
		mem := store.NewMemoryStore()
		_ = mem.Set(context.Background(), "taken1", "https://taken.example", time.Hour)
		_ = mem.Set(context.Background(), "taken2", "https://taken.example", time.Hour)

		obs := &recordingObserver{}

		c, err := share.NewCoordinator(mem, sequence("taken1", "taken2", "free01"), share.DefaultConfig(),
			share.WithObserver(obs))
		require.NoError(t, err)

		link, err := c.Create(context.Background(), testURL)
		require.NoError(t, err)
		assert.Equal(t, share.Token("free01"), link.Token)
		assert.Equal(t, 2, obs.collisions)
		assert.Equal(t, []int{3}, obs.issued)
	})
}

func TestCoordinator_LostCommitRace(t *testing.T) {
	racy := &racyStore{MemoryStore: store.NewMemoryStore(), steal: map[string]bool{"stolen": true}}

	c, err := share.NewCoordinator(racy, sequence("stolen", "mine01"), share.DefaultConfig())
	require.NoError(t, err)

	link, err := c.Create(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, share.Token("mine01"), link.Token)

	got, err := c.Resolve(context.Background(), "stolen")
	require.NoError(t, err)
	assert.Equal(t, "https://thief.example", got, "the first committed url must not be overwritten")
}

func TestCoordinator_PlainStoreWritesOnce(t *testing.T) {
	plain := &plainStore{inner: store.NewMemoryStore()}

	c, err := share.NewCoordinator(plain, sequence("plain1"), share.DefaultConfig())
	require.NoError(t, err)

	_, err = c.Create(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, 1, plain.sets)
}

func TestCoordinator_StoreUnavailable(t *testing.T) {
	errDown := errors.New("connection refused")

	tests := []struct {
		name  string
		store share.Store
		call  func(c *share.Coordinator) error
	}{
		{
			name:  "create lookup fails",
			store: &failingStore{getErr: errDown},
			call: func(c *share.Coordinator) error {
				_, err := c.Create(context.Background(), testURL)
				return err
			},
		},
		{
			name:  "create commit fails",
			store: &failingStore{getErr: share.ErrNotFound, setErr: errDown},
			call: func(c *share.Coordinator) error {
				_, err := c.Create(context.Background(), testURL)
				return err
			},
		},
		{
			name:  "resolve fails",
			store: &failingStore{getErr: errDown},
			call: func(c *share.Coordinator) error {
				_, err := c.Resolve(context.Background(), "abc123")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := share.NewCoordinator(tt.store, sequence("abc123"), share.DefaultConfig())
			require.NoError(t, err)

			err = tt.call(c)

			require.ErrorIs(t, err, share.ErrStoreUnavailable)
			assert.ErrorIs(t, err, errDown)
			assert.NotErrorIs(t, err, share.ErrNotFound)
		})
	}
}

func TestCoordinator_InvalidInput(t *testing.T) {
	c := newTestCoordinator(t, store.NewMemoryStore())

	_, err := c.Create(context.Background(), "")
	require.ErrorIs(t, err, share.ErrInvalidInput)

	_, err = c.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, share.ErrInvalidInput)
}

func TestNewCoordinator(t *testing.T) {
	gen := sequence("abc123")

	tests := []struct {
		name    string
		store   share.Store
		gen     share.TokenGenerator
		mutate  func(*share.Config)
		wantErr bool
	}{
		{name: "valid", store: store.NewMemoryStore(), gen: gen},
		{name: "nil store", store: nil, gen: gen, wantErr: true},
		{name: "nil generator", store: store.NewMemoryStore(), gen: nil, wantErr: true},
		{name: "zero ttl", store: store.NewMemoryStore(), gen: gen, mutate: func(c *share.Config) { c.TTL = 0 }, wantErr: true},
		{name: "zero attempts", store: store.NewMemoryStore(), gen: gen, mutate: func(c *share.Config) { c.MaxAttempts = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := share.DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}

			c, err := share.NewCoordinator(tt.store, tt.gen, cfg)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, c)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, c)
			}
		})
	}
}

func TestCoordinator_ShortURL(t *testing.T) {
	cfg := share.DefaultConfig()
	cfg.BaseURL = "http://localhost:8888/share"

	c, err := share.NewCoordinator(store.NewMemoryStore(), sequence("abc123"), cfg)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8888/share/abc123", c.ShortURL("abc123"))
}
