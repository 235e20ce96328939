package share

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultTokenLength = 6
	DefaultTTL         = 7 * 24 * time.Hour
	DefaultMaxAttempts = 50
	DefaultBaseURL     = "https://beyondsyllabus.in/share/"
)

// Config controls token issuance.
type Config struct {
	TTL         time.Duration
	MaxAttempts int
	BaseURL     string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TTL:         DefaultTTL,
		MaxAttempts: DefaultMaxAttempts,
		BaseURL:     DefaultBaseURL,
	}
}

// TokenGenerator returns a fresh random candidate token on each call.
type TokenGenerator func() string

// Observer is notified about issuance outcomes. Implementations must be safe for concurrent use.
type Observer interface {
	Issued(attempts int)
	Collision()
	Exhausted()
	Resolved(found bool)
}

type noopObserver struct{}

func (noopObserver) Issued(int)    {}
func (noopObserver) Collision()    {}
func (noopObserver) Exhausted()    {}
func (noopObserver) Resolved(bool) {}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source used to stamp expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		c.observer = o
	}
}

// Coordinator issues and resolves share links against a Store.
// It holds no mutable state and is safe for concurrent use.
type Coordinator struct {
	store    Store
	generate TokenGenerator
	cfg      Config
	now      func() time.Time
	observer Observer
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(store Store, generate TokenGenerator, cfg Config, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("share: store is required")
	}

	if generate == nil {
		return nil, errors.New("share: token generator is required")
	}

	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("share: ttl must be positive, got %s", cfg.TTL)
	}

	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("share: max attempts must be positive, got %d", cfg.MaxAttempts)
	}

	if cfg.BaseURL != "" && !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}

	c := &Coordinator{
		store:    store,
		generate: generate,
		cfg:      cfg,
		now:      time.Now,
		observer: noopObserver{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Create allocates an unused token for targetURL and commits it with the configured TTL.
func (c *Coordinator) Create(ctx context.Context, targetURL string) (*Link, error) {
	if targetURL == "" {
		return nil, fmt.Errorf("%w: url must not be empty", ErrInvalidInput)
	}

	conditional, _ := c.store.(ConditionalStore)

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		candidate := c.generate()

		_, err := c.store.Get(ctx, candidate)
		if err == nil {
			c.observer.Collision()

			continue
		}

		if !errors.Is(err, ErrNotFound) {
			return nil, unavailable("look up token", err)
		}

		expiresAt := c.now().Add(c.cfg.TTL)

		if conditional != nil {
			ok, err := conditional.SetNX(ctx, candidate, targetURL, c.cfg.TTL)
			if err != nil {
				return nil, unavailable("commit token", err)
			}

			// Another writer took the token between lookup and commit.
			if !ok {
				c.observer.Collision()

				continue
			}
		} else if err := c.store.Set(ctx, candidate, targetURL, c.cfg.TTL); err != nil {
			return nil, unavailable("commit token", err)
		}

		c.observer.Issued(attempt)

		return &Link{
			Token:     Token(candidate),
			URL:       targetURL,
			ExpiresAt: expiresAt,
		}, nil
	}

	c.observer.Exhausted()

	return nil, fmt.Errorf("%w: no free token after %d attempts", ErrStoreExhausted, c.cfg.MaxAttempts)
}

// Resolve returns the target url stored for token.
func (c *Coordinator) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: token must not be empty", ErrInvalidInput)
	}

	url, err := c.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.observer.Resolved(false)

			return "", ErrNotFound
		}

		return "", unavailable("resolve token", err)
	}

	c.observer.Resolved(true)

	return url, nil
}

// ShortURL builds the externally visible link for token.
func (c *Coordinator) ShortURL(token Token) string {
	return c.cfg.BaseURL + string(token)
}

func unavailable(op string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
