package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/share-links/internal/share"
	"go.uber.org/zap"
)

// PostgresStore is a PostgreSQL implementation of share.ConditionalStore.
// Rows past expires_at are invisible to reads and are removed by PurgeExpired.
type PostgresStore struct {
	pool   *pgxpool.Pool
	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}
	stop   sync.Once
}

// NewPostgresStore creates a new PostgreSQL-backed link store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

func (p *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	query := `
		SELECT url
		FROM share_links
		WHERE token = $1 AND expires_at > $2
	`

	var url string

	err := p.pool.QueryRow(ctx, query, key, p.now()).Scan(&url)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", share.ErrNotFound
		}

		return "", fmt.Errorf("postgres get: %w: %w", share.ErrStoreUnavailable, err)
	}

	return url, nil
}

func (p *PostgresStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	query := `
		INSERT INTO share_links (token, url, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE
		SET url = EXCLUDED.url, expires_at = EXCLUDED.expires_at, created_at = now()
	`

	if _, err := p.pool.Exec(ctx, query, key, value, p.now().Add(ttl)); err != nil {
		return fmt.Errorf("postgres set: %w: %w", share.ErrStoreUnavailable, err)
	}

	return nil
}

// SetNX inserts the row, or replaces an expired row that has not been purged yet.
func (p *PostgresStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO share_links (token, url, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE
		SET url = EXCLUDED.url, expires_at = EXCLUDED.expires_at, created_at = now()
		WHERE share_links.expires_at <= $4
	`

	now := p.now()

	tag, err := p.pool.Exec(ctx, query, key, value, now.Add(ttl), now)
	if err != nil {
		return false, fmt.Errorf("postgres setnx: %w: %w", share.ErrStoreUnavailable, err)
	}

	return tag.RowsAffected() == 1, nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (p *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM share_links WHERE expires_at <= $1`, p.now())
	if err != nil {
		return 0, fmt.Errorf("postgres purge: %w: %w", share.ErrStoreUnavailable, err)
	}

	return tag.RowsAffected(), nil
}

// StartJanitor purges expired rows every interval until Shutdown is called.
func (p *PostgresStore) StartJanitor(interval time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := p.PurgeExpired(ctx)
				if err != nil {
					logger.Warn("purge expired links failed", zap.Error(err))

					continue
				}

				if n > 0 {
					logger.Debug("purged expired links", zap.Int64("count", n))
				}
			}
		}
	}()
}

// Ping checks PostgreSQL connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Shutdown stops the janitor. The pool is closed by its owner. Safe to call more than once.
func (p *PostgresStore) Shutdown() error {
	p.stop.Do(func() {
		if p.cancel != nil {
			p.cancel()
			<-p.done
		}
	})

	return nil
}

var _ share.ConditionalStore = (*PostgresStore)(nil)
