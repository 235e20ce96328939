package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/serroba/share-links/internal/share"
	"go.uber.org/zap"
)

const badgerGCDiscardRatio = 0.5

// BadgerStore is an embedded Badger implementation of share.ConditionalStore.
// Badger keeps expiry in whole seconds; entries expire at the first second at or after
// now+ttl, never before it.
type BadgerStore struct {
	db     *badger.DB
	prefix []byte
	logger *zap.Logger
	now    func() time.Time
	stopCh chan struct{}
	doneCh chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// OpenBadgerStore opens (or creates) a Badger database in dir.
// An empty dir opens an in-memory database.
func OpenBadgerStore(dir string, gcInterval time.Duration, logger *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	opts.Logger = &badgerLogger{sugar: logger.Named("badger").Sugar()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		prefix: []byte("share:"),
		logger: logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if dir == "" || gcInterval <= 0 {
		close(s.doneCh)
	} else {
		go s.gcLoop(gcInterval)
	}

	return s, nil
}

func (s *BadgerStore) key(k string) []byte {
	return append(append([]byte{}, s.prefix...), k...)
}

// entry rounds the expiry up to Badger's one-second resolution.
func (s *BadgerStore) entry(key []byte, value string, ttl time.Duration) *badger.Entry {
	e := badger.NewEntry(key, []byte(value))
	e.ExpiresAt = expiresAtSeconds(s.now().Add(ttl))

	return e
}

func expiresAtSeconds(t time.Time) uint64 {
	secs := t.Unix()
	if t.Nanosecond() > 0 {
		secs++
	}

	return uint64(secs)
}

func (s *BadgerStore) Get(_ context.Context, key string) (string, error) {
	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)

		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", share.ErrNotFound
		}

		return "", fmt.Errorf("badger get: %w: %w", share.ErrStoreUnavailable, err)
	}

	return string(value), nil
}

func (s *BadgerStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(s.entry(s.key(key), value, ttl))
	})
	if err != nil {
		return fmt.Errorf("badger set: %w: %w", share.ErrStoreUnavailable, err)
	}

	return nil
}

// SetNX writes key only if it is absent. A transaction conflict with a concurrent
// writer of the same key counts as losing the race.
func (s *BadgerStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	written := false

	err := s.db.Update(func(txn *badger.Txn) error {
		k := s.key(key)

		_, err := txn.Get(k)
		if err == nil {
			return nil
		}

		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		written = true

		return txn.SetEntry(s.entry(k, value, ttl))
	})
	if err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return false, nil
		}

		return false, fmt.Errorf("badger setnx: %w: %w", share.ErrStoreUnavailable, err)
	}

	return written, nil
}

// Ping reports whether the database is open.
func (s *BadgerStore) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: db closed")
	}

	return nil
}

// Shutdown stops the GC loop and closes the database. Later calls return the first result.
func (s *BadgerStore) Shutdown() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh

		if err := s.db.Close(); err != nil {
			s.closeErr = fmt.Errorf("badger: close db: %w", err)
		}
	})

	return s.closeErr
}

func (s *BadgerStore) gcLoop(interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runGC()
		}
	}
}

// runGC rewrites value log files until Badger reports nothing left to reclaim.
func (s *BadgerStore) runGC() {
	for {
		err := s.db.RunValueLogGC(badgerGCDiscardRatio)
		if err == nil {
			continue
		}

		if !errors.Is(err, badger.ErrNoRewrite) {
			s.logger.Warn("badger value log gc failed", zap.Error(err))
		}

		return
	}
}

// badgerLogger adapts zap to badger.Logger.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{})   { l.sugar.Errorf(f, v...) }
func (l *badgerLogger) Warningf(f string, v ...interface{}) { l.sugar.Warnf(f, v...) }
func (l *badgerLogger) Infof(f string, v ...interface{})    { l.sugar.Debugf(f, v...) }
func (l *badgerLogger) Debugf(f string, v ...interface{})   { l.sugar.Debugf(f, v...) }

var _ share.ConditionalStore = (*BadgerStore)(nil)
