package handlers_test

import (
	"context"
	"errors"
	"time"

	"github.com/serroba/share-links/internal/share"
)

var errMock = errors.New("mock error")

const testURL = "https://beyondsyllabus.in/vtu/cse/2022/5/bcs501"

// mockStore is a test double for share.Store that can be configured to fail.
type mockStore struct {
	getErr error
	setErr error
	value  string
}

func (m *mockStore) Get(_ context.Context, _ string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}

	if m.value == "" {
		return "", share.ErrNotFound
	}

	return m.value, nil
}

func (m *mockStore) Set(_ context.Context, _, _ string, _ time.Duration) error {
	return m.setErr
}
