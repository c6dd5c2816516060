// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"github.com/nhle/nmail/internal/history"
)

// NewTestStore creates an in-memory history store with all migrations
// applied. It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *history.SQLiteStore {
	t.Helper()

	s, err := history.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
