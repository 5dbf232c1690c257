package unittest

import (
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"
)

// RequireReturnsBefore fails the test if f is still running after duration.
func RequireReturnsBefore(t testing.TB, f func(), duration time.Duration, message string) {
	done := make(chan struct{})

	go func() {
		f()
		close(done)
	}()

	RequireCloseBefore(t, done, duration, message+": function did not return on time")
}

// RequireCloseBefore fails the test if c is still open after duration.
func RequireCloseBefore(t testing.TB, c <-chan struct{}, duration time.Duration, message string) {
	select {
	case <-time.After(duration):
		require.Fail(t, "could not close done channel on time: "+message)
	case <-c:
		return
	}
}

// RequireNeverClosedWithin fails the test if ch closes within duration.
func RequireNeverClosedWithin(t *testing.T, ch <-chan struct{}, duration time.Duration, message string) {
	select {
	case <-time.After(duration):
	case <-ch:
		require.Fail(t, "channel closed before timeout: "+message)
	}
}

type readyDoneAware interface {
	Ready() <-chan struct{}
	Done() <-chan struct{}
}

// RequireComponentsReadyBefore requires that all input components are ready before a timeout.
func RequireComponentsReadyBefore(t testing.TB, duration time.Duration, components ...readyDoneAware) {
	for _, c := range components {
		RequireCloseBefore(t, c.Ready(), duration, "component not ready on time")
	}
}

// RequireComponentsDoneBefore requires that all input components are done before a timeout.
func RequireComponentsDoneBefore(t testing.TB, duration time.Duration, components ...readyDoneAware) {
	for _, c := range components {
		RequireCloseBefore(t, c.Done(), duration, "component not done on time")
	}
}

// TempDir creates a directory which is removed by RunWithTempDir or by the caller.
func TempDir(t testing.TB) string {
	dir, err := os.MkdirTemp("", "dwallet-testing-temp-")
	require.NoError(t, err)
	return dir
}

func RunWithTempDir(t testing.TB, f func(string)) {
	dbDir := TempDir(t)
	defer os.RemoveAll(dbDir)
	f(dbDir)
}

// BadgerDB opens a badger instance in dir, creating the directory if needed.
func BadgerDB(t testing.TB, dir string) *badger.DB {
	require.NoError(t, os.MkdirAll(dir, 0o700))
	opts := badger.
		DefaultOptions(dir).
		WithKeepL0InMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	return db
}

// RunWithBadgerDB runs f against an in-process badger instance in a fresh directory.
func RunWithBadgerDB(t testing.TB, f func(*badger.DB)) {
	RunWithTempDir(t, func(dir string) {
		db := BadgerDB(t, dir)
		defer db.Close()
		f(db)
	})
}
