// Package storagetest holds the behaviour every storage engine must share, plus a fault injecting wrapper used by
// the ledger tests.
package storagetest

import (
	"context"
	"testing"

	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// ErrInjected is returned by FailingStorage while failing is switched on.
var ErrInjected = errors.New("injected commit failure")

// FailingStorage wraps a Storage, counts commits and can be told to fail them.
type FailingStorage struct {
	storage.Storage

	fail      atomic.Bool
	block     atomic.Bool
	commits   atomic.Int64
	attempts  atomic.Int64
	failAfter atomic.Int64
}

func NewFailingStorage(inner storage.Storage) *FailingStorage {
	fs := &FailingStorage{Storage: inner}
	fs.failAfter.Store(-1)
	return fs
}

// SetFail makes every following Commit return ErrInjected without touching the inner storage.
func (fs *FailingStorage) SetFail(fail bool) {
	fs.fail.Store(fail)
}

// SetBlock makes every following Commit wait until its context is done.
func (fs *FailingStorage) SetBlock(block bool) {
	fs.block.Store(block)
}

// FailNext makes the next n commits fail, then succeed again.
func (fs *FailingStorage) FailNext(n int64) {
	fs.failAfter.Store(fs.attempts.Load() + n)
}

// Commits returns how many commits reached the inner storage successfully.
func (fs *FailingStorage) Commits() int64 {
	return fs.commits.Load()
}

// Attempts returns how many commits were requested.
func (fs *FailingStorage) Attempts() int64 {
	return fs.attempts.Load()
}

func (fs *FailingStorage) Commit(ctx context.Context, rows []storage.Account) error {
	n := fs.attempts.Inc()
	if fs.block.Load() {
		<-ctx.Done()
		return ctx.Err()
	}
	if fs.fail.Load() || n <= fs.failAfter.Load() {
		return ErrInjected
	}
	if err := fs.Storage.Commit(ctx, rows); err != nil {
		return err
	}
	fs.commits.Inc()
	return nil
}

// Opener opens a fresh, empty engine for one test. Reopen, when set, closes nothing and returns a new handle on
// the same data after the previous handle was stopped.
type Opener struct {
	Open   func(t *testing.T) storage.Storage
	Reopen func(t *testing.T) storage.Storage
}

// Run runs the shared engine checks.
func Run(t *testing.T, o Opener) {
	t.Run("Empty", func(t *testing.T) { testEmpty(t, o) })
	t.Run("CommitLoad", func(t *testing.T) { testCommitLoad(t, o) })
	t.Run("Upsert", func(t *testing.T) { testUpsert(t, o) })
	t.Run("CanceledCommit", func(t *testing.T) { testCanceledCommit(t, o) })
	if o.Reopen != nil {
		t.Run("Reopen", func(t *testing.T) { testReopen(t, o) })
	}
}

func testEmpty(t *testing.T, o Opener) {
	s := o.Open(t)
	defer s.Stop()

	rows, err := s.Load(context.Background())
	require.Nil(t, err)
	require.Len(t, rows, 0)
}

func testCommitLoad(t *testing.T, o Opener) {
	s := o.Open(t)
	defer s.Stop()
	ctx := context.Background()

	require.Nil(t, s.Commit(ctx, []storage.Account{
		{ID: 10, Name: "Carol", Balance: 7},
		{ID: 2, Name: "Bob", Balance: 300},
	}))
	require.Nil(t, s.Commit(ctx, []storage.Account{{ID: 1, Name: "Alice", Balance: 500}}))

	rows, err := s.Load(ctx)
	require.Nil(t, err)
	require.Equal(t, []storage.Account{
		{ID: 1, Name: "Alice", Balance: 500},
		{ID: 2, Name: "Bob", Balance: 300},
		{ID: 10, Name: "Carol", Balance: 7},
	}, rows)
}

func testUpsert(t *testing.T, o Opener) {
	s := o.Open(t)
	defer s.Stop()
	ctx := context.Background()

	require.Nil(t, s.Commit(ctx, []storage.Account{
		{ID: 1, Name: "Alice", Balance: 500},
		{ID: 2, Name: "Bob", Balance: 300},
	}))
	require.Nil(t, s.Commit(ctx, []storage.Account{
		{ID: 1, Name: "Alice", Balance: 400},
		{ID: 2, Name: "Bob", Balance: 400},
	}))

	rows, err := s.Load(ctx)
	require.Nil(t, err)
	require.Equal(t, []storage.Account{
		{ID: 1, Name: "Alice", Balance: 400},
		{ID: 2, Name: "Bob", Balance: 400},
	}, rows)
}

func testCanceledCommit(t *testing.T, o Opener) {
	s := o.Open(t)
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NotNil(t, s.Commit(ctx, []storage.Account{{ID: 1, Name: "Alice", Balance: 500}}))

	rows, err := s.Load(context.Background())
	require.Nil(t, err)
	require.Len(t, rows, 0)
}

func testReopen(t *testing.T, o Opener) {
	s := o.Open(t)
	ctx := context.Background()
	require.Nil(t, s.Commit(ctx, []storage.Account{
		{ID: 1, Name: "Alice", Balance: 400},
		{ID: 2, Name: "Bob", Balance: 400},
	}))
	require.Nil(t, s.Stop())

	s = o.Reopen(t)
	defer s.Stop()
	rows, err := s.Load(ctx)
	require.Nil(t, err)
	require.Equal(t, []storage.Account{
		{ID: 1, Name: "Alice", Balance: 400},
		{ID: 2, Name: "Bob", Balance: 400},
	}, rows)
}
