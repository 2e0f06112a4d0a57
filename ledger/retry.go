package ledger

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pingcap-incubator/tinyledger/log"
	"go.uber.org/zap"
)

// NewBackOff returns the default retry policy: exponential from 50ms, at most retries retries.
func NewBackOff(retries uint64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	return backoff.WithMaxRetries(b, retries)
}

// RetryTransfer calls Transfer until it succeeds, fails with an error other than ErrCommitFailed, or b gives up.
// Only ErrCommitFailed is retried because it is the one failure that leaves the ledger unchanged for reasons
// outside the caller's control. If ctx ends while waiting for the next attempt, the last ErrCommitFailed is
// returned rather than the bare context error.
func RetryTransfer(ctx context.Context, l *Ledger, b backoff.BackOff, senderID, receiverID uint64, amount int64) error {
	attempt := 0
	var lastErr error
	op := func() error {
		attempt++
		err := l.Transfer(ctx, senderID, receiverID, amount)
		if err == nil || IsRetryable(err) {
			lastErr = err
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		log.Warn("retry transfer", zap.Int("attempt", attempt), zap.Duration("backoff", next), zap.Error(err))
	}
	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if perm, ok := err.(*backoff.PermanentError); ok {
		return perm.Err
	}
	if err != nil && !IsRetryable(err) && IsRetryable(lastErr) {
		return lastErr
	}
	return err
}
