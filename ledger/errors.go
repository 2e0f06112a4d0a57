package ledger

import (
	"fmt"

	"github.com/pingcap/errors"
)

var (
	// ErrSameAccount is returned when a transfer names one account as both sender and receiver.
	ErrSameAccount = errors.New("sender and receiver must be different accounts")
	// ErrInvalidAmount is returned for a non-positive transfer amount or a negative opening balance.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidName is returned when an account is created without a name.
	ErrInvalidName = errors.New("account name must not be empty")
	// ErrBalanceOverflow is returned when a transfer would push the receiver past the largest balance.
	ErrBalanceOverflow = errors.New("balance overflow")
	// ErrAlreadyOpen is returned by a second call to Open.
	ErrAlreadyOpen = errors.New("ledger already opened")
)

// ErrAccountNotFound is returned when an operation names an id no account has.
type ErrAccountNotFound struct {
	ID uint64
}

func (e *ErrAccountNotFound) Error() string {
	return fmt.Sprintf("account %d not found", e.ID)
}

// ErrInsufficientFunds is returned when the sender's balance is below the transfer amount. Neither balance changed.
type ErrInsufficientFunds struct {
	ID      uint64
	Balance int64
	Amount  int64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds in account %d: balance %d, need %d", e.ID, e.Balance, e.Amount)
}

// ErrCommitFailed is returned when the durable store did not acknowledge a commit. The in-memory state was rolled
// back, so the whole call is safe to retry.
type ErrCommitFailed struct {
	Err error
}

func (e *ErrCommitFailed) Error() string {
	return fmt.Sprintf("commit failed: %v", e.Err)
}

func (e *ErrCommitFailed) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err leaves the ledger unchanged such that repeating the call may succeed.
func IsRetryable(err error) bool {
	_, ok := errors.Cause(err).(*ErrCommitFailed)
	return ok
}
