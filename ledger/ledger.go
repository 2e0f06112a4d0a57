// Package ledger holds named accounts with integer balances in memory and moves funds between them with
// all-or-nothing effect. Every committed change goes through a storage.Storage before it becomes visible.
package ledger

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/pingcap-incubator/tinyledger/ledger/config"
	"github.com/pingcap-incubator/tinyledger/ledger/latches"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Account is one row of the ledger.
type Account = storage.Account

const btreeDegree = 32

type accountItem struct {
	Account
}

func (a *accountItem) Less(than btree.Item) bool {
	return a.ID < than.(*accountItem).ID
}

// Ledger is the authoritative table of accounts. Balances of an account are only read or written while its latch
// is held, and a change is only kept once the store acknowledged it.
type Ledger struct {
	store   storage.Storage
	timeout time.Duration
	seed    []config.SeedAccount

	// mu guards the account set. Balances are guarded by latches.
	mu      sync.RWMutex
	index   *btree.BTree
	opened  atomic.Bool
	lastID  atomic.Uint64
	latches *latches.Latches
}

func New(store storage.Storage, conf *config.LedgerConfig) *Ledger {
	return &Ledger{
		store:   store,
		timeout: conf.CommitTimeout.Duration,
		seed:    conf.Seed,
		index:   btree.New(btreeDegree),
		latches: latches.NewLatches(),
	}
}

// Open restores the accounts held by the store. A store holding no accounts is seeded with the configured
// accounts in a single commit.
func (l *Ledger) Open(ctx context.Context) error {
	if !l.opened.CAS(false, true) {
		return ErrAlreadyOpen
	}
	rows, err := l.store.Load(ctx)
	if err != nil {
		l.opened.Store(false)
		return errors.Annotate(err, "load accounts")
	}
	if len(rows) == 0 && len(l.seed) > 0 {
		rows = make([]Account, 0, len(l.seed))
		for i, s := range l.seed {
			rows = append(rows, Account{ID: uint64(i + 1), Name: s.Name, Balance: s.Balance})
		}
		if err := l.commit(ctx, rows); err != nil {
			l.opened.Store(false)
			return &ErrCommitFailed{Err: err}
		}
		log.Info("ledger seeded", zap.Int("accounts", len(rows)))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, row := range rows {
		if row.Balance < 0 {
			l.index.Clear(false)
			l.lastID.Store(0)
			l.opened.Store(false)
			return errors.Errorf("stored account %d has negative balance %d", row.ID, row.Balance)
		}
		l.index.ReplaceOrInsert(&accountItem{Account: row})
		if row.ID > l.lastID.Load() {
			l.lastID.Store(row.ID)
		}
	}
	accountsGauge.Set(float64(l.index.Len()))
	log.Info("ledger opened", zap.Int("accounts", l.index.Len()), zap.Uint64("last-id", l.lastID.Load()))
	return nil
}

// Close stops the store.
func (l *Ledger) Close() error {
	return l.store.Stop()
}

func (l *Ledger) lookup(id uint64) *accountItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	item := l.index.Get(&accountItem{Account: Account{ID: id}})
	if item == nil {
		return nil
	}
	return item.(*accountItem)
}

func (l *Ledger) commit(ctx context.Context, rows []Account) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	start := time.Now()
	err := l.store.Commit(ctx, rows)
	status := "ok"
	if err != nil {
		status = "error"
	}
	storeCommitDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return err
}

// Transfer moves amount from sender to receiver. Either both balances change and the change is durable, or
// neither changes and an error says why.
func (l *Ledger) Transfer(ctx context.Context, senderID, receiverID uint64, amount int64) (err error) {
	start := time.Now()
	defer func() {
		transferCounter.WithLabelValues(transferResult(err)).Inc()
		transferDuration.Observe(time.Since(start).Seconds())
	}()

	if senderID == receiverID {
		return ErrSameAccount
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	sender := l.lookup(senderID)
	if sender == nil {
		return &ErrAccountNotFound{ID: senderID}
	}
	receiver := l.lookup(receiverID)
	if receiver == nil {
		return &ErrAccountNotFound{ID: receiverID}
	}

	ids := []uint64{senderID, receiverID}
	l.latches.WaitForLatches(ids)
	defer l.latches.ReleaseLatches(ids)
	l.latches.Validate(ids)

	if sender.Balance < amount {
		return &ErrInsufficientFunds{ID: senderID, Balance: sender.Balance, Amount: amount}
	}
	if receiver.Balance > math.MaxInt64-amount {
		return ErrBalanceOverflow
	}

	senderBefore, receiverBefore := sender.Balance, receiver.Balance
	sender.Balance -= amount
	receiver.Balance += amount
	if err := l.commit(ctx, []Account{sender.Account, receiver.Account}); err != nil {
		sender.Balance, receiver.Balance = senderBefore, receiverBefore
		log.Warn("transfer rolled back",
			zap.Uint64("from", senderID), zap.Uint64("to", receiverID), zap.Int64("amount", amount), zap.Error(err))
		return &ErrCommitFailed{Err: err}
	}
	log.Debug("transfer committed",
		zap.Uint64("from", senderID), zap.Uint64("to", receiverID), zap.Int64("amount", amount))
	return nil
}

// CreateAccount adds an account with the next id. The account becomes visible only after the store committed it.
func (l *Ledger) CreateAccount(ctx context.Context, name string, balance int64) (Account, error) {
	if name == "" {
		return Account{}, ErrInvalidName
	}
	if balance < 0 {
		return Account{}, ErrInvalidAmount
	}
	acc := Account{ID: l.lastID.Inc(), Name: name, Balance: balance}
	if err := l.commit(ctx, []Account{acc}); err != nil {
		return Account{}, &ErrCommitFailed{Err: err}
	}

	l.mu.Lock()
	l.index.ReplaceOrInsert(&accountItem{Account: acc})
	accountsGauge.Set(float64(l.index.Len()))
	l.mu.Unlock()
	log.Info("account created", zap.Uint64("id", acc.ID), zap.String("name", acc.Name), zap.Int64("balance", balance))
	return acc, nil
}

// GetAccount returns the committed state of one account.
func (l *Ledger) GetAccount(id uint64) (Account, error) {
	item := l.lookup(id)
	if item == nil {
		return Account{}, &ErrAccountNotFound{ID: id}
	}
	ids := []uint64{id}
	l.latches.WaitForLatches(ids)
	defer l.latches.ReleaseLatches(ids)
	return item.Account, nil
}

// GetBalance returns the committed balance of one account.
func (l *Ledger) GetBalance(id uint64) (int64, error) {
	acc, err := l.GetAccount(id)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// ListAccounts returns every account in creation order. All accounts are latched together, so the result is a
// consistent snapshot that no in-flight transfer is part of.
func (l *Ledger) ListAccounts() []Account {
	l.mu.RLock()
	items := make([]*accountItem, 0, l.index.Len())
	l.index.Ascend(func(i btree.Item) bool {
		items = append(items, i.(*accountItem))
		return true
	})
	l.mu.RUnlock()

	accounts := make([]Account, 0, len(items))
	if len(items) == 0 {
		return accounts
	}
	ids := make([]uint64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	l.latches.WaitForAllLatches(ids)
	defer l.latches.ReleaseLatches(ids)
	for _, item := range items {
		accounts = append(accounts, item.Account)
	}
	return accounts
}

// TotalBalance returns the sum of all balances of a consistent snapshot.
func (l *Ledger) TotalBalance() int64 {
	var total int64
	for _, acc := range l.ListAccounts() {
		total += acc.Balance
	}
	return total
}
