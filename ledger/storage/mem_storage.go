package storage

import (
	"context"
	"sync"

	"github.com/magiconair/properties"
	"github.com/petar/GoLLRB/llrb"
)

func init() {
	Register("memory", memCreator{})
}

type memCreator struct{}

func (memCreator) Create(_ *properties.Properties) (Storage, error) {
	return NewMemStorage(), nil
}

// MemStorage is a simple storage backed by memory. Data is not written to disk, so it is intended for tests and
// demos only.
type MemStorage struct {
	mu   sync.RWMutex
	rows *llrb.LLRB
}

func NewMemStorage() *MemStorage {
	return &MemStorage{rows: llrb.New()}
}

func (ms *MemStorage) Start() error {
	return nil
}

func (ms *MemStorage) Stop() error {
	return nil
}

func (ms *MemStorage) Commit(ctx context.Context, rows []Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, row := range rows {
		ms.rows.ReplaceOrInsert(memItem(row))
	}
	return nil
}

func (ms *MemStorage) Load(ctx context.Context) ([]Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	rows := make([]Account, 0, ms.rows.Len())
	ms.rows.AscendGreaterOrEqual(memItem{}, func(item llrb.Item) bool {
		rows = append(rows, Account(item.(memItem)))
		return true
	})
	return rows, nil
}

// Get returns the stored row for id.
func (ms *MemStorage) Get(id uint64) (Account, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	result := ms.rows.Get(memItem{ID: id})
	if result == nil {
		return Account{}, false
	}
	return Account(result.(memItem)), true
}

func (ms *MemStorage) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.rows.Len()
}

type memItem Account

func (it memItem) Less(than llrb.Item) bool {
	return it.ID < than.(memItem).ID
}
