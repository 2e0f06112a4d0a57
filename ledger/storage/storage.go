package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/magiconair/properties"
	"github.com/pingcap/errors"
)

// Account is one row of the ledger. ID is assigned once and never changes, Balance is the only mutable field.
type Account struct {
	ID      uint64 `json:"id" bson:"_id"`
	Name    string `json:"name" bson:"name"`
	Balance int64  `json:"balance" bson:"balance"`
}

// Storage represents the durable store of committed account rows. The ledger calls Commit once per successful
// operation and never writes around it.
type Storage interface {
	Start() error
	Stop() error
	// Commit durably upserts rows by ID. It either applies every row or none of them, and returns only once the
	// outcome is known or ctx is done.
	Commit(ctx context.Context, rows []Account) error
	// Load returns every stored row in ascending ID order.
	Load(ctx context.Context) ([]Account, error)
}

// Creator creates a storage engine from backend properties.
type Creator interface {
	Create(p *properties.Properties) (Storage, error)
}

var (
	creatorsMu sync.RWMutex
	creators   = map[string]Creator{}
)

// Register registers a creator for the engine name. It panics if the name is taken.
func Register(name string, creator Creator) {
	creatorsMu.Lock()
	defer creatorsMu.Unlock()
	if _, ok := creators[name]; ok {
		panic(errors.Errorf("duplicate register storage engine %s", name))
	}
	creators[name] = creator
}

// GetCreator gets the Creator for the engine name, or nil.
func GetCreator(name string) Creator {
	creatorsMu.RLock()
	defer creatorsMu.RUnlock()
	return creators[name]
}

// Engines returns the registered engine names in sorted order.
func Engines() []string {
	creatorsMu.RLock()
	defer creatorsMu.RUnlock()
	names := make([]string, 0, len(creators))
	for name := range creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates and starts the named engine.
func Open(engine string, p *properties.Properties) (Storage, error) {
	creator := GetCreator(engine)
	if creator == nil {
		return nil, errors.Errorf("unsupported storage engine %q, available: %v", engine, Engines())
	}
	if p == nil {
		p = properties.NewProperties()
	}
	s, err := creator.Create(p)
	if err != nil {
		return nil, errors.Annotatef(err, "create storage engine %s", engine)
	}
	if err := s.Start(); err != nil {
		return nil, errors.Annotatef(err, "start storage engine %s", engine)
	}
	return s, nil
}

// SortAccounts sorts rows by ascending ID.
func SortAccounts(rows []Account) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
}
