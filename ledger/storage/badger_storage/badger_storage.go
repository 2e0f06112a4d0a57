package badger_storage

import (
	"context"
	"os"

	"github.com/Connor1996/badger"
	"github.com/magiconair/properties"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap-incubator/tinyledger/ledger/util/codec"
	"github.com/pingcap-incubator/tinyledger/ledger/util/typeutil"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// badger properties
const (
	badgerDir                     = "badger.dir"
	badgerValueDir                = "badger.value_dir"
	badgerSyncWrites              = "badger.sync_writes"
	badgerNumCompactors           = "badger.num_compactors"
	badgerValueThreshold          = "badger.value_threshold"
	badgerMaxTableSize            = "badger.max_table_size"
	badgerNumMemtables            = "badger.num_memtables"
	badgerNumLevelZeroTables      = "badger.num_level0_tables"
	badgerNumLevelZeroTablesStall = "badger.num_level0_tables_stall"
	badgerValueLogFileSize        = "badger.value_log_file_size"
	badgerMaxCacheSize            = "badger.max_cache_size"
	badgerDropData                = "badger.drop_data"
)

func init() {
	storage.Register("badger", badgerCreator{})
}

type badgerCreator struct{}

func (badgerCreator) Create(p *properties.Properties) (storage.Storage, error) {
	opts, err := getOptions(p)
	if err != nil {
		return nil, err
	}
	if p.GetBool(badgerDropData, false) {
		if err := os.RemoveAll(opts.Dir); err != nil {
			return nil, errors.WithStack(err)
		}
		if err := os.RemoveAll(opts.ValueDir); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return NewBadgerStorage(opts), nil
}

func getOptions(p *properties.Properties) (badger.Options, error) {
	opts := badger.DefaultOptions
	opts.Dir = p.GetString(badgerDir, "/tmp/tinyledger/badger")
	opts.ValueDir = p.GetString(badgerValueDir, opts.Dir)
	opts.SyncWrites = p.GetBool(badgerSyncWrites, true)
	opts.NumCompactors = p.GetInt(badgerNumCompactors, opts.NumCompactors)
	opts.ValueThreshold = p.GetInt(badgerValueThreshold, opts.ValueThreshold)
	opts.NumMemtables = p.GetInt(badgerNumMemtables, opts.NumMemtables)
	opts.NumLevelZeroTables = p.GetInt(badgerNumLevelZeroTables, opts.NumLevelZeroTables)
	opts.NumLevelZeroTablesStall = p.GetInt(badgerNumLevelZeroTablesStall, opts.NumLevelZeroTablesStall)

	var err error
	if opts.MaxTableSize, err = getByteSize(p, badgerMaxTableSize, opts.MaxTableSize); err != nil {
		return opts, err
	}
	if opts.ValueLogFileSize, err = getByteSize(p, badgerValueLogFileSize, opts.ValueLogFileSize); err != nil {
		return opts, err
	}
	if opts.MaxCacheSize, err = getByteSize(p, badgerMaxCacheSize, opts.MaxCacheSize); err != nil {
		return opts, err
	}
	return opts, nil
}

func getByteSize(p *properties.Properties, key string, def int64) (int64, error) {
	s, ok := p.Get(key)
	if !ok {
		return def, nil
	}
	var size typeutil.ByteSize
	if err := size.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Annotatef(err, "invalid %s", key)
	}
	return int64(size), nil
}

// BadgerStorage keeps account rows in a local Badger DB. Each commit is one badger transaction, so both rows of a
// transfer land together or not at all.
type BadgerStorage struct {
	opts badger.Options
	db   *badger.DB
}

func NewBadgerStorage(opts badger.Options) *BadgerStorage {
	return &BadgerStorage{opts: opts}
}

func (s *BadgerStorage) Start() error {
	if err := os.MkdirAll(s.opts.Dir, os.ModePerm); err != nil {
		return errors.WithStack(err)
	}
	if err := os.MkdirAll(s.opts.ValueDir, os.ModePerm); err != nil {
		return errors.WithStack(err)
	}
	db, err := badger.Open(s.opts)
	if err != nil {
		return errors.WithStack(err)
	}
	s.db = db
	log.Info("badger storage opened", zap.String("dir", s.opts.Dir))
	return nil
}

func (s *BadgerStorage) Stop() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.WithStack(err)
}

func (s *BadgerStorage) Commit(ctx context.Context, rows []storage.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, row := range rows {
			if err := txn.Set(codec.EncodeAccountKey(row.ID), codec.EncodeAccountValue(row.Name, row.Balance)); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.WithStack(err)
}

func (s *BadgerStorage) Load(ctx context.Context) ([]storage.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []storage.Account
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(codec.AccountKeyPrefix); it.ValidForPrefix(codec.AccountKeyPrefix); it.Next() {
			item := it.Item()
			id, err := codec.DecodeAccountKey(item.Key())
			if err != nil {
				return err
			}
			val, err := item.Value()
			if err != nil {
				return err
			}
			name, balance, err := codec.DecodeAccountValue(val)
			if err != nil {
				return errors.Annotatef(err, "account %d", id)
			}
			rows = append(rows, storage.Account{ID: id, Name: name, Balance: balance})
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return rows, nil
}

// Get reads one row straight from the DB.
func (s *BadgerStorage) Get(id uint64) (storage.Account, error) {
	var acc storage.Account
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(codec.EncodeAccountKey(id))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		name, balance, err := codec.DecodeAccountValue(val)
		if err != nil {
			return err
		}
		acc = storage.Account{ID: id, Name: name, Balance: balance}
		return nil
	})
	return acc, err
}
