package leveldb_storage

import (
	"context"
	"os"

	"github.com/magiconair/properties"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap-incubator/tinyledger/ledger/util/codec"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/pingcap/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"
)

// leveldb properties
const (
	leveldbPath       = "leveldb.path"
	leveldbSync       = "leveldb.sync"
	leveldbCacheSize  = "leveldb.block_cache_capacity"
	leveldbWriteBuf   = "leveldb.write_buffer"
	leveldbNoCompress = "leveldb.no_compression"
	leveldbDropData   = "leveldb.drop_data"
)

func init() {
	storage.Register("leveldb", leveldbCreator{})
}

type leveldbCreator struct{}

func (leveldbCreator) Create(p *properties.Properties) (storage.Storage, error) {
	path := p.GetString(leveldbPath, "/tmp/tinyledger/leveldb")
	if p.GetBool(leveldbDropData, false) {
		if err := os.RemoveAll(path); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	o := &opt.Options{
		BlockCacheCapacity: p.GetInt(leveldbCacheSize, 0),
		WriteBuffer:        p.GetInt(leveldbWriteBuf, 0),
	}
	if p.GetBool(leveldbNoCompress, false) {
		o.Compression = opt.NoCompression
	}
	return &LeveldbStorage{
		path: path,
		opts: o,
		sync: p.GetBool(leveldbSync, true),
	}, nil
}

// LeveldbStorage keeps account rows in a local leveldb. Each commit is one write batch.
type LeveldbStorage struct {
	path string
	opts *opt.Options
	sync bool
	db   *leveldb.DB
}

func (s *LeveldbStorage) Start() error {
	db, err := leveldb.OpenFile(s.path, s.opts)
	if err != nil {
		return errors.WithStack(err)
	}
	s.db = db
	log.Info("leveldb storage opened", zap.String("path", s.path))
	return nil
}

func (s *LeveldbStorage) Stop() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.WithStack(err)
}

func (s *LeveldbStorage) Commit(ctx context.Context, rows []storage.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	for _, row := range rows {
		batch.Put(codec.EncodeAccountKey(row.ID), codec.EncodeAccountValue(row.Name, row.Balance))
	}
	return errors.WithStack(s.db.Write(batch, &opt.WriteOptions{Sync: s.sync}))
}

func (s *LeveldbStorage) Load(ctx context.Context) ([]storage.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	iter := s.db.NewIterator(util.BytesPrefix(codec.AccountKeyPrefix), nil)
	defer iter.Release()
	var rows []storage.Account
	for iter.Next() {
		id, err := codec.DecodeAccountKey(iter.Key())
		if err != nil {
			return nil, err
		}
		name, balance, err := codec.DecodeAccountValue(iter.Value())
		if err != nil {
			return nil, errors.Annotatef(err, "account %d", id)
		}
		rows = append(rows, storage.Account{ID: id, Name: name, Balance: balance})
	}
	if err := iter.Error(); err != nil {
		return nil, errors.WithStack(err)
	}
	return rows, nil
}
