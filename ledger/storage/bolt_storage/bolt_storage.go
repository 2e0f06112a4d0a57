package bolt_storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
	"github.com/magiconair/properties"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap-incubator/tinyledger/ledger/util/codec"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// bolt properties
const (
	boltPath       = "bolt.path"
	boltBucket     = "bolt.bucket"
	boltTimeout    = "bolt.timeout"
	boltNoGrowSync = "bolt.no_grow_sync"
	boltDropData   = "bolt.drop_data"
)

func init() {
	storage.Register("bolt", boltCreator{})
}

type boltCreator struct{}

func (boltCreator) Create(p *properties.Properties) (storage.Storage, error) {
	path := p.GetString(boltPath, "/tmp/tinyledger/bolt.db")
	if p.GetBool(boltDropData, false) {
		if err := os.RemoveAll(path); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	opts := *bolt.DefaultOptions
	opts.Timeout = p.GetParsedDuration(boltTimeout, 0)
	opts.NoGrowSync = p.GetBool(boltNoGrowSync, false)
	return &BoltStorage{
		path:   path,
		bucket: []byte(p.GetString(boltBucket, "accounts")),
		opts:   &opts,
	}, nil
}

// BoltStorage keeps account rows in one bucket of a bolt file. Each commit is one read-write bolt transaction.
type BoltStorage struct {
	path   string
	bucket []byte
	opts   *bolt.Options
	db     *bolt.DB
}

func (s *BoltStorage) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.path), os.ModePerm); err != nil {
		return errors.WithStack(err)
	}
	db, err := bolt.Open(s.path, 0600, s.opts)
	if err != nil {
		return errors.WithStack(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		db.Close()
		return errors.WithStack(err)
	}
	s.db = db
	log.Info("bolt storage opened", zap.String("path", s.path))
	return nil
}

func (s *BoltStorage) Stop() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.WithStack(err)
}

func (s *BoltStorage) Commit(ctx context.Context, rows []storage.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, row := range rows {
			if err := b.Put(codec.EncodeAccountKey(row.ID), codec.EncodeAccountValue(row.Name, row.Balance)); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.WithStack(err)
}

func (s *BoltStorage) Load(ctx context.Context) ([]storage.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []storage.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			id, err := codec.DecodeAccountKey(k)
			if err != nil {
				return err
			}
			name, balance, err := codec.DecodeAccountValue(v)
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
