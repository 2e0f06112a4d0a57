package etcd_storage

import (
	"context"
	"strings"
	"time"

	"github.com/magiconair/properties"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap-incubator/tinyledger/ledger/util/codec"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/pingcap/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// etcd properties
const (
	etcdEndpoints   = "etcd.endpoints"
	etcdDialTimeout = "etcd.dial_timeout"
	etcdPrefix      = "etcd.prefix"
)

func init() {
	storage.Register("etcd", etcdCreator{})
}

type etcdCreator struct{}

func (etcdCreator) Create(p *properties.Properties) (storage.Storage, error) {
	endpoints := p.GetString(etcdEndpoints, "localhost:2379")
	return &EtcdStorage{
		cfg: clientv3.Config{
			Endpoints:   strings.Split(endpoints, ","),
			DialTimeout: p.GetParsedDuration(etcdDialTimeout, 2*time.Second),
		},
		prefix: p.GetString(etcdPrefix, "/tinyledger/accounts/"),
	}, nil
}

// EtcdStorage keeps one key per account under a prefix. A commit is one etcd transaction.
type EtcdStorage struct {
	cfg    clientv3.Config
	prefix string
	client *clientv3.Client
}

func (s *EtcdStorage) Start() error {
	client, err := clientv3.New(s.cfg)
	if err != nil {
		return errors.WithStack(err)
	}
	s.client = client
	log.Info("etcd storage connected", zap.Strings("endpoints", s.cfg.Endpoints), zap.String("prefix", s.prefix))
	return nil
}

func (s *EtcdStorage) Stop() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return errors.WithStack(err)
}

func (s *EtcdStorage) Commit(ctx context.Context, rows []storage.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ops := make([]clientv3.Op, 0, len(rows))
	for _, row := range rows {
		ops = append(ops, clientv3.OpPut(codec.EncodeTextKey(s.prefix, row.ID), string(codec.EncodeAccountValue(row.Name, row.Balance))))
	}
	resp, err := s.client.Txn(ctx).Then(ops...).Commit()
	if err != nil {
		return errors.WithStack(err)
	}
	if !resp.Succeeded {
		return errors.New("etcd transaction not applied")
	}
	return nil
}

func (s *EtcdStorage) Load(ctx context.Context) ([]storage.Account, error) {
	resp, err := s.client.Get(ctx, s.prefix, clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	rows := make([]storage.Account, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		id, err := codec.DecodeTextKey(s.prefix, string(kv.Key))
		if err != nil {
			return nil, err
		}
		name, balance, err := codec.DecodeAccountValue(kv.Value)
		if err != nil {
			return nil, errors.Annotatef(err, "account %d", id)
		}
		rows = append(rows, storage.Account{ID: id, Name: name, Balance: balance})
	}
	return rows, nil
}
