package redis_storage

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v9"
	"github.com/magiconair/properties"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap-incubator/tinyledger/ledger/util/codec"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// redis properties
const (
	redisAddr        = "redis.addr"
	redisPassword    = "redis.password"
	redisDB          = "redis.db"
	redisPrefix      = "redis.prefix"
	redisDialTimeout = "redis.dial_timeout"
	redisMaxRetries  = "redis.max_retries"

	redisAddrDefault = "127.0.0.1:6379"
)

func init() {
	storage.Register("redis", redisCreator{})
}

type redisCreator struct{}

func (redisCreator) Create(p *properties.Properties) (storage.Storage, error) {
	opts := &goredis.Options{}
	opts.Addr = p.GetString(redisAddr, redisAddrDefault)
	opts.DB = p.GetInt(redisDB, 0)
	opts.Password, _ = p.Get(redisPassword)
	opts.DialTimeout = p.GetParsedDuration(redisDialTimeout, 5*time.Second)
	opts.MaxRetries = p.GetInt(redisMaxRetries, 0)
	return &RedisStorage{
		opts:   opts,
		prefix: p.GetString(redisPrefix, "tinyledger:"),
	}, nil
}

// RedisStorage keeps each account as a string key holding the encoded row, plus a set indexing every account key.
// A commit is one MULTI/EXEC block.
type RedisStorage struct {
	opts   *goredis.Options
	prefix string
	client *goredis.Client
}

func (s *RedisStorage) indexKey() string {
	return s.prefix + "accounts"
}

func (s *RedisStorage) accountKey(id uint64) string {
	return codec.EncodeTextKey(s.prefix+"account:", id)
}

func (s *RedisStorage) Start() error {
	client := goredis.NewClient(s.opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return errors.WithStack(err)
	}
	s.client = client
	log.Info("redis storage connected", zap.String("addr", s.opts.Addr), zap.String("prefix", s.prefix))
	return nil
}

func (s *RedisStorage) Stop() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return errors.WithStack(err)
}

func (s *RedisStorage) Commit(ctx context.Context, rows []storage.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, row := range rows {
			key := s.accountKey(row.ID)
			pipe.Set(ctx, key, codec.EncodeAccountValue(row.Name, row.Balance), 0)
			pipe.SAdd(ctx, s.indexKey(), key)
		}
		return nil
	})
	return errors.WithStack(err)
}

func (s *RedisStorage) Load(ctx context.Context) ([]storage.Account, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	rows := make([]storage.Account, 0, len(keys))
	for i, key := range keys {
		id, err := codec.DecodeTextKey(s.prefix+"account:", key)
		if err != nil {
			return nil, err
		}
		v, ok := values[i].(string)
		if !ok {
			return nil, errors.Errorf("account %d is indexed but missing", id)
		}
		name, balance, err := codec.DecodeAccountValue([]byte(v))
		if err != nil {
			return nil, errors.Annotatef(err, "account %d", id)
		}
		rows = append(rows, storage.Account{ID: id, Name: name, Balance: balance})
	}
	storage.SortAccounts(rows)
	return rows, nil
}
