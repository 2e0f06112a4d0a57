package redis_storage

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/magiconair/properties"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap-incubator/tinyledger/ledger/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("TINYLEDGER_REDIS_ADDR")
	if addr == "" {
		t.Skip("TINYLEDGER_REDIS_ADDR not set")
	}
	var prefix string
	open := func(t *testing.T) storage.Storage {
		p := properties.NewProperties()
		p.Set(redisAddr, addr)
		p.Set(redisPrefix, prefix)
		s, err := storage.Open("redis", p)
		require.Nil(t, err)
		return s
	}
	storagetest.Run(t, storagetest.Opener{
		Open: func(t *testing.T) storage.Storage {
			prefix = fmt.Sprintf("tinyledger-test-%d:", time.Now().UnixNano())
			return open(t)
		},
		Reopen: open,
	})
}

func TestRedisKeys(t *testing.T) {
	s := &RedisStorage{prefix: "x:"}
	assert.Equal(t, "x:accounts", s.indexKey())
	assert.Equal(t, "x:account:00000000000000000042", s.accountKey(42))
}
