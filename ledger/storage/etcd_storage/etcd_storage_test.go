package etcd_storage

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

func TestEtcdStorage(t *testing.T) {
	endpoints := os.Getenv("TINYLEDGER_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("TINYLEDGER_ETCD_ENDPOINTS not set")
	}
	var prefix string
	open := func(t *testing.T) storage.Storage {
		p := properties.NewProperties()
		p.Set(etcdEndpoints, endpoints)
		p.Set(etcdPrefix, prefix)
		s, err := storage.Open("etcd", p)
		require.Nil(t, err)
		return s
	}
	storagetest.Run(t, storagetest.Opener{
		Open: func(t *testing.T) storage.Storage {
			prefix = fmt.Sprintf("/tinyledger-test/%d/", time.Now().UnixNano())
			return open(t)
		},
		Reopen: open,
	})
}

func TestEtcdConfig(t *testing.T) {
	p := properties.NewProperties()
	p.Set(etcdEndpoints, "a:2379,b:2379")
	p.Set(etcdDialTimeout, "5s")
	s, err := etcdCreator{}.Create(p)
	require.Nil(t, err)
	es := s.(*EtcdStorage)
	assert.Equal(t, []string{"a:2379", "b:2379"}, es.cfg.Endpoints)
	assert.Equal(t, 5*time.Second, es.cfg.DialTimeout)
	assert.Equal(t, "/tinyledger/accounts/", es.prefix)
}
