package mongo_storage

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/magiconair/properties"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap-incubator/tinyledger/ledger/storage/storagetest"
	"github.com/stretchr/testify/require"
)

func TestMongoStorage(t *testing.T) {
	url := os.Getenv("TINYLEDGER_MONGODB_URL")
	if url == "" {
		t.Skip("TINYLEDGER_MONGODB_URL not set")
	}
	var collection string
	open := func(t *testing.T) storage.Storage {
		p := properties.NewProperties()
		p.Set(mongodbURL, url)
		p.Set(mongodbCollection, collection)
		s, err := storage.Open("mongodb", p)
		require.Nil(t, err)
		return s
	}
	storagetest.Run(t, storagetest.Opener{
		Open: func(t *testing.T) storage.Storage {
			collection = fmt.Sprintf("accounts_%d", time.Now().UnixNano())
			return open(t)
		},
		Reopen: open,
	})
}
