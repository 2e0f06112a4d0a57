package bolt_storage

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/magiconair/properties"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap-incubator/tinyledger/ledger/storage/storagetest"
	"github.com/stretchr/testify/require"
)

func TestBoltStorage(t *testing.T) {
	var dir string
	open := func(t *testing.T) storage.Storage {
		p := properties.NewProperties()
		p.Set(boltPath, filepath.Join(dir, "ledger.db"))
		s, err := storage.Open("bolt", p)
		require.Nil(t, err)
		return s
	}
	storagetest.Run(t, storagetest.Opener{
		Open: func(t *testing.T) storage.Storage {
			var err error
			dir, err = ioutil.TempDir("", "bolt_storage")
			require.Nil(t, err)
			t.Cleanup(func() { os.RemoveAll(dir) })
			return open(t)
		},
		Reopen: open,
	})
}
