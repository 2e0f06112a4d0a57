package codec

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountKeyOrder(t *testing.T) {
	ids := []uint64{1, 256, 2, 1 << 40, 255, 3}
	keys := make([][]byte, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, EncodeAccountKey(id))
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	var prev uint64
	for _, key := range keys {
		id, err := DecodeAccountKey(key)
		require.Nil(t, err)
		assert.True(t, id > prev)
		prev = id
	}
}

func TestDecodeBadAccountKey(t *testing.T) {
	_, err := DecodeAccountKey([]byte("a_"))
	assert.NotNil(t, err)
	_, err = DecodeAccountKey([]byte("b_12345678"))
	assert.NotNil(t, err)
}

func TestTextKey(t *testing.T) {
	k1 := EncodeTextKey("account/", 9)
	k2 := EncodeTextKey("account/", 10)
	assert.True(t, k1 < k2)

	id, err := DecodeTextKey("account/", k2)
	require.Nil(t, err)
	assert.Equal(t, uint64(10), id)

	_, err = DecodeTextKey("account/", "other/1")
	assert.NotNil(t, err)
	_, err = DecodeTextKey("account/", "account/x")
	assert.NotNil(t, err)
}

func TestAccountValue(t *testing.T) {
	for _, c := range []struct {
		name    string
		balance int64
	}{
		{"Alice", 500},
		{"", 0},
		{"Bob the builder", 1 << 50},
	} {
		name, balance, err := DecodeAccountValue(EncodeAccountValue(c.name, c.balance))
		require.Nil(t, err)
		assert.Equal(t, c.name, name)
		assert.Equal(t, c.balance, balance)
	}
}

func TestDecodeCorruptValue(t *testing.T) {
	v := EncodeAccountValue("Alice", 500)
	_, _, err := DecodeAccountValue(v[:len(v)-1])
	assert.NotNil(t, err)
	_, _, err = DecodeAccountValue(v[:3])
	assert.NotNil(t, err)
	_, _, err = DecodeAccountValue([]byte{varintFlag, 2, 9})
	assert.NotNil(t, err)
}
