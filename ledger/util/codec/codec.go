package codec

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/pingcap/errors"
)

// AccountKeyPrefix prefixes every account row key in the byte keyed engines.
var AccountKeyPrefix = []byte("a_")

const (
	compactBytesFlag byte = 2
	varintFlag       byte = 8

	// Column ids of an account row.
	ColName    int64 = 1
	ColBalance int64 = 2

	textKeyWidth = 20
)

// EncodeAccountKey encodes an account id so that keys sort by ascending id.
func EncodeAccountKey(id uint64) []byte {
	key := make([]byte, len(AccountKeyPrefix)+8)
	copy(key, AccountKeyPrefix)
	binary.BigEndian.PutUint64(key[len(AccountKeyPrefix):], id)
	return key
}

// DecodeAccountKey is the inverse of EncodeAccountKey.
func DecodeAccountKey(key []byte) (uint64, error) {
	if len(key) != len(AccountKeyPrefix)+8 || string(key[:len(AccountKeyPrefix)]) != string(AccountKeyPrefix) {
		return 0, errors.Errorf("invalid account key %q", key)
	}
	return binary.BigEndian.Uint64(key[len(AccountKeyPrefix):]), nil
}

// EncodeTextKey is the string form of an account key for engines keyed by text. The id is zero padded
// so that lexical order matches id order.
func EncodeTextKey(prefix string, id uint64) string {
	return fmt.Sprintf("%s%0*d", prefix, textKeyWidth, id)
}

// DecodeTextKey is the inverse of EncodeTextKey.
func DecodeTextKey(prefix string, key string) (uint64, error) {
	if !strings.HasPrefix(key, prefix) {
		return 0, errors.Errorf("invalid account key %q", key)
	}
	id, err := strconv.ParseUint(key[len(prefix):], 10, 64)
	if err != nil {
		return 0, errors.Annotatef(err, "invalid account key %q", key)
	}
	return id, nil
}

// EncodeAccountValue encodes the mutable part of an account row.
// Row layout: colID1, value1, colID2, value2.
func EncodeAccountValue(name string, balance int64) []byte {
	buf := make([]byte, 0, len(name)+2*binary.MaxVarintLen64+4)
	buf = encodeInt64(buf, ColName)
	buf = encodeBytes(buf, []byte(name))
	buf = encodeInt64(buf, ColBalance)
	buf = encodeInt64(buf, balance)
	return buf
}

// DecodeAccountValue decodes a value written by EncodeAccountValue. Unknown columns are skipped.
func DecodeAccountValue(b []byte) (name string, balance int64, err error) {
	var hasName, hasBalance bool
	for len(b) > 0 {
		var colID int64
		b, colID, err = decodeInt64(b)
		if err != nil {
			return "", 0, err
		}
		if len(b) == 0 {
			return "", 0, errors.Errorf("missing value for column %d", colID)
		}
		switch b[0] {
		case compactBytesFlag:
			var v []byte
			b, v, err = decodeBytes(b)
			if err != nil {
				return "", 0, err
			}
			if colID == ColName {
				name, hasName = string(v), true
			}
		case varintFlag:
			var v int64
			b, v, err = decodeInt64(b)
			if err != nil {
				return "", 0, err
			}
			if colID == ColBalance {
				balance, hasBalance = v, true
			}
		default:
			return "", 0, errors.Errorf("invalid flag %d for column %d", b[0], colID)
		}
	}
	if !hasName || !hasBalance {
		return "", 0, errors.New("incomplete account row")
	}
	return name, balance, nil
}

func encodeInt64(b []byte, v int64) []byte {
	b = append(b, varintFlag)
	return appendVarint(b, v)
}

func encodeBytes(b []byte, v []byte) []byte {
	b = append(b, compactBytesFlag)
	b = appendVarint(b, int64(len(v)))
	return append(b, v...)
}

func appendVarint(b []byte, v int64) []byte {
	var data [binary.MaxVarintLen64]byte
	n := binary.PutVarint(data[:], v)
	return append(b, data[:n]...)
}

func decodeInt64(b []byte) ([]byte, int64, error) {
	if len(b) == 0 || b[0] != varintFlag {
		return nil, 0, errors.New("expect varint flag")
	}
	return decodeVarint(b[1:])
}

func decodeVarint(b []byte) ([]byte, int64, error) {
	v, n := binary.Varint(b)
	if n > 0 {
		return b[n:], v, nil
	}
	if n < 0 {
		return nil, 0, errors.New("value larger than 64 bits")
	}
	return nil, 0, errors.New("insufficient bytes to decode value")
}

func decodeBytes(b []byte) ([]byte, []byte, error) {
	remain, n, err := decodeVarint(b[1:])
	if err != nil {
		return nil, nil, err
	}
	if n < 0 || int64(len(remain)) < n {
		return nil, nil, errors.Errorf("insufficient bytes to decode value, expected length: %v", n)
	}
	return remain[n:], remain[:n], nil
}
