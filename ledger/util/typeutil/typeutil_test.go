package typeutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
)

type example struct {
	Interval Duration `toml:"interval" json:"interval"`
	Size     ByteSize `toml:"size" json:"size"`
}

func TestDurationJSON(t *testing.T) {
	ex := &example{}
	text := []byte(`{"interval":"1h1m1s","size":"64MiB"}`)
	require.Nil(t, json.Unmarshal(text, ex))
	require.Equal(t, float64(60*60+60+1), ex.Interval.Seconds())
	require.Equal(t, ByteSize(64*1024*1024), ex.Size)

	b, err := json.Marshal(ex)
	require.Nil(t, err)
	require.Contains(t, string(b), `"interval":"1h1m1s"`)
	require.Contains(t, string(b), `"size":"64MiB"`)
}

func TestDurationTOML(t *testing.T) {
	ex := &example{}
	text := []byte(`interval = "1h1m1s"
size = "1KB"`)
	require.Nil(t, toml.Unmarshal(text, ex))
	require.Equal(t, time.Hour+time.Minute+time.Second, ex.Interval.Duration)
	require.Equal(t, ByteSize(1024), ex.Size)
}

func TestBadDuration(t *testing.T) {
	ex := &example{}
	require.NotNil(t, toml.Unmarshal([]byte(`interval = "soon"`), ex))
	require.NotNil(t, json.Unmarshal([]byte(`{"interval":3}`), ex))
}
