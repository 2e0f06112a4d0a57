package log

import (
	"testing"

	plog "github.com/pingcap/log"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestStringToLogLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"fatal":   zapcore.FatalLevel,
		"error":   zapcore.ErrorLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"WARN":    zapcore.WarnLevel,
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		require.Equal(t, want, StringToLogLevel(in), in)
	}
}

func TestInitLogger(t *testing.T) {
	cfg := &Config{Level: "debug"}
	require.Nil(t, InitLogger(cfg))
	require.NotNil(t, GlobalLogger())

	SetLevelByString("error")
	require.Equal(t, zapcore.ErrorLevel, plog.GetLevel())
	SetLevelByString("info")
}
