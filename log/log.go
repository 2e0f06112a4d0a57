// High level log wrapper over pingcap/log, so every binary and package logs through one zap logger.
//
// There are five levels in total: FATAL, ERROR, WARNING, INFO, DEBUG.
// The default log output level is INFO, you can change it by:
// - call log.SetLevelByString()
// - set environment variable `LOG_LEVEL`
// - set `level` in the [log] section of the config file

package log

import (
	"os"
	"strings"

	"github.com/pingcap/errors"
	plog "github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the log configuration, decoded from the [log] section.
type Config = plog.Config

func init() {
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		SetLevelByString(l)
	}
}

// InitLogger builds a zap logger from cfg and installs it as the global logger.
func InitLogger(cfg *Config) error {
	lg, props, err := plog.InitLogger(cfg, zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return errors.Trace(err)
	}
	plog.ReplaceGlobals(lg, props)
	return nil
}

// GlobalLogger returns the installed zap logger.
func GlobalLogger() *zap.Logger {
	return plog.L()
}

func SetLevelByString(level string) {
	plog.SetLevel(StringToLogLevel(level))
}

func StringToLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "fatal":
		return zapcore.FatalLevel
	case "error":
		return zapcore.ErrorLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	}
	return zapcore.InfoLevel
}

func logger() *zap.Logger {
	return plog.L().WithOptions(zap.AddCallerSkip(1))
}

func sugar() *zap.SugaredLogger {
	return logger().Sugar()
}

func Debug(msg string, fields ...zap.Field) {
	logger().Debug(msg, fields...)
}

func Debugf(format string, v ...interface{}) {
	sugar().Debugf(format, v...)
}

func Info(msg string, fields ...zap.Field) {
	logger().Info(msg, fields...)
}

func Infof(format string, v ...interface{}) {
	sugar().Infof(format, v...)
}

func Warn(msg string, fields ...zap.Field) {
	logger().Warn(msg, fields...)
}

func Warnf(format string, v ...interface{}) {
	sugar().Warnf(format, v...)
}

func Error(msg string, fields ...zap.Field) {
	logger().Error(msg, fields...)
}

func Errorf(format string, v ...interface{}) {
	sugar().Errorf(format, v...)
}

// Fatal logs at fatal level and exits the process.
func Fatal(msg string, fields ...zap.Field) {
	logger().Fatal(msg, fields...)
}

func Fatalf(format string, v ...interface{}) {
	sugar().Fatalf(format, v...)
}

// Sync flushes buffered log entries.
func Sync() error {
	return plog.Sync()
}
