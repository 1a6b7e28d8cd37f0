// Package devicelog provides two logger flavors: a structured Logger,
// which the scheduler, pipeline packages and cmd/devicesim log through,
// and a printf-style SugaredLogger obtained from Logger.Sugar.
// Every entry carries device_id and boot_id so log lines from the same
// power-on cycle can be correlated after a crash or reboot.
package devicelog

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Identity is the subset of boot-time identity stamped onto every line.
type Identity struct {
	DeviceID string
	BootID   string
}

// Logger wraps a zap core configured with RFC3339Nano timestamps and
// lowercase levels, emitting JSON lines to its writer.
type Logger struct {
	zap *zap.Logger
	id  Identity
}

// NewLogger builds a Logger writing JSON to os.Stderr, tagged with id.
func NewLogger(id Identity) *Logger {
	return newLoggerWithWriter(id, os.Stderr)
}

// WithOutput clones the logger with a new destination writer, keeping the
// same identity fields.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return newLoggerWithWriter(l.id, w)
}

func newLoggerWithWriter(id Identity, w io.Writer) *Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), zapcore.DebugLevel)

	fields := []zap.Field{zap.String("device_id", id.DeviceID)}
	if id.BootID != "" {
		fields = append(fields, zap.String("boot_id", id.BootID))
	}

	return &Logger{zap: zap.New(core).With(fields...), id: id}
}

func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered log entries. Call before process exit.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a printf-style logger sharing the same core and fields.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// SugaredLogger is the printf-style counterpart of Logger, for call sites
// where format strings are more convenient than field maps.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

func (s *SugaredLogger) Debugf(template string, args ...any) { s.sugar.Debugf(template, args...) }
func (s *SugaredLogger) Infof(template string, args ...any)  { s.sugar.Infof(template, args...) }
func (s *SugaredLogger) Warnf(template string, args ...any)  { s.sugar.Warnf(template, args...) }
func (s *SugaredLogger) Errorf(template string, args ...any) { s.sugar.Errorf(template, args...) }

// With returns a SugaredLogger with additional key-value pairs attached.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
