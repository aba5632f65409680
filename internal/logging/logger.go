package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides leveled logging with redaction support. Output goes to stderr so
// stdout stays free for the git credential protocol.
type Logger struct {
	sugar *zap.SugaredLogger
	debug bool
}

// New creates a logger writing to stderr.
func New(debug, noColor bool) *Logger {
	return newLogger(zapcore.Lock(os.Stderr), debug, noColor)
}

// NewWithWriter creates an uncolored logger writing to w.
func NewWithWriter(w io.Writer, debug bool) *Logger {
	return newLogger(zapcore.AddSync(w), debug, true)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func newLogger(ws zapcore.WriteSyncer, debug, noColor bool) *Logger {
	encCfg := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		NameKey:          "logger",
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	}
	if noColor {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, level)
	return &Logger{
		sugar: zap.New(core).Sugar(),
		debug: debug,
	}
}

// Named returns a child logger whose lines carry name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{sugar: l.sugar.Named(name), debug: l.debug}
}

// DebugEnabled reports whether Debug lines are emitted.
func (l *Logger) DebugEnabled() bool {
	return l.debug
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Sync flushes buffered output.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Format keeps %q, %x and friends from bypassing String.
func (s Secret) Format(f fmt.State, verb rune) {
	_, _ = io.WriteString(f, "[REDACTED]")
}
