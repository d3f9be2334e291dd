// Package klog provides the kernel's structured diagnostic logger, built on
// go.uber.org/zap the way rcornwell/S370's build graph carries zap for
// hardware-emulation tracing. The zap core's WriteSyncer is backed by the
// console contract (§6) instead of os.Stdout, so boot milestones, driver
// attach/detach events, and panic dumps all flow through the same sink the
// eventual VGA/serial console renderer would own.
package klog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger with kernel-flavored Fatal semantics:
// Fatal here means "print then the caller halts all CPUs" (§7), not
// os.Exit, since a kernel has no process to exit.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a Logger writing JSON records to sink (typically a
// hostsim.Console, eventually a real console driver).
func New(sink zapcore.WriteSyncer) *Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), sink, zapcore.DebugLevel)
	return &Logger{sugar: zap.New(core).Sugar()}
}

// Info logs a boot milestone or routine diagnostic.
func (l *Logger) Info(msg string, kv ...any) {
	l.sugar.Infow(msg, kv...)
}

// Warn logs a recoverable anomaly (e.g. a cancelled-but-already-fired
// alarm race).
func (l *Logger) Warn(msg string, kv ...any) {
	l.sugar.Warnw(msg, kv...)
}

// Fatal logs a kernel-bug-class diagnostic (§7: panic taxonomy). It does
// not itself halt the machine -- the caller is expected to panic or halt
// immediately after, matching "print file/line/condition on the console
// and halt all CPUs".
func (l *Logger) Fatal(msg string, kv ...any) {
	l.sugar.Errorw(msg, kv...)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// Discard returns a Logger that drops everything, useful for unit tests
// that do not care about diagnostic output.
func Discard() *Logger {
	return New(discardSyncer{})
}

type discardSyncer struct{}

func (discardSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (discardSyncer) Sync() error                 { return nil }
