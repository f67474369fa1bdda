package log

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ConsoleOutput writes formatted entries to stderr (or a configured writer).
type ConsoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{w: os.Stderr} }

// NewWriterOutput writes formatted entries to w.
func NewWriterOutput(w io.Writer) *ConsoleOutput { return &ConsoleOutput{w: w} }

func (o *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.w
	if w == nil {
		w = os.Stderr
	}
	_, err := w.Write(formatted)
	return err
}

func (o *ConsoleOutput) Close() error { return nil }

// NullOutput discards everything.
type NullOutput struct{}

func (NullOutput) Write(*Entry, []byte) error { return nil }
func (NullOutput) Close() error               { return nil }

// ZapOutput forwards entries to a zap logger, ignoring the pre-formatted
// bytes and letting zap's encoder render the record.
type ZapOutput struct {
	z *zap.Logger
}

func NewZapOutput(z *zap.Logger) *ZapOutput {
	if z == nil {
		z = zap.NewNop()
	}
	return &ZapOutput{z: z}
}

func (o *ZapOutput) Write(entry *Entry, _ []byte) error {
	ce := o.z.Check(toZapLevel(entry.Level), entry.Message)
	if ce == nil {
		return nil
	}
	fields := make([]zap.Field, 0, len(entry.Fields)+1)
	for _, k := range sortedKeys(entry.Fields) {
		fields = append(fields, zap.Any(k, normalize(entry.Fields[k])))
	}
	if entry.Caller != "" {
		fields = append(fields, zap.String("caller", entry.Caller))
	}
	ce.Write(fields...)
	return nil
}

func (o *ZapOutput) Close() error {
	// Syncing stderr fails with EINVAL on most terminals; nothing to report.
	_ = o.z.Sync()
	return nil
}

// FatalLevel maps to zap's error level; BaseLogger owns process exit.
func toZapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
