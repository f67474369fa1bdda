package log

import (
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/zap"
)

// Config declares how a logger should be built.
type Config struct {
	Level  string `json:"level"`
	Format string `json:"format"` // text | json | zap
	// RedactKeys replaces the value of matching fields with "[REDACTED]".
	RedactKeys []string `json:"redactKeys,omitempty"`
	// SampleInitial and SampleThereafter enable per-message sampling when
	// SampleThereafter > 0.
	SampleInitial    int `json:"sampleInitial,omitempty"`
	SampleThereafter int `json:"sampleThereafter,omitempty"`
}

// ParseLevel converts a level name to a Level. The empty string is info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := []LoggerOption{WithLevel(level)}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		opts = append(opts, WithFormatter(&TextFormatter{}), WithOutput(NewConsoleOutput()))
	case "json":
		opts = append(opts, WithFormatter(&JSONFormatter{}), WithOutput(NewConsoleOutput()))
	case "zap":
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))
		zcfg.DisableCaller = true
		z, err := zcfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build zap logger: %w", err)
		}
		opts = append(opts, WithFormatter(&JSONFormatter{}), WithOutput(NewZapOutput(z)))
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	l := NewLogger(opts...).(*BaseLogger)
	h := newBridgeHandler(l).withRedactions(cfg.RedactKeys).withSampler(cfg.SampleInitial, cfg.SampleThereafter)
	l.slogLogger = slog.New(h)
	return l, nil
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return NewLogger(WithLevel(FatalLevel+1), WithOutput(NullOutput{}))
}
