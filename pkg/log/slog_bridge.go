package log

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
)

const redacted = "[REDACTED]"

// bridgeHandler feeds slog records into the logger's formatter and outputs.
// Bound attributes and groups are flattened into dotted field keys.
type bridgeHandler struct {
	logger     *BaseLogger
	attrs      []slog.Attr
	prefix     string
	redactions map[string]struct{}
	sampler    *sampler
}

func newBridgeHandler(logger *BaseLogger) *bridgeHandler {
	return &bridgeHandler{logger: logger}
}

func (h *bridgeHandler) Enabled(_ context.Context, level slog.Level) bool {
	return fromSlogLevel(level) >= h.logger.level
}

func (h *bridgeHandler) Handle(_ context.Context, r slog.Record) error {
	if h.sampler != nil && !h.sampler.allow(r.Level, r.Message) {
		return nil
	}

	fields := make(Fields, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		h.put(fields, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.put(fields, h.prefix, a)
		return true
	})

	entry := &Entry{
		Level:     fromSlogLevel(r.Level),
		Message:   r.Message,
		Fields:    fields,
		Timestamp: r.Time,
		Caller:    callerOf(r.PC),
	}
	if err, ok := fields["error"].(error); ok {
		entry.Error = err
	}

	formatted, err := h.logger.formatter.Format(entry)
	if err != nil {
		return err
	}
	for _, out := range h.logger.outputs {
		_ = out.Write(entry, formatted)
	}
	return nil
}

// put stores a, expanding nested groups into "group.key" names.
func (h *bridgeHandler) put(fields Fields, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := prefix + a.Key
	if a.Value.Kind() == slog.KindGroup {
		sub := prefix
		if a.Key != "" {
			sub = key + "."
		}
		for _, ga := range a.Value.Group() {
			h.put(fields, sub, ga)
		}
		return
	}
	if _, ok := h.redactions[a.Key]; ok {
		fields[key] = redacted
		return
	}
	fields[key] = a.Value.Any()
}

func (h *bridgeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	nh.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	nh.attrs = append(nh.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *bridgeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func (h *bridgeHandler) withRedactions(keys []string) *bridgeHandler {
	if len(keys) == 0 {
		return h
	}
	nh := *h
	nh.redactions = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		nh.redactions[k] = struct{}{}
	}
	return &nh
}

// withSampler keeps the first initial records per level+message, then one
// in every thereafter.
func (h *bridgeHandler) withSampler(initial, thereafter int) *bridgeHandler {
	if thereafter <= 0 {
		return h
	}
	nh := *h
	nh.sampler = newSampler(initial, thereafter)
	return &nh
}

type sampler struct {
	mu         sync.Mutex
	initial    uint64
	thereafter uint64
	seen       map[string]uint64
}

func newSampler(initial, thereafter int) *sampler {
	return &sampler{
		initial:    uint64(max(initial, 0)),
		thereafter: uint64(max(thereafter, 1)),
		seen:       make(map[string]uint64),
	}
}

func (s *sampler) allow(level slog.Level, msg string) bool {
	key := level.String() + "|" + msg
	s.mu.Lock()
	n := s.seen[key]
	s.seen[key] = n + 1
	s.mu.Unlock()
	return n < s.initial || (n-s.initial)%s.thereafter == 0
}

func callerOf(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}
	return frame.File + ":" + strconv.Itoa(frame.Line)
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel, FatalLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level < slog.LevelInfo:
		return DebugLevel
	case level < slog.LevelWarn:
		return InfoLevel
	case level < slog.LevelError:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

func attrsFromMap(m Fields) []slog.Attr {
	if len(m) == 0 {
		return nil
	}
	attrs := make([]slog.Attr, 0, len(m))
	for k, v := range m {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func attrsFromFieldSlice(fields []Field) []slog.Attr {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	return attrs
}

// argsToAttrs pairs up k1, v1, k2, v2... Non-string keys and a trailing
// odd value are kept under positional "argN" keys.
func argsToAttrs(args []interface{}) []slog.Attr {
	if len(args) == 0 {
		return nil
	}
	attrs := make([]slog.Attr, 0, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			attrs = append(attrs, slog.Any("arg"+strconv.Itoa(i), args[i]))
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = "arg" + strconv.Itoa(i)
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}
