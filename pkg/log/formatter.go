package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// TextFormatter renders entries as a single human readable line:
//
//	2024-01-02T15:04:05.000Z INFO  queue opened component=queue queue=orders
type TextFormatter struct {
	TimestampFormat string
	DisableCaller   bool
}

func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	layout := f.TimestampFormat
	if layout == "" {
		layout = "2006-01-02T15:04:05.000Z07:00"
	}
	var b bytes.Buffer
	b.WriteString(entry.Timestamp.Format(layout))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-5s ", entry.Level.String())
	b.WriteString(entry.Message)
	for _, k := range sortedKeys(entry.Fields) {
		fmt.Fprintf(&b, " %s=%v", k, normalize(entry.Fields[k]))
	}
	if !f.DisableCaller && entry.Caller != "" {
		b.WriteString(" caller=")
		b.WriteString(entry.Caller)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// JSONFormatter renders entries as one JSON object per line.
type JSONFormatter struct {
	DisableCaller bool
}

func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	m := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		m[k] = normalize(v)
	}
	m["ts"] = entry.Timestamp.UTC().Format(time.RFC3339Nano)
	m["level"] = entry.Level.String()
	m["msg"] = entry.Message
	if !f.DisableCaller && entry.Caller != "" {
		m["caller"] = entry.Caller
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func sortedKeys(fields Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalize turns values that do not marshal usefully into strings.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case error:
		return t.Error()
	case time.Duration:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}
