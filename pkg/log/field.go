package log

import (
	"fmt"
	"time"
)

// Field is a single structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field from an arbitrary value.
func F(key string, value interface{}) Field { return Field{Key: key, Value: value} }

func Str(key, value string) Field           { return Field{Key: key, Value: value} }
func Int(key string, value int) Field       { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field   { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field     { return Field{Key: key, Value: value} }
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Dur records a duration in its string form ("1.5s").
func Dur(key string, d time.Duration) Field { return Field{Key: key, Value: d.String()} }

// Err records err under the "error" key. A nil error yields an empty string.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err}
}

// Component tags an entry with the emitting component.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }

// Op tags an entry with the operation being performed.
func Op(name string) Field { return Field{Key: OperationKey, Value: name} }

// Recovered formats a recovered panic value.
func Recovered(v interface{}) Field { return Field{Key: "panic", Value: fmt.Sprint(v)} }
