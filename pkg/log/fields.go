package log

import "time"

// Field is one key/value pair of structured context attached to an entry.
type Field struct {
	Key   string
	Value interface{}
}

// Str builds a string field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int builds an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 builds an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Uint builds an unsigned field.
func Uint(key string, value uint64) Field { return Field{Key: key, Value: value} }

// Bool builds a boolean field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Dur builds a duration field.
func Dur(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Err builds the conventional "error" field. A nil error renders as "<nil>".
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}
