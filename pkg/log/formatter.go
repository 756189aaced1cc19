package log

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// defaultTimeFormat is RFC3339 with millisecond precision.
const defaultTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// TextFormatter renders entries as single human-readable lines:
//
//	2026-03-01T10:22:07.114Z INF server: listening addr=:8080
type TextFormatter struct {
	// TimeFormat overrides the timestamp layout. Empty uses millisecond
	// RFC3339.
	TimeFormat string
}

// Format implements Formatter.
func (f *TextFormatter) Format(e *Entry) ([]byte, error) {
	layout := f.TimeFormat
	if layout == "" {
		layout = defaultTimeFormat
	}
	var b bytes.Buffer
	b.WriteString(e.Time.Format(layout))
	b.WriteByte(' ')
	b.WriteString(e.Level.String())
	b.WriteByte(' ')
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	for _, fl := range e.Fields {
		fmt.Fprintf(&b, " %s=%v", fl.Key, fl.Value)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// JSONFormatter renders entries as one JSON object per line. Field keys are
// lifted to the top level; colliding keys keep the last value.
type JSONFormatter struct {
	// TimeFormat overrides the timestamp layout. Empty uses millisecond
	// RFC3339.
	TimeFormat string
}

// Format implements Formatter.
func (f *JSONFormatter) Format(e *Entry) ([]byte, error) {
	layout := f.TimeFormat
	if layout == "" {
		layout = defaultTimeFormat
	}
	m := make(map[string]interface{}, len(e.Fields)+4)
	m["ts"] = e.Time.Format(layout)
	m["level"] = e.Level.Name()
	if e.Source != "" {
		m["source"] = e.Source
	}
	m["msg"] = e.Message
	for _, fl := range e.Fields {
		m[fl.Key] = fl.Value
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
