package log

import (
	"fmt"
	"strings"
)

// Level is a log severity. Levels are verbosity-ascending: a source set to
// level L emits messages at severities Error..L and mutes the rest. Off
// silences a source entirely.
type Level uint8

const (
	Off Level = iota
	Error
	Warn
	Info
	Debug

	numLevels
)

// MaxLevel is the most verbose severity in the enumeration.
const MaxLevel = Debug

// Valid reports whether l is inside the known severity enumeration.
func (l Level) Valid() bool { return l < numLevels }

// String returns the short display name used in formatted output.
func (l Level) String() string {
	switch l {
	case Off:
		return "OFF"
	case Error:
		return "ERR"
	case Warn:
		return "WRN"
	case Info:
		return "INF"
	case Debug:
		return "DBG"
	default:
		return "UNK"
	}
}

// Name returns the lower-case name accepted by ParseLevel.
func (l Level) Name() string {
	switch l {
	case Off:
		return "off"
	case Error:
		return "err"
	case Warn:
		return "wrn"
	case Info:
		return "inf"
	case Debug:
		return "dbg"
	default:
		return "unk"
	}
}

// Levels returns every severity in ascending verbosity order.
func Levels() []Level {
	return []Level{Off, Error, Warn, Info, Debug}
}

var levelAliases = map[string]Level{
	"off":     Off,
	"err":     Error,
	"error":   Error,
	"wrn":     Warn,
	"warn":    Warn,
	"warning": Warn,
	"inf":     Info,
	"info":    Info,
	"dbg":     Debug,
	"debug":   Debug,
}

// ParseLevel resolves a severity name, case-insensitively. Both the short
// names used on the wire (err, wrn, ...) and the long spellings are accepted.
func ParseLevel(s string) (Level, error) {
	if l, ok := levelAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return Off, fmt.Errorf("log: unknown level %q", s)
}
