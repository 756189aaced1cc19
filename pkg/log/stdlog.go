package log

import (
	stdlog "log"
	"strings"
)

// RedirectStdLog routes the standard library's default logger through l at
// Info severity. Dependencies that still log via package log end up in the
// shared pipeline instead of writing to stderr on their own.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdlogWriter{l: l})
}

type stdlogWriter struct {
	l Logger
}

func (w stdlogWriter) Write(p []byte) (int, error) {
	w.l.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
