package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes formatted entries to standard error.
type ConsoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleOutput returns a console output backed by os.Stderr.
func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{w: os.Stderr}
}

// Write implements Output.
func (o *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.w == nil {
		o.w = os.Stderr
	}
	_, err := o.w.Write(formatted)
	return err
}

// Close implements Output. The console stream is not owned, so this is a
// no-op.
func (o *ConsoleOutput) Close() error { return nil }

// WriterOutput sends formatted entries to an arbitrary io.Writer, such as a
// file or an in-memory buffer in tests.
type WriterOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterOutput wraps w as an Output.
func NewWriterOutput(w io.Writer) *WriterOutput {
	return &WriterOutput{w: w}
}

// Write implements Output.
func (o *WriterOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.w.Write(formatted)
	return err
}

// Close implements Output. If the underlying writer is an io.Closer it is
// closed.
func (o *WriterOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
