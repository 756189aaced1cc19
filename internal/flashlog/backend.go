package flashlog

import (
	"errors"
	"sync/atomic"

	"github.com/Ovyl/zmod/internal/logstore"
	"github.com/Ovyl/zmod/pkg/log"
)

// Appender is the slice of the store the backend needs.
type Appender interface {
	Append(p []byte) error
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithSkipSources names log sources the backend ignores. The store logs its
// own diagnostics, and those entries must not be appended back into the ring
// they describe.
func WithSkipSources(names ...string) BackendOption {
	return func(b *Backend) {
		for _, n := range names {
			b.skip[n] = struct{}{}
		}
	}
}

// Backend is a log output that appends each formatted entry to the circular
// store as one record.
type Backend struct {
	store Appender
	skip  map[string]struct{}

	detached atomic.Bool
	accepted atomic.Uint64
	dropped  atomic.Uint64
}

// NewBackend builds a backend over the given store.
func NewBackend(store Appender, opts ...BackendOption) *Backend {
	b := &Backend{store: store, skip: make(map[string]struct{})}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Write forwards the formatted entry to the store. A busy store drops the
// record, counted but not reported: a log line is never worth blocking its
// caller. Any other append failure counts as a drop and propagates.
func (b *Backend) Write(e *log.Entry, formatted []byte) error {
	if b.detached.Load() {
		return nil
	}
	if _, ok := b.skip[e.Source]; ok {
		return nil
	}
	err := b.store.Append(formatted)
	switch {
	case err == nil:
		b.accepted.Add(1)
		return nil
	case errors.Is(err, logstore.ErrBusy):
		b.dropped.Add(1)
		return nil
	default:
		b.dropped.Add(1)
		return err
	}
}

// Detach stops forwarding permanently. Registries have no way to remove an
// output, so teardown detaches the backend before the store's device goes
// away; entries arriving afterwards are ignored.
func (b *Backend) Detach() { b.detached.Store(true) }

// Close implements log.Output. The backend does not own the store.
func (b *Backend) Close() error { return nil }

// Accepted returns how many records the store took. Records appended during
// an export window are accepted and silently discarded by the store, so this
// is an upper bound on what a later drain will see.
func (b *Backend) Accepted() uint64 { return b.accepted.Load() }

// Dropped returns how many records were discarded, either because the store
// was busy or because the append failed outright.
func (b *Backend) Dropped() uint64 { return b.dropped.Load() }
