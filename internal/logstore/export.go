package logstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// exportChunk is the read granularity of Export, kept small and fixed so a
// drain never needs more than this much staging at a time.
const exportChunk = 64

// Export streams every stored record to w, oldest first, as one contiguous
// byte stream. The guard is held for the whole drain so the view is stable,
// and the export flag is raised so concurrent appends drop instead of
// piling up behind it. The consumer cursor is left untouched: an export is
// a side channel, not a drain. The previous flag value is restored on
// return, so an export nested under an externally raised flag behaves.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	if w == nil {
		return ErrInvalidRecord
	}
	if !s.guard.lock(s.lockWait) {
		return ErrBusy
	}
	defer s.guard.unlock()
	if !s.opened {
		return ErrNotOpen
	}

	prev := s.exporting.Load()
	s.exporting.Store(true)
	defer s.exporting.Store(prev)

	var (
		c   cursor
		buf [exportChunk]byte
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.advance(&c); err != nil {
			if errors.Is(err, ErrNoData) {
				return nil
			}
			return err
		}
		for c.delivered < c.length {
			n := c.length - c.delivered
			if n > exportChunk {
				n = exportChunk
			}
			off := s.sectorBase(c.sector) + int64(c.off+lenSize+c.delivered)
			if _, err := s.dev.ReadAt(buf[:n], off); err != nil {
				return fmt.Errorf("logstore: read record: %w", err)
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("logstore: export write: %w", err)
			}
			c.delivered += n
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
}
