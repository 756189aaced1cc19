package logstore

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/Ovyl/zmod/pkg/log"
)

// cursor tracks drain progress: which record is being delivered and how
// much of it went out. It lives entirely in memory; a process restart or
// ResetRead rewinds the drain to the oldest stored record.
type cursor struct {
	active    bool
	sector    int
	off       int // frame start, relative to sector start
	length    int
	delivered int
}

// Fetch copies the next unread bytes into dst and returns how many were
// copied. Records drain oldest-first and arrive split across calls when dst
// is smaller than a record; one record always finishes before the next
// begins. ErrNoData means the cursor has caught up with everything stored,
// and stays ErrNoData until new records arrive or ResetRead rewinds.
func (s *Store) Fetch(dst []byte) (int, error) {
	if dst == nil {
		return 0, ErrInvalidRecord
	}
	if !s.guard.lock(s.lockWait) {
		return 0, ErrBusy
	}
	defer s.guard.unlock()
	if !s.opened {
		return 0, ErrNotOpen
	}

	if !s.cur.active || s.cur.delivered == s.cur.length {
		if err := s.advance(&s.cur); err != nil {
			return 0, err
		}
	}
	n := s.cur.length - s.cur.delivered
	if n > len(dst) {
		n = len(dst)
	}
	if n == 0 {
		return 0, nil
	}
	off := s.sectorBase(s.cur.sector) + int64(s.cur.off+lenSize+s.cur.delivered)
	if _, err := s.dev.ReadAt(dst[:n], off); err != nil {
		s.logger.Error("read record", log.Err(err))
		return 0, fmt.Errorf("logstore: read record: %w", err)
	}
	s.cur.delivered += n
	return n, nil
}

// ResetRead rewinds the drain so the next Fetch starts again at the oldest
// stored record.
func (s *Store) ResetRead() error {
	if !s.guard.lock(s.lockWait) {
		return ErrBusy
	}
	defer s.guard.unlock()
	if !s.opened {
		return ErrNotOpen
	}
	s.cur = cursor{}
	return nil
}

// advance moves c to the next validated record, starting from the oldest
// stored record when c is inactive. Frames that fail their crc are torn
// writes; their space is consumed but they are invisible, so the walk skips
// them. The walk mirrors scanFrames so the cursor can never pass a sector's
// write offset.
func (s *Store) advance(c *cursor) error {
	var sector, off int
	if !c.active {
		sector, off = s.tail, headerSize
	} else {
		sector, off = c.sector, c.off+frameSize(c.length)
	}
	for {
		st := s.table[sector]
		for off+frameOverhead < s.sectorSize && off < st.writeOff {
			var lenBuf [lenSize]byte
			if _, err := s.dev.ReadAt(lenBuf[:], s.sectorBase(sector)+int64(off)); err != nil {
				return fmt.Errorf("logstore: read frame length: %w", err)
			}
			ln := int(binary.LittleEndian.Uint16(lenBuf[:]))
			if ln == erasedLen || ln == 0 {
				break
			}
			if off+frameSize(ln) > s.sectorSize || off+frameSize(ln) > st.writeOff {
				break
			}
			body := s.scratch[:ln+crcSize]
			if _, err := s.dev.ReadAt(body, s.sectorBase(sector)+int64(off+lenSize)); err != nil {
				return fmt.Errorf("logstore: read frame: %w", err)
			}
			want := binary.LittleEndian.Uint32(body[ln : ln+crcSize])
			if crc32.Checksum(body[:ln], castagnoli) == want {
				*c = cursor{active: true, sector: sector, off: off, length: ln}
				return nil
			}
			off += frameSize(ln)
		}
		if sector == s.head {
			return ErrNoData
		}
		sector = (sector + 1) % s.sectorCount
		off = headerSize
	}
}
