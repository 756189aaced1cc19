package logstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sync/atomic"
	"time"

	"github.com/Ovyl/zmod/pkg/log"
)

// Sentinel errors callers branch on.
var (
	// ErrInvalidRecord rejects nil buffers handed to Append, Fetch or
	// Export.
	ErrInvalidRecord = errors.New("logstore: nil buffer")

	// ErrBusy means the store guard could not be acquired within the
	// configured wait.
	ErrBusy = errors.New("logstore: store busy")

	// ErrNoData means the read cursor has drained every stored record.
	ErrNoData = errors.New("logstore: no more data")

	// ErrTooLarge means a record cannot fit in a sector even after
	// rotation.
	ErrTooLarge = errors.New("logstore: record exceeds sector capacity")

	// ErrTooManySectors means the device reports more sectors than the
	// table bound allows.
	ErrTooManySectors = errors.New("logstore: too many sectors")

	// ErrNotOpen means the store is not open, either because Open was
	// never called or because a failed reformat poisoned it.
	ErrNotOpen = errors.New("logstore: store not open")
)

// Defaults applied when Options fields are zero.
const (
	DefaultMaxSectors = 256
	DefaultLockWait   = 200 * time.Millisecond
)

// Options configures New.
type Options struct {
	// MaxSectors bounds the sector table. A device reporting more fails
	// Open with ErrTooManySectors. Zero uses DefaultMaxSectors.
	MaxSectors int

	// LockWait bounds how long operations wait for the store guard before
	// giving up with ErrBusy. Zero uses DefaultLockWait.
	LockWait time.Duration

	// Logger receives store diagnostics. Nil discards them.
	Logger log.Logger
}

// Store is a space-bounded, append-only circular record log over an
// erasable sector Device. See the package documentation for the layout and
// reclamation rules. All methods are safe for concurrent use once Open has
// returned.
type Store struct {
	dev        Device
	logger     log.Logger
	maxSectors int
	lockWait   time.Duration

	guard     *guard
	exporting atomic.Bool

	// State below is guarded.
	opened      bool
	sectorSize  int
	sectorCount int
	maxRecord   int
	table       []sectorState
	head, tail  int
	nextSeq     uint32
	cur         cursor
	scratch     []byte
}

// New builds a store over dev. Call Open before use.
func New(dev Device, opts Options) *Store {
	s := &Store{
		dev:        dev,
		logger:     opts.Logger,
		maxSectors: opts.MaxSectors,
		lockWait:   opts.LockWait,
		guard:      newGuard(),
	}
	if s.logger == nil {
		s.logger = log.NewNop()
	}
	if s.maxSectors <= 0 {
		s.maxSectors = DefaultMaxSectors
	}
	if s.lockWait <= 0 {
		s.lockWait = DefaultLockWait
	}
	return s
}

// Open scans the device, rebuilds the sector table from whatever survived
// the last run, and formats the ring when the partition is blank or carries
// foreign contents. Opening an already-open store is a no-op.
func (s *Store) Open() error {
	if !s.guard.lock(s.lockWait) {
		return ErrBusy
	}
	defer s.guard.unlock()
	if s.opened {
		return nil
	}

	size, count := s.dev.Geometry()
	if count > s.maxSectors {
		return fmt.Errorf("%w: device has %d, table bound is %d", ErrTooManySectors, count, s.maxSectors)
	}
	if count < 2 {
		return fmt.Errorf("logstore: need at least 2 sectors, device has %d", count)
	}
	if size <= headerSize+frameOverhead {
		return fmt.Errorf("logstore: sector size %d cannot hold a record", size)
	}
	s.sectorSize = size
	s.sectorCount = count
	s.maxRecord = size - headerSize - frameOverhead
	if s.maxRecord >= erasedLen {
		s.maxRecord = erasedLen - 1
	}
	s.table = make([]sectorState, count)
	s.scratch = make([]byte, size)

	if err := s.recover(); err != nil {
		return err
	}
	s.cur = cursor{}
	s.exporting.Store(false)
	s.opened = true
	return nil
}

// recover reads every sector header, orders live sectors by sequence, and
// walks their frames to rebuild occupancy. Anything that does not look like
// our ring formats it fresh.
func (s *Store) recover() error {
	var (
		foreign    bool
		live       int
		minSeq     uint32
		maxSeq     uint32
		tail, head int
	)
	hdr := s.scratch[:headerSize]
	for i := 0; i < s.sectorCount; i++ {
		if _, err := s.dev.ReadAt(hdr, s.sectorBase(i)); err != nil {
			return fmt.Errorf("logstore: read sector %d header: %w", i, err)
		}
		seq, state := decodeHeader(hdr)
		switch state {
		case headerBlank:
			s.table[i] = sectorState{}
		case headerForeign:
			foreign = true
		case headerValid:
			s.table[i] = sectorState{seq: seq, writeOff: headerSize}
			if live == 0 || seq < minSeq {
				minSeq, tail = seq, i
			}
			if live == 0 || seq > maxSeq {
				maxSeq, head = seq, i
			}
			live++
		}
	}
	if foreign {
		s.logger.Warn("partition carries foreign contents, formatting")
		s.nextSeq = 1
		return s.reformat()
	}
	if live == 0 {
		s.nextSeq = 1
		return s.reformat()
	}

	// Live sectors must occupy consecutive ring positions with
	// consecutive sequences, tail through head.
	contiguous := int(maxSeq-minSeq)+1 == live
	for k := 0; contiguous && k < live; k++ {
		if s.table[(tail+k)%s.sectorCount].seq != minSeq+uint32(k) {
			contiguous = false
		}
	}
	if !contiguous {
		s.logger.Warn("sector sequences not contiguous, formatting", log.Int("live", live))
		s.nextSeq = 1
		return s.reformat()
	}

	for k := 0; k < live; k++ {
		idx := (tail + k) % s.sectorCount
		if _, err := s.dev.ReadAt(s.scratch, s.sectorBase(idx)); err != nil {
			return fmt.Errorf("logstore: read sector %d: %w", idx, err)
		}
		res := scanFrames(s.scratch)
		s.table[idx].writeOff = res.writeOff
		s.table[idx].entries = res.entries
		s.table[idx].bytes = res.bytes
	}
	s.head, s.tail = head, tail
	s.nextSeq = maxSeq + 1
	s.logger.Info("recovered ring",
		log.Int("sectors", s.sectorCount),
		log.Int("used", live),
		log.Uint("tail_seq", uint64(minSeq)),
		log.Uint("head_seq", uint64(maxSeq)),
	)
	return nil
}

// reformat erases every sector and stamps sector 0 as the new head. The
// caller must hold the guard and have nextSeq set.
func (s *Store) reformat() error {
	for i := 0; i < s.sectorCount; i++ {
		if err := s.dev.EraseSector(i); err != nil {
			return fmt.Errorf("logstore: erase sector %d: %w", i, err)
		}
		s.table[i] = sectorState{}
	}
	if err := s.stamp(0); err != nil {
		return err
	}
	s.head, s.tail = 0, 0
	s.cur = cursor{}
	if err := s.dev.Sync(); err != nil {
		return fmt.Errorf("logstore: sync reformat: %w", err)
	}
	return nil
}

// stamp writes a fresh header to a blank sector and claims it in the table.
func (s *Store) stamp(index int) error {
	if s.nextSeq == 0 {
		s.nextSeq = 1 // sequence 0 is the blank marker
	}
	h := encodeHeader(s.nextSeq)
	if _, err := s.dev.WriteAt(h[:], s.sectorBase(index)); err != nil {
		return fmt.Errorf("logstore: stamp sector %d: %w", index, err)
	}
	s.table[index] = sectorState{seq: s.nextSeq, writeOff: headerSize}
	s.nextSeq++
	return nil
}

func (s *Store) sectorBase(index int) int64 {
	return int64(index) * int64(s.sectorSize)
}

// Append stores one record. A nil record is ErrInvalidRecord; an empty one
// is a silent no-op, as is any append while an export drains. When the
// current sector is full the head rotates forward, erasing the oldest
// sector if the ring has wrapped. Any failure mid-append clears the whole
// store so the ring never persists half-written.
func (s *Store) Append(rec []byte) error {
	if rec == nil {
		return ErrInvalidRecord
	}
	if len(rec) == 0 {
		return nil
	}
	if s.exporting.Load() {
		return nil
	}
	if !s.guard.lock(s.lockWait) {
		if !s.exporting.Load() {
			s.logger.Warn("append gave up waiting for the store guard", log.Dur("wait", s.lockWait))
		}
		return ErrBusy
	}
	defer s.guard.unlock()
	if !s.opened {
		return ErrNotOpen
	}
	if err := s.append(rec); err != nil {
		s.logger.Error("append failed, clearing the ring", log.Err(err))
		if cerr := s.reformat(); cerr != nil {
			s.opened = false
			s.logger.Error("reformat after failed append, store needs reopening", log.Err(cerr))
		}
		return err
	}
	return nil
}

func (s *Store) append(rec []byte) error {
	if len(rec) > s.maxRecord {
		return fmt.Errorf("%w: %d bytes, max %d", ErrTooLarge, len(rec), s.maxRecord)
	}
	st := &s.table[s.head]
	if st.writeOff+frameSize(len(rec)) > s.sectorSize {
		if err := s.rotate(); err != nil {
			return err
		}
		st = &s.table[s.head]
		if st.writeOff+frameSize(len(rec)) > s.sectorSize {
			return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(rec))
		}
	}

	base := s.sectorBase(s.head) + int64(st.writeOff)
	buf := s.scratch[:lenSize+len(rec)]
	binary.LittleEndian.PutUint16(buf[:lenSize], uint16(len(rec)))
	copy(buf[lenSize:], rec)
	if _, err := s.dev.WriteAt(buf, base); err != nil {
		return fmt.Errorf("logstore: write record: %w", err)
	}

	// The crc trailer lands last; a record without it never validates.
	var trailer [crcSize]byte
	binary.LittleEndian.PutUint32(trailer[:], crc32.Checksum(rec, castagnoli))
	if _, err := s.dev.WriteAt(trailer[:], base+int64(lenSize+len(rec))); err != nil {
		return fmt.Errorf("logstore: write record crc: %w", err)
	}
	if err := s.dev.Sync(); err != nil {
		return fmt.Errorf("logstore: sync record: %w", err)
	}

	st.writeOff += frameSize(len(rec))
	st.entries++
	st.bytes += int64(len(rec))
	return nil
}

// rotate advances the head to the next ring position, erasing it first when
// it still holds data. The displaced records are gone for good; a cursor
// pointing into the erased sector restarts at the new oldest record.
func (s *Store) rotate() error {
	next := (s.head + 1) % s.sectorCount
	if s.table[next].seq != 0 {
		// Ring has wrapped; next is the current tail.
		if s.cur.active && s.cur.sector == next {
			s.cur = cursor{}
		}
		dropped := s.table[next].entries
		if err := s.dev.EraseSector(next); err != nil {
			return fmt.Errorf("logstore: erase sector %d: %w", next, err)
		}
		s.table[next] = sectorState{}
		s.tail = (next + 1) % s.sectorCount
		if dropped > 0 {
			s.logger.Debug("reclaimed oldest sector", log.Int("dropped", dropped))
		}
	}
	if err := s.stamp(next); err != nil {
		return err
	}
	s.head = next
	return nil
}

// Clear erases every sector and restarts the ring empty. The read cursor
// resets with it.
func (s *Store) Clear() error {
	if !s.guard.lock(s.lockWait) {
		return ErrBusy
	}
	defer s.guard.unlock()
	if !s.opened {
		return ErrNotOpen
	}
	if err := s.reformat(); err != nil {
		s.opened = false
		return err
	}
	s.logger.Info("ring cleared")
	return nil
}

// SetExportInProgress flips the export flag. While set, Append drops
// records silently so a drain cannot log itself back into the ring it is
// reading. The flag is deliberately unguarded; losing one racing record at
// the flip is acceptable where stalling the producer is not.
func (s *Store) SetExportInProgress(v bool) { s.exporting.Store(v) }

// ExportInProgress reports the export flag.
func (s *Store) ExportInProgress() bool { return s.exporting.Load() }

// Stats is a point-in-time summary of ring occupancy.
type Stats struct {
	SectorSize  int
	SectorCount int
	UsedSectors int
	Entries     int
	Bytes       int64
	TailSeq     uint32
	HeadSeq     uint32
	Exporting   bool
}

// Stats reports ring occupancy.
func (s *Store) Stats() (Stats, error) {
	if !s.guard.lock(s.lockWait) {
		return Stats{}, ErrBusy
	}
	defer s.guard.unlock()
	if !s.opened {
		return Stats{}, ErrNotOpen
	}
	st := Stats{
		SectorSize:  s.sectorSize,
		SectorCount: s.sectorCount,
		TailSeq:     s.table[s.tail].seq,
		HeadSeq:     s.table[s.head].seq,
		Exporting:   s.exporting.Load(),
	}
	for i := range s.table {
		if s.table[i].seq == 0 {
			continue
		}
		st.UsedSectors++
		st.Entries += s.table[i].entries
		st.Bytes += s.table[i].bytes
	}
	return st, nil
}
