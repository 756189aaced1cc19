package logstore

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// memDevice is an in-memory Device with fault injection.
type memDevice struct {
	sectorSize int
	buf        []byte

	failWrite bool
	failErase bool
	syncErrs  int           // fail this many upcoming Syncs
	readGate  chan struct{} // when non-nil, ReadAt blocks until closed
}

func newMemDevice(sectorSize, sectors int) *memDevice {
	buf := make([]byte, sectorSize*sectors)
	for i := range buf {
		buf[i] = erased
	}
	return &memDevice{sectorSize: sectorSize, buf: buf}
}

func (d *memDevice) ReadAt(p []byte, off int64) (int, error) {
	if d.readGate != nil {
		<-d.readGate
	}
	if off < 0 || int(off)+len(p) > len(d.buf) {
		return 0, fmt.Errorf("read [%d,%d) out of range", off, int(off)+len(p))
	}
	copy(p, d.buf[off:int(off)+len(p)])
	return len(p), nil
}

func (d *memDevice) WriteAt(p []byte, off int64) (int, error) {
	if d.failWrite {
		return 0, errors.New("injected write failure")
	}
	if off < 0 || int(off)+len(p) > len(d.buf) {
		return 0, fmt.Errorf("write [%d,%d) out of range", off, int(off)+len(p))
	}
	copy(d.buf[off:], p)
	return len(p), nil
}

func (d *memDevice) EraseSector(index int) error {
	if d.failErase {
		return errors.New("injected erase failure")
	}
	base := index * d.sectorSize
	for i := base; i < base+d.sectorSize; i++ {
		d.buf[i] = erased
	}
	return nil
}

func (d *memDevice) Sync() error {
	if d.syncErrs > 0 {
		d.syncErrs--
		return errors.New("injected sync failure")
	}
	return nil
}

func (d *memDevice) Geometry() (int, int) {
	return d.sectorSize, len(d.buf) / d.sectorSize
}

func openTestStore(t *testing.T, dev Device, opts Options) *Store {
	t.Helper()
	s := New(dev, opts)
	if err := s.Open(); err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

// drain fetches everything left on the cursor with the given buffer size.
func drain(t *testing.T, s *Store, bufSize int) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, bufSize)
	for {
		n, err := s.Fetch(buf)
		if errors.Is(err, ErrNoData) {
			return out
		}
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		out = append(out, buf[:n]...)
	}
}

func TestAppendAndDrain(t *testing.T) {
	s := openTestStore(t, newMemDevice(4096, 2), Options{})

	for _, rec := range []string{"first", "second", "third"} {
		if err := s.Append([]byte(rec)); err != nil {
			t.Fatalf("append %q: %v", rec, err)
		}
	}
	if got, want := string(drain(t, s, 64)), "firstsecondthird"; got != want {
		t.Fatalf("drained %q, want %q", got, want)
	}
}

func TestAppendNilAndEmpty(t *testing.T) {
	s := openTestStore(t, newMemDevice(4096, 2), Options{})

	if err := s.Append(nil); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("nil append = %v, want ErrInvalidRecord", err)
	}
	if err := s.Append([]byte{}); err != nil {
		t.Fatalf("empty append = %v, want nil no-op", err)
	}
	st, err := s.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Entries != 0 {
		t.Fatalf("entries = %d after no-ops, want 0", st.Entries)
	}
}

func TestFetchNilBuffer(t *testing.T) {
	s := openTestStore(t, newMemDevice(4096, 2), Options{})
	if _, err := s.Fetch(nil); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("nil fetch = %v, want ErrInvalidRecord", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dev := newMemDevice(4096, 2)
	s := openTestStore(t, dev, Options{})
	if err := s.Append([]byte("kept")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("second open: %v", err)
	}
	st, _ := s.Stats()
	if st.Entries != 1 {
		t.Fatalf("second open disturbed state: entries = %d", st.Entries)
	}
}

func TestOpenValidatesGeometry(t *testing.T) {
	if err := New(newMemDevice(64, 1), Options{}).Open(); err == nil {
		t.Fatalf("single-sector device should fail")
	}
	if err := New(newMemDevice(headerSize+frameOverhead, 2), Options{}).Open(); err == nil {
		t.Fatalf("sector too small for any record should fail")
	}
	err := New(newMemDevice(64, 5), Options{MaxSectors: 4}).Open()
	if !errors.Is(err, ErrTooManySectors) {
		t.Fatalf("got %v, want ErrTooManySectors", err)
	}
}

func TestOpsBeforeOpen(t *testing.T) {
	s := New(newMemDevice(4096, 2), Options{})
	if err := s.Append([]byte("x")); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("append = %v, want ErrNotOpen", err)
	}
	if _, err := s.Fetch(make([]byte, 4)); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("fetch = %v, want ErrNotOpen", err)
	}
	if err := s.Clear(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("clear = %v, want ErrNotOpen", err)
	}
}

func TestRotationReclaimsOldestSector(t *testing.T) {
	// 30-byte sectors hold exactly two 3-byte records after the header.
	const sectorSize = headerSize + 2*(frameOverhead+3)
	s := openTestStore(t, newMemDevice(sectorSize, 2), Options{})

	for _, rec := range []string{"r1.", "r2.", "r3.", "r4.", "r5."} {
		if err := s.Append([]byte(rec)); err != nil {
			t.Fatalf("append %q: %v", rec, err)
		}
	}

	// r1/r2 filled the first sector and were erased when the ring wrapped;
	// the drain starts at the oldest record of the surviving sector.
	if got, want := string(drain(t, s, 16)), "r3.r4.r5."; got != want {
		t.Fatalf("drained %q, want %q", got, want)
	}

	st, _ := s.Stats()
	if st.Entries != 3 {
		t.Fatalf("entries = %d, want 3", st.Entries)
	}
	if st.UsedSectors != 2 {
		t.Fatalf("used sectors = %d, want 2", st.UsedSectors)
	}
}

func TestRotationInvalidatesCursorMidRecord(t *testing.T) {
	const sectorSize = headerSize + 2*(frameOverhead+3)
	s := openTestStore(t, newMemDevice(sectorSize, 2), Options{})

	mustAppend(t, s, "aaa", "bbb")

	// Start delivering "aaa", then rotate it away.
	buf := make([]byte, 2)
	if n, err := s.Fetch(buf); err != nil || string(buf[:n]) != "aa" {
		t.Fatalf("first fetch = %q, %v", buf[:n], err)
	}
	mustAppend(t, s, "ccc", "ddd", "eee") // erases the first sector

	// The half-read record is gone; the drain restarts at the oldest
	// survivor without replaying anything newer.
	if got, want := string(drain(t, s, 16)), "cccdddeee"; got != want {
		t.Fatalf("post-rotation drain = %q, want %q", got, want)
	}
}

func TestRecordTooLargeClearsRing(t *testing.T) {
	s := openTestStore(t, newMemDevice(64, 2), Options{})
	mustAppend(t, s, "keepme")

	big := make([]byte, 64) // cannot fit beside the header and frame overhead
	err := s.Append(big)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("append = %v, want ErrTooLarge", err)
	}

	// The failed append cleared everything, matching the fail-safe rule.
	st, _ := s.Stats()
	if st.Entries != 0 {
		t.Fatalf("entries = %d after oversized append, want 0", st.Entries)
	}
	if _, err := s.Fetch(make([]byte, 8)); !errors.Is(err, ErrNoData) {
		t.Fatalf("fetch = %v, want ErrNoData", err)
	}
}

func TestDeviceFailureClearsRing(t *testing.T) {
	dev := newMemDevice(64, 2)
	s := openTestStore(t, dev, Options{})
	mustAppend(t, s, "one", "two")

	dev.syncErrs = 1
	if err := s.Append([]byte("three")); err == nil {
		t.Fatalf("append should surface the sync failure")
	}

	st, err := s.Stats()
	if err != nil {
		t.Fatalf("stats after clear: %v", err)
	}
	if st.Entries != 0 || st.UsedSectors != 1 {
		t.Fatalf("ring not cleared: %+v", st)
	}

	// The store stays usable after the fail-safe clear.
	mustAppend(t, s, "four")
	if got := string(drain(t, s, 16)); got != "four" {
		t.Fatalf("drained %q, want %q", got, "four")
	}
}

func TestClear(t *testing.T) {
	s := openTestStore(t, newMemDevice(64, 3), Options{})
	mustAppend(t, s, "a", "b", "c")

	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	st, _ := s.Stats()
	if st.Entries != 0 || st.UsedSectors != 1 || st.Bytes != 0 {
		t.Fatalf("stats after clear: %+v", st)
	}
	if _, err := s.Fetch(make([]byte, 4)); !errors.Is(err, ErrNoData) {
		t.Fatalf("fetch after clear = %v, want ErrNoData", err)
	}

	mustAppend(t, s, "fresh")
	if got := string(drain(t, s, 16)); got != "fresh" {
		t.Fatalf("drained %q after clear, want %q", got, "fresh")
	}
}

func TestBusyWhenGuardHeld(t *testing.T) {
	dev := newMemDevice(4096, 2)
	s := openTestStore(t, dev, Options{LockWait: 5 * time.Millisecond})
	mustAppend(t, s, "block")

	// Park a Fetch inside the guard by gating device reads.
	gate := make(chan struct{})
	dev.readGate = gate
	fetchDone := make(chan struct{})
	go func() {
		defer close(fetchDone)
		_, _ = s.Fetch(make([]byte, 8))
	}()

	// Wait until the fetch goroutine holds the guard.
	deadline := time.Now().Add(time.Second)
	for s.guard.lock(0) {
		s.guard.unlock()
		if time.Now().After(deadline) {
			t.Fatalf("fetch never acquired the guard")
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.Append([]byte("x")); !errors.Is(err, ErrBusy) {
		t.Fatalf("append = %v, want ErrBusy", err)
	}
	if _, err := s.Stats(); !errors.Is(err, ErrBusy) {
		t.Fatalf("stats = %v, want ErrBusy", err)
	}

	close(gate)
	<-fetchDone

	// Guard released; the store works again.
	dev.readGate = nil
	if err := s.Append([]byte("y")); err != nil {
		t.Fatalf("append after release: %v", err)
	}
}

func TestStatsShape(t *testing.T) {
	s := openTestStore(t, newMemDevice(256, 4), Options{})
	mustAppend(t, s, "abc", "defg")

	st, err := s.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.SectorSize != 256 || st.SectorCount != 4 {
		t.Fatalf("geometry = (%d,%d)", st.SectorSize, st.SectorCount)
	}
	if st.UsedSectors != 1 || st.Entries != 2 || st.Bytes != 7 {
		t.Fatalf("occupancy = %+v", st)
	}
	if st.TailSeq != 1 || st.HeadSeq != 1 {
		t.Fatalf("seqs = (%d,%d), want (1,1)", st.TailSeq, st.HeadSeq)
	}
	if st.Exporting {
		t.Fatalf("exporting flag set unexpectedly")
	}
}

func mustAppend(t *testing.T, s *Store, recs ...string) {
	t.Helper()
	for _, r := range recs {
		if err := s.Append([]byte(r)); err != nil {
			t.Fatalf("append %q: %v", r, err)
		}
	}
}
