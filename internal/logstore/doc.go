// Package logstore implements a durable, space-bounded, append-only record
// log over a partition of fixed-size erasable sectors.
//
// # Layout
//
// Every formatted sector starts with a 12-byte header:
//
//	magic  uint32 LE  0x1EE71065
//	seq    uint32 LE  rotation sequence, strictly increasing, never 0
//	crc    uint32 LE  crc32c over the first 8 bytes
//
// Records follow back to back as frames:
//
//	len    uint16 LE  record length
//	data   len bytes  record payload
//	crc    uint32 LE  crc32c over data
//
// Erased space reads as 0xFF, so a length of 0xFFFF marks the end of the
// written region. The crc trailer is written last and a record only counts
// once it validates, which keeps torn writes invisible while their space
// stays consumed.
//
// # Rotation
//
// Appends fill the head sector. When a record does not fit, the head moves
// to the next sector in ring order; if that sector still holds data it is
// the oldest one, and it is erased first. Storage is reclaimed a whole
// sector at a time, so a full ring drops its oldest records in sector-sized
// batches. Sequence numbers order the sectors on recovery: lowest live
// sequence is the tail, highest is the head.
//
// # Draining
//
// Fetch copies out stored bytes oldest-first through a volatile cursor that
// survives nothing: restarts and ResetRead rewind it to the oldest record.
// Records may be delivered in pieces when the caller's buffer is small, but
// one record always finishes before the next begins. Export streams the
// whole ring to an io.Writer without touching the consumer cursor.
//
// # Concurrency
//
// One guard serializes every operation. Acquisition is bounded; callers that
// lose the race get ErrBusy and decide for themselves whether to retry or
// drop. While an export drains, appends return nil without storing so a
// logging pipeline wired into the store cannot feed the export back into the
// ring. Device failures mid-append clear the whole store rather than leave
// a half-written ring behind.
//
// Example:
//
//	area, _ := flash.Open("./data/ring.bin", flash.Options{})
//	st := logstore.New(area, logstore.Options{})
//	if err := st.Open(); err != nil { /* handle */ }
//	_ = st.Append([]byte("boot: power-on reset"))
//	buf := make([]byte, 64)
//	n, err := st.Fetch(buf)
package logstore
