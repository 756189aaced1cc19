package logstore

import (
	"encoding/binary"
	"hash/crc32"
)

// Magic marks a sector formatted by this store. A populated partition whose
// sectors carry anything else belongs to someone else and is reformatted
// rather than trusted.
const Magic uint32 = 0x1EE71065

const (
	headerSize = 12
	erased     = 0xFF
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// sectorState is the in-memory ledger for one sector.
type sectorState struct {
	seq      uint32 // rotation sequence, 0 = blank
	writeOff int    // first free byte, relative to sector start
	entries  int
	bytes    int64
}

// encodeHeader renders the 12-byte sector header: magic, rotation sequence,
// then crc32c over the first 8 bytes, all little-endian.
func encodeHeader(seq uint32) [headerSize]byte {
	var h [headerSize]byte
	binary.LittleEndian.PutUint32(h[0:4], Magic)
	binary.LittleEndian.PutUint32(h[4:8], seq)
	binary.LittleEndian.PutUint32(h[8:12], crc32.Checksum(h[0:8], castagnoli))
	return h
}

type headerState int

const (
	headerBlank headerState = iota
	headerValid
	headerForeign
)

// decodeHeader classifies the 12 bytes at the start of a sector.
func decodeHeader(h []byte) (seq uint32, state headerState) {
	blank := true
	for _, b := range h[:headerSize] {
		if b != erased {
			blank = false
			break
		}
	}
	if blank {
		return 0, headerBlank
	}
	if binary.LittleEndian.Uint32(h[0:4]) != Magic {
		return 0, headerForeign
	}
	if binary.LittleEndian.Uint32(h[8:12]) != crc32.Checksum(h[0:8], castagnoli) {
		return 0, headerForeign
	}
	seq = binary.LittleEndian.Uint32(h[4:8])
	if seq == 0 {
		// Sequence 0 is the ledger's blank marker and is never written.
		return 0, headerForeign
	}
	return seq, headerValid
}
