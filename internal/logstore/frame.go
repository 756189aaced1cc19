package logstore

import (
	"encoding/binary"
	"hash/crc32"
)

// Record frames are laid out back to back after the sector header:
//
//	len   uint16 LE
//	data  len bytes
//	crc   uint32 LE  crc32c over data
//
// The crc trailer is written last, so a torn record never validates and
// stays invisible to readers while its space stays accounted for.
const (
	lenSize       = 2
	crcSize       = 4
	frameOverhead = lenSize + crcSize

	// erasedLen is the length marker read from erased space.
	erasedLen = 0xFFFF
)

func frameSize(n int) int { return frameOverhead + n }

// scanResult summarizes one sector's frame walk.
type scanResult struct {
	writeOff int
	entries  int
	bytes    int64
}

// scanFrames walks a full sector image and finds the first free byte, along
// with how many records validate. A length marker that cannot fit in the
// sector ends the walk with the sector marked full, since nothing past it
// can be trusted or reused. A record that fails its crc counts as consumed
// space but not as an entry.
func scanFrames(sector []byte) scanResult {
	var res scanResult
	off := headerSize
	for off+frameOverhead < len(sector) {
		ln := int(binary.LittleEndian.Uint16(sector[off : off+lenSize]))
		if ln == erasedLen || ln == 0 {
			break
		}
		if off+frameSize(ln) > len(sector) {
			off = len(sector)
			break
		}
		data := sector[off+lenSize : off+lenSize+ln]
		want := binary.LittleEndian.Uint32(sector[off+lenSize+ln : off+frameSize(ln)])
		if crc32.Checksum(data, castagnoli) == want {
			res.entries++
			res.bytes += int64(ln)
		}
		off += frameSize(ln)
	}
	res.writeOff = off
	return res
}
