package id

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// Token is a 64-bit, lexicographically sortable identifier encoded as 8
// bytes big-endian: [6 bytes ms_timestamp][2 bytes sequence].
type Token [8]byte

// Bytes returns the raw 8-byte representation.
func (t Token) Bytes() []byte { b := make([]byte, 8); copy(b, t[:]); return b }

// String returns a 16-character hex string.
func (t Token) String() string { return fmtHex(t[:]) }

// Compare returns -1, 0, 1 based on lexical comparison.
func (t Token) Compare(other Token) int {
	for i := 0; i < 8; i++ {
		if t[i] < other[i] {
			return -1
		}
		if t[i] > other[i] {
			return 1
		}
	}
	return 0
}

// IsZero reports whether t is the zero token.
func (t Token) IsZero() bool { return t == Token{} }

// Generator produces monotonically increasing tokens per process.
type Generator struct {
	mu       sync.Mutex
	lastMs   int64
	sequence uint16
}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator { return &Generator{} }

// NowMs returns current time in milliseconds since Unix epoch.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Next returns a new Token. If the clock goes backwards, it pins to the last
// seen millisecond and increments the sequence. If the sequence overflows
// within the same millisecond, it waits for the next ms.
func (g *Generator) Next() Token {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}

	if ms == g.lastMs {
		if g.sequence == math.MaxUint16 {
			for {
				ms = NowMs()
				if ms > g.lastMs {
					break
				}
				time.Sleep(time.Millisecond / 8)
			}
			g.sequence = 0
		} else {
			g.sequence++
		}
	} else {
		g.sequence = 0
	}

	g.lastMs = ms
	return makeToken(ms, g.sequence)
}

func makeToken(ms int64, seq uint16) Token {
	var t Token
	u := uint64(ms) & 0xFFFFFFFFFFFF // 48-bit timestamp, good until the year 10889
	t[0] = byte(u >> 40)
	t[1] = byte(u >> 32)
	t[2] = byte(u >> 24)
	t[3] = byte(u >> 16)
	t[4] = byte(u >> 8)
	t[5] = byte(u)
	binary.BigEndian.PutUint16(t[6:8], seq)
	return t
}

// fmtHex is a small, allocation-lean hex encoder for fixed-size tokens.
func fmtHex(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexdigits[v>>4]
		out[i*2+1] = hexdigits[v&0x0f]
	}
	return string(out)
}
