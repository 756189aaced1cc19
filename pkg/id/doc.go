// Package id provides a 64-bit, lexicographically sortable identifier used
// to tag export sessions.
//
// # Format
//
// The Token is 8 bytes big-endian: [6 bytes ms_timestamp][2 bytes sequence].
// This guarantees that byte-wise comparison preserves chronological order,
// and that tokens generated within the same millisecond remain strictly
// increasing by sequence.
//
// # Monotonicity
//
// The Generator ensures per-process monotonicity:
//   - If the system clock regresses, it pins to the last seen millisecond and
//     increments the sequence to avoid going backwards.
//   - If the sequence would overflow within a millisecond, it waits for the
//     next millisecond before emitting the next token.
//
// Usage
//
//	g := id.NewGenerator()
//	tok := g.Next()
//	b := tok.Bytes()   // 8-byte representation
//	s := tok.String()  // 16-char hex string
package id
