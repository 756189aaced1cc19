package logstore

import "io"

// Device is the raw region the store rides on: a byte-addressable partition
// split into equal erase sectors. Reads and writes are byte-granular; the
// store only ever writes into erased space. flash.Area satisfies this.
type Device interface {
	io.ReaderAt
	io.WriterAt

	// EraseSector resets one sector so every byte reads 0xFF.
	EraseSector(index int) error

	// Sync flushes buffered writes to stable storage.
	Sync() error

	// Geometry reports the sector size in bytes and the sector count.
	Geometry() (sectorSize, sectorCount int)
}
