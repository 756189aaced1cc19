package flash

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ErasedByte fills freshly erased sectors; reads from erased space return it.
const ErasedByte byte = 0xFF

// Defaults applied when Options fields are zero.
const (
	DefaultSectorSize = 4096
	DefaultSectors    = 16
)

// Options configures Open.
type Options struct {
	// SectorSize is the erase granularity in bytes. Zero uses
	// DefaultSectorSize.
	SectorSize int

	// Sectors sizes a partition created from scratch. Ignored when the
	// file already exists with contents. Zero uses DefaultSectors.
	Sectors int
}

// Area is an open partition. It is safe for concurrent use to the extent
// the underlying *os.File is; callers serialize erase-vs-write ordering
// themselves.
type Area struct {
	f           *os.File
	path        string
	size        int64
	sectorSize  int
	sectorCount int
	erase       []byte
}

// Open opens or creates the partition file at path. A new file is sized to
// opts.Sectors sectors and filled with ErasedByte. An existing file keeps
// its size, which must be a positive multiple of the sector size. The file
// is locked exclusively for the lifetime of the Area.
func Open(path string, opts Options) (*Area, error) {
	sectorSize := opts.SectorSize
	if sectorSize == 0 {
		sectorSize = DefaultSectorSize
	}
	if sectorSize <= 0 {
		return nil, fmt.Errorf("flash: sector size %d invalid", sectorSize)
	}
	sectors := opts.Sectors
	if sectors == 0 {
		sectors = DefaultSectors
	}
	if sectors <= 0 {
		return nil, fmt.Errorf("flash: sector count %d invalid", sectors)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("flash: create partition dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("flash: open partition: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("flash: partition %s held by another process: %w", path, err)
	}

	a := &Area{
		f:          f,
		path:       path,
		sectorSize: sectorSize,
		erase:      make([]byte, sectorSize),
	}
	for i := range a.erase {
		a.erase[i] = ErasedByte
	}

	st, err := f.Stat()
	if err != nil {
		a.unlockClose()
		return nil, fmt.Errorf("flash: stat partition: %w", err)
	}
	size := st.Size()
	if size == 0 {
		size = int64(sectorSize) * int64(sectors)
		if err := f.Truncate(size); err != nil {
			a.unlockClose()
			return nil, fmt.Errorf("flash: size partition: %w", err)
		}
		a.size = size
		a.sectorCount = sectors
		for i := 0; i < sectors; i++ {
			if err := a.EraseSector(i); err != nil {
				a.unlockClose()
				return nil, err
			}
		}
		if err := f.Sync(); err != nil {
			a.unlockClose()
			return nil, fmt.Errorf("flash: sync new partition: %w", err)
		}
		return a, nil
	}

	if size%int64(sectorSize) != 0 {
		a.unlockClose()
		return nil, fmt.Errorf("flash: partition size %d not a multiple of sector size %d", size, sectorSize)
	}
	a.size = size
	a.sectorCount = int(size / int64(sectorSize))
	return a, nil
}

// Geometry returns the sector size and sector count.
func (a *Area) Geometry() (sectorSize, sectorCount int) {
	return a.sectorSize, a.sectorCount
}

// Path returns the partition file path.
func (a *Area) Path() string { return a.path }

// ReadAt implements io.ReaderAt within the partition bounds.
func (a *Area) ReadAt(p []byte, off int64) (int, error) {
	if err := a.checkRange(len(p), off); err != nil {
		return 0, err
	}
	return a.f.ReadAt(p, off)
}

// WriteAt implements io.WriterAt within the partition bounds.
func (a *Area) WriteAt(p []byte, off int64) (int, error) {
	if err := a.checkRange(len(p), off); err != nil {
		return 0, err
	}
	return a.f.WriteAt(p, off)
}

// EraseSector restores sector index to the erased state.
func (a *Area) EraseSector(index int) error {
	if index < 0 || index >= a.sectorCount {
		return fmt.Errorf("flash: erase sector %d of %d", index, a.sectorCount)
	}
	if _, err := a.f.WriteAt(a.erase, int64(index)*int64(a.sectorSize)); err != nil {
		return fmt.Errorf("flash: erase sector %d: %w", index, err)
	}
	return nil
}

// Sync flushes buffered writes to stable storage.
func (a *Area) Sync() error { return a.f.Sync() }

// Close releases the partition lock and closes the file.
func (a *Area) Close() error {
	return a.unlockClose()
}

func (a *Area) unlockClose() error {
	_ = unix.Flock(int(a.f.Fd()), unix.LOCK_UN)
	return a.f.Close()
}

func (a *Area) checkRange(n int, off int64) error {
	if off < 0 || off+int64(n) > a.size {
		return fmt.Errorf("flash: access [%d,%d) outside partition of %d bytes", off, off+int64(n), a.size)
	}
	return nil
}
