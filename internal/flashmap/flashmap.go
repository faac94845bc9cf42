// Package flashmap models the contiguous, memory-mapped byte region
// behind the rest of the system: the external NOR flash that backs
// wavetable files, and the on-chip sector that backs the config ring.
// On the MCU this is a literal memory-mapped OctoSPI window; on the
// host simulator it is a real file, memory-mapped with
// codeberg.org/go-mmap/mmap so the catalog and persistor exercise the
// same bounds-checked-byte-slice contract either way.
//
// The window may be mutated only while memory-mapping is temporarily
// disabled, expressed here as an explicit Unmap/remap pair around any
// write: Region.Write always unmaps, writes through the backing file,
// and remaps before
// returning, so a reader that raced the write would have observed
// Busy() rather than torn data.
package flashmap

import (
	"errors"
	"os"
	"sync/atomic"

	"codeberg.org/go-mmap/mmap"

	"github.com/driftwave/wavecore/internal/wcerr"
)

// Region is a bounds-checked view over a memory-mapped byte range. It
// is safe for concurrent reads from one goroutine (the audio callback)
// while another goroutine (the main loop) calls Write, provided the
// caller checks Busy() first. Region itself only provides the busy
// flag and the unmap/remap mechanics, it does not serialize callers.
type Region struct {
	f    *os.File
	m    *mmap.File
	data []byte
	busy atomic.Bool
}

// Open memory-maps the file at path read-write, extending or
// truncating it to size bytes first. size must match the reserved
// flash region's capacity (e.g. one erase-sector, or the catalog's
// configured external-flash capacity).
func Open(path string, size int) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, err
	}
	r := &Region{f: f}
	if err := r.remap(size); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Region) remap(size int) error {
	m, err := mmap.OpenFile(r.f.Name(), mmap.Read|mmap.Write)
	if err != nil {
		return err
	}
	r.m = m
	r.data = m.Data()
	if len(r.data) < size {
		m.Close()
		return errors.New("flashmap: mapped region smaller than requested size")
	}
	return nil
}

// Len reports the mapped region size in bytes.
func (r *Region) Len() int { return len(r.data) }

// Busy reports whether the region is mid-write (mapping temporarily
// disabled). The audio path checks this and falls back to holding the
// previous output rather than blocking.
func (r *Region) Busy() bool { return r.busy.Load() }

// Read returns a bounds-checked copy of data[off:off+n]. It never
// panics: an out-of-range request returns an error instead.
func (r *Region) Read(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(r.data) {
		return nil, errors.New("flashmap: read out of range")
	}
	out := make([]byte, n)
	copy(out, r.data[off:off+n])
	return out, nil
}

// Bytes exposes the live mapped slice for read-only use without a
// copy; the catalog does not use it and copies frames through Read.
// Callers must not retain the slice across a Write.
func (r *Region) Bytes() []byte { return r.data }

// Write unmaps, writes buf at off through the backing file, and
// remaps. Returns wcerr.ErrFlashBusy if a write is already underway,
// and wcerr.ErrFlashError if the remap fails (treated as a hardware
// fault).
func (r *Region) Write(off int, buf []byte) error {
	if off < 0 || off+len(buf) > len(r.data) {
		return errors.New("flashmap: write out of range")
	}
	if !r.busy.CompareAndSwap(false, true) {
		return wcerr.ErrFlashBusy
	}
	defer r.busy.Store(false)

	size := len(r.data)
	if err := r.m.Close(); err != nil {
		return wcerr.ErrFlashError
	}
	if _, err := r.f.WriteAt(buf, int64(off)); err != nil {
		_ = r.remap(size)
		return err
	}
	if err := r.remap(size); err != nil {
		return wcerr.ErrFlashError
	}
	return nil
}

// Erase fills the whole region with 0xFF, matching flash's erased
// state, via the same unmap/write/remap sequence as Write.
func (r *Region) Erase() error {
	blank := make([]byte, len(r.data))
	for i := range blank {
		blank[i] = 0xFF
	}
	return r.Write(0, blank)
}

// Close unmaps and closes the backing file.
func (r *Region) Close() error {
	if r.m != nil {
		_ = r.m.Close()
	}
	return r.f.Close()
}
