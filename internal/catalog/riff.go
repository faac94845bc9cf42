package catalog

import (
	"encoding/binary"
	"errors"

	"github.com/driftwave/wavecore/internal/wcerr"
)

// headerScanLimit is the byte offset beyond which a chunk lookup is
// considered a malformed header; a real wavetable's "data" chunk
// starts well inside this.
const headerScanLimit = 1200

// fmtChunkLimit bounds the first scan (to "fmt ") more tightly.
const fmtChunkLimit = 1000

// byteReader is a bounds-checked, little-endian reader over a borrowed
// byte slice. It never panics: every read that would run past the end
// of buf returns an error instead.
type byteReader struct {
	buf []byte
}

func (r byteReader) u32(off int) (uint32, error) {
	if off < 0 || off+4 > len(r.buf) {
		return 0, errors.New("catalog: read past end of header")
	}
	return binary.LittleEndian.Uint32(r.buf[off : off+4]), nil
}

func (r byteReader) u16(off int) (uint16, error) {
	if off < 0 || off+2 > len(r.buf) {
		return 0, errors.New("catalog: read past end of header")
	}
	return binary.LittleEndian.Uint16(r.buf[off : off+2]), nil
}

func (r byteReader) bytes(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(r.buf) {
		return nil, errors.New("catalog: read past end of header")
	}
	return r.buf[off : off+n], nil
}

// fourCC compares the 4 bytes at off against tag (e.g. "RIFF", "fmt ").
func (r byteReader) fourCC(off int, tag string) bool {
	b, err := r.bytes(off, 4)
	if err != nil {
		return false
	}
	return string(b) == tag
}

// wavHeader is the parsed result of scanning a RIFF/WAVE header, ahead
// of attaching catalog bookkeeping (address, cluster chain) that only
// the caller (Catalog.scanFile) knows about.
type wavHeader struct {
	format      uint16
	channels    uint16
	sampleRate  uint32
	byteDepth   int
	dataOffset  int
	dataSize    uint32
	metadata    string
}

// parseWAV walks the RIFF chunk list: verify the "RIFF" magic, scan
// for "fmt ", optionally scan further for a "clm " metadata chunk,
// then scan for "data". Each
// chunk is a 4-byte id, a 4-byte little-endian size, and a payload;
// the next chunk starts at id+size+8 bytes from the current chunk.
func parseWAV(buf []byte) (wavHeader, error) {
	r := byteReader{buf: buf}
	var h wavHeader

	if !r.fourCC(0, "RIFF") {
		return h, wcerr.ErrInvalidWav
	}

	pos := 12 // first chunk id at byte 12 (after RIFF/size/WAVE)
	for !r.fourCC(pos, "fmt ") {
		size, err := r.u32(pos + 4)
		if err != nil {
			return h, wcerr.ErrInvalidWav
		}
		pos += 8 + int(size)
		if pos > fmtChunkLimit {
			return h, wcerr.ErrInvalidWav
		}
	}

	var err error
	if h.format, err = r.u16(pos + 8); err != nil {
		return h, wcerr.ErrInvalidWav
	}
	if h.channels, err = r.u16(pos + 10); err != nil {
		return h, wcerr.ErrInvalidWav
	}
	if h.sampleRate, err = r.u32(pos + 12); err != nil {
		return h, wcerr.ErrInvalidWav
	}
	bitsPerSample, err := r.u16(pos + 22)
	if err != nil {
		return h, wcerr.ErrInvalidWav
	}
	h.byteDepth = int(bitsPerSample) / 8

	fmtSize, err := r.u32(pos + 4)
	if err != nil {
		return h, wcerr.ErrInvalidWav
	}
	pos += 8 + int(fmtSize)

	// Optional "clm " (Serum metadata) chunk: first token, if present,
	// is a decimal frame count.
	for {
		if r.fourCC(pos, "clm ") {
			size, err := r.u32(pos + 4)
			if err != nil {
				return h, wcerr.ErrInvalidWav
			}
			payload, err := r.bytes(pos+8, int(size))
			if err == nil {
				h.metadata = string(payload)
			}
			pos += 8 + int(size)
			continue
		}
		if r.fourCC(pos, "data") {
			break
		}
		size, err := r.u32(pos + 4)
		if err != nil {
			return h, wcerr.ErrInvalidWav
		}
		pos += 8 + int(size)
		if pos > headerScanLimit {
			return h, wcerr.ErrInvalidWav
		}
	}

	dataSize, err := r.u32(pos + 4)
	if err != nil {
		return h, wcerr.ErrInvalidWav
	}
	h.dataSize = dataSize
	h.dataOffset = pos + 8
	return h, nil
}

// clmFrameCount parses the leading decimal token of a "clm " payload
// (at most 8 digits). Returns 0, false if absent or non-numeric.
func clmFrameCount(metadata string) (uint32, bool) {
	n := 0
	digits := 0
	for _, c := range metadata {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
		digits++
		if digits == 8 {
			break
		}
	}
	if digits == 0 {
		return 0, false
	}
	return uint32(n), true
}
