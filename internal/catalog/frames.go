package catalog

import (
	"encoding/binary"
	"math"

	"github.com/driftwave/wavecore/internal/flashmap"
)

// FrameReader exposes one catalog Entry's frames as float32 slices the
// voice engine indexes directly, decoded once at selection time rather
// than per-sample. It structurally satisfies voice.Wavetable without
// this package importing internal/voice.
type FrameReader struct {
	frames [][]float32
}

// NewFrameReader reads e's data region out of region and decodes it
// into FrameSize-sample float32 frames, converting 16-bit PCM to the
// [-1,1] range and passing 32-bit float samples through unchanged.
func NewFrameReader(e Entry, region *flashmap.Region) (*FrameReader, error) {
	raw, err := region.Read(int(e.StartAddr), int(e.DataSize))
	if err != nil {
		return nil, err
	}

	frameBytes := FrameSize * e.ByteDepth * e.Channels
	fr := &FrameReader{frames: make([][]float32, 0, e.FrameCount)}

	for i := uint32(0); i < e.FrameCount; i++ {
		start := int(i) * frameBytes
		end := start + frameBytes
		if end > len(raw) {
			break
		}
		fr.frames = append(fr.frames, decodeFrame(raw[start:end], e.ByteDepth, e.Channels, e.Format))
	}
	return fr, nil
}

func decodeFrame(raw []byte, byteDepth, channels int, format Format) []float32 {
	out := make([]float32, FrameSize)
	stride := byteDepth * channels
	for i := 0; i < FrameSize; i++ {
		off := i * stride
		if off+byteDepth > len(raw) {
			break
		}
		switch format {
		case FormatFloat:
			bits := binary.LittleEndian.Uint32(raw[off : off+4])
			out[i] = math.Float32frombits(bits)
		default: // FormatPCM
			v := int16(binary.LittleEndian.Uint16(raw[off : off+2]))
			out[i] = float32(v) / 32768.0
		}
	}
	return out
}

// FrameCount returns the number of decoded frames.
func (f *FrameReader) FrameCount() int { return len(f.frames) }

// Frame returns the decoded samples for frame i, a live slice the
// caller must not mutate.
func (f *FrameReader) Frame(i int) []float32 { return f.frames[i] }
