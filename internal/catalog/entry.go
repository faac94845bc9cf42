// Package catalog maintains the in-RAM list of wavetable descriptors.
// It walks a directory model over a flashmap.Region, parses RIFF/WAV
// headers with a bounds-checked little-endian byte reader, and exposes
// frame slices the voice engine indexes directly without copying.
package catalog

// Format names the sample encoding inside a wavetable's data chunk.
type Format int

const (
	FormatPCM Format = iota
	FormatFloat
)

// FrameSize is the fixed single-cycle frame length in samples.
const FrameSize = 2048

// Entry is one catalog row: either a wavetable file or a directory.
type Entry struct {
	Name                 string
	LongName             string
	SizeBytes            uint32
	FirstCluster         uint32
	LastContiguousCluster uint32
	StartAddr            uint32 // offset into the flashmap region
	EndAddr              uint32
	DataSize             uint32
	SampleCount          uint32
	FrameCount           uint32
	ByteDepth            int // 2 or 4
	Format               Format
	Channels             int
	Metadata             string // decoded "clm " chunk payload, if present
	IsDirectory          bool
	Valid                bool

	// Dir is the parent directory's index in the catalog's entry
	// slice, or -1 for root-level entries.
	Dir int
}

// validate checks the entry's internal consistency: the sample count
// must match data size over byte depth and channel count, the frame
// count must be at least one, and the data region must fit within the
// file's claimed extent.
func (e *Entry) validate() {
	if e.ByteDepth <= 0 || e.Channels <= 0 {
		e.Valid = false
		return
	}
	wantSamples := e.DataSize / uint32(e.ByteDepth*e.Channels)
	if wantSamples != e.SampleCount {
		e.Valid = false
		return
	}
	e.FrameCount = e.SampleCount / FrameSize
	if e.FrameCount == 0 {
		e.Valid = false
		return
	}
	if e.StartAddr+e.DataSize > e.EndAddr {
		e.Valid = false
		return
	}
	e.Valid = true
}
