// Package ui holds the oscilloscope-style draw buffer the audio path
// writes into and the main loop reads from, double-buffered so neither
// side ever blocks on the other.
package ui

import (
	"sync/atomic"

	"github.com/driftwave/wavecore/internal/catalog"
)

const (
	// Width is the draw buffer's horizontal resolution in pixels.
	Width = 200
	// Height is the draw buffer's vertical resolution in pixels.
	Height = 120
	// LaneHeight is the per-channel height in stacked mode.
	LaneHeight = Height / 2
	// frameSize is the wavetable frame length a phase value is drawn
	// against.
	frameSize = 2048
)

// Mode selects how the two channels share the draw buffer.
type Mode int

const (
	// ModeSingle shows one channel at full height.
	ModeSingle Mode = iota
	// ModeStacked shows both channels in 60-pixel lanes.
	ModeStacked
)

// Picker describes the wavetable-browser overlay.
type Picker struct {
	Active      bool
	Name        string
	Valid       bool
	IsDirectory bool
}

// DrawBuffer is a complete, self-contained snapshot the frontend can
// render without any further synchronization.
type DrawBuffer struct {
	A, B [Width]int16
	Mode Mode
	Sel  Picker
}

// Projector accumulates per-tick samples into a scratch buffer on the
// audio path and publishes a stable snapshot for the main loop to draw,
// the sync/atomic pointer-swap equivalent of a DMA double buffer.
type Projector struct {
	scratch DrawBuffer
	front   atomic.Pointer[DrawBuffer]
}

// NewProjector returns a Projector with an empty published buffer.
func NewProjector() *Projector {
	p := &Projector{}
	p.front.Store(&DrawBuffer{})
	return p
}

// WriteSample records channel (0=A, 1=B)'s amplitude at the position a
// phase of phase/frameSize would project to, called once per channel
// per audio tick. amplitude is expected in [-1, 1].
func (p *Projector) WriteSample(channel int, phase, amplitude float32) {
	x := int(phase * Width / frameSize)
	if x < 0 {
		x = 0
	}
	if x >= Width {
		x = Width - 1
	}
	y := quantize(amplitude)
	switch channel {
	case 0:
		p.scratch.A[x] = y
	case 1:
		p.scratch.B[x] = y
	}
}

// SetMode sets the scratch buffer's presentation mode.
func (p *Projector) SetMode(m Mode) { p.scratch.Mode = m }

// SetPicker updates the scratch buffer's wavetable-picker overlay from
// a catalog entry, or clears it when active is false.
func (p *Projector) SetPicker(active bool, e catalog.Entry) {
	if !active {
		p.scratch.Sel = Picker{}
		return
	}
	p.scratch.Sel = Picker{Active: true, Name: e.Name, Valid: e.Valid, IsDirectory: e.IsDirectory}
}

// ApplyPicker installs an already-built picker overlay. Used by the
// audio path to fold a selection published from the main loop into the
// next snapshot without the main loop touching the scratch buffer.
func (p *Projector) ApplyPicker(sel Picker) { p.scratch.Sel = sel }

// Publish copies the scratch buffer and atomically swaps it in as the
// buffer Current returns, never blocking a concurrent WriteSample.
func (p *Projector) Publish() {
	snap := p.scratch
	p.front.Store(&snap)
}

// Current returns the most recently published snapshot.
func (p *Projector) Current() *DrawBuffer { return p.front.Load() }

// quantize maps a [-1,1] amplitude to a draw-buffer row, 0 at the top.
func quantize(amplitude float32) int16 {
	if amplitude > 1 {
		amplitude = 1
	}
	if amplitude < -1 {
		amplitude = -1
	}
	return int16((1 - amplitude) / 2 * (Height - 1))
}

// Segment is a single vertical fill command: draw a line from (x,y0)
// to (x,y1), so fast slopes render as filled columns rather than
// scattered dots.
type Segment struct {
	X      int
	Y0, Y1 int
}

// Lines decomposes a channel's row into the vertical-fill segments a
// renderer should draw, connecting each sample to the previous one.
// laneOffset and laneHeight let the same trace be drawn full-height
// (ModeSingle) or confined to a 60px lane (ModeStacked).
func Lines(row *[Width]int16, laneOffset, laneHeight int) []Segment {
	segs := make([]Segment, 0, Width)
	scale := func(y int16) int {
		return laneOffset + int(y)*laneHeight/Height
	}
	prev := scale(row[0])
	for x := 0; x < Width; x++ {
		cur := scale(row[x])
		segs = append(segs, Segment{X: x, Y0: prev, Y1: cur})
		prev = cur
	}
	return segs
}
