// Package additive implements the Channel B additive oscillator: up
// to MaxHarmonics harmonics of a fundamental phase, summed
// through a precomputed sine table, with linear interpolation between
// two adjacent harmonic-amplitude banks. The sine table is built once
// at construction the way the pack's LUT-based oscillators fill a
// table once up front (see audio_lut.go's sinLUT).
package additive

import "math"

// TableSize is the sine lookup table length. The table carries one
// guard entry so floor(phase) can safely read one past the last real
// entry without a modulo on the hot path.
const TableSize = 2048

// MaxHarmonics bounds H, the number of harmonics summed per tick.
const MaxHarmonics = 16

// WaveformKind selects one of the ten bank waveform kinds a packed
// nibble selector can name.
type WaveformKind int

const (
	KindNone WaveformKind = iota
	KindSine1
	KindSine2
	KindSine3
	KindSine4
	KindSine5
	KindSine6
	KindSquare
	KindSaw
	KindTriangle
)

// Bank holds per-harmonic amplitudes for one configuration.
type Bank struct {
	Harmonics [MaxHarmonics]float32
}

// BuildBank fills a Bank from a waveform kind:
// square = odd harmonics at 1/n, saw = all harmonics at (-1)^(n+1)/n,
// triangle = odd harmonics at 1/n^2. The "sine" kinds are a single
// selected harmonic at full amplitude, indexed 1..6 as the six
// possible plain-sine nibble values.
func BuildBank(kind WaveformKind) Bank {
	var b Bank
	switch kind {
	case KindNone:
		// all zero
	case KindSine1, KindSine2, KindSine3, KindSine4, KindSine5, KindSine6:
		h := int(kind - KindSine1)
		if h < MaxHarmonics {
			b.Harmonics[h] = 1
		}
	case KindSquare:
		for n := 1; n <= MaxHarmonics; n += 2 {
			b.Harmonics[n-1] = 1 / float32(n)
		}
	case KindSaw:
		for n := 1; n <= MaxHarmonics; n++ {
			sign := float32(1)
			if n%2 == 0 {
				sign = -1
			}
			b.Harmonics[n-1] = sign / float32(n)
		}
	case KindTriangle:
		for n := 1; n <= MaxHarmonics; n += 2 {
			b.Harmonics[n-1] = 1 / float32(n*n)
		}
	}
	return b
}

// BankFromSelector decodes the 8-nibble packed integer carried by the
// command channel's "add:XXXXXXXX" verb. Nibble i (least significant
// first) selects the waveform kind contributing harmonic i+1: the
// selected kind's bank is built and its matching harmonic slot copied
// in, so each of the first eight harmonics can come from a different
// source shape.
func BankFromSelector(selector uint32) Bank {
	var b Bank
	for i := 0; i < 8; i++ {
		nibble := (selector >> uint(i*4)) & 0xF
		kind := WaveformKind(nibble)
		src := BuildBank(kind)
		if i < MaxHarmonics {
			b.Harmonics[i] = src.Harmonics[i]
		}
	}
	return b
}

// SineTable is a read-only, once-built sine lookup used by Oscillator.
type SineTable struct {
	data [TableSize + 1]float32
}

// NewSineTable builds the table once.
func NewSineTable() *SineTable {
	t := &SineTable{}
	for i := 0; i < TableSize; i++ {
		t.data[i] = float32(math.Sin(2 * math.Pi * float64(i) / float64(TableSize)))
	}
	t.data[TableSize] = t.data[0] // guard entry
	return t
}

// Oscillator sums harmonics of a base phase into one output sample per
// tick, interpolating each harmonic's amplitude between two adjacent
// banks by ratio.
type Oscillator struct {
	sine *SineTable
	h    int // active harmonic count, <= MaxHarmonics
}

// NewOscillator creates an oscillator summing h harmonics (clamped to
// [0, MaxHarmonics]) against sine.
func NewOscillator(sine *SineTable, h int) *Oscillator {
	if h < 0 {
		h = 0
	}
	if h > MaxHarmonics {
		h = MaxHarmonics
	}
	return &Oscillator{sine: sine, h: h}
}

// Tick produces one output sample for the fundamental's current phase
// basePhase (in table units, [0, TableSize)). The cumulative add puts
// harmonic h's read index at (h+1)*basePhase mod TableSize, so each
// harmonic tracks the advancing fundamental without its own phase
// state. lo/hi are the two banks the index pot straddles, ratio in
// [0,1] interpolating between them.
func (o *Oscillator) Tick(basePhase float32, lo, hi Bank, ratio float32) float32 {
	var acc float32
	p := float32(0)
	for h := 0; h < o.h; h++ {
		p += basePhase
		for p >= TableSize {
			p -= TableSize
		}
		for p < 0 {
			p += TableSize
		}
		amp := lo.Harmonics[h] + (hi.Harmonics[h]-lo.Harmonics[h])*ratio
		acc += amp * o.sine.data[int(p)]
	}
	return acc
}
