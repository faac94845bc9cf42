// Package voice implements the per-sample voice engine: advance two
// phases by a calibrated increment, warp, resample through the folded
// FIR, cross-fade frames, and mix. Engine.Tick mutates its own fields
// and allocates nothing; it is called exactly once per audio frame by
// internal/clock.
package voice

import (
	"math"

	"github.com/driftwave/wavecore/internal/additive"
	"github.com/driftwave/wavecore/internal/calib"
	"github.com/driftwave/wavecore/internal/control"
	"github.com/driftwave/wavecore/internal/filterlut"
	"github.com/driftwave/wavecore/internal/warp"
)

// FrameSize is the fixed single-cycle frame length in samples.
const FrameSize = 2048

// epsilon is the fractional-phase and frame-position threshold below
// which interpolation against a neighbor is skipped.
const epsilon = 1e-4

// Wavetable is the non-owning view the voice engine reads frames
// through; the catalog owns the backing storage. catalog.FrameReader
// implements this structurally.
type Wavetable interface {
	FrameCount() int
	Frame(i int) []float32
}

// ChannelBMode selects how Channel B is generated: a second wavetable
// voice, or the additive oscillator. Tracked from the front-panel
// stepped switch on every tick.
type ChannelBMode int

const (
	ChannelBStepped ChannelBMode = iota
	ChannelBAdditive
)

// ADCFrame is the fixed vector of ADC codes snapshotted once per
// tick, plus the debounced button states that ride along with it.
type ADCFrame struct {
	PitchCV       uint16
	OctaveSwitch  int // -1, 0, or 1; octave_mul = 2^OctaveSwitch
	WarpTypePot   uint16
	WarpAmountPot uint16
	PositionAPot  uint16
	PositionACV   uint16
	PositionATrim uint16
	PositionBPot  uint16
	PositionBCV   uint16
	PositionBTrim uint16
	Mix           uint16
	VCACV         uint16
	AudioIn       uint16

	MixButton     bool
	RingModButton bool
	OctaveDown    bool

	// BStepped is the front-panel channel-B mode switch: true plays a
	// second wavetable voice, false hands the channel to the additive
	// oscillator.
	BStepped bool
}

// VoiceState is one channel's per-sample state. The engine holds two
// instances, A and B.
type VoiceState struct {
	SmoothedPitchInc float32
	Phase            float32
	SmoothedPosition float32
	Output           float32
	PrevOutput       float32
}

// Engine owns both voice channels, the calibration snapshot, the
// filter LUT, the additive oscillator, and the warp/mix configuration.
// It never blocks and never allocates in Tick.
type Engine struct {
	Cal Calibration
	LUT *filterlut.LUT

	stateA, stateB VoiceState
	pitchSmooth    *control.OnePoleLPF
	posSmoothA     *control.OnePoleLPF
	posSmoothB     *control.OnePoleLPF

	wtA, wtB    Wavetable
	fileBackedA bool
	fileBackedB bool
	defaultWT   Wavetable

	WarpKind warp.Kind
	warpHyst *control.Hysteresis[int]

	ChannelBMode ChannelBMode
	additiveOsc  *additive.Oscillator
	BankLo       additive.Bank
	BankHi       additive.Bank
	BankRatio    float32

	Busy func() bool
}

// Calibration is a local alias so voice.Engine doesn't force every
// caller to import internal/calib directly just to read PitchBase /
// PitchMult / VCANormal.
type Calibration = calib.Calibration

// New creates an Engine with the fixed 0.99/0.01 one-pole smoothing
// on pitch and position, a built-in default wavetable, and the full
// complement of additive harmonics.
func New(lut *filterlut.LUT, sine *additive.SineTable, cal Calibration) *Engine {
	e := &Engine{
		Cal:         cal,
		LUT:         lut,
		pitchSmooth: control.NewOnePoleLPF(0.01),
		posSmoothA:  control.NewOnePoleLPF(0.01),
		posSmoothB:  control.NewOnePoleLPF(0.01),
		warpHyst:    control.NewHysteresis(4096), // ~1/16th of a 16-bit pot sweep
		additiveOsc: additive.NewOscillator(sine, additive.MaxHarmonics),
		defaultWT:   defaultWavetable(),
		Busy:        func() bool { return false },
	}
	e.wtA, e.wtB = e.defaultWT, e.defaultWT
	return e
}

// Phases returns both channels' current phase, the coordinate the UI
// projection indexes its draw buffer by.
func (e *Engine) Phases() (phaseA, phaseB float32) {
	return e.stateA.Phase, e.stateB.Phase
}

// SetWavetableA installs the active wavetable for Channel A.
// fileBacked marks it as backed by the external catalog rather than
// the built-in default, which gates the storage-busy hold-last-output
// fallback in Tick.
func (e *Engine) SetWavetableA(wt Wavetable, fileBacked bool) {
	if wt == nil {
		wt, fileBacked = e.defaultWT, false
	}
	e.wtA, e.fileBackedA = wt, fileBacked
}

func (e *Engine) SetWavetableB(wt Wavetable, fileBacked bool) {
	if wt == nil {
		wt, fileBacked = e.defaultWT, false
	}
	e.wtB, e.fileBackedB = wt, fileBacked
}

// octaveMul maps the tri-state octave switch to {0.5, 1, 2}.
func octaveMul(sw int) float32 {
	return float32(math.Exp2(float64(sw)))
}

// selectWarp applies the warp-type pot's hysteresis gate and updates
// e.WarpKind. A change only registers when the pot moves more than
// the hysteresis threshold.
func (e *Engine) selectWarp(warpTypePot uint16) {
	gated := e.warpHyst.Update(int(warpTypePot))
	// Six kinds mapped across the pot's full 16-bit range.
	const kinds = 6
	idx := gated * kinds / 65536
	if idx < 0 {
		idx = 0
	}
	if idx >= kinds {
		idx = kinds - 1
	}
	e.WarpKind = warp.Kind(idx)
}

// position combines a pot, a CV, and a trimmer into a normalized
// [0,1] value by summing the three 16-bit sources and rescaling by
// their combined span, the conventional attenuverter-sum topology.
func position(pot, cv, trim uint16) float32 {
	sum := float64(pot) + float64(cv) + float64(trim)
	p := sum / (3 * 65535)
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return float32(p)
}

// Tick runs one full sample of the voice engine, producing Channel A
// and Channel B outputs. It must complete within the sample period
// and never allocates or blocks.
func (e *Engine) Tick(adc ADCFrame) (a, b float32) {
	if e.Busy() && (e.fileBackedA || e.fileBackedB) {
		return e.stateA.Output, e.stateB.Output
	}

	// Pitch conversion: calibrated exponential CV-to-increment map.
	newInc := e.Cal.PitchBase * float32(math.Pow(2, float64(adc.PitchCV)*float64(e.Cal.PitchMult))) * octaveMul(adc.OctaveSwitch)
	smoothedInc := e.pitchSmooth.Step(newInc)
	e.stateA.SmoothedPitchInc = smoothedInc

	incB := smoothedInc
	if adc.OctaveDown {
		incB *= 0.5
	}
	e.stateB.SmoothedPitchInc = incB

	// Phase advance.
	e.stateA.Phase = advancePhase(e.stateA.Phase, smoothedInc)
	e.stateB.Phase = advancePhase(e.stateB.Phase, incB)

	e.selectWarp(adc.WarpTypePot)
	warpAmount := float32(adc.WarpAmountPot) / 65535

	e.ChannelBMode = ChannelBAdditive
	if adc.BStepped {
		e.ChannelBMode = ChannelBStepped
	}

	outA := e.tickChannelA(smoothedInc, adc, warpAmount)
	outB := e.tickChannelB(incB, adc)

	if adc.MixButton {
		outB = tanhApprox(outA + outB)
	}
	if adc.RingModButton {
		outB = outA * outB
	}

	e.stateA.PrevOutput, e.stateA.Output = e.stateA.Output, outA
	e.stateB.PrevOutput, e.stateB.Output = e.stateB.Output, outB
	return outA, outB
}

func advancePhase(phase, inc float32) float32 {
	phase += inc
	if phase >= FrameSize {
		phase -= FrameSize
	}
	return phase
}

// tickChannelA runs Channel A's warp, frame selection, cross-fade, and
// filtered resample.
func (e *Engine) tickChannelA(smoothedInc float32, adc ADCFrame, warpAmount float32) float32 {
	adjustedPhase := warp.Apply(e.WarpKind, e.stateA.Phase, warpAmount, e.stateB.Output)
	scale := warp.FilterScale(e.WarpKind, e.stateA.Phase, warpAmount)
	row := e.LUT.Lookup(float64(smoothedInc) * float64(scale))

	frameCount := e.wtA.FrameCount()
	p := position(adc.PositionAPot, adc.PositionACV, adc.PositionATrim)
	fpos := e.posSmoothA.Step(p*float32(frameCount-1))
	fi := int(math.Floor(float64(fpos)))
	fr := fpos - float32(fi)

	out := resample(e.wtA.Frame(clampFrame(fi, frameCount)), adjustedPhase, row, e.LUT.Taps())
	if fr > epsilon {
		out2 := resample(e.wtA.Frame(clampFrame(fi+1, frameCount)), adjustedPhase, row, e.LUT.Taps())
		out = (1-fr)*out + fr*out2
	}
	return out
}

// tickChannelB runs Channel B, either as a second filtered-resample
// voice (stepped mode) or as the additive oscillator.
func (e *Engine) tickChannelB(incB float32, adc ADCFrame) float32 {
	if e.ChannelBMode == ChannelBAdditive {
		return e.additiveOsc.Tick(e.stateB.Phase, e.BankLo, e.BankHi, e.BankRatio)
	}

	row := e.LUT.Lookup(float64(incB))
	frameCount := e.wtB.FrameCount()
	p := position(adc.PositionBPot, adc.PositionBCV, adc.PositionBTrim)
	fpos := e.posSmoothB.Step(p * float32(frameCount-1))
	fi := int(math.Floor(float64(fpos)))
	fr := fpos - float32(fi)

	out := resample(e.wtB.Frame(clampFrame(fi, frameCount)), e.stateB.Phase, row, e.LUT.Taps())
	if fr > epsilon {
		out2 := resample(e.wtB.Frame(clampFrame(fi+1, frameCount)), e.stateB.Phase, row, e.LUT.Taps())
		out = (1-fr)*out + fr*out2
	}
	return out
}

func clampFrame(i, count int) int {
	if i < 0 {
		return 0
	}
	if i >= count {
		return count - 1
	}
	return i
}

// resample is the folded-FIR anti-aliased polyphase read: the
// symmetric kernel is stored folded, so each stored coefficient taps a
// mirrored pair of samples. When the fractional phase r is
// non-negligible the base and neighbor samples are interleaved through
// the same kernel, interpolating and band-limiting in one pass.
func resample(w []float32, phase float32, row filterlut.Row, taps int) float32 {
	n := int(math.Floor(float64(phase)))
	r := phase - float32(n)
	half := taps / 2
	coeff := row.Coeff

	mod := func(x int) int {
		x %= FrameSize
		if x < 0 {
			x += FrameSize
		}
		return x
	}

	if r < epsilon {
		var out float64
		for i := 0; i < half; i++ {
			left := mod(n - taps + 1 + i)
			right := mod(n - i)
			out += coeff[i] * (float64(w[left]) + float64(w[right]))
		}
		center := mod(n - half)
		out += coeff[half] * float64(w[center])
		return float32(out)
	}

	u := 1/float64(r) - 1
	var out float64
	for i := 0; i < half; i++ {
		left := mod(n - taps + 1 + i)
		right := mod(n - i)
		leftN := mod(left + 1)
		rightN := mod(right + 1)
		out += coeff[i] * (u*(float64(w[left])+float64(w[right])) + (float64(w[leftN]) + float64(w[rightN])))
	}
	center := mod(n - half)
	centerN := mod(center + 1)
	out += coeff[half] * (u*float64(w[center]) + float64(w[centerN]))
	out *= float64(r)
	return float32(out)
}

// tanhApprox is a 7-term rational (Lambert continued-fraction)
// approximation to tanh, used for the mix button's saturation stage.
func tanhApprox(x float32) float32 {
	if x > 4.97 {
		return 1
	}
	if x < -4.97 {
		return -1
	}
	x2 := float64(x) * float64(x)
	num := float64(x) * (135135 + x2*(17325+x2*(378+x2)))
	den := 135135 + x2*(62370+x2*(3150+x2*28))
	return float32(num / den)
}

// builtinWavetable is the always-available two-frame sine+saw pair
// the engine falls back to when no file-backed wavetable can be
// loaded.
type builtinWavetable struct {
	frames [][]float32
}

func defaultWavetable() *builtinWavetable {
	sine := make([]float32, FrameSize)
	saw := make([]float32, FrameSize)
	for i := 0; i < FrameSize; i++ {
		t := float64(i) / FrameSize
		sine[i] = float32(math.Sin(2 * math.Pi * t))
		saw[i] = float32(2*t - 1)
	}
	return &builtinWavetable{frames: [][]float32{sine, saw}}
}

func (b *builtinWavetable) FrameCount() int         { return len(b.frames) }
func (b *builtinWavetable) Frame(i int) []float32   { return b.frames[i] }
