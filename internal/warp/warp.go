// Package warp implements the closed family of phase-reshape
// functions applied to Channel A's read index before resampling. Each
// kind is a pure, stateless function of phase and amount. There are
// exactly six kinds and they never grow a seventh at runtime, so they
// stay plain functions behind a switch rather than an interface.
package warp

import "math"

// Kind selects a warp function. The zero value is None.
type Kind int

const (
	None Kind = iota
	Bend
	Squeeze
	Mirror
	Reverse
	TZFM
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Bend:
		return "bend"
	case Squeeze:
		return "squeeze"
	case Mirror:
		return "mirror"
	case Reverse:
		return "reverse"
	case TZFM:
		return "tzfm"
	default:
		return "unknown"
	}
}

// FrameSize is the fixed frame length in samples.
const FrameSize = 2048

// Apply reshapes phase (a value in [0, FrameSize)) according to kind
// and amount, returning an adjusted phase also in [0, FrameSize). For
// TZFM, bOutput is Channel B's most recent output sample. The scaled
// piecewise results pass through wrap: Reverse maps phase 0 to exactly
// FrameSize, and Bend/Mirror can land there through float rounding.
func Apply(kind Kind, phase, amount, bOutput float32) float32 {
	p := phase / FrameSize
	switch kind {
	case None:
		return phase
	case Bend:
		return wrap(bend(p, amount) * FrameSize)
	case Squeeze:
		return squeeze(phase, amount)
	case Mirror:
		return wrap(mirror(p, amount) * FrameSize)
	case Reverse:
		return wrap(reverse(p) * FrameSize)
	case TZFM:
		return tzfm(phase, bOutput, amount)
	default:
		return phase
	}
}

// FilterScale returns the factor by which the anti-alias filter's
// increment lookup should be scaled for this warp/amount, so the LUT
// cutoff tracks the warp's local compression of the read index.
// Bend, Mirror and Squeeze scale the lookup; Reverse and TZFM return 1,
// so TZFM's modulation of the read index does not move the cutoff.
func FilterScale(kind Kind, phase, amount float32) float32 {
	switch kind {
	case Bend:
		a := clampBendAmount(amount)
		if phase/FrameSize < a/2 {
			return 1 / a
		}
		return 1 / (2 - a)
	case Mirror:
		return mirrorFilterScale(clampBendAmount(amount))
	case Squeeze:
		return squeezeFilterScale(amount)
	case TZFM:
		return 1
	default:
		return 1
	}
}

func clampBendAmount(a float32) float32 {
	if a < 0.1 {
		return 0.1
	}
	if a > 1.9 {
		return 1.9
	}
	return a
}

// bend is piecewise linear: the first half of the cycle is compressed
// or expanded to span [0, 0.5), the second half spans [0.5, 1). a=1 is
// identity.
func bend(p, amount float32) float32 {
	a := clampBendAmount(amount)
	if p < a/2 {
		return p / a
	}
	return (p + 1 - a) / (2 - a)
}

// squeeze adds a sinusoidal bulge to phase, sign chosen by whether
// amount is above or below its midpoint (0.5). k is scaled so the
// distortion is bounded at the pot extremes.
func squeeze(phase, amount float32) float32 {
	k := squeezeK(amount)
	p := phase / FrameSize
	adjusted := phase + k*float32(math.Sin(2*math.Pi*float64(p)))*FrameSize
	return wrap(adjusted)
}

func squeezeK(amount float32) float32 {
	// amount in [0,1]; midpoint 0.5 is neutral (k=0); extremes bounded
	// to +/-0.25 of a frame. Beyond |k| = 1/(2*pi) (amount more than
	// about 0.32 from the midpoint) the reshaped index runs backward
	// over part of the cycle.
	return (amount - 0.5) * 0.5
}

func squeezeFilterScale(amount float32) float32 {
	k := squeezeK(amount)
	if k < 0 {
		k = -k
	}
	// Worst-case local derivative of phase+k*sin(2*pi*p) is 1+2*pi*k.
	return 1 + float32(2*math.Pi)*k
}

// mirror is a 4-piece piecewise-linear reflected triangle, built by
// folding each half of the cycle around a reflection point q = a/2
// and mirroring the second half of the cycle onto the first so the
// result wraps continuously (mod 1). a=1 (q=0.5) degenerates to the
// unfolded ramp, i.e. identity.
func mirror(p, amount float32) float32 {
	a := clampBendAmount(amount)
	q := a / 2
	if q >= 0.5 {
		return p
	}
	if p < 0.5 {
		return foldTriangle(p, q)
	}
	return 1 - foldTriangle(1-p, q)
}

// foldTriangle maps x in [0, 0.5] through a triangle that rises
// linearly to 0.5 at x=q then falls linearly back to 0 at x=0.5,
// continuous at x=q by construction.
func foldTriangle(x, q float32) float32 {
	if x < q {
		return (x / q) * 0.5
	}
	return 0.5 - ((x-q)/(0.5-q))*0.5
}

func mirrorFilterScale(a float32) float32 {
	return 1 / a
}

// reverse flips phase end for end. Applying it twice is identity.
func reverse(p float32) float32 {
	return 1 - p
}

// tzfm adds bOutput*amount directly to phase (through-zero FM: the
// instantaneous increment may go negative), wrapped back into range.
func tzfm(phase, bOutput, amount float32) float32 {
	return wrap(phase + bOutput*amount)
}

func wrap(phase float32) float32 {
	for phase < 0 {
		phase += FrameSize
	}
	for phase >= FrameSize {
		phase -= FrameSize
	}
	return phase
}
