// Package control implements the front-panel button/encoder surface
// plus the small stateful helpers the rest of the system smooths and
// gates with: OnePoleLPF and a generic Hysteresis, explicit types
// instead of ad-hoc scalar state scattered through callers.
package control

// OnePoleLPF is a one-pole exponential smoother
// (smoothed <- (1-alpha)*smoothed + alpha*target), used for pitch and
// position smoothing.
type OnePoleLPF struct {
	Alpha float32
	value float32
	init  bool
}

// NewOnePoleLPF creates a filter with the given smoothing coefficient.
func NewOnePoleLPF(alpha float32) *OnePoleLPF {
	return &OnePoleLPF{Alpha: alpha}
}

// Step advances the filter toward target and returns the new value.
// The first call snaps directly to target so the filter doesn't ramp
// up from zero at boot.
func (f *OnePoleLPF) Step(target float32) float32 {
	if !f.init {
		f.value = target
		f.init = true
		return f.value
	}
	f.value = (1-f.Alpha)*f.value + f.Alpha*target
	return f.value
}

// Value returns the filter's current output without advancing it.
func (f *OnePoleLPF) Value() float32 { return f.value }

// Hysteresis gates a change in a comparable-by-subtraction quantity
// so small jitter around a threshold doesn't cause rapid toggling; a
// change only registers once the input moves more than Threshold away
// from the last accepted value.
type Hysteresis[T ~int | ~float32 | ~float64] struct {
	Threshold T
	current   T
	has       bool
}

// NewHysteresis creates a Hysteresis with the given threshold.
func NewHysteresis[T ~int | ~float32 | ~float64](threshold T) *Hysteresis[T] {
	return &Hysteresis[T]{Threshold: threshold}
}

// Update feeds a new raw reading and returns the gated (possibly
// unchanged) value. The first reading is always accepted.
func (h *Hysteresis[T]) Update(raw T) T {
	if !h.has {
		h.current = raw
		h.has = true
		return h.current
	}
	// Compare against the last accepted value, not the last raw
	// reading: a slow sweep accumulates until it clears the threshold.
	delta := raw - h.current
	if delta < 0 {
		delta = -delta
	}
	if delta > h.Threshold {
		h.current = raw
	}
	return h.current
}

// Current returns the last gated value without feeding a new reading.
func (h *Hysteresis[T]) Current() T { return h.current }
