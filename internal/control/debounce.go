package control

import "time"

// Debouncer implements the front-panel button debounce. Feed it raw
// electrical readings (true = pressed, after the caller has already
// inverted active-low wiring) on each poll; Pressed() only changes
// once a reading has held steady for the debounce window.
type Debouncer struct {
	window   time.Duration
	raw      bool
	stable   bool
	lastEdge time.Time
	init     bool
}

// NewDebouncer creates a debouncer with the given stability window,
// 100ms for the front-panel buttons.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Feed records a new raw reading at time now and returns the
// debounced state.
func (d *Debouncer) Feed(now time.Time, raw bool) bool {
	if !d.init {
		d.raw = raw
		d.stable = raw
		d.lastEdge = now
		d.init = true
		return d.stable
	}
	if raw != d.raw {
		d.raw = raw
		d.lastEdge = now
	} else if raw != d.stable && now.Sub(d.lastEdge) >= d.window {
		d.stable = raw
	}
	return d.stable
}

// Pressed returns the last debounced state.
func (d *Debouncer) Pressed() bool { return d.stable }

// QuadratureDecoder tracks a 4-count-per-detent encoder with a
// mid-point-biased counter (biased at 32000) so the raw hardware
// counter can wrap without special-casing zero-crossing in callers.
type QuadratureDecoder struct {
	MidPoint uint16
	count    int32
}

// NewQuadratureDecoder creates a decoder biased at the given midpoint.
func NewQuadratureDecoder(midPoint uint16) *QuadratureDecoder {
	return &QuadratureDecoder{MidPoint: midPoint, count: int32(midPoint)}
}

// Feed absorbs a raw hardware counter reading and returns the number
// of whole detents advanced (positive = clockwise) since the last
// call.
func (q *QuadratureDecoder) Feed(raw uint16) int {
	prevDetents := q.count / 4
	q.count = int32(raw)
	detents := q.count / 4
	return int(detents - prevDetents)
}
