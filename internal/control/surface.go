package control

import (
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// ButtonID names the three front-panel buttons: encoder press,
// octave, warp.
type ButtonID int

const (
	ButtonEncoder ButtonID = iota
	ButtonOctave
	ButtonWarp
	buttonCount
)

// EdgeSource is anything that can report the instantaneous (raw,
// pre-debounce) electrical state of the three buttons and the
// encoder's quadrature counter. GPIOSurface implements it against real
// hardware; Simulated implements it for development without a board.
type EdgeSource interface {
	ReadButtons() [buttonCount]bool // true = electrically active (post active-low inversion)
	ReadEncoderCounter() uint16
}

// Surface is the debounced, hysteresis-applied view of the control
// panel that the main loop reads once per poll. It owns one
// Debouncer per button and one QuadratureDecoder for the encoder.
type Surface struct {
	src      EdgeSource
	deb      [buttonCount]*Debouncer
	enc      *QuadratureDecoder
	pressed  [buttonCount]bool
	detents  int
}

// NewSurface wires a Surface to src with a 100ms debounce window and
// an encoder midpoint bias of 32000.
func NewSurface(src EdgeSource) *Surface {
	s := &Surface{src: src, enc: NewQuadratureDecoder(32000)}
	for i := range s.deb {
		s.deb[i] = NewDebouncer(100 * time.Millisecond)
	}
	return s
}

// Poll samples the source once and updates debounced button state and
// accumulated encoder detents since the last Poll.
func (s *Surface) Poll(now time.Time) {
	raw := s.src.ReadButtons()
	for i := range raw {
		s.pressed[i] = s.deb[i].Feed(now, raw[i])
	}
	s.detents += s.enc.Feed(s.src.ReadEncoderCounter())
}

// Pressed reports the debounced state of button id.
func (s *Surface) Pressed(id ButtonID) bool { return s.pressed[id] }

// TakeDetents returns and clears the number of encoder detents
// accumulated since the last call.
func (s *Surface) TakeDetents() int {
	d := s.detents
	s.detents = 0
	return d
}

// GPIOSurface reads buttons and an encoder off a Linux gpiod character
// device, for a host controller board (e.g. a Pi-class SBC) wired
// directly to the front panel. Lines are configured active-low with
// an internal pull-up, matching the button wiring.
type GPIOSurface struct {
	buttons [buttonCount]*gpiocdev.Line
	encA    *gpiocdev.Line
	encB    *gpiocdev.Line
	counter uint16
	lastA   bool
}

// NewGPIOSurface requests the given offsets on chip (e.g. "gpiochip0")
// for the three buttons and the encoder's A/B quadrature lines.
func NewGPIOSurface(chip string, buttonOffsets [3]int, encAOffset, encBOffset int) (*GPIOSurface, error) {
	g := &GPIOSurface{counter: 32000}
	for i, off := range buttonOffsets {
		l, err := gpiocdev.RequestLine(chip, off, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			g.Close()
			return nil, err
		}
		g.buttons[i] = l
	}
	encA, err := gpiocdev.RequestLine(chip, encAOffset, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		g.Close()
		return nil, err
	}
	g.encA = encA
	encB, err := gpiocdev.RequestLine(chip, encBOffset, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		g.Close()
		return nil, err
	}
	g.encB = encB
	return g, nil
}

func (g *GPIOSurface) ReadButtons() [buttonCount]bool {
	var out [buttonCount]bool
	for i, l := range g.buttons {
		v, err := l.Value()
		out[i] = err == nil && v == 0 // active-low: pressed == electrical 0
	}
	return out
}

// ReadEncoderCounter advances an internal up/down counter on each A
// transition sampled against B's level. A polled sample rather than an
// edge ISR is adequate for a human-rate front-panel control.
func (g *GPIOSurface) ReadEncoderCounter() uint16 {
	a, errA := g.encA.Value()
	b, errB := g.encB.Value()
	if errA != nil || errB != nil {
		return g.counter
	}
	curA := a != 0
	if curA != g.lastA {
		if curA == (b == 0) {
			g.counter++
		} else {
			g.counter--
		}
		g.lastA = curA
	}
	return g.counter
}

func (g *GPIOSurface) Close() {
	for _, l := range g.buttons {
		if l != nil {
			_ = l.Close()
		}
	}
	if g.encA != nil {
		_ = g.encA.Close()
	}
	if g.encB != nil {
		_ = g.encB.Close()
	}
}

// Simulated is a software EdgeSource for development without a board:
// callers mutate Buttons/EncoderCounter directly (e.g. from a keyboard
// handler in cmd/wavecoresim) and Poll picks up the current values.
type Simulated struct {
	Buttons        [buttonCount]bool
	EncoderCounter uint16
}

func NewSimulated() *Simulated {
	return &Simulated{EncoderCounter: 32000}
}

func (s *Simulated) ReadButtons() [buttonCount]bool { return s.Buttons }
func (s *Simulated) ReadEncoderCounter() uint16     { return s.EncoderCounter }
