// Package clock drives the voice engine at the audio sample rate, the
// host-simulator analogue of the audio ISR in the bare-metal firmware.
package clock

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/driftwave/wavecore/internal/voice"
)

// Engine is the subset of voice.Engine the clock driver depends on.
type Engine interface {
	Tick(adc voice.ADCFrame) (a, b float32)
}

// ADCSource supplies the control-input snapshot for the next tick.
type ADCSource interface {
	Sample() voice.ADCFrame
}

// Driver fires Engine.Tick once per audio frame and tracks the two
// failure modes the ISR contract names: spurious re-entry (hardware
// quirk workaround) and per-frame budget overrun.
type Driver struct {
	engine    Engine
	adc       ADCSource
	period    time.Duration
	lastEntry time.Time
	overruns  atomic.Uint64
	spurious  atomic.Uint64
	underruns atomic.Uint64
	busy      *atomic.Bool
	now       func() time.Time
}

// New builds a Driver for a voice engine running at sampleRate Hz. busy
// is the shared storage-busy flag (flash erase/program in progress);
// a non-nil, true busy makes OnAudioFrame back off for this frame
// rather than calling the engine, mirroring the ISR's FIFO-underrun
// check.
func New(engine Engine, adc ADCSource, sampleRate float64, busy *atomic.Bool) *Driver {
	return &Driver{
		engine: engine,
		adc:    adc,
		period: time.Duration(float64(time.Second) / sampleRate),
		busy:   busy,
		now:    time.Now,
	}
}

// OnAudioFrame is the ISR entry point: exactly the hardware re-entry
// contract from the bare-metal build, where a real interrupt can fire
// twice in quick succession as a silicon quirk. It returns fired=false
// when the entry was discarded: either a spurious early re-entry
// (elapsed since the last real entry under 0.95 of the frame period)
// or a storage-busy back-off. On fired=true it has called the engine
// exactly once.
func (d *Driver) OnAudioFrame() (a, b float32, fired bool) {
	now := d.now()
	if !d.lastEntry.IsZero() {
		elapsed := now.Sub(d.lastEntry)
		if elapsed < time.Duration(0.95*float64(d.period)) {
			d.spurious.Add(1)
			return 0, 0, false
		}
	}
	d.lastEntry = now
	return d.fire()
}

// fire calls the engine once (unless storage is busy) and tallies a
// budget overrun if the call outran the frame period. It is the part
// of OnAudioFrame's contract that still applies when samples are
// requested synchronously in bulk, as the host's Stream does, where
// there is no real hardware interrupt for the 0.95*period re-entry
// check to guard against.
func (d *Driver) fire() (a, b float32, fired bool) {
	if d.busy != nil && d.busy.Load() {
		d.underruns.Add(1)
		return 0, 0, false
	}
	start := d.now()
	a, b = d.engine.Tick(d.adc.Sample())
	if d.now().Sub(start) > d.period {
		d.overruns.Add(1)
	}
	return a, b, true
}

// Overruns returns the count of ticks that exceeded the frame budget.
func (d *Driver) Overruns() uint64 { return d.overruns.Load() }

// SpuriousEntries returns the count of ISR entries discarded as
// hardware re-entry artifacts.
func (d *Driver) SpuriousEntries() uint64 { return d.spurious.Load() }

// Underruns returns the count of frames skipped because storage was
// busy when the ISR fired.
func (d *Driver) Underruns() uint64 { return d.underruns.Load() }

// Stream adapts Driver to io.Reader so an ebiten/v2/audio player can
// pull PCM directly from it: translate a requested byte count into how
// many ticks are owed, converting the engine's float32 pair into
// 16-bit little-endian stereo frames.
type Stream struct {
	driver   *Driver
	maxRetry int
}

// NewStream wraps driver for ebiten playback.
func NewStream(driver *Driver) *Stream {
	return &Stream{driver: driver, maxRetry: 8}
}

func (s *Stream) Read(p []byte) (int, error) {
	if len(p) < 4 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	frames := len(p) / 4
	i := 0
	for f := 0; f < frames; f++ {
		a, b, fired := s.driver.fire()
		if !fired {
			// Storage was busy; retry a handful of times before
			// giving up and emitting silence for this frame.
			retried := false
			for r := 0; r < s.maxRetry; r++ {
				a, b, fired = s.driver.fire()
				if fired {
					retried = true
					break
				}
			}
			if !retried {
				binary.LittleEndian.PutUint16(p[i:], 0)
				binary.LittleEndian.PutUint16(p[i+2:], 0)
				i += 4
				continue
			}
		}
		binary.LittleEndian.PutUint16(p[i:], floatToInt16(a))
		binary.LittleEndian.PutUint16(p[i+2:], floatToInt16(b))
		i += 4
	}
	return i, nil
}

func floatToInt16(f float32) uint16 {
	if f > 1 {
		f = 1
	}
	if f < -1 {
		f = -1
	}
	return uint16(int16(f * 32767))
}
