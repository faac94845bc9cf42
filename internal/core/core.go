// Package core wires the collaborating components into one owning
// struct: all module state, set once at boot, reached by the audio
// path on one goroutine and the main loop on another.
package core

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/driftwave/wavecore/internal/additive"
	"github.com/driftwave/wavecore/internal/calib"
	"github.com/driftwave/wavecore/internal/catalog"
	"github.com/driftwave/wavecore/internal/clock"
	"github.com/driftwave/wavecore/internal/config"
	"github.com/driftwave/wavecore/internal/control"
	"github.com/driftwave/wavecore/internal/filterlut"
	"github.com/driftwave/wavecore/internal/flashmap"
	"github.com/driftwave/wavecore/internal/persist"
	"github.com/driftwave/wavecore/internal/ui"
	"github.com/driftwave/wavecore/internal/voice"
)

// SampleRate is the fixed audio sample rate the core runs at.
const SampleRate = 48000.0

// Options configures a CoreState at boot.
type Options struct {
	WavetableRoot    string
	ConfigRegion     *flashmap.Region
	WavetableRegion  *flashmap.Region
	ConfigSectors    int
	ConfigSectorSize int
	SaveThrottle     time.Duration
	Logger           *log.Logger

	// EdgeSource supplies button/encoder readings for the control
	// surface. A host simulator without real GPIO hardware passes a
	// *control.Simulated here and keeps its own reference to drive it
	// from keyboard/mouse input; nil defaults to an internally owned
	// Simulated with no way for the caller to reach it.
	EdgeSource control.EdgeSource
}

// CoreState is the single package-level-set-once struct gluing C1-C10
// together. All fields are safe for the audio goroutine to read/write
// through Engine and Projector only; everything else belongs to the
// main-loop goroutine.
type CoreState struct {
	Calib     *calib.Store
	Registry  *config.Registry
	Persist   *persist.Persistor
	Catalog   *catalog.Catalog
	LUT       *filterlut.LUT
	Sine      *additive.SineTable
	Engine    *voice.Engine
	Clock     *clock.Driver
	Surface   *control.Surface
	Projector *ui.Projector

	wtRegion *flashmap.Region
	banks    *bankSaver

	activeName [2]string

	adc    atomic.Pointer[voice.ADCFrame]
	picker atomic.Pointer[ui.Picker]
	busy   atomic.Bool
	log    *log.Logger
}

// bankSaver persists the additive oscillator's packed bank selector
// and reapplies it to the engine on restore.
type bankSaver struct {
	engine   *voice.Engine
	selector uint32
}

func (b *bankSaver) Key() string { return "banks" }

func (b *bankSaver) SaveState() []byte {
	out := make([]byte, 4)
	out[0] = byte(b.selector)
	out[1] = byte(b.selector >> 8)
	out[2] = byte(b.selector >> 16)
	out[3] = byte(b.selector >> 24)
	return out
}

func (b *bankSaver) LoadState(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("banks: payload too short (%d bytes)", len(data))
	}
	b.selector = uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	b.apply()
	return nil
}

func (b *bankSaver) apply() {
	bank := additive.BankFromSelector(b.selector)
	b.engine.BankLo = bank
	b.engine.BankHi = bank
}

// adcHolder adapts CoreState's atomic ADCFrame pointer to clock.ADCSource.
type adcHolder struct{ s *CoreState }

func (h adcHolder) Sample() voice.ADCFrame {
	if p := h.s.adc.Load(); p != nil {
		return *p
	}
	return voice.ADCFrame{}
}

// Boot constructs a CoreState: loads or defaults calibration, mounts
// the wavetable catalog, builds the filter and sine LUTs once, and
// restores persisted config before returning.
func Boot(opt Options) (*CoreState, error) {
	logger := opt.Logger
	if logger == nil {
		logger = log.Default()
	}

	cs := &CoreState{log: logger}
	cs.Calib = calib.New(SampleRate)
	cs.Registry = &config.Registry{}
	cs.Registry.Register(cs.Calib)

	cat, err := catalog.Mount(opt.WavetableRoot, opt.WavetableRegion, logger)
	if err != nil {
		return nil, fmt.Errorf("mount catalog: %w", err)
	}
	cs.Catalog = cat
	cs.wtRegion = opt.WavetableRegion

	cs.LUT = filterlut.Build(90, 31, 4, 7)
	cs.Sine = additive.NewSineTable()
	cs.Engine = voice.New(cs.LUT, cs.Sine, cs.Calib.Calibration())
	cs.Engine.Busy = func() bool {
		if cs.busy.Load() {
			return true
		}
		return opt.WavetableRegion != nil && opt.WavetableRegion.Busy()
	}
	cs.Clock = clock.New(cs, adcHolder{cs}, SampleRate, &cs.busy)
	edge := opt.EdgeSource
	if edge == nil {
		edge = control.NewSimulated()
	}
	cs.Surface = control.NewSurface(edge)
	cs.Projector = ui.NewProjector()

	cs.banks = &bankSaver{engine: cs.Engine}
	cs.Registry.Register(cs.banks)

	// The persistor sizes its record from the registry, so it is built
	// only after every registrant exists; Restore then hands each one
	// its slice of the newest record.
	cs.Persist = persist.New(opt.ConfigRegion, cs.Registry, opt.ConfigSectors, opt.ConfigSectorSize, opt.SaveThrottle, logger)
	if err := cs.Persist.Restore(); err != nil {
		logger.Warn("config restore failed, continuing with defaults", "err", err)
	}
	cs.Engine.Cal = cs.Calib.Calibration()

	cs.adc.Store(&voice.ADCFrame{})
	return cs, nil
}

// Tick is the audio-ISR-equivalent method: it runs the voice engine
// once, mirrors both channels' output into the UI projection, and
// returns the two samples for the caller (internal/clock.Driver, or a
// test driving Tick directly) to emit. It is the one method of
// CoreState the audio path calls; everything else belongs to the
// main-loop goroutine.
func (cs *CoreState) Tick(adc voice.ADCFrame) (a, b float32) {
	a, b = cs.Engine.Tick(adc)
	phaseA, phaseB := cs.Engine.Phases()
	cs.ProjectTick(phaseA, phaseB, a, b)
	if p := cs.picker.Load(); p != nil {
		cs.Projector.ApplyPicker(*p)
	}
	cs.Projector.Publish()
	return a, b
}

// SetPicker publishes the wavetable-picker overlay state for the audio
// path to fold into the next draw-buffer snapshot.
func (cs *CoreState) SetPicker(active bool, e catalog.Entry) {
	sel := ui.Picker{}
	if active {
		sel = ui.Picker{Active: true, Name: e.Name, Valid: e.Valid, IsDirectory: e.IsDirectory}
	}
	cs.picker.Store(&sel)
}

// SetADC publishes the next tick's control-input snapshot for the
// audio path to pick up, the host analogue of a periodic ADC scan
// landing in a shared buffer.
func (cs *CoreState) SetADC(adc voice.ADCFrame) { cs.adc.Store(&adc) }

// ADC returns the most recently published control-input snapshot.
func (cs *CoreState) ADC() voice.ADCFrame {
	if p := cs.adc.Load(); p != nil {
		return *p
	}
	return voice.ADCFrame{}
}

// SetBankSelector installs a new additive bank selector on the engine
// and books a config save.
func (cs *CoreState) SetBankSelector(selector uint32) {
	cs.banks.selector = selector
	cs.banks.apply()
	cs.Persist.ScheduleSave()
}

// BankSelector returns the current packed additive bank selector.
func (cs *CoreState) BankSelector() uint32 { return cs.banks.selector }

// ActiveWavetable returns the name of the catalog entry playing on the
// given channel, or "" when the channel is on the built-in default.
func (cs *CoreState) ActiveWavetable(channel int) string {
	if channel < 0 || channel >= len(cs.activeName) {
		return ""
	}
	return cs.activeName[channel]
}

// Busy reports whether the shared storage-busy flag is set.
func (cs *CoreState) Busy() bool { return cs.busy.Load() }

// SetBusy marks storage as busy or idle, read by the clock driver
// before it will call the voice engine.
func (cs *CoreState) SetBusy(v bool) { cs.busy.Store(v) }

// SelectWavetable resolves catalog entry idx into a decoded
// catalog.FrameReader and installs it on the given voice channel (0=A,
// 1=B). Directories and invalid entries are refused.
func (cs *CoreState) SelectWavetable(channel, idx int) error {
	e, ok := cs.Catalog.Entry(idx)
	if !ok {
		return fmt.Errorf("core: no catalog entry %d", idx)
	}
	if e.IsDirectory {
		return fmt.Errorf("core: entry %d is a directory", idx)
	}
	if !e.Valid {
		return fmt.Errorf("core: entry %d is invalid", idx)
	}
	fr, err := catalog.NewFrameReader(e, cs.wtRegion)
	if err != nil {
		return fmt.Errorf("core: load frames for entry %d: %w", idx, err)
	}
	switch channel {
	case 0:
		cs.Engine.SetWavetableA(fr, true)
	case 1:
		cs.Engine.SetWavetableB(fr, true)
	default:
		return fmt.Errorf("core: unknown channel %d", channel)
	}
	cs.activeName[channel] = e.Name
	return nil
}

// ProjectTick mirrors one tick's two channel samples into the draw
// buffer, called from Tick right after Engine.Tick.
func (cs *CoreState) ProjectTick(phaseA, phaseB, a, b float32) {
	cs.Projector.WriteSample(0, phaseA, a)
	cs.Projector.WriteSample(1, phaseB, b)
}
