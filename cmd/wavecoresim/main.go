// Command wavecoresim is the host-simulator front end for the
// wavetable oscillator core: it boots a core.CoreState against regular
// files standing in for the external wavetable flash and the on-chip
// config sector, drives the voice engine from keyboard/mouse input in
// place of the front panel's pots/CV/buttons, and renders the
// oscilloscope draw buffer with ebiten (Update/Draw/Layout, an
// audio.Context pulling PCM from an io.Reader).
package main

import (
	"image/color"
	"log"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	charmlog "github.com/charmbracelet/log"

	"github.com/driftwave/wavecore/internal/cli"
	"github.com/driftwave/wavecore/internal/clock"
	"github.com/driftwave/wavecore/internal/control"
	"github.com/driftwave/wavecore/internal/core"
	"github.com/driftwave/wavecore/internal/flashmap"
	"github.com/driftwave/wavecore/internal/ui"
	"github.com/driftwave/wavecore/internal/voice"
)

const scale = 3

// simConfig is the simulator's host-side configuration, loadable from
// a YAML file; individual flags override the file's fields.
type simConfig struct {
	Wavetables         string `yaml:"wavetables"`
	WavetableFlash     string `yaml:"wavetable_flash"`
	WavetableFlashSize int    `yaml:"wavetable_flash_size"`
	ConfigFlash        string `yaml:"config_flash"`
	ConfigSectors      int    `yaml:"config_sectors"`
	ConfigSectorSize   int    `yaml:"config_sector_size"`
}

func defaultSimConfig() simConfig {
	return simConfig{
		Wavetables:         "./wavetables",
		WavetableFlash:     "./wavetable.flash",
		WavetableFlashSize: 64 << 20,
		ConfigFlash:        "./config.flash",
		ConfigSectors:      2,
		ConfigSectorSize:   4096,
	}
}

func loadOptions() (simConfig, error) {
	def := defaultSimConfig()
	f := def

	var cfgPath string
	pflag.StringVar(&cfgPath, "config", "", "YAML simulator config file; flags override its fields")
	pflag.StringVar(&f.Wavetables, "wavetables", def.Wavetables, "directory of .wav wavetable files")
	pflag.StringVar(&f.WavetableFlash, "wavetable-flash", def.WavetableFlash, "backing file for the simulated external NOR flash")
	pflag.IntVar(&f.WavetableFlashSize, "wavetable-flash-size", def.WavetableFlashSize, "simulated external flash capacity in bytes")
	pflag.StringVar(&f.ConfigFlash, "config-flash", def.ConfigFlash, "backing file for the simulated on-chip config sectors")
	pflag.IntVar(&f.ConfigSectors, "config-sectors", def.ConfigSectors, "number of reserved config sectors")
	pflag.IntVar(&f.ConfigSectorSize, "config-sector-size", def.ConfigSectorSize, "bytes per config sector")
	pflag.Parse()

	if cfgPath == "" {
		return f, nil
	}
	raw, err := os.ReadFile(cfgPath)
	if err != nil {
		return f, err
	}
	merged := def
	if err := yaml.Unmarshal(raw, &merged); err != nil {
		return f, err
	}
	flagOverrides := map[string]func(){
		"wavetables":           func() { merged.Wavetables = f.Wavetables },
		"wavetable-flash":      func() { merged.WavetableFlash = f.WavetableFlash },
		"wavetable-flash-size": func() { merged.WavetableFlashSize = f.WavetableFlashSize },
		"config-flash":         func() { merged.ConfigFlash = f.ConfigFlash },
		"config-sectors":       func() { merged.ConfigSectors = f.ConfigSectors },
		"config-sector-size":   func() { merged.ConfigSectorSize = f.ConfigSectorSize },
	}
	for name, apply := range flagOverrides {
		if pflag.CommandLine.Changed(name) {
			apply()
		}
	}
	return merged, nil
}

// App is the ebiten.Game implementation driving a core.CoreState from
// mouse/keyboard input, the simulator analogue of the front panel's
// pots, CV jacks, buttons, and encoder.
type App struct {
	cs  *core.CoreState
	sim *control.Simulated

	warpAmount float32 // [0,1], driven by Left/Right
	bStepped   bool    // channel-B mode switch, toggled by S
	selected   int     // current catalog index the encoder is parked on
	parentDir  int     // directory index `selected` is scoped within, -1 at root

	audioCtx    *audio.Context
	audioPlayer *audio.Player
}

func newApp(cs *core.CoreState, sim *control.Simulated) *App {
	a := &App{cs: cs, sim: sim, warpAmount: 0.5, bStepped: true, parentDir: -1}
	a.audioCtx = audio.NewContext(int(core.SampleRate))
	return a
}

func (a *App) startAudio() error {
	stream := clock.NewStream(a.cs.Clock)
	p, err := a.audioCtx.NewPlayer(stream)
	if err != nil {
		return err
	}
	p.SetBufferSize(20 * time.Millisecond)
	p.Play()
	a.audioPlayer = p
	return nil
}

func (a *App) Update() error {
	now := time.Now()

	a.sim.Buttons[control.ButtonEncoder] = ebiten.IsKeyPressed(ebiten.KeySpace)
	a.sim.Buttons[control.ButtonOctave] = ebiten.IsKeyPressed(ebiten.KeyO)
	a.sim.Buttons[control.ButtonWarp] = ebiten.IsKeyPressed(ebiten.KeyW)
	if inpututil.IsKeyJustPressed(ebiten.KeyUp) {
		a.sim.EncoderCounter += 4
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDown) {
		a.sim.EncoderCounter -= 4
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		a.bStepped = !a.bStepped
	}

	a.cs.Surface.Poll(now)
	a.handleNavigation()
	if err := a.cs.Persist.Save(false); err != nil {
		charmlog.Default().Warn("config save", "err", err)
	}

	if ebiten.IsKeyPressed(ebiten.KeyLeft) {
		a.warpAmount -= 0.01
	}
	if ebiten.IsKeyPressed(ebiten.KeyRight) {
		a.warpAmount += 0.01
	}
	if a.warpAmount < 0 {
		a.warpAmount = 0
	}
	if a.warpAmount > 1 {
		a.warpAmount = 1
	}

	mx, my := ebiten.CursorPosition()
	pitchCV := clampU16(mx * 65535 / max1(ui.Width*scale))
	posA := clampU16(my * 65535 / max1(ui.Height*scale))

	warpTypePot := a.warpTypePot()

	a.cs.SetADC(voice.ADCFrame{
		PitchCV:       pitchCV,
		OctaveSwitch:  0,
		WarpTypePot:   warpTypePot,
		WarpAmountPot: clampU16(int(a.warpAmount * 65535)),
		PositionAPot:  posA,
		PositionBPot:  posA,
		MixButton:     ebiten.IsKeyPressed(ebiten.KeyM),
		RingModButton: ebiten.IsKeyPressed(ebiten.KeyR),
		OctaveDown:    ebiten.IsKeyPressed(ebiten.KeyO),
		BStepped:      a.bStepped,
	})
	return nil
}

// warpTypePot maps digit keys 1-6 to the pot positions of the six warp
// kinds while a key is held. With no digit key held it returns 0, the
// first kind's (none) position, so releasing a key returns to none.
func (a *App) warpTypePot() uint16 {
	keys := []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4, ebiten.Key5, ebiten.Key6}
	for i, k := range keys {
		if ebiten.IsKeyPressed(k) {
			return uint16(i * 65535 / (len(keys) - 1))
		}
	}
	return 0
}

// handleNavigation drains encoder detents and the encoder-press edge
// into catalog selection changes: up/down clamps within the current
// directory, pressing on a directory enters it.
func (a *App) handleNavigation() {
	entries := a.cs.Catalog.Entries()
	if len(entries) == 0 {
		return
	}

	if d := a.cs.Surface.TakeDetents(); d != 0 {
		first, last, ok := a.cs.Catalog.Bounds(a.parentDir)
		if ok {
			a.selected += d
			if a.selected < first {
				a.selected = first
			}
			if a.selected > last {
				a.selected = last
			}
		}
		if e, ok := a.cs.Catalog.Entry(a.selected); ok {
			a.cs.SetPicker(true, e)
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		e, ok := a.cs.Catalog.Entry(a.selected)
		if ok && e.IsDirectory {
			if first, ok := a.cs.Catalog.Enter(a.selected); ok {
				a.parentDir = a.selected
				a.selected = first
			}
			return
		}
		if ok && !e.IsDirectory {
			if err := a.cs.SelectWavetable(0, a.selected); err != nil {
				charmlog.Default().Warn("select wavetable", "err", err)
				return
			}
			a.cs.SetPicker(false, e)
		}
	}
}

func (a *App) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)
	db := a.cs.Projector.Current()
	if db == nil {
		return
	}

	switch db.Mode {
	case ui.ModeStacked:
		drawTrace(screen, ui.Lines(&db.A, 0, ui.LaneHeight), color.RGBA{0, 220, 120, 255})
		drawTrace(screen, ui.Lines(&db.B, ui.LaneHeight, ui.LaneHeight), color.RGBA{220, 120, 0, 255})
	default:
		drawTrace(screen, ui.Lines(&db.A, 0, ui.Height), color.RGBA{0, 220, 120, 255})
	}

	if db.Sel.Active {
		ebitenutil.DebugPrint(screen, db.Sel.Name)
	}
}

func drawTrace(screen *ebiten.Image, segs []ui.Segment, col color.Color) {
	for _, s := range segs {
		y0, y1 := s.Y0, s.Y1
		if y0 > y1 {
			y0, y1 = y1, y0
		}
		for y := y0; y <= y1; y++ {
			for sx := 0; sx < scale; sx++ {
				for sy := 0; sy < scale; sy++ {
					screen.Set(s.X*scale+sx, y*scale+sy, col)
				}
			}
		}
	}
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ui.Width * scale, ui.Height * scale
}

func clampU16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func main() {
	o, err := loadOptions()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	wtRegion, err := flashmap.Open(o.WavetableFlash, o.WavetableFlashSize)
	if err != nil {
		log.Fatalf("open wavetable flash: %v", err)
	}
	defer wtRegion.Close()

	cfgSize := o.ConfigSectors * o.ConfigSectorSize
	cfgRegion, err := flashmap.Open(o.ConfigFlash, cfgSize)
	if err != nil {
		log.Fatalf("open config flash: %v", err)
	}
	defer cfgRegion.Close()

	sim := control.NewSimulated()
	cs, err := core.Boot(core.Options{
		WavetableRoot:    o.Wavetables,
		WavetableRegion:  wtRegion,
		ConfigRegion:     cfgRegion,
		ConfigSectors:    o.ConfigSectors,
		ConfigSectorSize: o.ConfigSectorSize,
		SaveThrottle:     10 * time.Second,
		EdgeSource:       sim,
	})
	if err != nil {
		log.Fatalf("boot core: %v", err)
	}

	watcher, err := cs.Catalog.Watch()
	if err != nil {
		charmlog.Default().Warn("catalog watch unavailable", "err", err)
	} else {
		defer watcher.Close()
	}

	console := cli.New(cs, os.Stdout)
	go func() {
		if err := console.Run(os.Stdin); err != nil {
			charmlog.Default().Warn("command channel closed", "err", err)
		}
	}()

	app := newApp(cs, sim)
	if err := app.startAudio(); err != nil {
		log.Fatalf("start audio: %v", err)
	}

	ebiten.SetWindowTitle("wavecoresim")
	ebiten.SetWindowSize(ui.Width*scale, ui.Height*scale)
	if err := ebiten.RunGame(app); err != nil {
		log.Fatal(err)
	}
}
