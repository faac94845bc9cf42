// Package cli implements the line-based ASCII command channel: a small
// verb set parsed off a serial-endpoint-shaped reader, replying with
// text on a writer. The host simulator binds it to stdin/stdout; a
// device build would bind it to a CDC endpoint instead.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/driftwave/wavecore/internal/calib"
	"github.com/driftwave/wavecore/internal/core"
	"github.com/driftwave/wavecore/internal/voice"
	"github.com/driftwave/wavecore/internal/wcerr"
)

// Console parses one command line at a time against a booted core.
type Console struct {
	cs  *core.CoreState
	out io.Writer
}

func New(cs *core.CoreState, out io.Writer) *Console {
	return &Console{cs: cs, out: out}
}

// Run reads lines from r until EOF, executing each. Intended to be the
// body of the simulator's stdin goroutine.
func (c *Console) Run(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		c.Exec(sc.Text())
	}
	return sc.Err()
}

// Exec executes one command line and writes the reply.
func (c *Console) Exec(line string) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
	case line == "calib":
		_ = c.cs.Calib.Feed('s', nil)
		c.printf("calibration: apply 0V to the pitch input, then 'y'\n")
	case line == "y":
		c.continueCalibration()
	case line == "x":
		if err := c.cs.Calib.Feed('x', nil); err != nil {
			c.printf("%v\n", err)
		}
	case line == "clearconfig":
		if err := c.cs.Persist.Erase(); err != nil {
			c.printf("clearconfig failed: %s\n", reason(err))
			return
		}
		c.printf("config cleared, reboot for defaults\n")
	case strings.HasPrefix(line, "add:"):
		c.setBankSelector(strings.TrimPrefix(line, "add:"))
	case line == "wavetables":
		c.dumpCatalog()
	case line == "status":
		c.status()
	default:
		c.printf("unknown command: %q\n", line)
	}
}

// continueCalibration advances the state machine on 'y'. The two
// measurement states accumulate the configured sample count from the
// current ADC snapshot before returning, so by the time the prompt
// comes back the octave's mean is already banked.
func (c *Console) continueCalibration() {
	st := c.cs.Calib.State()
	err := c.cs.Calib.Feed('y', func(calib.Calibration) error {
		c.cs.Persist.ScheduleSave()
		return c.cs.Persist.Save(true)
	})
	if err != nil {
		c.printf("calibration failed: %s\n", reason(err))
		return
	}

	switch st {
	case calib.Waiting0:
		c.measure()
		c.printf("octave 0 measured; apply 1V, then 'y'\n")
	case calib.Waiting1:
		c.measure()
		c.printf("octave 1 measured; 'y' to save, 'x' to cancel\n")
	case calib.PendingSave:
		cal := c.cs.Calib.Calibration()
		c.printf("calibration saved: base=%g mult=%g vca=%d\n", cal.PitchBase, cal.PitchMult, cal.VCANormal)
	}
}

func (c *Console) measure() {
	adc := c.cs.ADC()
	for !c.cs.Calib.Sample(adc.PitchCV, adc.VCACV) {
	}
}

func (c *Console) setBankSelector(arg string) {
	if len(arg) != 8 {
		c.printf("add: expected 8 hex nibbles, got %q\n", arg)
		return
	}
	sel, err := strconv.ParseUint(arg, 16, 32)
	if err != nil {
		c.printf("add: bad selector %q\n", arg)
		return
	}
	c.cs.SetBankSelector(uint32(sel))
	c.printf("additive banks set to %08X\n", sel)
}

func (c *Console) dumpCatalog() {
	entries := c.cs.Catalog.Entries()
	if len(entries) == 0 {
		c.printf("no file system\n")
		return
	}
	for i, e := range entries {
		mark := " "
		switch {
		case e.IsDirectory:
			mark = "d"
		case !e.Valid:
			mark = "!"
		}
		c.printf("%3d %s %-24s frames=%d depth=%d\n", i, mark, e.Name, e.FrameCount, e.ByteDepth)
	}
}

func (c *Console) status() {
	cal := c.cs.Calib.Calibration()
	c.printf("calibration: base=%g mult=%g vca=%d state=%d\n", cal.PitchBase, cal.PitchMult, cal.VCANormal, c.cs.Calib.State())
	nameA := c.cs.ActiveWavetable(0)
	if nameA == "" {
		nameA = "(built-in)"
	}
	nameB := c.cs.ActiveWavetable(1)
	if nameB == "" {
		nameB = "(built-in)"
	}
	c.printf("wavetable A: %s\nwavetable B: %s\n", nameA, nameB)
	modeB := "additive"
	if c.cs.Engine.ChannelBMode == voice.ChannelBStepped {
		modeB = "stepped"
	}
	c.printf("channel B mode: %s\n", modeB)
	c.printf("warp: %s\n", c.cs.Engine.WarpKind)
	c.printf("banks: %08X\n", c.cs.BankSelector())
	c.printf("clock: overruns=%d spurious=%d underruns=%d\n",
		c.cs.Clock.Overruns(), c.cs.Clock.SpuriousEntries(), c.cs.Clock.Underruns())
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// reason maps an error to the terse operator-facing strings the serial
// protocol uses.
func reason(err error) string {
	switch {
	case errors.Is(err, wcerr.ErrNoConfigSpace):
		return "no space"
	case errors.Is(err, wcerr.ErrFlashError):
		return "flash corrupt"
	case errors.Is(err, wcerr.ErrFlashBusy):
		return "flash busy"
	default:
		return err.Error()
	}
}
