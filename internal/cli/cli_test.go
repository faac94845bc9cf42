package cli

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftwave/wavecore/internal/catalog"
	"github.com/driftwave/wavecore/internal/core"
	"github.com/driftwave/wavecore/internal/flashmap"
	"github.com/driftwave/wavecore/internal/voice"
)

func sineWAV() []byte {
	data := make([]byte, catalog.FrameSize*2)
	for i := 0; i < catalog.FrameSize; i++ {
		v := int16(math.Round(32000 * math.Sin(2*math.Pi*float64(i)/catalog.FrameSize)))
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}

	fmtChunk := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtChunk[0:2], 1)
	binary.LittleEndian.PutUint16(fmtChunk[2:4], 1)
	binary.LittleEndian.PutUint32(fmtChunk[4:8], 48000)
	binary.LittleEndian.PutUint32(fmtChunk[8:12], 48000*2)
	binary.LittleEndian.PutUint16(fmtChunk[12:14], 2)
	binary.LittleEndian.PutUint16(fmtChunk[14:16], 16)

	var body []byte
	appendChunk := func(id string, payload []byte) {
		body = append(body, []byte(id)...)
		sz := make([]byte, 4)
		binary.LittleEndian.PutUint32(sz, uint32(len(payload)))
		body = append(body, sz...)
		body = append(body, payload...)
	}
	body = append(body, []byte("WAVE")...)
	appendChunk("fmt ", fmtChunk)
	appendChunk("data", data)

	out := []byte("RIFF")
	sz := make([]byte, 4)
	binary.LittleEndian.PutUint32(sz, uint32(len(body)))
	out = append(out, sz...)
	return append(out, body...)
}

func bootConsole(t *testing.T, withWavetable bool) (*core.CoreState, *Console, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	if withWavetable {
		require.NoError(t, os.WriteFile(filepath.Join(root, "sine.wav"), sineWAV(), 0o644))
	}

	cfgRegion, err := flashmap.Open(filepath.Join(t.TempDir(), "config.bin"), 1024)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cfgRegion.Close() })
	require.NoError(t, cfgRegion.Erase())

	wtRegion, err := flashmap.Open(filepath.Join(t.TempDir(), "flash.bin"), 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = wtRegion.Close() })

	cs, err := core.Boot(core.Options{
		WavetableRoot:    root,
		ConfigRegion:     cfgRegion,
		WavetableRegion:  wtRegion,
		ConfigSectors:    2,
		ConfigSectorSize: 512,
		SaveThrottle:     time.Hour,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	return cs, New(cs, &buf), &buf
}

func TestExec_Wavetables(t *testing.T) {
	_, con, out := bootConsole(t, true)
	con.Exec("wavetables")
	require.Contains(t, out.String(), "sine.wav")
	require.Contains(t, out.String(), "frames=1")
}

func TestExec_WavetablesEmptyCatalog(t *testing.T) {
	_, con, out := bootConsole(t, false)
	con.Exec("wavetables")
	require.Contains(t, out.String(), "no file system")
}

func TestExec_BankSelector(t *testing.T) {
	cs, con, out := bootConsole(t, false)

	con.Exec("add:00000007")
	require.Contains(t, out.String(), "00000007")
	require.EqualValues(t, 7, cs.BankSelector())

	out.Reset()
	con.Exec("add:xyz")
	require.Contains(t, out.String(), "8 hex nibbles")

	out.Reset()
	con.Exec("add:zzzzzzzz")
	require.Contains(t, out.String(), "bad selector")
}

func TestExec_CalibrationFlow(t *testing.T) {
	cs, con, out := bootConsole(t, false)

	cs.SetADC(voice.ADCFrame{PitchCV: 61200, VCACV: 30000})
	con.Exec("calib")
	require.Contains(t, out.String(), "apply 0V")

	con.Exec("y")
	require.Contains(t, out.String(), "octave 0 measured")

	cs.SetADC(voice.ADCFrame{PitchCV: 50110})
	con.Exec("y")
	require.Contains(t, out.String(), "octave 1 measured")

	con.Exec("y")
	require.Contains(t, out.String(), "calibration saved")

	cal := cs.Calib.Calibration()
	require.InDelta(t, -1.0/11090.0, float64(cal.PitchMult), 1.0/11090.0*0.01)
	require.EqualValues(t, 30000, cal.VCANormal)
}

func TestExec_CalibrationCancel(t *testing.T) {
	cs, con, _ := bootConsole(t, false)
	before := cs.Calib.Calibration()

	con.Exec("calib")
	con.Exec("x")
	require.Equal(t, before, cs.Calib.Calibration())
}

func TestExec_ClearConfig(t *testing.T) {
	_, con, out := bootConsole(t, false)
	con.Exec("clearconfig")
	require.Contains(t, out.String(), "config cleared")
}

func TestExec_Status(t *testing.T) {
	_, con, out := bootConsole(t, true)
	con.Exec("status")
	s := out.String()
	require.Contains(t, s, "calibration:")
	require.Contains(t, s, "(built-in)")
	require.Contains(t, s, "warp: none")
	require.Contains(t, s, "overruns=0")
}

func TestExec_Unknown(t *testing.T) {
	_, con, out := bootConsole(t, false)
	con.Exec("bogus")
	require.Contains(t, out.String(), "unknown command")
}

func TestRun_ExecutesLinesUntilEOF(t *testing.T) {
	_, con, out := bootConsole(t, true)
	require.NoError(t, con.Run(strings.NewReader("wavetables\nstatus\n")))
	require.Contains(t, out.String(), "sine.wav")
	require.Contains(t, out.String(), "clock:")
}
