// Package calib implements the pitch calibration store and the
// interactive two-point calibration state machine. It is modeled as a
// struct owning its own state, registered with internal/persist as a
// config.Saver; callers read Calibration snapshots instead of the
// voice engine reaching into calibration internals.
package calib

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/driftwave/wavecore/internal/wcerr"
)

// SampleCount is the number of ADC samples accumulated per
// measurement state.
const SampleCount = 2000

// Calibration is the persisted CV->pitch mapping. PitchMult is
// negative: a higher CV ADC code means a lower voltage and therefore
// a lower pitch.
type Calibration struct {
	PitchBase float32
	PitchMult float32
	VCANormal uint16
}

// defaultCalibration derives from the nominal electrical values of
// the analog front end: a CV spread of 11090 codes per octave
// anchored so ADC code 50050 (1V into the range) reads as 130.81 Hz
// at the reference sample rate. Overwritten the first time the user
// calibrates.
func defaultCalibration(sampleRate float64) Calibration {
	const voltSpread = 11090.0
	const anchorCV = 50050.0
	pitchBase := (130.81 * (2048.0 / sampleRate)) / math.Pow(2, -anchorCV/voltSpread)
	return Calibration{
		PitchBase: float32(pitchBase),
		PitchMult: float32(-1.0 / voltSpread),
		VCANormal: 32768,
	}
}

// State is the calibration state machine's current state.
type State int

const (
	Idle State = iota
	Waiting0
	Octave0
	Waiting1
	Octave1
	PendingSave
)

// Store owns the current Calibration and the interactive calibration
// state machine that can replace it.
type Store struct {
	sampleRate float64
	cal        Calibration

	state  State
	acc0   float64
	acc1   float64
	accVCA float64
	count  int
}

// New creates a Store with default calibration for the given sample
// rate.
func New(sampleRate float64) *Store {
	return &Store{sampleRate: sampleRate, cal: defaultCalibration(sampleRate)}
}

// Calibration returns the current calibration constants. Safe to call
// from the audio path; it is a plain value copy.
func (s *Store) Calibration() Calibration { return s.cal }

// State returns the calibration state machine's current state.
func (s *Store) State() State { return s.state }

// Sample feeds one ADC reading into the active measurement state. It
// is a no-op outside Octave0/Octave1, so the main loop can call it
// unconditionally on every poll without checking state first.
// Returns true once the configured SampleCount has been reached for
// the active measurement.
func (s *Store) Sample(pitchCV, vcaCV uint16) (done bool) {
	switch s.state {
	case Octave0:
		s.acc0 += float64(pitchCV)
		s.accVCA += float64(vcaCV)
		s.count++
		if s.count >= SampleCount {
			s.state = Waiting1
			return true
		}
	case Octave1:
		s.acc1 += float64(pitchCV)
		s.count++
		if s.count >= SampleCount {
			s.state = PendingSave
			return true
		}
	}
	return false
}

// Feed drives the state machine's character-input transitions:
// 's' starts, 'y' continues, 'x' cancels from any
// state. save is called to persist a freshly computed Calibration when
// the user confirms PendingSave. 'x' returns wcerr.ErrCalibrationAborted;
// an unrecognized key, or 'y' in a state it does not advance, is a
// no-op that returns nil.
func (s *Store) Feed(key byte, save func(Calibration) error) error {
	switch key {
	case 's':
		s.state = Waiting0
		return nil
	case 'y':
		switch s.state {
		case Waiting0:
			s.state = Octave0
			s.acc0, s.accVCA, s.count = 0, 0, 0
		case Waiting1:
			s.state = Octave1
			s.acc1, s.count = 0, 0
		case PendingSave:
			cal, err := s.compute()
			if err != nil {
				s.state = Idle
				return err
			}
			// Adopt the new constants before save runs: a persistor
			// save inside the callback reads back through SaveState
			// and must see the fresh values.
			s.cal = cal
			s.state = Idle
			if save != nil {
				if err := save(cal); err != nil {
					return err
				}
			}
		}
		return nil
	case 'x':
		s.state = Idle
		return wcerr.ErrCalibrationAborted
	default:
		return nil
	}
}

// compute performs the two-point linear fit:
// anchored at 0V and 1V, volt_spread is the CV-code delta per
// volt, pitch_mult is its reciprocal negated, and pitch_base is the
// increment at ADC code 0, scaled so the code measured at the 1V point
// plays 65.41 Hz. Audio time then only multiplies it by
// 2^(code*pitch_mult) for a non-negative ADC code.
func (s *Store) compute() (Calibration, error) {
	voltSpread := (s.acc0 - s.acc1) / SampleCount
	if voltSpread == 0 {
		return Calibration{}, errors.New("calib: degenerate measurement, zero volt spread")
	}
	pitchMult := -1.0 / voltSpread
	pitchBase := 65.41 * (2048.0 / s.sampleRate) / math.Pow(2, -(s.acc1/SampleCount)/voltSpread)
	return Calibration{
		PitchBase: float32(pitchBase),
		PitchMult: float32(pitchMult),
		VCANormal: uint16(math.Round(s.accVCA / SampleCount)),
	}, nil
}

// --- config.Saver ---

const payloadSize = 4 + 4 + 2 // pitchBase, pitchMult float32 + vcaNormal u16

func (s *Store) Key() string { return "calib" }

func (s *Store) SaveState() []byte {
	buf := make([]byte, payloadSize)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(s.cal.PitchBase))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(s.cal.PitchMult))
	binary.LittleEndian.PutUint16(buf[8:10], s.cal.VCANormal)
	return buf
}

func (s *Store) LoadState(data []byte) error {
	if len(data) < payloadSize {
		return errors.New("calib: short payload")
	}
	s.cal.PitchBase = math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
	s.cal.PitchMult = math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
	s.cal.VCANormal = binary.LittleEndian.Uint16(data[8:10])
	return nil
}
