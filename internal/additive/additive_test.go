package additive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingleHarmonicMatchesSineLUT(t *testing.T) {
	sine := NewSineTable()
	osc := NewOscillator(sine, 1)
	bank := Bank{}
	bank.Harmonics[0] = 1

	phase := float32(0)
	inc := float32(37.25)
	for tick := 0; tick < 50; tick++ {
		out := osc.Tick(phase, bank, bank, 0)
		want := sine.data[int(phase)]
		require.InDelta(t, float64(want), float64(out), 1e-5)
		phase += inc
		for phase >= TableSize {
			phase -= TableSize
		}
	}
}

func TestSecondHarmonicReadsDoubledPhase(t *testing.T) {
	sine := NewSineTable()
	osc := NewOscillator(sine, 2)
	bank := Bank{}
	bank.Harmonics[1] = 1

	phase := float32(513.5)
	out := osc.Tick(phase, bank, bank, 0)
	want := sine.data[int(2*phase)]
	require.InDelta(t, float64(want), float64(out), 1e-5)
}

func TestBuildBank_Square(t *testing.T) {
	b := BuildBank(KindSquare)
	require.InDelta(t, float64(1), float64(b.Harmonics[0]), 1e-6)
	require.InDelta(t, float64(0), float64(b.Harmonics[1]), 1e-6)
	require.InDelta(t, float64(1.0/3.0), float64(b.Harmonics[2]), 1e-6)
}

func TestBuildBank_Saw(t *testing.T) {
	b := BuildBank(KindSaw)
	require.InDelta(t, float64(1), float64(b.Harmonics[0]), 1e-6)
	require.InDelta(t, float64(-0.5), float64(b.Harmonics[1]), 1e-6)
}

func TestBuildBank_Triangle(t *testing.T) {
	b := BuildBank(KindTriangle)
	require.InDelta(t, float64(1), float64(b.Harmonics[0]), 1e-6)
	require.InDelta(t, float64(0), float64(b.Harmonics[1]), 1e-6)
	require.InDelta(t, float64(1.0/9.0), float64(b.Harmonics[2]), 1e-6)
}

func TestOscillator_InterpolatesBetweenBanks(t *testing.T) {
	sine := NewSineTable()
	osc := NewOscillator(sine, 1)
	lo := Bank{}
	hi := Bank{}
	hi.Harmonics[0] = 1

	outLo := osc.Tick(10, lo, hi, 0)
	require.Zero(t, outLo)

	outHi := osc.Tick(10, lo, hi, 1)
	outHalf := osc.Tick(10, lo, hi, 0.5)
	require.NotZero(t, outHi)
	require.InDelta(t, float64(outHi)/2, float64(outHalf), 1e-4)
}
