package warp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var allKinds = []Kind{None, Bend, Squeeze, Mirror, Reverse, TZFM}

func TestApply_AlwaysInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		phase := rapid.Float32Range(0, FrameSize-1e-3).Draw(rt, "phase")
		amount := rapid.Float32Range(0, 2).Draw(rt, "amount")
		bOut := rapid.Float32Range(-1, 1).Draw(rt, "bOut")
		kind := allKinds[rapid.IntRange(0, len(allKinds)-1).Draw(rt, "kind")]

		out := Apply(kind, phase, amount, bOut)
		require.GreaterOrEqual(t, out, float32(0))
		require.Less(t, out, float32(FrameSize))
	})
}

func TestIdentityWarp(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		phase := rapid.Float32Range(0, FrameSize-1e-3).Draw(rt, "phase")
		require.Equal(t, phase, Apply(None, phase, 1, 0))
	})
}

func TestBend_NeutralAmountIsIdentity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		phase := rapid.Float32Range(0, FrameSize-1e-3).Draw(rt, "phase")
		out := Apply(Bend, phase, 1, 0)
		require.InDelta(t, float64(phase), float64(out), 1e-3)
	})
}

func TestMirror_NeutralAmountIsIdentity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		phase := rapid.Float32Range(0, FrameSize-1e-3).Draw(rt, "phase")
		out := Apply(Mirror, phase, 1, 0)
		require.InDelta(t, float64(phase), float64(out), 1e-2)
	})
}

func TestBend_ContinuousAtJoin(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		amount := rapid.Float32Range(0.1, 1.9).Draw(rt, "amount")
		joinP := amount / 2
		left := bend(joinP-1e-5, amount)
		right := bend(joinP+1e-5, amount)
		require.InDelta(t, float64(left), float64(right), 1e-3)
	})
}

func TestMirror_ContinuousAtJoins(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		amount := rapid.Float32Range(0.1, 1.9).Draw(rt, "amount")
		q := clampBendAmount(amount) / 2
		if q >= 0.5 {
			return
		}
		left := mirror(q-1e-5, amount)
		right := mirror(q+1e-5, amount)
		require.InDelta(t, float64(left), float64(right), 1e-2)

		// The halves meet at 0 (left) and 1 (right), the same read
		// position once Apply wraps the result, so compare mod 1.
		left = mirror(0.5-1e-5, amount)
		right = mirror(0.5+1e-5, amount)
		d := math.Abs(float64(left - right))
		require.InDelta(t, 0, math.Min(d, 1-d), 1e-2)
	})
}

func TestReverse_DoubleApplicationIsIdentity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		phase := rapid.Float32Range(0, FrameSize-1e-3).Draw(rt, "phase")
		once := Apply(Reverse, phase, 0, 0)
		twice := Apply(Reverse, once, 0, 0)
		require.InDelta(t, float64(phase), float64(twice), 1e-2)
	})
}

func TestFilterScale_NonIdentityWarpsScaleLookup(t *testing.T) {
	for _, kind := range []Kind{Bend, Mirror, Squeeze} {
		s := FilterScale(kind, 100, 0.3)
		require.Greater(t, s, float32(0))
	}
	require.Equal(t, float32(1), FilterScale(None, 100, 0.3))
}
