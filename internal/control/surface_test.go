package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSurface_DebouncesSimulatedButtons(t *testing.T) {
	sim := NewSimulated()
	s := NewSurface(sim)
	base := time.Now()

	s.Poll(base)
	require.False(t, s.Pressed(ButtonEncoder))

	sim.Buttons[ButtonEncoder] = true
	s.Poll(base.Add(10 * time.Millisecond)) // edge seen; window starts here
	s.Poll(base.Add(150 * time.Millisecond))
	require.True(t, s.Pressed(ButtonEncoder))
}

func TestSurface_AccumulatesDetents(t *testing.T) {
	sim := NewSimulated()
	s := NewSurface(sim)
	now := time.Now()

	s.Poll(now)
	sim.EncoderCounter += 4
	s.Poll(now)
	sim.EncoderCounter += 8
	s.Poll(now)

	require.Equal(t, 3, s.TakeDetents())
	require.Equal(t, 0, s.TakeDetents())
}
