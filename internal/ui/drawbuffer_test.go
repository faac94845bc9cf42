package ui

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftwave/wavecore/internal/catalog"
)

func TestWriteSample_ClampsPhaseIntoRange(t *testing.T) {
	p := NewProjector()
	p.WriteSample(0, -10, 1.0)
	p.WriteSample(0, frameSize*10, -1.0)
	p.Publish()

	buf := p.Current()
	require.Equal(t, int16(0), buf.A[0])
	require.Equal(t, int16(Height-1), buf.A[Width-1])
}

func TestWriteSample_QuantizesFullScaleAmplitude(t *testing.T) {
	p := NewProjector()
	p.WriteSample(0, 0, 1.0)
	p.WriteSample(1, 0, -1.0)
	p.Publish()

	buf := p.Current()
	require.Equal(t, int16(0), buf.A[0])
	require.Equal(t, int16(Height-1), buf.B[0])
}

func TestPublish_DoesNotMutatePreviousSnapshot(t *testing.T) {
	p := NewProjector()
	p.WriteSample(0, 0, 1.0)
	p.Publish()
	first := p.Current()

	p.WriteSample(0, 0, -1.0)
	p.Publish()
	second := p.Current()

	require.NotEqual(t, first.A[0], second.A[0])
	require.Equal(t, int16(0), first.A[0])
}

func TestSetPicker_ReflectsCatalogEntry(t *testing.T) {
	p := NewProjector()
	p.SetPicker(true, catalog.Entry{Name: "BASSHIT.WAV", Valid: true, IsDirectory: false})
	p.Publish()

	sel := p.Current().Sel
	require.True(t, sel.Active)
	require.Equal(t, "BASSHIT.WAV", sel.Name)
	require.True(t, sel.Valid)
	require.False(t, sel.IsDirectory)

	p.SetPicker(false, catalog.Entry{})
	p.Publish()
	require.False(t, p.Current().Sel.Active)
}

func TestLines_ConnectsConsecutiveSamples(t *testing.T) {
	var row [Width]int16
	row[0] = 0
	row[1] = Height - 1

	segs := Lines(&row, 0, Height)
	require.Len(t, segs, Width)
	require.Equal(t, 0, segs[0].Y0)
	require.Equal(t, 0, segs[0].Y1)
	require.Equal(t, 0, segs[1].Y0)
	require.Equal(t, Height-1, segs[1].Y1)
}

func TestLines_RespectsLaneOffsetForStackedMode(t *testing.T) {
	var row [Width]int16
	row[1] = Height - 1

	segs := Lines(&row, LaneHeight, LaneHeight)
	require.Equal(t, LaneHeight, segs[1].Y0)
	require.Equal(t, LaneHeight*2-1, segs[1].Y1)
}
