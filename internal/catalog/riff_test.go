package catalog

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildWAV assembles a minimal valid RIFF/WAVE file: "fmt " chunk,
// optional "clm " chunk, then "data" chunk filled with frameCount
// frames of FrameSize silent samples.
func buildWAV(channels, byteDepth int, sampleRate uint32, frameCount int, clm string) []byte {
	sampleCount := frameCount * FrameSize
	dataSize := sampleCount * channels * byteDepth

	fmtChunk := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtChunk[0:2], 1) // PCM
	binary.LittleEndian.PutUint16(fmtChunk[2:4], uint16(channels))
	binary.LittleEndian.PutUint32(fmtChunk[4:8], sampleRate)
	blockAlign := channels * byteDepth
	binary.LittleEndian.PutUint32(fmtChunk[8:12], sampleRate*uint32(blockAlign))
	binary.LittleEndian.PutUint16(fmtChunk[12:14], uint16(blockAlign))
	binary.LittleEndian.PutUint16(fmtChunk[14:16], uint16(byteDepth*8))

	buf := []byte{}
	appendChunk := func(id string, payload []byte) {
		buf = append(buf, []byte(id)...)
		sz := make([]byte, 4)
		binary.LittleEndian.PutUint32(sz, uint32(len(payload)))
		buf = append(buf, sz...)
		buf = append(buf, payload...)
	}

	var body []byte
	appendBody := func(id string, payload []byte) {
		body = append(body, []byte(id)...)
		sz := make([]byte, 4)
		binary.LittleEndian.PutUint32(sz, uint32(len(payload)))
		body = append(body, sz...)
		body = append(body, payload...)
	}
	body = append(body, []byte("WAVE")...)
	appendBody("fmt ", fmtChunk)
	if clm != "" {
		appendBody("clm ", []byte(clm))
	}
	appendBody("data", make([]byte, dataSize))

	appendChunk("RIFF", body)
	return buf
}

func TestParseWAV_Basic(t *testing.T) {
	raw := buildWAV(1, 2, 48000, 3, "")
	h, err := parseWAV(raw)
	require.NoError(t, err)
	require.EqualValues(t, 1, h.format)
	require.EqualValues(t, 1, h.channels)
	require.Equal(t, 2, h.byteDepth)
	require.EqualValues(t, 3*FrameSize*2, h.dataSize)
}

func TestParseWAV_ClmFrameCount(t *testing.T) {
	raw := buildWAV(1, 4, 48000, 5, "00000005 loopstart")
	h, err := parseWAV(raw)
	require.NoError(t, err)
	fc, ok := clmFrameCount(h.metadata)
	require.True(t, ok)
	require.EqualValues(t, 5, fc)
}

func TestParseWAV_BadMagic(t *testing.T) {
	raw := buildWAV(1, 2, 48000, 1, "")
	raw[0] = 'X'
	_, err := parseWAV(raw)
	require.Error(t, err)
}

func TestParseWAV_TruncatedHeader(t *testing.T) {
	_, err := parseWAV([]byte("RIFF"))
	require.Error(t, err)
}

func TestParseWAV_FmtScanExceedsLimit(t *testing.T) {
	// Pad a large bogus chunk before "fmt " so the scan walks past
	// fmtChunkLimit.
	body := []byte("WAVE")
	junk := make([]byte, 2000)
	body = append(body, []byte("junk")...)
	sz := make([]byte, 4)
	binary.LittleEndian.PutUint32(sz, uint32(len(junk)))
	body = append(body, sz...)
	body = append(body, junk...)

	buf := []byte("RIFF")
	szTotal := make([]byte, 4)
	binary.LittleEndian.PutUint32(szTotal, uint32(len(body)))
	buf = append(buf, szTotal...)
	buf = append(buf, body...)

	_, err := parseWAV(buf)
	require.Error(t, err)
}
