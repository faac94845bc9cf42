// Command wavecore-mkwav synthesizes single-cycle wavetable .wav
// files to develop and test the catalog against without a Serum
// export or real hardware flash. It writes standard
// mono 16-bit PCM RIFF/WAVE files, one 2048-sample frame per basic
// shape (or a linear morph between two shapes across N frames).
package main

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/pflag"

	"github.com/charmbracelet/log"
)

const frameSize = 2048

// shape is a named single-cycle waveform generator, evaluated at
// t in [0,1).
type shape struct {
	name string
	fn   func(t float64) float64
}

var shapes = map[string]shape{
	"sine":     {"sine", func(t float64) float64 { return math.Sin(2 * math.Pi * t) }},
	"saw":      {"saw", func(t float64) float64 { return 2*t - 1 }},
	"square":   {"square", squareAt},
	"triangle": {"triangle", triangleAt},
}

func squareAt(t float64) float64 {
	if t < 0.5 {
		return 1
	}
	return -1
}

func triangleAt(t float64) float64 {
	if t < 0.25 {
		return 4 * t
	}
	if t < 0.75 {
		return 2 - 4*t
	}
	return 4*t - 4
}

func shapeNames() []string {
	names := make([]string, 0, len(shapes))
	for n := range shapes {
		names = append(names, n)
	}
	return names
}

type options struct {
	out        string
	from       string
	to         string
	frames     int
	sampleRate int
}

func parseFlags() options {
	var o options
	pflag.StringVar(&o.out, "out", "wavetable.wav", "output .wav path")
	pflag.StringVar(&o.from, "from", "sine", fmt.Sprintf("starting shape (%v)", shapeNames()))
	pflag.StringVar(&o.to, "to", "", "ending shape to morph into across --frames frames (defaults to --from, a single-shape wavetable)")
	pflag.IntVar(&o.frames, "frames", 1, "frame count F")
	pflag.IntVar(&o.sampleRate, "samplerate", 48000, "wav file's declared sample rate (cosmetic; the catalog ignores it)")
	pflag.Parse()
	return o
}

func main() {
	logger := log.Default()
	o := parseFlags()

	from, ok := shapes[o.from]
	if !ok {
		logger.Fatal("unknown --from shape", "shape", o.from, "known", shapeNames())
	}
	toName := o.to
	if toName == "" {
		toName = o.from
	}
	to, ok := shapes[toName]
	if !ok {
		logger.Fatal("unknown --to shape", "shape", toName, "known", shapeNames())
	}
	if o.frames < 1 {
		logger.Fatal("--frames must be >= 1", "frames", o.frames)
	}

	samples := synthesize(from, to, o.frames)

	f, err := os.Create(o.out)
	if err != nil {
		logger.Fatal("create output file", "err", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, o.sampleRate, 16, 1, 1) // 1 = WAVE_FORMAT_PCM
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: o.sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		logger.Fatal("write samples", "err", err)
	}
	if err := enc.Close(); err != nil {
		logger.Fatal("close encoder", "err", err)
	}

	logger.Info("wrote wavetable", "path", o.out, "frames", o.frames, "from", from.name, "to", to.name)
}

// synthesize renders frames frames of frameSize int16 samples each,
// linearly crossfading every sample of from into to across the frame
// index so frame 0 is pure `from` and the last frame is pure `to`.
func synthesize(from, to shape, frames int) []int {
	out := make([]int, 0, frames*frameSize)
	for fi := 0; fi < frames; fi++ {
		ratio := 0.0
		if frames > 1 {
			ratio = float64(fi) / float64(frames-1)
		}
		for i := 0; i < frameSize; i++ {
			t := float64(i) / frameSize
			v := (1-ratio)*from.fn(t) + ratio*to.fn(t)
			out = append(out, floatToPCM16(v))
		}
	}
	return out
}

func floatToPCM16(v float64) int {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int(v * 32767)
}
