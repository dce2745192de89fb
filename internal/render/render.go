// Package render runs the engine offline and writes one track's CV output
// to a WAV file, which makes curve shapes and slides easy to inspect in an
// audio editor.
package render

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/schollz/performer/internal/engine"
	"github.com/schollz/performer/internal/model"
	"github.com/schollz/performer/internal/types"
)

// Options controls an offline render.
type Options struct {
	Track      int
	Measures   int
	SampleRate int
}

// fullScaleVolts maps ±5V onto full-scale samples.
const fullScaleVolts = 5.0

// RenderCv drives a fresh engine across the requested measures and
// captures the track's CV at audio rate.
func RenderCv(p *model.Project, opts Options) ([]int, error) {
	if opts.Track < 0 || opts.Track >= types.TrackCount {
		return nil, fmt.Errorf("track %d out of range", opts.Track)
	}
	if opts.Measures <= 0 {
		opts.Measures = 1
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}

	eng := engine.New(p.Clone(), engine.NullSink{})
	eng.Start()

	ticksPerSecond := float64(p.BPM) / 60.0 * types.MasterPPQN
	totalTicks := opts.Measures * types.MeasureTicks
	totalSamples := int(float64(totalTicks) / ticksPerSecond * float64(opts.SampleRate))
	dt := float32(1.0 / float64(opts.SampleRate))

	samples := make([]int, totalSamples)
	tick := uint32(0)
	for i := 0; i < totalSamples; i++ {
		due := uint32(float64(i) / float64(opts.SampleRate) * ticksPerSecond)
		for tick <= due {
			eng.Tick(tick)
			tick++
		}
		eng.Update(dt)

		volts := eng.Track(opts.Track).CvOutput(0)
		v := types.ClampFloat(volts/fullScaleVolts, -1, 1)
		samples[i] = int(v * 32767)
	}
	return samples, nil
}

// RenderCvToWav renders and writes a 16-bit mono WAV file.
func RenderCvToWav(p *model.Project, path string, opts Options) error {
	samples, err := RenderCv(p, opts)
	if err != nil {
		return err
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	enc := wav.NewEncoder(out, opts.SampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: opts.SampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
