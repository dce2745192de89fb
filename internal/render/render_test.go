package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/performer/internal/curve"
	"github.com/schollz/performer/internal/model"
	"github.com/schollz/performer/internal/types"
)

func curveProject() *model.Project {
	p := model.NewProject()
	p.Tracks[0].SetMode(types.TrackModeCurve)
	seq := &p.Tracks[0].CurveSequences[0]
	seq.Range = types.VoltageRangeUnipolar5V
	for i := range seq.Steps {
		seq.Steps[i].SetShape(int(curve.ShapeHigh))
		seq.Steps[i].SetMin(255)
		seq.Steps[i].SetMax(255)
	}
	return p
}

func TestRenderCvProducesSamples(t *testing.T) {
	samples, err := RenderCv(curveProject(), Options{Track: 0, Measures: 1, SampleRate: 8000})
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	// a constant 5V curve renders as full-scale positive samples
	last := samples[len(samples)-1]
	assert.InDelta(t, 32767, last, 64)
}

func TestRenderCvBadTrack(t *testing.T) {
	_, err := RenderCv(model.NewProject(), Options{Track: 99})
	assert.Error(t, err)
}

func TestRenderCvToWavWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.wav")
	err := RenderCvToWav(curveProject(), path, Options{Track: 0, Measures: 1, SampleRate: 8000})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(44)) // header plus samples
}

func TestRenderDefaults(t *testing.T) {
	samples, err := RenderCv(curveProject(), Options{Track: 0, Measures: 0, SampleRate: 0})
	require.NoError(t, err)
	// one measure at 120bpm/44100 = two seconds of audio
	assert.InDelta(t, 88200, len(samples), 10)
}
