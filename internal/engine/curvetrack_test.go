package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/performer/internal/curve"
	"github.com/schollz/performer/internal/model"
	"github.com/schollz/performer/internal/types"
)

func newCurveTestEngine(t *testing.T, setup func(*model.Project)) (*Engine, *CurveTrackEngine, *captureSink) {
	t.Helper()
	p := model.NewProject()
	p.Tracks[0].SetMode(types.TrackModeCurve)
	if setup != nil {
		setup(p)
	}
	sink := &captureSink{}
	eng := New(p, sink)
	cte, ok := eng.Track(0).(*CurveTrackEngine)
	require.True(t, ok)
	return eng, cte, sink
}

// Ramp shape with min=0 max=0.5 into a unipolar 5V range: halfway through
// the step the output is 0.5 * 0.5 * 5V = 1.25V.
func TestCurveTrackRampSampling(t *testing.T) {
	const divisor = 48
	eng, cte, sink := newCurveTestEngine(t, func(p *model.Project) {
		seq := &p.Tracks[0].CurveSequences[0]
		seq.SetDivisor(divisor)
		seq.Range = types.VoltageRangeUnipolar5V
		for i := range seq.Steps {
			seq.Steps[i].SetShape(int(curve.ShapeRampUp))
			seq.Steps[i].SetMin(0)
			seq.Steps[i].SetMax(128)
		}
	})

	eng.Start()
	runTicks(eng, sink, 0, 24)

	assert.InDelta(t, 1.25, cte.CvOutput(0), 0.02)
}

// The shape variation replaces the base shape when the probability passes.
func TestCurveTrackShapeVariationAlways(t *testing.T) {
	const divisor = 48
	eng, cte, sink := newCurveTestEngine(t, func(p *model.Project) {
		seq := &p.Tracks[0].CurveSequences[0]
		seq.SetDivisor(divisor)
		seq.Range = types.VoltageRangeUnipolar5V
		for i := range seq.Steps {
			seq.Steps[i].SetShape(int(curve.ShapeLow))
			seq.Steps[i].SetShapeVariation(int(curve.ShapeHigh))
			seq.Steps[i].SetShapeVariationProbability(types.ProbabilityMax)
			seq.Steps[i].SetMin(0)
			seq.Steps[i].SetMax(255)
		}
	})

	eng.Start()
	runTicks(eng, sink, 0, 10)

	// High shape at full bounds: 5V regardless of phase
	assert.InDelta(t, 5.0, cte.CvOutput(0), 1e-4)
}

// Fill in Invert mode evaluates 1 - f(t).
func TestCurveTrackFillInvert(t *testing.T) {
	const divisor = 48
	eng, cte, sink := newCurveTestEngine(t, func(p *model.Project) {
		p.Tracks[0].CurveFillMode = types.CurveFillModeInvert
		seq := &p.Tracks[0].CurveSequences[0]
		seq.SetDivisor(divisor)
		seq.Range = types.VoltageRangeUnipolar5V
		for i := range seq.Steps {
			seq.Steps[i].SetShape(int(curve.ShapeLow))
			seq.Steps[i].SetMin(0)
			seq.Steps[i].SetMax(255)
		}
	})

	eng.Start()
	eng.SetFill(0, true)
	runTicks(eng, sink, 0, 10)

	// Low inverted is High: 5V
	assert.InDelta(t, 5.0, cte.CvOutput(0), 1e-4)
}

// The 4-bit gate pattern emits one pulse per set bit.
func TestCurveTrackGatePattern(t *testing.T) {
	const divisor = 48
	eng, _, sink := newCurveTestEngine(t, func(p *model.Project) {
		seq := &p.Tracks[0].CurveSequences[0]
		seq.SetDivisor(divisor)
		seq.SetLastStep(0)
		seq.Steps[0].SetGate(0b0101) // bits 0 and 2
		seq.Steps[0].SetGateProbability(types.ProbabilityMax)
	})

	eng.Start()
	runTicks(eng, sink, 0, divisor-1)

	var rises, falls []uint32
	for _, e := range sink.edges() {
		if e.gate {
			rises = append(rises, e.tick)
		} else {
			falls = append(falls, e.tick)
		}
	}
	assert.Equal(t, []uint32{0, 24}, rises)
	assert.Equal(t, []uint32{6, 30}, falls)
}

// Bipolar ranges center the curve around zero volts.
func TestCurveTrackBipolarRange(t *testing.T) {
	const divisor = 48
	eng, cte, sink := newCurveTestEngine(t, func(p *model.Project) {
		seq := &p.Tracks[0].CurveSequences[0]
		seq.SetDivisor(divisor)
		seq.Range = types.VoltageRangeBipolar5V
		for i := range seq.Steps {
			seq.Steps[i].SetShape(int(curve.ShapeRampUp))
			seq.Steps[i].SetMin(0)
			seq.Steps[i].SetMax(255)
		}
	})

	eng.Start()
	runTicks(eng, sink, 0, 24)

	// halfway up the ramp across [-5,5] is 0V
	assert.InDelta(t, 0.0, cte.CvOutput(0), 0.25)
}

func TestCurveTrackProgressAndReset(t *testing.T) {
	eng, cte, sink := newCurveTestEngine(t, func(p *model.Project) {
		seq := &p.Tracks[0].CurveSequences[0]
		seq.SetDivisor(12)
	})
	eng.Start()
	runTicks(eng, sink, 0, 15*12)
	assert.Equal(t, float32(1), cte.SequenceProgress())

	cte.Reset()
	assert.Equal(t, -1, cte.CurrentStep())
	assert.Equal(t, float32(0), cte.SequenceProgress())
}
