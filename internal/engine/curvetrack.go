package engine

import (
	"github.com/schollz/performer/internal/clock"
	"github.com/schollz/performer/internal/curve"
	"github.com/schollz/performer/internal/model"
	"github.com/schollz/performer/internal/rng"
	"github.com/schollz/performer/internal/types"
)

// CurveTrackEngine emits a continuously-interpolated CV by sampling a shape
// function per step, plus up to four sub-step gate pulses from the step's
// 4-bit gate pattern.
type CurveTrackEngine struct {
	trackIndex int
	project    *model.Project
	track      *model.Track
	sink       OutputSink
	rng        *rng.Rng

	state            SequenceState
	pattern          int
	requestedPattern int
	freeRelativeTick uint32
	currentStep      int

	// resolved at each step boundary
	shape    curve.Shape
	shapeMin float32
	shapeMax float32

	gateQueue eventQueue[bool]

	running bool
	mute    bool
	fill    bool

	gateRaw        bool
	cvOutput       float32
	cvOutputTarget float32

	link LinkData
}

func NewCurveTrackEngine(project *model.Project, trackIndex int, sink OutputSink, r *rng.Rng) *CurveTrackEngine {
	e := &CurveTrackEngine{
		trackIndex: trackIndex,
		project:    project,
		track:      &project.Tracks[trackIndex],
		sink:       sink,
		rng:        r,
	}
	e.pattern = e.track.Pattern
	e.requestedPattern = e.pattern
	e.state.Reset()
	e.currentStep = -1
	return e
}

func (e *CurveTrackEngine) TrackMode() types.TrackMode { return types.TrackModeCurve }

func (e *CurveTrackEngine) sequence() *model.CurveSequence {
	return e.track.CurveSequence(e.pattern)
}

func (e *CurveTrackEngine) Pattern() int     { return e.pattern }
func (e *CurveTrackEngine) CurrentStep() int { return e.currentStep }

func (e *CurveTrackEngine) Reset() {
	e.state.Reset()
	e.freeRelativeTick = 0
	e.currentStep = -1
}

func (e *CurveTrackEngine) Restart() {
	e.state.Reset()
	e.freeRelativeTick = 0
}

func (e *CurveTrackEngine) Silence() {
	e.gateQueue.Clear()
	if e.gateRaw {
		e.gateRaw = false
		e.sink.SendGate(e.trackIndex, false)
	}
}

func (e *CurveTrackEngine) ChangePattern(pattern int) {
	e.requestedPattern = types.ClampInt(pattern, 0, types.PatternCount-1)
}

func (e *CurveTrackEngine) applyPatternChange() {
	if e.requestedPattern != e.pattern {
		e.pattern = e.requestedPattern
		e.state.Reset()
	}
}

func (e *CurveTrackEngine) SetRunning(running bool) { e.running = running }
func (e *CurveTrackEngine) SetMute(mute bool)       { e.mute = mute }
func (e *CurveTrackEngine) SetFill(fill bool)       { e.fill = fill }

func (e *CurveTrackEngine) LinkData() *LinkData { return &e.link }

func (e *CurveTrackEngine) Activity() bool { return e.gateRaw }

func (e *CurveTrackEngine) GateOutput(int) bool {
	return (!e.mute || e.fill) && e.gateRaw
}

func (e *CurveTrackEngine) CvOutput(int) float32 { return e.cvOutput }

func (e *CurveTrackEngine) SequenceProgress() float32 {
	seq := e.sequence()
	n := seq.StepRange()
	if n <= 1 || e.currentStep < seq.FirstStep {
		return 0
	}
	return float32(e.currentStep-seq.FirstStep) / float32(n-1)
}

func (e *CurveTrackEngine) Tick(tick uint32, link *LinkData) {
	e.applyPatternChange()
	seq := e.sequence()
	divisor := seq.Divisor

	var relativeTick uint32
	if link != nil {
		e.state = link.State
		divisor = link.Divisor
		relativeTick = link.RelativeTick
		if divisor > 0 && relativeTick%uint32(divisor) == 0 && e.running {
			e.triggerStep(tick, seq, divisor)
		}
	} else {
		resetDivisor := clock.MeasureTicks(seq.ResetMeasure)
		relativeTick = tick
		if e.track.PlayMode == types.PlayModeFree {
			relativeTick = e.freeRelativeTick
			if e.running {
				e.freeRelativeTick++
				if e.freeRelativeTick >= uint32(divisor) {
					e.freeRelativeTick = 0
				}
			}
		} else if resetDivisor != 0 {
			relativeTick = tick % resetDivisor
		}

		if e.running && relativeTick%uint32(divisor) == 0 {
			if relativeTick == 0 && resetDivisor != 0 && e.track.PlayMode == types.PlayModeAligned {
				e.state.Reset()
			}
			if e.track.PlayMode == types.PlayModeAligned {
				e.state.AdvanceAligned(relativeTick/uint32(divisor), seq.RunMode, seq.FirstStep, seq.LastStep, e.rng)
			} else {
				e.state.AdvanceFree(seq.RunMode, seq.FirstStep, seq.LastStep, e.rng)
			}
			e.triggerStep(tick, seq, divisor)
		}
	}

	e.link = LinkData{Divisor: divisor, RelativeTick: relativeTick, State: e.state}

	if e.running && e.currentStep >= 0 && divisor > 0 {
		e.sample(relativeTick, divisor, seq.Range)
	}

	for {
		gate, ok := e.gateQueue.PopDue(tick)
		if !ok {
			break
		}
		e.gateRaw = gate
		e.sink.SendGate(e.trackIndex, e.GateOutput(0))
	}
}

// triggerStep resolves the step's shape and bounds and queues its gate
// pulses.
func (e *CurveTrackEngine) triggerStep(tick uint32, seq *model.CurveSequence, divisor int) {
	cursor := e.state.Step()
	if cursor < 0 {
		return
	}
	e.currentStep = rotateStep(cursor, seq.FirstStep, seq.LastStep, e.track.Rotate)

	evalSeq := seq
	if e.fill && e.track.CurveFillMode == types.CurveFillModeNextPattern {
		evalSeq = e.track.CurveSequence(e.track.NextPattern())
	}
	stepIndex := types.ClampInt(e.currentStep, 0, types.StepCount-1)
	step := &evalSeq.Steps[stepIndex]

	shape := curve.Clamp(step.Shape)
	if e.fill && e.track.CurveFillMode == types.CurveFillModeVariation {
		shape = curve.Clamp(step.ShapeVariation)
	} else if step.ShapeVariationProbability > 0 && e.rng.Pass(step.ShapeVariationProbability, types.ProbabilityRange) {
		shape = curve.Clamp(step.ShapeVariation)
	}
	e.shape = shape
	e.shapeMin = step.MinNormalized()
	e.shapeMax = step.MaxNormalized()

	// 4-bit gate pattern: bit i pulses at divisor*i/4 with width divisor/8
	for bit := 0; bit < 4; bit++ {
		if step.Gate&(1<<bit) == 0 {
			continue
		}
		if !e.rng.Pass(step.GateProbability, types.ProbabilityRange) {
			continue
		}
		on := tick + uint32(divisor*bit/4)
		width := uint32(divisor / 8)
		if width < 1 {
			width = 1
		}
		e.gateQueue.PushReplace(e.applySwing(on), true)
		e.gateQueue.PushReplace(e.applySwing(on+width), false)
	}
}

// sample evaluates the shape at the current phase within the step and
// updates the CV target.
func (e *CurveTrackEngine) sample(relativeTick uint32, divisor int, vr types.VoltageRange) {
	t := float32(relativeTick%uint32(divisor)) / float32(divisor)
	v := curve.Eval(e.shape, t)
	if e.fill && e.track.CurveFillMode == types.CurveFillModeInvert {
		v = 1 - v
	}
	v = e.shapeMin + v*(e.shapeMax-e.shapeMin)
	target := vr.Denormalize(v)
	if target != e.cvOutputTarget {
		e.cvOutputTarget = target
	}
}

func (e *CurveTrackEngine) swingAmount() int {
	if e.track.Swing > types.SwingMin {
		return e.track.Swing
	}
	return e.project.Swing
}

func (e *CurveTrackEngine) applySwing(tick uint32) uint32 {
	return clock.ApplySwing(tick, e.swingAmount())
}

// Update pushes the sampled CV to the output; curve tracks snap, they do
// not slide.
func (e *CurveTrackEngine) Update(float32) {
	if e.cvOutput != e.cvOutputTarget {
		e.cvOutput = e.cvOutputTarget
		e.sink.SendCv(e.trackIndex, e.cvOutput)
	}
}
