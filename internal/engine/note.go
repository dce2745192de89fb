package engine

import (
	"github.com/schollz/performer/internal/clock"
	"github.com/schollz/performer/internal/model"
	"github.com/schollz/performer/internal/music"
	"github.com/schollz/performer/internal/rng"
	"github.com/schollz/performer/internal/types"
)

// NoteTrackEngine advances a note sequence and emits time-ordered gate
// edges and note CVs with probabilities, conditions, retrigger and length
// variation.
type NoteTrackEngine struct {
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
	prevCondition    bool

	gateQueue eventQueue[bool]
	cvQueue   eventQueue[cvPayload]

	running      bool
	mute         bool
	fill         bool
	cursorFrozen bool

	gateRaw        bool
	cvOutput       float32
	cvOutputTarget float32
	slideActive    bool

	monitorStepIndex  int
	monitorNote       int
	monitorNoteActive bool
	monitorOverride   bool

	link LinkData
}

// NewNoteTrackEngine builds the engine for one track; created once at boot.
func NewNoteTrackEngine(project *model.Project, trackIndex int, sink OutputSink, r *rng.Rng) *NoteTrackEngine {
	e := &NoteTrackEngine{
		trackIndex:       trackIndex,
		project:          project,
		track:            &project.Tracks[trackIndex],
		sink:             sink,
		rng:              r,
		monitorStepIndex: -1,
	}
	e.pattern = e.track.Pattern
	e.requestedPattern = e.pattern
	e.state.Reset()
	return e
}

func (e *NoteTrackEngine) TrackMode() types.TrackMode { return types.TrackModeNote }

func (e *NoteTrackEngine) sequence() *model.NoteSequence {
	return e.track.NoteSequence(e.pattern)
}

// CurrentStep returns the rotated cursor of the last triggered step.
func (e *NoteTrackEngine) CurrentStep() int { return e.currentStep }

// Pattern returns the engine's active pattern index.
func (e *NoteTrackEngine) Pattern() int { return e.pattern }

func (e *NoteTrackEngine) Reset() {
	e.state.Reset()
	e.prevCondition = false
	e.freeRelativeTick = 0
	e.currentStep = -1
}

func (e *NoteTrackEngine) Restart() {
	e.state.Reset()
	e.freeRelativeTick = 0
}

// Silence drops pending events and forces the gate low.
func (e *NoteTrackEngine) Silence() {
	e.gateQueue.Clear()
	e.cvQueue.Clear()
	if e.gateRaw {
		e.gateRaw = false
		e.sink.SendGate(e.trackIndex, false)
	}
}

func (e *NoteTrackEngine) ChangePattern(pattern int) {
	e.requestedPattern = types.ClampInt(pattern, 0, types.PatternCount-1)
}

// applyPatternChange swaps the pattern pointer between ticks, never mid-tick.
func (e *NoteTrackEngine) applyPatternChange() {
	if e.requestedPattern != e.pattern {
		e.pattern = e.requestedPattern
		e.state.Reset()
		e.prevCondition = false
	}
}

func (e *NoteTrackEngine) SetRunning(running bool) { e.running = running }

// SetCursorFrozen suspends sequence advance while step recording places
// notes; all other run states advance normally.
func (e *NoteTrackEngine) SetCursorFrozen(frozen bool) { e.cursorFrozen = frozen }
func (e *NoteTrackEngine) SetMute(mute bool)           { e.mute = mute }
func (e *NoteTrackEngine) SetFill(fill bool)           { e.fill = fill }

func (e *NoteTrackEngine) LinkData() *LinkData { return &e.link }

func (e *NoteTrackEngine) Activity() bool { return e.gateRaw }

func (e *NoteTrackEngine) GateOutput(int) bool {
	return (!e.mute || e.fill) && e.gateRaw
}

func (e *NoteTrackEngine) CvOutput(int) float32 { return e.cvOutput }

func (e *NoteTrackEngine) SequenceProgress() float32 {
	seq := e.sequence()
	n := seq.StepRange()
	if n <= 1 || e.currentStep < seq.FirstStep {
		return 0
	}
	return float32(e.currentStep-seq.FirstStep) / float32(n-1)
}

// Tick advances the track to the given master tick. link mirrors an
// upstream cursor for follower tracks.
func (e *NoteTrackEngine) Tick(tick uint32, link *LinkData) {
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
			// free tracks keep their own phase and drift on tempo changes
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

		if e.running && !e.cursorFrozen && relativeTick%uint32(divisor) == 0 {
			if relativeTick == 0 && resetDivisor != 0 && e.track.PlayMode == types.PlayModeAligned {
				// hard reset at the resetMeasure boundary
				e.state.Reset()
				e.prevCondition = false
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

	e.drain(tick)
}

// triggerStep runs the full step evaluation pipeline and schedules the
// resulting gate and CV events.
func (e *NoteTrackEngine) triggerStep(tick uint32, seq *model.NoteSequence, divisor int) {
	first, last := seq.FirstStep, seq.LastStep
	cursor := e.state.Step()
	if cursor < 0 {
		return
	}
	e.currentStep = rotateStep(cursor, first, last, e.track.Rotate)

	// rotate uses the current sequence's range; the result indexes the
	// fill sequence directly
	evalSeq := seq
	if e.fill && e.track.NoteFillMode == types.NoteFillModeNextPattern {
		evalSeq = e.track.NoteSequence(e.track.NextPattern())
	}
	stepIndex := types.ClampInt(e.currentStep, 0, types.StepCount-1)
	step := &evalSeq.Steps[stepIndex]

	useFillGates := e.fill && e.track.NoteFillMode == types.NoteFillModeGates
	useFillCondition := e.fill && e.track.NoteFillMode == types.NoteFillModeCondition

	gateProbability := types.ClampInt(step.GateProbability+e.track.GateProbabilityBias, -1, types.ProbabilityMax)
	gate := useFillGates || (step.Gate && e.rng.Pass(gateProbability, types.ProbabilityRange))
	if gate {
		gate = evalStepCondition(step.Condition, e.state.Iteration(), useFillCondition, &e.prevCondition)
	}
	if !gate {
		return
	}

	stepLength := divisor * e.evalStepLength(step) / types.LengthRange
	offset := divisor * step.GateOffset / (types.GateOffsetMax + 1)
	base := int64(tick) + int64(offset)
	if base < 0 {
		base = 0
	}

	retrigger := 1
	if step.Retrigger > 0 && e.rng.Pass(step.RetriggerProbability, types.ProbabilityRange) {
		retrigger = step.Retrigger + 1
	}

	if retrigger > 1 {
		// subdivide the step into equal pulses; length gates the tail
		interval := divisor / retrigger
		width := divisor / (2 * retrigger)
		if width < 1 {
			width = 1
		}
		for i := 0; i < retrigger; i++ {
			pulse := i * interval
			if pulse > stepLength {
				break
			}
			on := uint32(base) + uint32(pulse)
			e.gateQueue.PushReplace(e.applySwing(on), true)
			e.gateQueue.PushReplace(e.applySwing(on+uint32(width)), false)
		}
	} else {
		on := uint32(base)
		e.gateQueue.PushReplace(e.applySwing(on), true)
		e.gateQueue.PushReplace(e.applySwing(on+uint32(stepLength)), false)
	}

	e.cvQueue.PushReplace(e.applySwing(uint32(base)), cvPayload{
		cv:    e.evalStepNote(evalSeq, step),
		slide: step.Slide,
	})
}

// evalStepLength applies bias then probabilistic variation, clamped.
func (e *NoteTrackEngine) evalStepLength(step *model.NoteStep) int {
	length := types.ClampInt(step.Length+e.track.LengthBias, 0, types.LengthRange)
	if step.LengthVariationRange != 0 && e.rng.Pass(step.LengthVariationProbability, types.ProbabilityRange) {
		mag, sign := step.LengthVariationRange, 1
		if mag < 0 {
			mag, sign = -mag, -1
		}
		length = types.ClampInt(length+sign*e.rng.Intn(mag+1), 0, types.LengthRange)
	}
	return length
}

// evalStepNote resolves the step's scale degree to volts, including
// probabilistic note variation, root note, octave and transpose.
func (e *NoteTrackEngine) evalStepNote(seq *model.NoteSequence, step *model.NoteStep) float32 {
	note := step.Note
	if step.NoteVariationRange != 0 && e.rng.Pass(step.NoteVariationProbability, types.ProbabilityRange) {
		mag, sign := step.NoteVariationRange, 1
		if mag < 0 {
			mag, sign = -mag, -1
		}
		note += sign * e.rng.Intn(mag+1)
	}
	note = types.ClampInt(note, types.NoteMin, types.NoteMax)

	sc := music.GetScale(seq.Scale)
	if sc.Chromatic {
		note += seq.RootNote
	}
	note += e.track.Octave*sc.NotesPerOctave + e.track.Transpose
	return sc.NoteToVolts(note)
}

func (e *NoteTrackEngine) swingAmount() int {
	if e.track.Swing > types.SwingMin {
		return e.track.Swing
	}
	return e.project.Swing
}

func (e *NoteTrackEngine) applySwing(tick uint32) uint32 {
	return clock.ApplySwing(tick, e.swingAmount())
}

// drain publishes all queued events due at tick.
func (e *NoteTrackEngine) drain(tick uint32) {
	for {
		gate, ok := e.gateQueue.PopDue(tick)
		if !ok {
			break
		}
		e.gateRaw = gate
		e.sink.SendGate(e.trackIndex, e.GateOutput(0))
	}
	for {
		ev, ok := e.cvQueue.PopDue(tick)
		if !ok {
			break
		}
		e.cvOutputTarget = ev.cv
		e.slideActive = ev.slide && e.track.SlideTime > 0
		e.sink.SendSlide(e.trackIndex, e.slideActive)
		if !e.slideActive {
			e.cvOutput = ev.cv
			e.sink.SendCv(e.trackIndex, e.cvOutput)
		}
	}
}

// Update interpolates the CV output toward its target at UI/output rate.
func (e *NoteTrackEngine) Update(dt float32) {
	if e.slideActive {
		coeff := dt * float32(200-2*e.track.SlideTime)
		if coeff > 1 {
			coeff = 1
		}
		e.cvOutput += (e.cvOutputTarget - e.cvOutput) * coeff
		e.sink.SendCv(e.trackIndex, e.cvOutput)
	} else if e.cvOutput != e.cvOutputTarget {
		e.cvOutput = e.cvOutputTarget
		e.sink.SendCv(e.trackIndex, e.cvOutput)
	}
}

// SetMonitorStep pins a step index for auditioning while the engine is not
// running; -1 clears the pin. The pinned step takes priority over held
// monitor notes.
func (e *NoteTrackEngine) SetMonitorStep(index int) {
	e.monitorStepIndex = types.ClampInt(index, -1, types.StepCount-1)
	e.refreshMonitor()
}

// MonitorNoteOn sounds a held MIDI note while not running or recording.
func (e *NoteTrackEngine) MonitorNoteOn(midiNote int) {
	e.monitorNote = midiNote
	e.monitorNoteActive = true
	e.refreshMonitor()
}

// MonitorNoteOff releases the held monitor note.
func (e *NoteTrackEngine) MonitorNoteOff(midiNote int) {
	if e.monitorNoteActive && e.monitorNote == midiNote {
		e.monitorNoteActive = false
	}
	e.refreshMonitor()
}

func (e *NoteTrackEngine) refreshMonitor() {
	if e.running {
		return
	}
	switch {
	case e.monitorStepIndex >= 0:
		seq := e.sequence()
		step := &seq.Steps[e.monitorStepIndex]
		volts := e.evalMonitorNote(seq, step.Note)
		e.setOverride(volts)
	case e.monitorNoteActive:
		e.setOverride(music.MidiNoteToVolts(e.monitorNote))
	case e.monitorOverride:
		e.monitorOverride = false
		e.gateRaw = false
		e.sink.SendGate(e.trackIndex, false)
	}
}

// evalMonitorNote is the deterministic (variation-free) note conversion
// used when auditioning a step.
func (e *NoteTrackEngine) evalMonitorNote(seq *model.NoteSequence, note int) float32 {
	note = types.ClampInt(note, types.NoteMin, types.NoteMax)
	sc := music.GetScale(seq.Scale)
	if sc.Chromatic {
		note += seq.RootNote
	}
	note += e.track.Octave*sc.NotesPerOctave + e.track.Transpose
	return sc.NoteToVolts(note)
}

func (e *NoteTrackEngine) setOverride(volts float32) {
	e.monitorOverride = true
	e.cvOutput = volts
	e.cvOutputTarget = volts
	e.gateRaw = true
	e.sink.SendCv(e.trackIndex, volts)
	e.sink.SendGate(e.trackIndex, e.GateOutput(0))
}
