package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/performer/internal/types"
)

func TestNewProject(t *testing.T) {
	p := NewProject()

	assert.Equal(t, "untitled", p.Name)
	assert.Equal(t, float32(120), p.BPM)
	assert.Equal(t, types.SwingMin, p.Swing)
	assert.Len(t, p.Tracks, types.TrackCount)

	for i := range p.Tracks {
		tr := &p.Tracks[i]
		assert.Equal(t, types.TrackModeNote, tr.Mode)
		assert.Equal(t, -1, tr.LinkTrack)
		assert.Equal(t, 0, tr.Pattern)
		for j := range tr.NoteSequences {
			seq := &tr.NoteSequences[j]
			assert.Equal(t, 0, seq.FirstStep)
			assert.Equal(t, types.StepCount-1, seq.LastStep)
			assert.Equal(t, types.SequencePPQN, seq.Divisor)
			assert.Equal(t, types.RunModeForward, seq.RunMode)
		}
		assert.Equal(t, 1, tr.MidiCv.Voices)
		assert.Equal(t, 0, tr.MidiCv.LowNote)
		assert.Equal(t, 127, tr.MidiCv.HighNote)
	}
}

func TestNoteStepSetterClamps(t *testing.T) {
	var s NoteStep
	s.SetGateProbability(99)
	assert.Equal(t, types.ProbabilityMax, s.GateProbability)
	s.SetGateProbability(-1)
	assert.Equal(t, 0, s.GateProbability)

	s.SetGateOffset(100)
	assert.Equal(t, types.GateOffsetMax, s.GateOffset)
	s.SetGateOffset(-100)
	assert.Equal(t, -types.GateOffsetMax, s.GateOffset)

	s.SetRetrigger(20)
	assert.Equal(t, types.RetriggerMax, s.Retrigger)

	s.SetLength(100)
	assert.Equal(t, types.LengthRange, s.Length)

	s.SetNote(1000)
	assert.Equal(t, types.NoteMax, s.Note)
	s.SetNote(-1000)
	assert.Equal(t, types.NoteMin, s.Note)

	s.SetCondition(types.Condition(-5))
	assert.Equal(t, types.ConditionOff, s.Condition)
	s.SetCondition(types.Condition(types.ConditionCount + 10))
	assert.Equal(t, types.ConditionOff, s.Condition)
}

func TestSequenceStepRangeInvariant(t *testing.T) {
	var seq NoteSequence
	seq.Clear()

	// firstStep <= lastStep < StepCount always holds after setters
	seq.SetLastStep(5)
	seq.SetFirstStep(10) // clamps to lastStep
	assert.Equal(t, 5, seq.FirstStep)
	assert.Equal(t, 5, seq.LastStep)

	seq.SetLastStep(3) // cannot go below firstStep
	assert.Equal(t, 5, seq.LastStep)

	seq.SetLastStep(99)
	assert.Equal(t, types.StepCount-1, seq.LastStep)
	assert.Equal(t, types.StepCount-5, seq.StepRange())
}

func TestCurveStepMinMaxOrdering(t *testing.T) {
	var s CurveStep
	s.Clear()
	assert.Equal(t, 255, s.Max)

	s.SetMax(100)
	s.SetMin(200) // pushes max up
	assert.Equal(t, 200, s.Min)
	assert.Equal(t, 200, s.Max)

	s.SetMax(50) // pushes min down
	assert.Equal(t, 50, s.Min)
	assert.Equal(t, 50, s.Max)

	s.SetGate(99)
	assert.Equal(t, 15, s.Gate)

	s.SetMin(51)
	assert.InDelta(t, 51.0/255.0, s.MinNormalized(), 1e-6)
}

func TestMidiCvConfigInvariants(t *testing.T) {
	var c MidiCvConfig
	c.Clear()

	c.SetVoices(0)
	assert.Equal(t, types.VoiceCountMin, c.Voices)
	c.SetVoices(99)
	assert.Equal(t, types.VoiceCountMax, c.Voices)

	// lowNote <= highNote preserved in both directions
	c.SetHighNote(60)
	c.SetLowNote(80)
	assert.Equal(t, 80, c.LowNote)
	assert.Equal(t, 80, c.HighNote)

	c.SetHighNote(40)
	assert.Equal(t, 40, c.LowNote)
	assert.Equal(t, 40, c.HighNote)

	c.SetPitchBendRange(100)
	assert.Equal(t, types.PitchBendRangeMax, c.PitchBendRange)
	c.SetPitchBendRange(-1)
	assert.Equal(t, 0, c.PitchBendRange)

	c.SetSource(99)
	assert.Equal(t, 15, c.Source)
	c.SetSource(-5)
	assert.Equal(t, -1, c.Source)
}

func TestDuplicatePattern(t *testing.T) {
	var tr Track
	tr.Clear()

	tr.NoteSequences[0].Steps[3].SetNote(12)
	tr.NoteSequences[0].Steps[3].Gate = true
	tr.DuplicatePattern(0, 2)

	assert.Equal(t, 12, tr.NoteSequences[2].Steps[3].Note)
	assert.True(t, tr.NoteSequences[2].Steps[3].Gate)

	// copies are independent
	tr.NoteSequences[2].Steps[3].SetNote(5)
	assert.Equal(t, 12, tr.NoteSequences[0].Steps[3].Note)
}

func TestProjectClone(t *testing.T) {
	p := NewProject()
	p.Tracks[1].NoteSequences[0].Steps[0].Gate = true

	c := p.Clone()
	assert.True(t, c.Tracks[1].NoteSequences[0].Steps[0].Gate)

	c.Tracks[1].NoteSequences[0].Steps[0].Gate = false
	assert.True(t, p.Tracks[1].NoteSequences[0].Steps[0].Gate)
}

func TestNextPattern(t *testing.T) {
	var tr Track
	tr.Clear()
	assert.Equal(t, 1, tr.NextPattern())
	tr.SetPattern(types.PatternCount - 1)
	assert.Equal(t, 0, tr.NextPattern())
}
