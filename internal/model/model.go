// Package model holds the persistent project data: tracks, patterns,
// sequences and steps. All constrained fields clamp in their setters so the
// engines never see out-of-range values.
package model

import (
	clone "github.com/huandu/go-clone/generic"

	"github.com/schollz/performer/internal/curve"
	"github.com/schollz/performer/internal/types"
)

// NoteStep is one step of a note sequence.
type NoteStep struct {
	Gate                       bool            `json:"gate"`
	GateProbability            int             `json:"gateProbability"`
	GateOffset                 int             `json:"gateOffset"`
	Retrigger                  int             `json:"retrigger"`
	RetriggerProbability       int             `json:"retriggerProbability"`
	Length                     int             `json:"length"`
	LengthVariationRange       int             `json:"lengthVariationRange"`
	LengthVariationProbability int             `json:"lengthVariationProbability"`
	Note                       int             `json:"note"`
	NoteVariationRange         int             `json:"noteVariationRange"`
	NoteVariationProbability   int             `json:"noteVariationProbability"`
	Slide                      bool            `json:"slide"`
	Condition                  types.Condition `json:"condition"`
}

func (s *NoteStep) SetGateProbability(v int) {
	s.GateProbability = types.ClampInt(v, 0, types.ProbabilityMax)
}

func (s *NoteStep) SetGateOffset(v int) {
	s.GateOffset = types.ClampInt(v, -types.GateOffsetMax, types.GateOffsetMax)
}

func (s *NoteStep) SetRetrigger(v int) {
	s.Retrigger = types.ClampInt(v, 0, types.RetriggerMax)
}

func (s *NoteStep) SetRetriggerProbability(v int) {
	s.RetriggerProbability = types.ClampInt(v, 0, types.ProbabilityMax)
}

func (s *NoteStep) SetLength(v int) {
	s.Length = types.ClampInt(v, 0, types.LengthRange)
}

func (s *NoteStep) SetLengthVariationRange(v int) {
	s.LengthVariationRange = types.ClampInt(v, -types.LengthRange, types.LengthRange)
}

func (s *NoteStep) SetLengthVariationProbability(v int) {
	s.LengthVariationProbability = types.ClampInt(v, 0, types.ProbabilityMax)
}

func (s *NoteStep) SetNote(v int) {
	s.Note = types.ClampInt(v, types.NoteMin, types.NoteMax)
}

func (s *NoteStep) SetNoteVariationRange(v int) {
	s.NoteVariationRange = types.ClampInt(v, types.NoteMin, types.NoteMax)
}

func (s *NoteStep) SetNoteVariationProbability(v int) {
	s.NoteVariationProbability = types.ClampInt(v, 0, types.ProbabilityMax)
}

func (s *NoteStep) SetCondition(c types.Condition) {
	if c < 0 || int(c) >= types.ConditionCount {
		c = types.ConditionOff
	}
	s.Condition = c
}

// Clear resets the step to its default (silent) state.
func (s *NoteStep) Clear() {
	*s = NoteStep{
		GateProbability:            types.ProbabilityMax,
		RetriggerProbability:       types.ProbabilityMax,
		Length:                     types.LengthRange / 2,
		LengthVariationProbability: 0,
		NoteVariationProbability:   0,
	}
}

// CurveStep is one step of a curve sequence. Min and Max are stored in u8
// encoding (0..255) and normalized to [0,1] at evaluation time.
type CurveStep struct {
	Shape                     int `json:"shape"`
	ShapeVariation            int `json:"shapeVariation"`
	ShapeVariationProbability int `json:"shapeVariationProbability"`
	Min                       int `json:"min"`
	Max                       int `json:"max"`
	Gate                      int `json:"gate"` // 4-bit sub-step gate pattern
	GateProbability           int `json:"gateProbability"`
}

func (s *CurveStep) SetShape(v int) {
	s.Shape = int(curve.Clamp(v))
}

func (s *CurveStep) SetShapeVariation(v int) {
	s.ShapeVariation = int(curve.Clamp(v))
}

func (s *CurveStep) SetShapeVariationProbability(v int) {
	s.ShapeVariationProbability = types.ClampInt(v, 0, types.ProbabilityMax)
}

func (s *CurveStep) SetMin(v int) {
	s.Min = types.ClampInt(v, 0, 255)
	if s.Max < s.Min {
		s.Max = s.Min
	}
}

func (s *CurveStep) SetMax(v int) {
	s.Max = types.ClampInt(v, 0, 255)
	if s.Min > s.Max {
		s.Min = s.Max
	}
}

func (s *CurveStep) SetGate(v int) {
	s.Gate = types.ClampInt(v, 0, 15)
}

func (s *CurveStep) SetGateProbability(v int) {
	s.GateProbability = types.ClampInt(v, 0, types.ProbabilityMax)
}

// MinNormalized returns Min as a [0,1] fraction.
func (s *CurveStep) MinNormalized() float32 { return float32(s.Min) / 255.0 }

// MaxNormalized returns Max as a [0,1] fraction.
func (s *CurveStep) MaxNormalized() float32 { return float32(s.Max) / 255.0 }

func (s *CurveStep) Clear() {
	*s = CurveStep{GateProbability: types.ProbabilityMax, Max: 255}
}

// NoteSequence is a fixed array of note steps plus range and timing settings.
type NoteSequence struct {
	Steps        [types.StepCount]NoteStep `json:"steps"`
	FirstStep    int                       `json:"firstStep"`
	LastStep     int                       `json:"lastStep"`
	Divisor      int                       `json:"divisor"` // ticks per step
	RunMode      types.RunMode             `json:"runMode"`
	ResetMeasure int                       `json:"resetMeasure"`
	Scale        int                       `json:"scale"`
	RootNote     int                       `json:"rootNote"`
	Range        types.VoltageRange        `json:"range"`
}

func (s *NoteSequence) SetFirstStep(v int) {
	s.FirstStep = types.ClampInt(v, 0, s.LastStep)
}

func (s *NoteSequence) SetLastStep(v int) {
	s.LastStep = types.ClampInt(v, s.FirstStep, types.StepCount-1)
}

func (s *NoteSequence) SetDivisor(v int) {
	s.Divisor = types.ClampInt(v, 1, types.MeasureTicks)
}

func (s *NoteSequence) SetRunMode(m types.RunMode) {
	if m < 0 || m >= types.RunModeCount {
		m = types.RunModeForward
	}
	s.RunMode = m
}

func (s *NoteSequence) SetResetMeasure(v int) {
	s.ResetMeasure = types.ClampInt(v, 0, 128)
}

func (s *NoteSequence) SetScale(v int) {
	s.Scale = types.ClampInt(v, 0, 0xFF)
}

func (s *NoteSequence) SetRootNote(v int) {
	s.RootNote = types.ClampInt(v, 0, 11)
}

// StepRange returns the number of active steps.
func (s *NoteSequence) StepRange() int {
	return s.LastStep - s.FirstStep + 1
}

func (s *NoteSequence) Clear() {
	for i := range s.Steps {
		s.Steps[i].Clear()
	}
	s.FirstStep = 0
	s.LastStep = types.StepCount - 1
	s.Divisor = types.SequencePPQN
	s.RunMode = types.RunModeForward
	s.ResetMeasure = 0
	s.Scale = 0
	s.RootNote = 0
	s.Range = types.VoltageRangeBipolar5V
}

// CurveSequence mirrors NoteSequence for curve steps.
type CurveSequence struct {
	Steps        [types.StepCount]CurveStep `json:"steps"`
	FirstStep    int                        `json:"firstStep"`
	LastStep     int                        `json:"lastStep"`
	Divisor      int                        `json:"divisor"`
	RunMode      types.RunMode              `json:"runMode"`
	ResetMeasure int                        `json:"resetMeasure"`
	Range        types.VoltageRange         `json:"range"`
}

func (s *CurveSequence) SetFirstStep(v int) {
	s.FirstStep = types.ClampInt(v, 0, s.LastStep)
}

func (s *CurveSequence) SetLastStep(v int) {
	s.LastStep = types.ClampInt(v, s.FirstStep, types.StepCount-1)
}

func (s *CurveSequence) SetDivisor(v int) {
	s.Divisor = types.ClampInt(v, 1, types.MeasureTicks)
}

func (s *CurveSequence) SetRunMode(m types.RunMode) {
	if m < 0 || m >= types.RunModeCount {
		m = types.RunModeForward
	}
	s.RunMode = m
}

func (s *CurveSequence) SetResetMeasure(v int) {
	s.ResetMeasure = types.ClampInt(v, 0, 128)
}

func (s *CurveSequence) StepRange() int {
	return s.LastStep - s.FirstStep + 1
}

func (s *CurveSequence) Clear() {
	for i := range s.Steps {
		s.Steps[i].Clear()
	}
	s.FirstStep = 0
	s.LastStep = types.StepCount - 1
	s.Divisor = types.SequencePPQN
	s.RunMode = types.RunModeForward
	s.ResetMeasure = 0
	s.Range = types.VoltageRangeUnipolar5V
}

// ArpeggiatorMode orders how held notes are cycled.
type ArpeggiatorMode int

const (
	ArpeggiatorModeUp ArpeggiatorMode = iota
	ArpeggiatorModeDown
	ArpeggiatorModeUpDown
	ArpeggiatorModeRandom
	ArpeggiatorModeCount
)

// ArpeggiatorConfig is embedded in the MIDI/CV track config.
type ArpeggiatorConfig struct {
	Enabled     bool            `json:"enabled"`
	Mode        ArpeggiatorMode `json:"mode"`
	Divisor     int             `json:"divisor"` // ticks per arpeggio note
	OctaveRange int             `json:"octaveRange"`
	Hold        bool            `json:"hold"`
}

func (a *ArpeggiatorConfig) SetMode(m ArpeggiatorMode) {
	if m < 0 || m >= ArpeggiatorModeCount {
		m = ArpeggiatorModeUp
	}
	a.Mode = m
}

func (a *ArpeggiatorConfig) SetDivisor(v int) {
	a.Divisor = types.ClampInt(v, 1, types.MeasureTicks)
}

func (a *ArpeggiatorConfig) SetOctaveRange(v int) {
	a.OctaveRange = types.ClampInt(v, 0, 4)
}

// MidiCvConfig configures a MIDI-input-to-CV/gate track.
type MidiCvConfig struct {
	Source          int                `json:"source"` // MIDI channel, -1 = omni
	Voices          int                `json:"voices"`
	VoiceConfig     types.VoiceConfig  `json:"voiceConfig"`
	NotePriority    types.NotePriority `json:"notePriority"`
	LowNote         int                `json:"lowNote"`
	HighNote        int                `json:"highNote"`
	PitchBendRange  int                `json:"pitchBendRange"` // semitones, 0 = off
	ModulationRange types.VoltageRange `json:"modulationRange"`
	Retrigger       bool               `json:"retrigger"`
	Arpeggiator     ArpeggiatorConfig  `json:"arpeggiator"`
}

func (c *MidiCvConfig) SetSource(v int) {
	c.Source = types.ClampInt(v, -1, 15)
}

func (c *MidiCvConfig) SetVoices(v int) {
	c.Voices = types.ClampInt(v, types.VoiceCountMin, types.VoiceCountMax)
}

func (c *MidiCvConfig) SetVoiceConfig(v types.VoiceConfig) {
	if v < 0 || v >= types.VoiceConfigCount {
		v = types.VoiceConfigPitch
	}
	c.VoiceConfig = v
}

func (c *MidiCvConfig) SetNotePriority(p types.NotePriority) {
	if p < 0 || p >= types.NotePriorityCount {
		p = types.NotePriorityLast
	}
	c.NotePriority = p
}

// SetLowNote keeps lowNote <= highNote by pushing highNote up if needed.
func (c *MidiCvConfig) SetLowNote(v int) {
	c.LowNote = types.ClampInt(v, 0, 127)
	if c.HighNote < c.LowNote {
		c.HighNote = c.LowNote
	}
}

// SetHighNote keeps lowNote <= highNote by pushing lowNote down if needed.
func (c *MidiCvConfig) SetHighNote(v int) {
	c.HighNote = types.ClampInt(v, 0, 127)
	if c.LowNote > c.HighNote {
		c.LowNote = c.HighNote
	}
}

func (c *MidiCvConfig) SetPitchBendRange(v int) {
	c.PitchBendRange = types.ClampInt(v, 0, types.PitchBendRangeMax)
}

func (c *MidiCvConfig) Clear() {
	*c = MidiCvConfig{
		Source:          -1,
		Voices:          1,
		VoiceConfig:     types.VoiceConfigPitch,
		NotePriority:    types.NotePriorityLast,
		LowNote:         0,
		HighNote:        127,
		PitchBendRange:  2,
		ModulationRange: types.VoltageRangeUnipolar5V,
	}
	c.Arpeggiator.Divisor = types.SequencePPQN
}

// Track is one of the instrument's tracks. The sequence arrays for the
// inactive modes stay allocated so switching modes is loss-free, the same
// way pattern data survives pattern switches.
type Track struct {
	Mode                types.TrackMode     `json:"mode"`
	PlayMode            types.PlayMode      `json:"playMode"`
	NoteFillMode        types.NoteFillMode  `json:"noteFillMode"`
	CurveFillMode       types.CurveFillMode `json:"curveFillMode"`
	Rotate              int                 `json:"rotate"`
	GateProbabilityBias int                 `json:"gateProbabilityBias"`
	LengthBias          int                 `json:"lengthBias"`
	Octave              int                 `json:"octave"`
	Transpose           int                 `json:"transpose"`
	SlideTime           int                 `json:"slideTime"`
	Swing               int                 `json:"swing"`     // percent, 50 = none
	LinkTrack           int                 `json:"linkTrack"` // upstream track index, -1 = none
	Pattern             int                 `json:"pattern"`   // selected pattern

	NoteSequences  [types.PatternCount]NoteSequence  `json:"noteSequences"`
	CurveSequences [types.PatternCount]CurveSequence `json:"curveSequences"`
	MidiCv         MidiCvConfig                      `json:"midiCv"`
}

func (t *Track) SetMode(m types.TrackMode) {
	if m < 0 || m >= types.TrackModeCount {
		m = types.TrackModeNote
	}
	t.Mode = m
}

func (t *Track) SetPlayMode(m types.PlayMode) {
	if m < 0 || m >= types.PlayModeCount {
		m = types.PlayModeAligned
	}
	t.PlayMode = m
}

func (t *Track) SetRotate(v int) {
	t.Rotate = types.ClampInt(v, -types.StepCount, types.StepCount)
}

func (t *Track) SetGateProbabilityBias(v int) {
	t.GateProbabilityBias = types.ClampInt(v, -types.ProbabilityMax, types.ProbabilityMax)
}

func (t *Track) SetLengthBias(v int) {
	t.LengthBias = types.ClampInt(v, -types.LengthRange, types.LengthRange)
}

func (t *Track) SetOctave(v int) {
	t.Octave = types.ClampInt(v, -10, 10)
}

func (t *Track) SetTranspose(v int) {
	t.Transpose = types.ClampInt(v, -60, 60)
}

func (t *Track) SetSlideTime(v int) {
	t.SlideTime = types.ClampInt(v, 0, types.SlideTimeMax)
}

func (t *Track) SetSwing(v int) {
	t.Swing = types.ClampInt(v, types.SwingMin, types.SwingMax)
}

func (t *Track) SetLinkTrack(v int) {
	t.LinkTrack = types.ClampInt(v, -1, types.TrackCount-1)
}

func (t *Track) SetPattern(v int) {
	t.Pattern = types.ClampInt(v, 0, types.PatternCount-1)
}

// NoteSequence returns the note sequence of the given pattern, clamped.
func (t *Track) NoteSequence(pattern int) *NoteSequence {
	return &t.NoteSequences[types.ClampInt(pattern, 0, types.PatternCount-1)]
}

// CurveSequence returns the curve sequence of the given pattern, clamped.
func (t *Track) CurveSequence(pattern int) *CurveSequence {
	return &t.CurveSequences[types.ClampInt(pattern, 0, types.PatternCount-1)]
}

// NextPattern returns the pattern index serving as fill source.
func (t *Track) NextPattern() int {
	return (t.Pattern + 1) % types.PatternCount
}

// DuplicatePattern deep-copies pattern src onto dst for both sequence kinds.
func (t *Track) DuplicatePattern(src, dst int) {
	src = types.ClampInt(src, 0, types.PatternCount-1)
	dst = types.ClampInt(dst, 0, types.PatternCount-1)
	if src == dst {
		return
	}
	t.NoteSequences[dst] = clone.Clone(t.NoteSequences[src])
	t.CurveSequences[dst] = clone.Clone(t.CurveSequences[src])
}

func (t *Track) Clear() {
	t.Mode = types.TrackModeNote
	t.PlayMode = types.PlayModeAligned
	t.NoteFillMode = types.NoteFillModeNone
	t.CurveFillMode = types.CurveFillModeNone
	t.Rotate = 0
	t.GateProbabilityBias = 0
	t.LengthBias = 0
	t.Octave = 0
	t.Transpose = 0
	t.SlideTime = 0
	t.Swing = types.SwingMin
	t.LinkTrack = -1
	t.Pattern = 0
	for i := range t.NoteSequences {
		t.NoteSequences[i].Clear()
	}
	for i := range t.CurveSequences {
		t.CurveSequences[i].Clear()
	}
	t.MidiCv.Clear()
}

// Project is the root of the persistent data model.
type Project struct {
	Name   string                  `json:"name"`
	BPM    float32                 `json:"bpm"`
	Swing  int                     `json:"swing"` // project-wide default swing
	Seed   uint64                  `json:"seed"`  // RNG seed for reproducible playback
	Tracks [types.TrackCount]Track `json:"tracks"`
}

func (p *Project) SetBPM(v float32) {
	p.BPM = types.ClampFloat(v, 20, 300)
}

func (p *Project) SetSwing(v int) {
	p.Swing = types.ClampInt(v, types.SwingMin, types.SwingMax)
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	return clone.Clone(p)
}

func (p *Project) Clear() {
	p.Name = "untitled"
	p.BPM = 120
	p.Swing = types.SwingMin
	p.Seed = 1
	for i := range p.Tracks {
		p.Tracks[i].Clear()
	}
}

// NewProject returns a project with all tracks in their default state.
func NewProject() *Project {
	p := &Project{}
	p.Clear()
	return p
}
