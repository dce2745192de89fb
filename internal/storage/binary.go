// Package storage persists projects and device settings. The device format
// is a versioned binary file with a typed header; a gzipped JSON snapshot
// of the project is also supported for interop and debugging.
package storage

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/schollz/performer/internal/model"
	"github.com/schollz/performer/internal/types"
)

const (
	// ProjectVersion is the current project file version. Older files are
	// read with version-conditional fields defaulted.
	ProjectVersion = 17

	// projectVersionNotePriority added the MIDI/CV note priority field.
	projectVersionNotePriority = 16
	// projectVersionNoteRange added the low/high note filter.
	projectVersionNoteRange = 15
	// projectVersionMin is the oldest file layout still readable.
	projectVersionMin = 14

	SettingsVersion = 1
)

var (
	projectMagic  = [8]byte{'P', 'R', 'O', 'J', 'E', 'C', 'T', 0}
	settingsMagic = [8]byte{'S', 'E', 'T', 'T', 'I', 'N', 'G', 'S'}
)

const projectNameLength = 16

// CalibrationChannel corrects one CV output channel.
type CalibrationChannel struct {
	VoltsOffset float32 `json:"voltsOffset"`
	VoltsScale  float32 `json:"voltsScale"`
}

// Apply maps ideal volts to calibrated device volts.
func (c *CalibrationChannel) Apply(volts float32) float32 {
	return volts*c.VoltsScale + c.VoltsOffset
}

// Settings is the device settings file body: the calibration table.
type Settings struct {
	Calibration [types.TrackCount]CalibrationChannel `json:"calibration"`
}

// NewSettings returns identity calibration.
func NewSettings() *Settings {
	s := &Settings{}
	for i := range s.Calibration {
		s.Calibration[i].VoltsScale = 1
	}
	return s
}

// writer wraps sequential little-endian writes with sticky errors.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) write(v any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

func (w *writer) u8(v int)      { w.write(uint8(v)) }
func (w *writer) i8(v int)      { w.write(int8(v)) }
func (w *writer) u16(v int)     { w.write(uint16(v)) }
func (w *writer) u32(v uint32)  { w.write(v) }
func (w *writer) u64(v uint64)  { w.write(v) }
func (w *writer) f32(v float32) { w.write(v) }
func (w *writer) b(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

type reader struct {
	r   io.Reader
	err error
}

func (r *reader) read(v any) {
	if r.err != nil {
		return
	}
	r.err = binary.Read(r.r, binary.LittleEndian, v)
}

func (r *reader) u8() int {
	var v uint8
	r.read(&v)
	return int(v)
}

func (r *reader) i8() int {
	var v int8
	r.read(&v)
	return int(v)
}

func (r *reader) u16() int {
	var v uint16
	r.read(&v)
	return int(v)
}

func (r *reader) u32() uint32 {
	var v uint32
	r.read(&v)
	return v
}

func (r *reader) u64() uint64 {
	var v uint64
	r.read(&v)
	return v
}

func (r *reader) f32() float32 {
	var v float32
	r.read(&v)
	return v
}

func (r *reader) b() bool { return r.u8() != 0 }

// WriteSettings serializes the settings file: magic, version, calibration.
func WriteSettings(w io.Writer, s *Settings) error {
	bw := &writer{w: w}
	bw.write(settingsMagic)
	bw.u32(SettingsVersion)
	for i := range s.Calibration {
		bw.f32(s.Calibration[i].VoltsOffset)
		bw.f32(s.Calibration[i].VoltsScale)
	}
	return bw.err
}

// ReadSettings parses a settings file, validating the header.
func ReadSettings(r io.Reader) (*Settings, error) {
	br := &reader{r: r}
	var magic [8]byte
	br.read(&magic)
	if br.err != nil {
		return nil, br.err
	}
	if magic != settingsMagic {
		return nil, fmt.Errorf("not a settings file: bad magic %q", magic[:])
	}
	version := br.u32()
	if version == 0 || version > SettingsVersion {
		return nil, fmt.Errorf("unsupported settings version %d", version)
	}
	s := NewSettings()
	for i := range s.Calibration {
		s.Calibration[i].VoltsOffset = br.f32()
		s.Calibration[i].VoltsScale = br.f32()
	}
	return s, br.err
}

// WriteProject serializes a project at the current file version.
func WriteProject(w io.Writer, p *model.Project) error {
	return writeProjectVersion(w, p, ProjectVersion)
}

func writeProjectVersion(w io.Writer, p *model.Project, version uint32) error {
	bw := &writer{w: w}
	bw.write(projectMagic)
	bw.u32(version)

	var name [projectNameLength]byte
	copy(name[:], p.Name)
	bw.write(name)

	bw.f32(p.BPM)
	bw.u8(p.Swing)
	bw.u64(p.Seed)

	for ti := range p.Tracks {
		writeTrack(bw, &p.Tracks[ti], version)
	}
	return bw.err
}

func writeTrack(bw *writer, t *model.Track, version uint32) {
	bw.u8(int(t.Mode))
	bw.u8(int(t.PlayMode))
	bw.u8(int(t.NoteFillMode))
	bw.u8(int(t.CurveFillMode))
	bw.i8(t.Rotate)
	bw.i8(t.GateProbabilityBias)
	bw.i8(t.LengthBias)
	bw.i8(t.Octave)
	bw.i8(t.Transpose)
	bw.u8(t.SlideTime)
	bw.u8(t.Swing)
	bw.i8(t.LinkTrack)
	bw.u8(t.Pattern)

	for i := range t.NoteSequences {
		writeNoteSequence(bw, &t.NoteSequences[i])
	}
	for i := range t.CurveSequences {
		writeCurveSequence(bw, &t.CurveSequences[i])
	}
	writeMidiCv(bw, &t.MidiCv, version)
}

func writeNoteSequence(bw *writer, s *model.NoteSequence) {
	bw.u8(s.FirstStep)
	bw.u8(s.LastStep)
	bw.u16(s.Divisor)
	bw.u8(int(s.RunMode))
	bw.u8(s.ResetMeasure)
	bw.u8(s.Scale)
	bw.u8(s.RootNote)
	bw.u8(int(s.Range))
	for i := range s.Steps {
		st := &s.Steps[i]
		bw.b(st.Gate)
		bw.u8(st.GateProbability)
		bw.i8(st.GateOffset)
		bw.u8(st.Retrigger)
		bw.u8(st.RetriggerProbability)
		bw.u8(st.Length)
		bw.i8(st.LengthVariationRange)
		bw.u8(st.LengthVariationProbability)
		bw.i8(st.Note)
		bw.i8(st.NoteVariationRange)
		bw.u8(st.NoteVariationProbability)
		bw.b(st.Slide)
		bw.u8(int(st.Condition))
	}
}

func writeCurveSequence(bw *writer, s *model.CurveSequence) {
	bw.u8(s.FirstStep)
	bw.u8(s.LastStep)
	bw.u16(s.Divisor)
	bw.u8(int(s.RunMode))
	bw.u8(s.ResetMeasure)
	bw.u8(int(s.Range))
	for i := range s.Steps {
		st := &s.Steps[i]
		bw.u8(st.Shape)
		bw.u8(st.ShapeVariation)
		bw.u8(st.ShapeVariationProbability)
		bw.u8(st.Min)
		bw.u8(st.Max)
		bw.u8(st.Gate)
		bw.u8(st.GateProbability)
	}
}

// writeMidiCv keeps the historical field order; newer fields append behind
// version gates.
func writeMidiCv(bw *writer, c *model.MidiCvConfig, version uint32) {
	bw.i8(c.Source)
	bw.u8(c.Voices)
	bw.u8(int(c.VoiceConfig))
	if version >= projectVersionNotePriority {
		bw.u8(int(c.NotePriority))
	}
	if version >= projectVersionNoteRange {
		bw.u8(c.LowNote)
		bw.u8(c.HighNote)
	}
	bw.u8(c.PitchBendRange)
	bw.u8(int(c.ModulationRange))
	bw.b(c.Retrigger)
	bw.b(c.Arpeggiator.Enabled)
	bw.u8(int(c.Arpeggiator.Mode))
	bw.u16(c.Arpeggiator.Divisor)
	bw.u8(c.Arpeggiator.OctaveRange)
	bw.b(c.Arpeggiator.Hold)
}

// ReadProject parses a project file, defaulting fields that the file's
// version predates.
func ReadProject(r io.Reader) (*model.Project, error) {
	br := &reader{r: r}
	var magic [8]byte
	br.read(&magic)
	if br.err != nil {
		return nil, br.err
	}
	if magic != projectMagic {
		return nil, fmt.Errorf("not a project file: bad magic %q", magic[:])
	}
	version := br.u32()
	if version < projectVersionMin || version > ProjectVersion {
		return nil, fmt.Errorf("unsupported project version %d", version)
	}

	p := model.NewProject()

	var name [projectNameLength]byte
	br.read(&name)
	p.Name = trimName(name)

	p.SetBPM(br.f32())
	p.SetSwing(br.u8())
	p.Seed = br.u64()

	for ti := range p.Tracks {
		readTrack(br, &p.Tracks[ti], version)
	}
	if br.err != nil {
		return nil, br.err
	}
	return p, nil
}

func trimName(name [projectNameLength]byte) string {
	for i, b := range name {
		if b == 0 {
			return string(name[:i])
		}
	}
	return string(name[:])
}

func readTrack(br *reader, t *model.Track, version uint32) {
	t.SetMode(types.TrackMode(br.u8()))
	t.SetPlayMode(types.PlayMode(br.u8()))
	t.NoteFillMode = types.NoteFillMode(br.u8())
	t.CurveFillMode = types.CurveFillMode(br.u8())
	t.SetRotate(br.i8())
	t.SetGateProbabilityBias(br.i8())
	t.SetLengthBias(br.i8())
	t.SetOctave(br.i8())
	t.SetTranspose(br.i8())
	t.SetSlideTime(br.u8())
	t.SetSwing(br.u8())
	t.SetLinkTrack(br.i8())
	t.SetPattern(br.u8())

	for i := range t.NoteSequences {
		readNoteSequence(br, &t.NoteSequences[i])
	}
	for i := range t.CurveSequences {
		readCurveSequence(br, &t.CurveSequences[i])
	}
	readMidiCv(br, &t.MidiCv, version)
}

func readNoteSequence(br *reader, s *model.NoteSequence) {
	first := br.u8()
	s.LastStep = types.StepCount - 1
	s.SetFirstStep(first)
	s.SetLastStep(br.u8())
	s.SetDivisor(br.u16())
	s.SetRunMode(types.RunMode(br.u8()))
	s.SetResetMeasure(br.u8())
	s.SetScale(br.u8())
	s.SetRootNote(br.u8())
	s.Range = types.VoltageRange(types.ClampInt(br.u8(), 0, int(types.VoltageRangeCount)-1))
	for i := range s.Steps {
		st := &s.Steps[i]
		st.Gate = br.b()
		st.SetGateProbability(br.u8())
		st.SetGateOffset(br.i8())
		st.SetRetrigger(br.u8())
		st.SetRetriggerProbability(br.u8())
		st.SetLength(br.u8())
		st.SetLengthVariationRange(br.i8())
		st.SetLengthVariationProbability(br.u8())
		st.SetNote(br.i8())
		st.SetNoteVariationRange(br.i8())
		st.SetNoteVariationProbability(br.u8())
		st.Slide = br.b()
		st.SetCondition(types.Condition(br.u8()))
	}
}

func readCurveSequence(br *reader, s *model.CurveSequence) {
	first := br.u8()
	s.LastStep = types.StepCount - 1
	s.SetFirstStep(first)
	s.SetLastStep(br.u8())
	s.SetDivisor(br.u16())
	s.SetRunMode(types.RunMode(br.u8()))
	s.SetResetMeasure(br.u8())
	s.Range = types.VoltageRange(types.ClampInt(br.u8(), 0, int(types.VoltageRangeCount)-1))
	for i := range s.Steps {
		st := &s.Steps[i]
		st.SetShape(br.u8())
		st.SetShapeVariation(br.u8())
		st.SetShapeVariationProbability(br.u8())
		st.SetMax(255)
		st.SetMin(br.u8())
		st.SetMax(br.u8())
		st.SetGate(br.u8())
		st.SetGateProbability(br.u8())
	}
}

func readMidiCv(br *reader, c *model.MidiCvConfig, version uint32) {
	c.SetSource(br.i8())
	c.SetVoices(br.u8())
	c.SetVoiceConfig(types.VoiceConfig(br.u8()))
	if version >= projectVersionNotePriority {
		c.SetNotePriority(types.NotePriority(br.u8()))
	} else {
		c.SetNotePriority(types.NotePriorityLast)
	}
	if version >= projectVersionNoteRange {
		c.HighNote = 127
		c.SetLowNote(br.u8())
		c.SetHighNote(br.u8())
	} else {
		c.LowNote = 0
		c.HighNote = 127
	}
	c.SetPitchBendRange(br.u8())
	c.ModulationRange = types.VoltageRange(types.ClampInt(br.u8(), 0, int(types.VoltageRangeCount)-1))
	c.Retrigger = br.b()
	c.Arpeggiator.Enabled = br.b()
	c.Arpeggiator.SetMode(model.ArpeggiatorMode(br.u8()))
	c.Arpeggiator.SetDivisor(br.u16())
	c.Arpeggiator.SetOctaveRange(br.u8())
	c.Arpeggiator.Hold = br.b()
}
