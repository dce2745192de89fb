package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/performer/internal/model"
	"github.com/schollz/performer/internal/types"
)

func sampleProject() *model.Project {
	p := model.NewProject()
	p.Name = "demo"
	p.SetBPM(133)
	p.SetSwing(62)
	p.Seed = 42

	tr := &p.Tracks[2]
	tr.SetMode(types.TrackModeMidiCv)
	tr.MidiCv.SetVoices(4)
	tr.MidiCv.SetNotePriority(types.NotePriorityHighest)
	tr.MidiCv.SetLowNote(36)
	tr.MidiCv.SetHighNote(96)
	tr.MidiCv.SetPitchBendRange(12)
	tr.MidiCv.Retrigger = true
	tr.MidiCv.Arpeggiator.Enabled = true
	tr.MidiCv.Arpeggiator.SetMode(model.ArpeggiatorModeUpDown)
	tr.MidiCv.Arpeggiator.SetOctaveRange(2)

	seq := &p.Tracks[0].NoteSequences[3]
	seq.SetFirstStep(0)
	seq.SetLastStep(11)
	seq.SetDivisor(24)
	seq.SetRunMode(types.RunModePingPong)
	seq.SetResetMeasure(2)
	seq.Steps[5].Gate = true
	seq.Steps[5].SetNote(-7)
	seq.Steps[5].SetGateOffset(-3)
	seq.Steps[5].SetRetrigger(3)
	seq.Steps[5].SetCondition(types.LoopCondition(4, 1))
	seq.Steps[5].Slide = true

	cseq := &p.Tracks[1].CurveSequences[0]
	cseq.Steps[2].SetShape(5)
	cseq.Steps[2].SetMin(10)
	cseq.Steps[2].SetMax(200)
	cseq.Steps[2].SetGate(0b1010)

	return p
}

func TestProjectRoundTrip(t *testing.T) {
	p := sampleProject()

	var buf bytes.Buffer
	require.NoError(t, WriteProject(&buf, p))

	got, err := ReadProject(&buf)
	require.NoError(t, err)

	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.BPM, got.BPM)
	assert.Equal(t, p.Swing, got.Swing)
	assert.Equal(t, p.Seed, got.Seed)
	assert.Equal(t, p.Tracks, got.Tracks)
}

func TestProjectBadMagic(t *testing.T) {
	_, err := ReadProject(bytes.NewReader([]byte("NOTAPROJECTFILE....")))
	assert.Error(t, err)
}

func TestProjectUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeProjectVersion(&buf, model.NewProject(), ProjectVersion))
	data := buf.Bytes()
	data[8] = 99 // bump the version field
	_, err := ReadProject(bytes.NewReader(data))
	assert.Error(t, err)
}

func TestProjectVersion15OmitsNotePriority(t *testing.T) {
	p := sampleProject()

	var buf bytes.Buffer
	require.NoError(t, writeProjectVersion(&buf, p, 15))

	got, err := ReadProject(&buf)
	require.NoError(t, err)

	// notePriority predates v16: defaulted
	assert.Equal(t, types.NotePriorityLast, got.Tracks[2].MidiCv.NotePriority)
	// note range exists since v15: preserved
	assert.Equal(t, 36, got.Tracks[2].MidiCv.LowNote)
	assert.Equal(t, 96, got.Tracks[2].MidiCv.HighNote)
}

func TestProjectVersion14OmitsNoteRange(t *testing.T) {
	p := sampleProject()

	var buf bytes.Buffer
	require.NoError(t, writeProjectVersion(&buf, p, 14))

	got, err := ReadProject(&buf)
	require.NoError(t, err)

	assert.Equal(t, types.NotePriorityLast, got.Tracks[2].MidiCv.NotePriority)
	assert.Equal(t, 0, got.Tracks[2].MidiCv.LowNote)
	assert.Equal(t, 127, got.Tracks[2].MidiCv.HighNote)
	// fields after the gate still parse correctly
	assert.Equal(t, 12, got.Tracks[2].MidiCv.PitchBendRange)
	assert.True(t, got.Tracks[2].MidiCv.Retrigger)
	assert.Equal(t, model.ArpeggiatorModeUpDown, got.Tracks[2].MidiCv.Arpeggiator.Mode)
}

func TestSettingsRoundTrip(t *testing.T) {
	s := NewSettings()
	s.Calibration[3].VoltsOffset = -0.02
	s.Calibration[3].VoltsScale = 1.01

	var buf bytes.Buffer
	require.NoError(t, WriteSettings(&buf, s))

	got, err := ReadSettings(&buf)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSettingsBadMagic(t *testing.T) {
	_, err := ReadSettings(bytes.NewReader([]byte("PROJECT\x00garbagegarbage")))
	assert.Error(t, err)
}

func TestCalibrationApply(t *testing.T) {
	c := CalibrationChannel{VoltsOffset: 0.1, VoltsScale: 2}
	assert.InDelta(t, 2.1, c.Apply(1), 1e-6)

	identity := NewSettings().Calibration[0]
	assert.InDelta(t, 1.5, identity.Apply(1.5), 1e-6)
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "save.json.gz")

	p := sampleProject()
	require.NoError(t, SaveSnapshot(p, path))

	got, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestAutoSaveDebounces(t *testing.T) {
	old := debounceTime
	debounceTime = 10 * time.Millisecond
	defer func() { debounceTime = old }()

	path := filepath.Join(t.TempDir(), "auto.json.gz")
	p := sampleProject()
	AutoSave(p, path)
	AutoSave(p, path) // rapid edits collapse into one write

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	got, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
}

func TestSnapshotMissingFile(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json.gz"))
	assert.Error(t, err)
}

func TestProjectFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.bin")

	p := sampleProject()
	require.NoError(t, SaveProjectFile(p, path))
	got, err := LoadProjectFile(path)
	require.NoError(t, err)
	assert.Equal(t, p.Tracks, got.Tracks)
}

func TestSettingsFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.bin")

	s := NewSettings()
	s.Calibration[0].VoltsOffset = 0.5
	require.NoError(t, SaveSettingsFile(s, path))
	got, err := LoadSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}
