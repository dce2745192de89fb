package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMidiToNoteName(t *testing.T) {
	tests := []struct {
		name     string
		midiNote int
		expected string
	}{
		{"MIDI 60 should be C4", 60, "c-4"},
		{"MIDI 61 should be C#4", 61, "c#4"},
		{"MIDI 21 should be A0", 21, "a-0"},
		{"MIDI 0 should be C-1", 0, "c-1"},
		{"MIDI 127 should be G9", 127, "g-9"},
		{"MIDI -1 should be invalid", -1, "---"},
		{"MIDI 128 should be invalid", 128, "---"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MidiToNoteName(tt.midiNote))
		})
	}
}

func TestChromaticNoteToVolts(t *testing.T) {
	chromatic := GetScale(0)
	assert.True(t, chromatic.Chromatic)

	// 1V/octave: degree 0 is 0V, degree 12 is 1V, degree -12 is -1V
	assert.InDelta(t, 0.0, chromatic.NoteToVolts(0), 1e-6)
	assert.InDelta(t, 1.0, chromatic.NoteToVolts(12), 1e-6)
	assert.InDelta(t, -1.0, chromatic.NoteToVolts(-12), 1e-6)
	assert.InDelta(t, 7.0/12.0, chromatic.NoteToVolts(7), 1e-6)
	assert.InDelta(t, -5.0/12.0, chromatic.NoteToVolts(-5), 1e-6)
}

func TestMajorScaleNoteToVolts(t *testing.T) {
	major := GetScale(1)
	assert.Equal(t, "Major", major.Name)
	assert.False(t, major.Chromatic)

	// Degree 4 of major is a perfect fifth: 7 semitones
	assert.InDelta(t, 7.0/12.0, major.NoteToVolts(4), 1e-6)
	// Degree 7 wraps into the next octave
	assert.InDelta(t, 1.0, major.NoteToVolts(7), 1e-6)
	// Degree -1 is the seventh below the root
	assert.InDelta(t, -1.0+11.0/12.0, major.NoteToVolts(-1), 1e-6)
}

func TestGetScaleClamps(t *testing.T) {
	assert.Equal(t, GetScale(0), GetScale(-1))
	assert.Equal(t, GetScale(ScaleCount()-1), GetScale(999))
	assert.Equal(t, "Chromatic", ScaleName(0))
}

func TestMidiNoteToVolts(t *testing.T) {
	assert.InDelta(t, 0.0, MidiNoteToVolts(60), 1e-6)
	assert.InDelta(t, 1.0, MidiNoteToVolts(72), 1e-6)
	assert.InDelta(t, -1.0, MidiNoteToVolts(48), 1e-6)
	assert.InDelta(t, 1.0/12.0, MidiNoteToVolts(61), 1e-6)
}

func TestSemitonesToVolts(t *testing.T) {
	assert.InDelta(t, 1.0, SemitonesToVolts(12), 1e-6)
	assert.InDelta(t, 4.0, SemitonesToVolts(48), 1e-6)
}
