package music

import (
	"fmt"
	"strings"

	"github.com/schollz/performer/internal/types"
)

// Scale maps integer note indices (scale degrees) onto control volts at
// 1V/octave. Chromatic scales transpose by root note before conversion.
type Scale struct {
	Name           string
	Chromatic      bool
	NotesPerOctave int
	// Intervals in semitones from the octave root, one per degree.
	Intervals []int
}

var scales = []Scale{
	{Name: "Chromatic", Chromatic: true, NotesPerOctave: 12, Intervals: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}},
	{Name: "Major", NotesPerOctave: 7, Intervals: []int{0, 2, 4, 5, 7, 9, 11}},
	{Name: "Minor", NotesPerOctave: 7, Intervals: []int{0, 2, 3, 5, 7, 8, 10}},
	{Name: "Pentatonic", NotesPerOctave: 5, Intervals: []int{0, 2, 4, 7, 9}},
	{Name: "Dorian", NotesPerOctave: 7, Intervals: []int{0, 2, 3, 5, 7, 9, 10}},
	{Name: "Phrygian", NotesPerOctave: 7, Intervals: []int{0, 1, 3, 5, 7, 8, 10}},
	{Name: "Lydian", NotesPerOctave: 7, Intervals: []int{0, 2, 4, 6, 7, 9, 11}},
	{Name: "Mixolydian", NotesPerOctave: 7, Intervals: []int{0, 2, 4, 5, 7, 9, 10}},
	{Name: "Harm Min", NotesPerOctave: 7, Intervals: []int{0, 2, 3, 5, 7, 8, 11}},
	{Name: "Blues", NotesPerOctave: 6, Intervals: []int{0, 3, 5, 6, 7, 10}},
	{Name: "Whole Tone", NotesPerOctave: 6, Intervals: []int{0, 2, 4, 6, 8, 10}},
}

// ScaleCount returns the number of built-in scales.
func ScaleCount() int {
	return len(scales)
}

// GetScale returns the scale at index, clamped into the valid range.
func GetScale(index int) *Scale {
	return &scales[types.ClampInt(index, 0, len(scales)-1)]
}

// ScaleName returns the display name for a scale index.
func ScaleName(index int) string {
	return GetScale(index).Name
}

// NoteToVolts converts a scale degree to volts at 1V/octave. Degrees past
// the octave wrap; negative degrees descend below 0V.
func (s *Scale) NoteToVolts(note int) float32 {
	n := s.NotesPerOctave
	if n <= 0 || len(s.Intervals) == 0 {
		return 0
	}
	octave := note / n
	degree := note % n
	if degree < 0 {
		degree += n
		octave--
	}
	if degree >= len(s.Intervals) {
		degree = len(s.Intervals) - 1
	}
	return float32(octave) + float32(s.Intervals[degree])/12.0
}

// SemitonesToVolts converts a semitone offset (e.g. pitch bend range) to volts.
func SemitonesToVolts(semitones float32) float32 {
	return semitones / 12.0
}

// MidiNoteToVolts converts a MIDI note number to V/Oct with C4 (60) at 0V.
func MidiNoteToVolts(midiNote int) float32 {
	return float32(midiNote-60) / 12.0
}

// MidiToNoteName converts MIDI note number (0-127) to note name like "c-1", "c#4", etc.
// For negative octaves: natural notes show minus (e.g., "c-1"), sharp notes drop minus (e.g., "f#1") - all stay 3 chars
// MIDI note 60 = C4, note 21 = A0, etc.
func MidiToNoteName(midiNote int) string {
	if midiNote < 0 || midiNote > 127 {
		return "---"
	}

	noteNames := []string{"c", "c#", "d", "d#", "e", "f", "f#", "g", "g#", "a", "a#", "b"}

	// Calculate octave (MIDI note 12 = C0)
	octave := (midiNote / 12) - 1

	// Get note name
	noteName := noteNames[midiNote%12]

	// Always maintain exactly 3 characters for all notes
	if strings.Contains(noteName, "#") {
		if octave < 0 {
			return fmt.Sprintf("%s%d", noteName, -octave)
		}
		return fmt.Sprintf("%s%d", noteName, octave)
	}
	if octave < 0 {
		return fmt.Sprintf("%s-%d", noteName, -octave)
	}
	return fmt.Sprintf("%s-%d", noteName, octave)
}
