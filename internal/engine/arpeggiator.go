package engine

import (
	"sort"

	"github.com/schollz/performer/internal/model"
	"github.com/schollz/performer/internal/rng"
)

// Arpeggiator cycles held notes into a stream of scheduled note events.
// It intercepts the MIDI/CV engine's held-note set when enabled.
type Arpeggiator struct {
	config    *model.ArpeggiatorConfig
	rng       *rng.Rng
	notes     []int // held notes, ascending
	index     int
	direction int
}

func NewArpeggiator(config *model.ArpeggiatorConfig, r *rng.Rng) *Arpeggiator {
	return &Arpeggiator{config: config, rng: r, direction: 1}
}

// NoteOn adds a held note; a note already held is ignored. With hold
// enabled, a note-on after all keys are released adds to the latched
// chord rather than restarting it; only Clear empties the chord.
func (a *Arpeggiator) NoteOn(note int) {
	for _, n := range a.notes {
		if n == note {
			return
		}
	}
	a.notes = append(a.notes, note)
	sort.Ints(a.notes)
}

// NoteOff removes a held note unless hold is active.
func (a *Arpeggiator) NoteOff(note int) {
	if a.config.Hold {
		return
	}
	for i, n := range a.notes {
		if n == note {
			a.notes = append(a.notes[:i], a.notes[i+1:]...)
			break
		}
	}
	if len(a.notes) == 0 {
		a.Reset()
	}
}

// Clear drops all held notes, including held ones.
func (a *Arpeggiator) Clear() {
	a.notes = a.notes[:0]
	a.Reset()
}

func (a *Arpeggiator) Reset() {
	a.index = 0
	a.direction = 1
}

// HasNotes reports whether the arpeggiator has anything to play.
func (a *Arpeggiator) HasNotes() bool {
	return len(a.notes) > 0
}

// span is the full cycle length across the octave range.
func (a *Arpeggiator) span() int {
	return len(a.notes) * (a.config.OctaveRange + 1)
}

// noteAt maps a cycle position to a MIDI note.
func (a *Arpeggiator) noteAt(pos int) int {
	n := len(a.notes)
	return a.notes[pos%n] + 12*(pos/n)
}

// Next returns the next note of the cycle. Call once per arpeggiator
// division.
func (a *Arpeggiator) Next() (int, bool) {
	if len(a.notes) == 0 {
		return 0, false
	}
	span := a.span()
	if a.index >= span {
		a.index = 0
	}

	var note int
	switch a.config.Mode {
	case model.ArpeggiatorModeUp:
		note = a.noteAt(a.index)
		a.index = (a.index + 1) % span
	case model.ArpeggiatorModeDown:
		note = a.noteAt(span - 1 - a.index)
		a.index = (a.index + 1) % span
	case model.ArpeggiatorModeUpDown:
		note = a.noteAt(a.index)
		if span == 1 {
			break
		}
		next := a.index + a.direction
		if next >= span {
			// bounce without repeating the endpoint
			a.direction = -1
			next = span - 2
		} else if next < 0 {
			a.direction = 1
			next = 1
		}
		a.index = next
	case model.ArpeggiatorModeRandom:
		note = a.noteAt(a.rng.Intn(span))
	default:
		note = a.noteAt(a.index)
		a.index = (a.index + 1) % span
	}
	return note, true
}
