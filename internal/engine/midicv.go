package engine

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/schollz/performer/internal/model"
	"github.com/schollz/performer/internal/music"
	"github.com/schollz/performer/internal/rng"
	"github.com/schollz/performer/internal/types"
)

// retriggerGapTicks is how long a voice's gate is forced low between
// consecutive notes on the same voice when retrigger is enabled.
const retriggerGapTicks = 2

type voice struct {
	note        int
	velocity    int
	pressure    int
	active      bool
	age         uint64 // allocation stamp; lower = less recently stolen
	retrigTicks int
}

type heldNote struct {
	note     int
	velocity int
	order    uint64
}

// MidiCvTrackEngine converts filtered MIDI input into polyphonic gate/CV
// voices with configurable note priority, pitch bend, modulation and an
// optional arpeggiator.
type MidiCvTrackEngine struct {
	trackIndex int
	project    *model.Project
	track      *model.Track
	config     *model.MidiCvConfig
	sink       OutputSink
	rng        *rng.Rng

	held    []heldNote
	voices  [types.VoiceCountMax]voice
	orderNo uint64

	arp        *Arpeggiator
	arpTick    uint32
	arpGateOff uint32
	arpGateOn  bool

	pitchBendVolts  float32
	modulationVolts float32

	running bool
	mute    bool
	fill    bool

	link LinkData
}

func NewMidiCvTrackEngine(project *model.Project, trackIndex int, sink OutputSink, r *rng.Rng) *MidiCvTrackEngine {
	t := &project.Tracks[trackIndex]
	return &MidiCvTrackEngine{
		trackIndex: trackIndex,
		project:    project,
		track:      t,
		config:     &t.MidiCv,
		sink:       sink,
		rng:        r,
		arp:        NewArpeggiator(&t.MidiCv.Arpeggiator, r),
	}
}

func (e *MidiCvTrackEngine) TrackMode() types.TrackMode { return types.TrackModeMidiCv }

func (e *MidiCvTrackEngine) Reset() {
	e.held = e.held[:0]
	for i := range e.voices {
		e.voices[i] = voice{}
	}
	e.arp.Clear()
	e.arpGateOn = false
	e.pitchBendVolts = 0
	e.modulationVolts = 0
	e.sink.SendGate(e.trackIndex, false)
}

func (e *MidiCvTrackEngine) Restart() {
	e.arp.Reset()
}

func (e *MidiCvTrackEngine) Silence() {
	for i := range e.voices {
		e.voices[i].active = false
	}
	e.arpGateOn = false
	e.sink.SendGate(e.trackIndex, false)
}

// ChangePattern is a no-op: MIDI/CV tracks have no pattern data.
func (e *MidiCvTrackEngine) ChangePattern(int) {}

func (e *MidiCvTrackEngine) SetRunning(running bool) { e.running = running }
func (e *MidiCvTrackEngine) SetMute(mute bool)       { e.mute = mute }
func (e *MidiCvTrackEngine) SetFill(fill bool)       { e.fill = fill }

func (e *MidiCvTrackEngine) LinkData() *LinkData { return &e.link }

func (e *MidiCvTrackEngine) Activity() bool {
	for i := 0; i < e.config.Voices; i++ {
		if e.voiceGate(i) {
			return true
		}
	}
	return false
}

func (e *MidiCvTrackEngine) GateOutput(voiceIndex int) bool {
	if e.mute && !e.fill {
		return false
	}
	return e.voiceGate(voiceIndex)
}

func (e *MidiCvTrackEngine) voiceGate(voiceIndex int) bool {
	if voiceIndex < 0 || voiceIndex >= e.config.Voices {
		return false
	}
	if e.arpEnabled() {
		return voiceIndex == 0 && e.arpGateOn
	}
	v := &e.voices[voiceIndex]
	return v.active && v.retrigTicks == 0
}

// CvOutput returns the voice's pitch CV (V/Oct plus pitch bend).
func (e *MidiCvTrackEngine) CvOutput(voiceIndex int) float32 {
	if voiceIndex < 0 || voiceIndex >= types.VoiceCountMax {
		return 0
	}
	return music.MidiNoteToVolts(e.voices[voiceIndex].note) + e.pitchBendVolts
}

// VelocityOutput returns the voice's velocity CV when the voice config
// carries it.
func (e *MidiCvTrackEngine) VelocityOutput(voiceIndex int) float32 {
	if e.config.VoiceConfig < types.VoiceConfigPitchVelocity {
		return 0
	}
	if voiceIndex < 0 || voiceIndex >= types.VoiceCountMax {
		return 0
	}
	return float32(e.voices[voiceIndex].velocity) / 127.0 * 5.0
}

// PressureOutput returns the voice's pressure CV when the voice config
// carries it.
func (e *MidiCvTrackEngine) PressureOutput(voiceIndex int) float32 {
	if e.config.VoiceConfig < types.VoiceConfigPitchVelocityPressure {
		return 0
	}
	if voiceIndex < 0 || voiceIndex >= types.VoiceCountMax {
		return 0
	}
	return float32(e.voices[voiceIndex].pressure) / 127.0 * 5.0
}

// ModulationOutput returns the CC1 modulation CV scaled into the
// configured voltage range.
func (e *MidiCvTrackEngine) ModulationOutput() float32 {
	return e.modulationVolts
}

func (e *MidiCvTrackEngine) SequenceProgress() float32 { return 0 }

func (e *MidiCvTrackEngine) arpEnabled() bool {
	return e.config.Arpeggiator.Enabled
}

// ReceiveMidi feeds one MIDI message into the voice pipeline. Called from
// the MIDI input path; note filtering and channel matching happen here.
func (e *MidiCvTrackEngine) ReceiveMidi(msg midi.Message) {
	var ch, key, vel, pressure, controller, value uint8
	var rel int16
	var abs uint16

	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if !e.accepts(ch, key) {
			return
		}
		e.noteOn(int(key), int(vel))
	case msg.GetNoteEnd(&ch, &key):
		if !e.accepts(ch, key) {
			return
		}
		e.noteOff(int(key))
	case msg.GetPitchBend(&ch, &rel, &abs):
		if !e.channelMatch(ch) {
			return
		}
		if e.config.PitchBendRange == 0 {
			e.pitchBendVolts = 0
			return
		}
		e.pitchBendVolts = float32(rel) / 8192.0 * music.SemitonesToVolts(float32(e.config.PitchBendRange))
	case msg.GetAfterTouch(&ch, &pressure):
		if !e.channelMatch(ch) {
			return
		}
		for i := range e.voices {
			if e.voices[i].active {
				e.voices[i].pressure = int(pressure)
			}
		}
	case msg.GetControlChange(&ch, &controller, &value):
		if !e.channelMatch(ch) || controller != 1 {
			return
		}
		e.modulationVolts = e.config.ModulationRange.Denormalize(float32(value) / 127.0)
	}
}

func (e *MidiCvTrackEngine) channelMatch(ch uint8) bool {
	return e.config.Source < 0 || int(ch) == e.config.Source
}

func (e *MidiCvTrackEngine) accepts(ch, key uint8) bool {
	if !e.channelMatch(ch) {
		return false
	}
	return int(key) >= e.config.LowNote && int(key) <= e.config.HighNote
}

func (e *MidiCvTrackEngine) noteOn(note, velocity int) {
	if e.arpEnabled() {
		e.arp.NoteOn(note)
		return
	}
	e.removeHeld(note)
	e.orderNo++
	e.held = append(e.held, heldNote{note: note, velocity: velocity, order: e.orderNo})
	e.allocate()
}

func (e *MidiCvTrackEngine) noteOff(note int) {
	if e.arpEnabled() {
		e.arp.NoteOff(note)
		return
	}
	e.removeHeld(note)
	e.allocate()
}

func (e *MidiCvTrackEngine) removeHeld(note int) {
	for i := range e.held {
		if e.held[i].note == note {
			e.held = append(e.held[:i], e.held[i+1:]...)
			return
		}
	}
}

// selectNotes picks the held notes that should sound under the configured
// priority, at most one per voice.
func (e *MidiCvTrackEngine) selectNotes() []heldNote {
	n := e.config.Voices
	sel := make([]heldNote, len(e.held))
	copy(sel, e.held)

	switch e.config.NotePriority {
	case types.NotePriorityLast:
		// newest first
		sortHeld(sel, func(a, b heldNote) bool { return a.order > b.order })
	case types.NotePriorityFirst:
		sortHeld(sel, func(a, b heldNote) bool { return a.order < b.order })
	case types.NotePriorityLowest:
		sortHeld(sel, func(a, b heldNote) bool { return a.note < b.note })
	case types.NotePriorityHighest:
		sortHeld(sel, func(a, b heldNote) bool { return a.note > b.note })
	}
	if len(sel) > n {
		sel = sel[:n]
	}
	return sel
}

func sortHeld(notes []heldNote, less func(a, b heldNote) bool) {
	// insertion sort: the slice is tiny and allocation-free ordering
	// matters more than asymptotics here
	for i := 1; i < len(notes); i++ {
		for j := i; j > 0 && less(notes[j], notes[j-1]); j-- {
			notes[j], notes[j-1] = notes[j-1], notes[j]
		}
	}
}

// allocate rebinds the selected notes onto voices. Sorted priorities
// (lowest/highest) bind positionally so voice 0 always carries the top
// priority note; arrival priorities keep sounding voices stable and steal
// the least recently stolen voice.
func (e *MidiCvTrackEngine) allocate() {
	sel := e.selectNotes()
	voices := e.voices[:e.config.Voices]

	positional := e.config.NotePriority == types.NotePriorityLowest ||
		e.config.NotePriority == types.NotePriorityHighest

	if positional {
		for i := range voices {
			if i < len(sel) {
				e.bindVoice(&voices[i], sel[i])
			} else {
				voices[i].active = false
			}
		}
		return
	}

	// keep voices that already sound a selected note
	bound := make([]bool, len(sel))
	for i := range voices {
		v := &voices[i]
		if !v.active {
			continue
		}
		kept := false
		for j, hn := range sel {
			if !bound[j] && hn.note == v.note {
				bound[j] = true
				kept = true
				break
			}
		}
		if !kept {
			v.active = false
		}
	}

	// place remaining notes on the least recently stolen voices
	for j, hn := range sel {
		if bound[j] {
			continue
		}
		target := -1
		for i := range voices {
			if voices[i].active {
				continue
			}
			if target < 0 || voices[i].age < voices[target].age {
				target = i
			}
		}
		if target < 0 {
			break
		}
		e.bindVoice(&voices[target], hn)
	}
}

// bindVoice assigns a note to a voice, forcing a gate-low gap when the
// voice was already sounding a different note and retrigger is on.
func (e *MidiCvTrackEngine) bindVoice(v *voice, hn heldNote) {
	if v.active && v.note != hn.note && e.config.Retrigger {
		v.retrigTicks = retriggerGapTicks
	}
	if !v.active {
		v.retrigTicks = 0
	}
	v.note = hn.note
	v.velocity = hn.velocity
	v.active = true
	e.orderNo++
	v.age = e.orderNo
}

// Tick drives retrigger gaps and the arpeggiator clock.
func (e *MidiCvTrackEngine) Tick(tick uint32, _ *LinkData) {
	for i := range e.voices {
		if e.voices[i].retrigTicks > 0 {
			e.voices[i].retrigTicks--
		}
	}

	if e.arpEnabled() {
		e.tickArpeggiator(tick)
	}

	e.link = LinkData{}
	e.sink.SendGate(e.trackIndex, e.GateOutput(0))
	e.sink.SendCv(e.trackIndex, e.CvOutput(0))
}

func (e *MidiCvTrackEngine) tickArpeggiator(tick uint32) {
	div := uint32(e.config.Arpeggiator.Divisor)
	if div == 0 {
		div = types.SequencePPQN
	}
	if e.arpGateOn && tick >= e.arpGateOff {
		e.arpGateOn = false
	}
	if tick%div != 0 {
		return
	}
	note, ok := e.arp.Next()
	if !ok {
		e.arpGateOn = false
		return
	}
	if e.config.Retrigger && e.voices[0].active && e.voices[0].note != note {
		e.voices[0].retrigTicks = retriggerGapTicks
	}
	e.voices[0].note = note
	e.voices[0].velocity = 100
	e.voices[0].active = true
	e.arpGateOn = true
	e.arpGateOff = tick + div/2
}

// Update is a no-op; MIDI/CV outputs snap.
func (e *MidiCvTrackEngine) Update(float32) {}
