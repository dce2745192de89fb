// Package output implements the engine's gate/CV sinks: an OSC client for
// a SuperCollider-style CV rig and a MIDI mirror. Sinks only enqueue or
// fire-and-forget; the tick path never blocks on them.
package output

import (
	"log"
	"math"

	"github.com/hypebeast/go-osc/osc"

	"github.com/schollz/performer/internal/engine"
	"github.com/schollz/performer/internal/storage"
	"github.com/schollz/performer/internal/types"
)

// OscSink publishes /gate, /cv and /slide messages. Calibration, when
// present, corrects volts per output channel before sending.
type OscSink struct {
	client   *osc.Client
	settings *storage.Settings
}

func NewOscSink(host string, port int, settings *storage.Settings) *OscSink {
	return &OscSink{
		client:   osc.NewClient(host, port),
		settings: settings,
	}
}

func (s *OscSink) SendGate(track int, gate bool) {
	gateInt := int32(0)
	if gate {
		gateInt = 1
	}
	msg := osc.NewMessage("/gate")
	msg.Append(int32(track))
	msg.Append(gateInt)
	if err := s.client.Send(msg); err != nil {
		log.Printf("Error sending OSC gate message: %v", err)
	}
}

func (s *OscSink) SendCv(track int, volts float32) {
	if s.settings != nil && track >= 0 && track < types.TrackCount {
		volts = s.settings.Calibration[track].Apply(volts)
	}
	msg := osc.NewMessage("/cv")
	msg.Append(int32(track))
	msg.Append(volts)
	if err := s.client.Send(msg); err != nil {
		log.Printf("Error sending OSC cv message: %v", err)
	}
}

func (s *OscSink) SendSlide(track int, slide bool) {
	slideInt := int32(0)
	if slide {
		slideInt = 1
	}
	msg := osc.NewMessage("/slide")
	msg.Append(int32(track))
	msg.Append(slideInt)
	if err := s.client.Send(msg); err != nil {
		log.Printf("Error sending OSC slide message: %v", err)
	}
}

// MidiDevice is the subset of midiconnector.Device the mirror uses.
type MidiDevice interface {
	NoteOn(channel, note, velocity uint8) error
	NoteOff(channel, note uint8) error
	ControlChange(channel, controller, value uint8) error
}

// MidiSink mirrors gate/CV activity onto a MIDI device: each track is one
// channel, CV becomes the nearest note number, slide maps to portamento
// (CC 65).
type MidiSink struct {
	device   MidiDevice
	lastCv   [types.TrackCount]float32
	sounding [types.TrackCount]int // -1 when silent
}

func NewMidiSink(device MidiDevice) *MidiSink {
	s := &MidiSink{device: device}
	for i := range s.sounding {
		s.sounding[i] = -1
	}
	return s
}

// voltsToMidiNote maps V/Oct back onto the MIDI note grid with C4 at 0V.
func voltsToMidiNote(volts float32) int {
	note := int(math.Round(float64(volts)*12)) + 60
	return types.ClampInt(note, 0, 127)
}

func (s *MidiSink) SendGate(track int, gate bool) {
	if track < 0 || track >= types.TrackCount {
		return
	}
	ch := uint8(track)
	if gate {
		note := voltsToMidiNote(s.lastCv[track])
		if s.sounding[track] >= 0 && s.sounding[track] != note {
			s.device.NoteOff(ch, uint8(s.sounding[track]))
		}
		s.device.NoteOn(ch, uint8(note), 100)
		s.sounding[track] = note
	} else if s.sounding[track] >= 0 {
		s.device.NoteOff(ch, uint8(s.sounding[track]))
		s.sounding[track] = -1
	}
}

func (s *MidiSink) SendCv(track int, volts float32) {
	if track < 0 || track >= types.TrackCount {
		return
	}
	s.lastCv[track] = volts
	// re-pitch a sounding note when the CV moves to a new semitone
	if s.sounding[track] >= 0 {
		note := voltsToMidiNote(volts)
		if note != s.sounding[track] {
			ch := uint8(track)
			s.device.NoteOff(ch, uint8(s.sounding[track]))
			s.device.NoteOn(ch, uint8(note), 100)
			s.sounding[track] = note
		}
	}
}

func (s *MidiSink) SendSlide(track int, slide bool) {
	if track < 0 || track >= types.TrackCount {
		return
	}
	value := uint8(0)
	if slide {
		value = 127
	}
	s.device.ControlChange(uint8(track), 65, value)
}

// Broadcast fans sink traffic out to several sinks in order.
type Broadcast []engine.OutputSink

func (b Broadcast) SendGate(track int, gate bool) {
	for _, s := range b {
		s.SendGate(track, gate)
	}
}

func (b Broadcast) SendCv(track int, volts float32) {
	for _, s := range b {
		s.SendCv(track, volts)
	}
}

func (b Broadcast) SendSlide(track int, slide bool) {
	for _, s := range b {
		s.SendSlide(track, slide)
	}
}
