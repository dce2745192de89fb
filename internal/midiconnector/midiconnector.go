// Package midiconnector wraps the hardware MIDI transport: output devices
// for the engine's MIDI mirror and input ports feeding the MIDI/CV tracks
// and the recorder.
package midiconnector

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

var mutex sync.Mutex

var devicesOpen map[string]drivers.Out

func init() {
	devicesOpen = make(map[string]drivers.Out)
}

// Device is one MIDI output port with stuck-note protection.
type Device struct {
	name    string
	num     int
	notesOn map[uint8]uint8
}

func filterName(name string) (foundName string, foundNum int, err error) {
	names := Devices()

	// Truncate name to first 3 words
	words := strings.Fields(name)
	if len(words) > 3 {
		words = words[:3]
	}
	truncatedName := strings.Join(words, " ")

	// First try exact match with truncated name
	for i, n := range names {
		if strings.EqualFold(n, truncatedName) {
			foundName = n
			foundNum = i
			return
		}
	}

	// Then try prefix match with truncated name
	for i, n := range names {
		if strings.HasPrefix(strings.ToLower(n), strings.ToLower(truncatedName)) {
			foundName = n
			foundNum = i
			return
		}
	}

	// Finally try contains match for backward compatibility
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), strings.ToLower(truncatedName)) {
			foundName = n
			foundNum = i
			return
		}
	}

	err = fmt.Errorf("could not find device with name %s", truncatedName)
	return
}

func New(name string) (*Device, error) {
	var d Device
	var err error
	d.name, d.num, err = filterName(name)
	d.notesOn = make(map[uint8]uint8)
	return &d, err
}

func Close() {
	mutex.Lock()
	defer mutex.Unlock()
	for _, out := range devicesOpen {
		out.Close()
	}
}

func (d *Device) Open() (err error) {
	mutex.Lock()
	defer mutex.Unlock()
	if _, ok := devicesOpen[d.name]; ok {
		return
	}
	out, err := midi.FindOutPort(d.name)
	if err == nil {
		devicesOpen[d.name] = out
		err = out.Open()
	}
	return
}

func (d *Device) Close() (err error) {
	// send note off to every note
	for note, ch := range d.notesOn {
		d.NoteOff(ch, note)
	}
	mutex.Lock()
	defer mutex.Unlock()
	if out, ok := devicesOpen[d.name]; ok {
		err = out.Close()
		delete(devicesOpen, d.name)
	}
	return
}

func (d *Device) send(msg []byte) error {
	mutex.Lock()
	defer mutex.Unlock()
	out, ok := devicesOpen[d.name]
	if !ok {
		return nil
	}
	return out.Send(msg)
}

func (d *Device) NoteOn(channel, note, velocity uint8) (err error) {
	err = d.send([]byte{0x90 | channel, note, velocity})
	if err != nil {
		log.Printf("MIDI NoteOn error for device %s: %v", d.name, err)
	} else {
		d.notesOn[note] = channel
	}
	return
}

func (d *Device) NoteOff(channel, note uint8) (err error) {
	err = d.send([]byte{0x80 | channel, note, 0})
	if err != nil {
		log.Printf("MIDI NoteOff error for device %s: %v", d.name, err)
	} else {
		delete(d.notesOn, note)
	}
	return
}

// ControlChange sends a CC message; the engine mirrors slide state on
// CC 65 (portamento).
func (d *Device) ControlChange(channel, controller, value uint8) (err error) {
	err = d.send([]byte{0xB0 | channel, controller, value})
	if err != nil {
		log.Printf("MIDI CC error for device %s: %v", d.name, err)
	}
	return
}

// Devices lists the available MIDI output port names.
func Devices() (devices []string) {
	outs := midi.GetOutPorts()
	for _, out := range outs {
		devices = append(devices, out.String())
	}
	return
}

// InputDevices lists the available MIDI input port names.
func InputDevices() (devices []string) {
	ins := midi.GetInPorts()
	for _, in := range ins {
		devices = append(devices, in.String())
	}
	return
}

// Listen opens a MIDI input port and delivers messages to fn until the
// returned stop function is called. fn runs on the driver's callback
// goroutine; it must only enqueue.
func Listen(name string, fn func(msg midi.Message)) (stop func(), err error) {
	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("could not find input port %s: %w", name, err)
	}
	return midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		fn(msg)
	})
}
