// Package recorder implements the live recording path: MIDI input becomes
// note steps, sampled CV input becomes curve steps. Both sub-recorders
// share a lock-free single-producer/single-consumer ring of timestamped
// events so the MIDI callback never blocks the tick context.
package recorder

import (
	"sync/atomic"

	"github.com/schollz/performer/internal/curve"
	"github.com/schollz/performer/internal/model"
	"github.com/schollz/performer/internal/types"
)

const historyCapacity = 64

// Event is one timestamped MIDI note event.
type Event struct {
	Tick     uint32
	Note     int
	Velocity int
	On       bool
}

// History is the SPSC ring between the MIDI-input callback (producer) and
// the engine's record scan (consumer). Push never blocks; when the ring is
// full the event is dropped.
type History struct {
	events [historyCapacity]Event
	head   atomic.Uint64 // consumer position
	tail   atomic.Uint64 // producer position
}

// Push appends an event from the MIDI input callback.
func (h *History) Push(ev Event) {
	head := h.head.Load()
	tail := h.tail.Load()
	if tail-head >= historyCapacity {
		return
	}
	h.events[tail%historyCapacity] = ev
	h.tail.Store(tail + 1)
}

// PopAll drains pending events into dst and returns the extended slice.
// Must only be called from the engine context.
func (h *History) PopAll(dst []Event) []Event {
	head := h.head.Load()
	tail := h.tail.Load()
	for ; head < tail; head++ {
		dst = append(dst, h.events[head%historyCapacity])
	}
	h.head.Store(head)
	return dst
}

// CvEvent is one timestamped CV input sample.
type CvEvent struct {
	Tick  uint32
	Volts float32
}

// CvHistory is the SPSC ring for sampled CV input feeding the curve
// recorder; same contract as History.
type CvHistory struct {
	events [historyCapacity]CvEvent
	head   atomic.Uint64
	tail   atomic.Uint64
}

// Push appends a CV sample from the input callback.
func (h *CvHistory) Push(ev CvEvent) {
	head := h.head.Load()
	tail := h.tail.Load()
	if tail-head >= historyCapacity {
		return
	}
	h.events[tail%historyCapacity] = ev
	h.tail.Store(tail + 1)
}

// PopAll drains pending samples into dst and returns the extended slice.
// Must only be called from the engine context.
func (h *CvHistory) PopAll(dst []CvEvent) []CvEvent {
	head := h.head.Load()
	tail := h.tail.Load()
	for ; head < tail; head++ {
		dst = append(dst, h.events[head%historyCapacity])
	}
	h.head.Store(head)
	return dst
}

// noteSpan is a completed (or still sounding) note with its duration.
type noteSpan struct {
	start    uint32
	note     int
	velocity int
	duration uint32
	open     bool
}

// NoteRecorder converts MIDI input into note steps. In Overwrite and Punch
// modes RecordStep is called at step boundaries and scans the recent
// history; in StepRecord mode each note-on writes the next step directly.
type NoteRecorder struct {
	history *History

	mode     types.RecordMode
	armed    bool
	selected bool

	drained []Event
	spans   []noteSpan
	held    []int // note-on order, newest last

	currentRecordStep int
}

func NewNoteRecorder(history *History) *NoteRecorder {
	return &NoteRecorder{
		history:           history,
		mode:              types.RecordModeOverwrite,
		currentRecordStep: -1,
	}
}

func (r *NoteRecorder) SetMode(mode types.RecordMode) {
	if mode < 0 || mode >= types.RecordModeCount {
		mode = types.RecordModeOverwrite
	}
	r.mode = mode
}

func (r *NoteRecorder) Mode() types.RecordMode { return r.mode }

// SetArmed enables recording; disarmed the recorder only tracks held notes
// for monitoring.
func (r *NoteRecorder) SetArmed(armed bool) { r.armed = armed }

// SetSelected marks whether the recorded track is the selected one;
// Overwrite clears unmatched steps only on the selected track.
func (r *NoteRecorder) SetSelected(selected bool) { r.selected = selected }

// Process drains the history and updates note spans. Call once per tick
// from the engine context before any record decision.
func (r *NoteRecorder) Process(now uint32) {
	r.drained = r.history.PopAll(r.drained[:0])
	for _, ev := range r.drained {
		if ev.On {
			r.spans = append(r.spans, noteSpan{start: ev.Tick, note: ev.Note, velocity: ev.Velocity, open: true})
			r.held = append(r.held, ev.Note)
		} else {
			for i := len(r.spans) - 1; i >= 0; i-- {
				if r.spans[i].open && r.spans[i].note == ev.Note {
					r.spans[i].open = false
					r.spans[i].duration = ev.Tick - r.spans[i].start
					break
				}
			}
			for i := len(r.held) - 1; i >= 0; i-- {
				if r.held[i] == ev.Note {
					r.held = append(r.held[:i], r.held[i+1:]...)
					break
				}
			}
		}
	}
	r.trim(now)
}

// trim drops spans that ended long before the current record horizon.
func (r *NoteRecorder) trim(now uint32) {
	const horizon = 2 * types.MeasureTicks
	kept := r.spans[:0]
	for _, s := range r.spans {
		if s.open || now-s.start < horizon {
			kept = append(kept, s)
		}
	}
	r.spans = kept
}

// LatestHeldNote returns the newest note still held, feeding the note
// engine's monitoring override.
func (r *NoteRecorder) LatestHeldNote() (int, bool) {
	if len(r.held) == 0 {
		return 0, false
	}
	return r.held[len(r.held)-1], true
}

// RecordStep is called at a step boundary in Overwrite or Punch mode. It
// scans for a note that started within half a divisor of the previous
// step's start and writes it into that step with maxed-out probabilities.
// On the selected track, Overwrite clears the step when nothing matched.
// Reports whether the sequence was mutated.
func (r *NoteRecorder) RecordStep(seq *model.NoteSequence, prevStepIndex int, prevStepStart uint32, divisor int) bool {
	if !r.armed || r.mode == types.RecordModeStepRecord {
		return false
	}
	if prevStepIndex < 0 || prevStepIndex >= types.StepCount || divisor <= 0 {
		return false
	}

	margin := uint32(divisor / 2)
	var match *noteSpan
	for i := range r.spans {
		s := &r.spans[i]
		if s.start+margin >= prevStepStart && s.start <= prevStepStart+margin {
			match = s
			break
		}
	}

	step := &seq.Steps[prevStepIndex]
	if match == nil {
		if r.selected && r.mode == types.RecordModeOverwrite && step.Gate {
			step.Clear()
			return true
		}
		return false
	}

	duration := match.duration
	if match.open || duration == 0 {
		duration = uint32(divisor)
	}

	step.Gate = true
	step.SetGateProbability(types.ProbabilityMax)
	step.SetNote(match.note - 60) // store as scale degree around C4
	step.SetLength(int(duration) * types.LengthRange / divisor)
	step.SetLengthVariationProbability(0)
	step.SetNoteVariationProbability(0)
	step.Slide = false
	return true
}

// StartStepRecord rewinds the step-record cursor to the range start.
func (r *NoteRecorder) StartStepRecord(seq *model.NoteSequence) {
	r.currentRecordStep = seq.FirstStep
}

// CurrentRecordStep returns the step the next note-on will land on.
func (r *NoteRecorder) CurrentRecordStep() int { return r.currentRecordStep }

// RecordStepNote places a note-on into the current record step and
// advances the cursor, wrapping inside [firstStep, lastStep]. Only active
// in StepRecord mode. Reports whether a step was written.
func (r *NoteRecorder) RecordStepNote(seq *model.NoteSequence, note int) bool {
	if !r.armed || r.mode != types.RecordModeStepRecord {
		return false
	}
	if r.currentRecordStep < seq.FirstStep || r.currentRecordStep > seq.LastStep {
		r.currentRecordStep = seq.FirstStep
	}

	step := &seq.Steps[r.currentRecordStep]
	step.Gate = true
	step.SetGateProbability(types.ProbabilityMax)
	step.SetNote(note - 60)

	r.currentRecordStep++
	if r.currentRecordStep > seq.LastStep {
		r.currentRecordStep = seq.FirstStep
	}
	return true
}

// RecordPendingStepNotes places the note-ons drained by the last Process
// call into successive steps. Call once per tick after Process while step
// recording. Reports whether any step was written.
func (r *NoteRecorder) RecordPendingStepNotes(seq *model.NoteSequence) bool {
	if !r.armed || r.mode != types.RecordModeStepRecord {
		return false
	}
	wrote := false
	for _, ev := range r.drained {
		if ev.On && r.RecordStepNote(seq, ev.Note) {
			wrote = true
		}
	}
	return wrote
}

// CurveRecorder streams sampled CV input across one step-duration window
// and fits the best-matching shape on window close.
type CurveRecorder struct {
	phases      []float32
	values      []float32
	windowStart uint32
	divisor     int
	vr          types.VoltageRange
	active      bool
}

func NewCurveRecorder() *CurveRecorder {
	return &CurveRecorder{}
}

// StartWindow opens a new accumulation window at the given step start.
func (c *CurveRecorder) StartWindow(tick uint32, divisor int, vr types.VoltageRange) {
	c.phases = c.phases[:0]
	c.values = c.values[:0]
	c.windowStart = tick
	c.divisor = divisor
	c.vr = vr
	c.active = divisor > 0
}

// Sample adds one CV reading. Samples outside the window are ignored.
func (c *CurveRecorder) Sample(tick uint32, volts float32) {
	if !c.active {
		return
	}
	offset := tick - c.windowStart
	if offset >= uint32(c.divisor) {
		return
	}
	c.phases = append(c.phases, float32(offset)/float32(c.divisor))
	c.values = append(c.values, c.vr.Normalize(volts))
}

// CloseWindow fits the accumulated samples and writes shape and bounds
// into the step. Returns false when the window never filled.
func (c *CurveRecorder) CloseWindow(step *model.CurveStep) bool {
	if !c.active || len(c.values) == 0 {
		return false
	}
	shape, min, max := curve.Fit(c.phases, c.values)
	step.SetShape(int(shape))
	step.SetMin(int(min*255 + 0.5))
	step.SetMax(int(max*255 + 0.5))
	c.active = false
	return true
}
