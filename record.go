package main

import (
	"log"

	"github.com/schollz/performer/internal/engine"
	"github.com/schollz/performer/internal/model"
	"github.com/schollz/performer/internal/recorder"
	"github.com/schollz/performer/internal/types"
)

// cvInputController is the CC number sampled as CV input while a curve
// track records (CC 2, breath).
const cvInputController = 2

// recordSession drives the live recording path for one armed track. It
// implements the record side of the note track run states: Overwrite and
// Punch write at step boundaries while the cursor advances normally;
// StepRecord freezes the cursor and writes on each incoming note-on.
// Curve tracks record sampled CV input one step window at a time.
type recordSession struct {
	eng       *engine.Engine
	noteRec   *recorder.NoteRecorder
	curveRec  *recorder.CurveRecorder
	cvHistory *recorder.CvHistory

	track   int
	armed   bool
	cvDrain []recorder.CvEvent
}

func newRecordSession(eng *engine.Engine, history *recorder.History) *recordSession {
	return &recordSession{
		eng:       eng,
		noteRec:   recorder.NewNoteRecorder(history),
		curveRec:  recorder.NewCurveRecorder(),
		cvHistory: &recorder.CvHistory{},
	}
}

// Arm starts recording onto a track. StepRecord freezes the track's
// cursor; every other mode leaves the sequence advancing.
func (r *recordSession) Arm(track int, mode types.RecordMode) {
	r.track = types.ClampInt(track, 0, types.TrackCount-1)
	r.armed = true
	r.noteRec.SetMode(mode)
	r.noteRec.SetArmed(true)
	r.noteRec.SetSelected(true)

	if nte, ok := r.eng.Track(r.track).(*engine.NoteTrackEngine); ok {
		frozen := mode == types.RecordModeStepRecord
		nte.SetCursorFrozen(frozen)
		if frozen {
			r.noteRec.StartStepRecord(r.noteSequence(nte))
		}
	}
	log.Printf("recording armed on track %d in %s mode", r.track+1, mode)
}

// Disarm stops recording and releases a frozen cursor.
func (r *recordSession) Disarm() {
	r.armed = false
	r.noteRec.SetArmed(false)
	if nte, ok := r.eng.Track(r.track).(*engine.NoteTrackEngine); ok {
		nte.SetCursorFrozen(false)
	}
}

func (r *recordSession) noteSequence(nte *engine.NoteTrackEngine) *model.NoteSequence {
	return r.eng.Project().Tracks[r.track].NoteSequence(nte.Pattern())
}

// Tick runs once per engine tick, after Engine.Tick. It drains input
// history, applies record decisions at step boundaries, and reports
// whether the project was mutated (the caller autosaves on mutation).
func (r *recordSession) Tick(tick uint32) bool {
	r.noteRec.Process(tick)
	if !r.armed {
		return false
	}
	switch te := r.eng.Track(r.track).(type) {
	case *engine.NoteTrackEngine:
		return r.tickNote(te, tick)
	case *engine.CurveTrackEngine:
		return r.tickCurve(te, tick)
	}
	return false
}

func (r *recordSession) tickNote(te *engine.NoteTrackEngine, tick uint32) bool {
	seq := r.noteSequence(te)
	if r.noteRec.Mode() == types.RecordModeStepRecord {
		return r.noteRec.RecordPendingStepNotes(seq)
	}

	ld := te.LinkData()
	divisor := ld.Divisor
	if divisor <= 0 || ld.RelativeTick%uint32(divisor) != 0 || tick < uint32(divisor) {
		return false
	}
	// the step that just ended started one divisor before this boundary
	return r.noteRec.RecordStep(seq, ld.State.PrevStep(), tick-uint32(divisor), divisor)
}

func (r *recordSession) tickCurve(te *engine.CurveTrackEngine, tick uint32) bool {
	r.cvDrain = r.cvHistory.PopAll(r.cvDrain[:0])
	for _, ev := range r.cvDrain {
		r.curveRec.Sample(ev.Tick, ev.Volts)
	}

	seq := r.eng.Project().Tracks[r.track].CurveSequence(te.Pattern())
	ld := te.LinkData()
	divisor := ld.Divisor
	if divisor <= 0 || ld.RelativeTick%uint32(divisor) != 0 {
		return false
	}

	mutated := false
	if prev := ld.State.PrevStep(); prev >= 0 && prev < types.StepCount {
		mutated = r.curveRec.CloseWindow(&seq.Steps[prev])
	}
	r.curveRec.StartWindow(tick, divisor, seq.Range)
	return mutated
}
