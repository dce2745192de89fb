package engine

import (
	"github.com/schollz/performer/internal/model"
	"github.com/schollz/performer/internal/rng"
	"github.com/schollz/performer/internal/types"
)

// Engine owns one track engine per project track and broadcasts clock
// ticks across them in index order. All engines run on a single execution
// context; no engine function blocks.
type Engine struct {
	project *model.Project
	sink    OutputSink

	tracks [types.TrackCount]TrackEngine
	rngs   [types.TrackCount]*rng.Rng

	running  bool
	tick     uint32
	lastTick uint32
}

// New builds all track engines at boot. Each track gets its own seeded
// random stream so playback is reproducible.
func New(project *model.Project, sink OutputSink) *Engine {
	if sink == nil {
		sink = NullSink{}
	}
	e := &Engine{project: project, sink: sink}
	for i := 0; i < types.TrackCount; i++ {
		e.rngs[i] = rng.New(project.Seed + uint64(i)*0x9e3779b9)
		e.tracks[i] = e.newTrackEngine(i)
	}
	return e
}

func (e *Engine) newTrackEngine(trackIndex int) TrackEngine {
	switch e.project.Tracks[trackIndex].Mode {
	case types.TrackModeCurve:
		return NewCurveTrackEngine(e.project, trackIndex, e.sink, e.rngs[trackIndex])
	case types.TrackModeMidiCv:
		return NewMidiCvTrackEngine(e.project, trackIndex, e.sink, e.rngs[trackIndex])
	default:
		return NewNoteTrackEngine(e.project, trackIndex, e.sink, e.rngs[trackIndex])
	}
}

// Project returns the engine's data model.
func (e *Engine) Project() *model.Project { return e.project }

// Track returns the engine for a track index.
func (e *Engine) Track(trackIndex int) TrackEngine {
	return e.tracks[types.ClampInt(trackIndex, 0, types.TrackCount-1)]
}

// RebuildTrack swaps a track engine after its mode changed. Only legal
// between ticks.
func (e *Engine) RebuildTrack(trackIndex int) {
	trackIndex = types.ClampInt(trackIndex, 0, types.TrackCount-1)
	e.tracks[trackIndex] = e.newTrackEngine(trackIndex)
	e.tracks[trackIndex].SetRunning(e.running)
}

// Running reports whether the clock is advancing sequences.
func (e *Engine) Running() bool { return e.running }

// Start begins (or resumes) playback.
func (e *Engine) Start() {
	e.running = true
	for _, t := range e.tracks {
		t.SetRunning(true)
	}
}

// Stop halts playback and silences every track.
func (e *Engine) Stop() {
	e.running = false
	for _, t := range e.tracks {
		t.SetRunning(false)
		t.Silence()
	}
}

// Reset rewinds every track to the not-yet-played state.
func (e *Engine) Reset() {
	for _, t := range e.tracks {
		t.Reset()
	}
}

// Restart rewinds cursors without touching transient state.
func (e *Engine) Restart() {
	for _, t := range e.tracks {
		t.Restart()
	}
}

// SetMute mutes a track's gate output.
func (e *Engine) SetMute(trackIndex int, mute bool) {
	e.Track(trackIndex).SetMute(mute)
}

// SetFill holds fill on a track.
func (e *Engine) SetFill(trackIndex int, fill bool) {
	e.Track(trackIndex).SetFill(fill)
}

// ChangePattern requests a pattern swap on a track; applied at the next
// tick boundary.
func (e *Engine) ChangePattern(trackIndex, pattern int) {
	e.Track(trackIndex).ChangePattern(pattern)
}

// Tick advances every track engine to the given master tick. Followers
// read their leader's LinkData after the leader has ticked in the same
// pass; a track can only follow a lower-indexed track.
func (e *Engine) Tick(tick uint32) {
	e.lastTick = e.tick
	e.tick = tick
	for i := 0; i < types.TrackCount; i++ {
		var link *LinkData
		leader := e.project.Tracks[i].LinkTrack
		if leader >= 0 && leader < i {
			link = e.tracks[leader].LinkData()
		}
		e.tracks[i].Tick(tick, link)
	}
}

// Update runs slide interpolation across all tracks at UI/output rate.
func (e *Engine) Update(dt float32) {
	for _, t := range e.tracks {
		t.Update(dt)
	}
}

// TickCount returns the last tick the engine processed.
func (e *Engine) TickCount() uint32 { return e.tick }
