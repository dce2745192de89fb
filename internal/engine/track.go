package engine

import (
	"github.com/schollz/performer/internal/types"
)

// LinkData is the snapshot a track publishes after its own advance so a
// downstream track can mirror its cursor exactly.
type LinkData struct {
	Divisor      int
	RelativeTick uint32
	State        SequenceState
}

// OutputSink receives the engine's gate/CV activity. Implementations must
// not block; they enqueue and return (spec: the tick path never does I/O).
type OutputSink interface {
	SendGate(track int, gate bool)
	SendCv(track int, volts float32)
	SendSlide(track int, slide bool)
}

// NullSink discards everything. Useful in tests and offline rendering.
type NullSink struct{}

func (NullSink) SendGate(int, bool)  {}
func (NullSink) SendCv(int, float32) {}
func (NullSink) SendSlide(int, bool) {}

// TrackEngine is the common capability set of the three track engine kinds.
type TrackEngine interface {
	TrackMode() types.TrackMode

	// Reset rewinds cursor and iteration and clears transient state;
	// invoked by Engine.Reset. The rewinds at resetMeasure boundaries and
	// on pattern change happen inside Tick and do not call Reset.
	Reset()
	// Restart only rewinds the cursor.
	Restart()

	// Tick advances the engine to the given master tick. link carries the
	// upstream cursor for follower tracks and is nil otherwise.
	Tick(tick uint32, link *LinkData)
	// Update runs at UI/output rate and performs slide interpolation.
	Update(dt float32)

	// ChangePattern requests a pattern swap; it takes effect at the next
	// Tick boundary, never mid-tick.
	ChangePattern(pattern int)

	LinkData() *LinkData

	// Silence drops pending events and forces all gates low.
	Silence()

	// SetRunning gates sequence advance; monitoring applies when stopped.
	SetRunning(bool)

	Activity() bool
	GateOutput(voice int) bool
	CvOutput(voice int) float32
	SequenceProgress() float32

	SetMute(bool)
	SetFill(bool)
}
