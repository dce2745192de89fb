// Package clock holds tick-domain math shared by all track engines: the
// swing transform and the divisor/measure helpers that convert raw master
// ticks into sequence time.
package clock

import (
	"github.com/schollz/performer/internal/types"
)

// SequenceDivisor is the base divisor between master and sequence PPQN.
const SequenceDivisor = types.MasterPPQN / types.SequencePPQN

// Sixteenth is the tick length of a sixteenth note at master resolution.
const Sixteenth = types.MasterPPQN / 4

// ClampSwing constrains a swing amount to the legal percent range.
func ClampSwing(swing int) int {
	return types.ClampInt(swing, types.SwingMin, types.SwingMax)
}

// ApplySwing displaces odd sixteenth subdivisions by up to half a sixteenth.
// Swing operates on absolute ticks so phase is preserved across resets.
// The transform is monotonic and periodic over an eighth note:
// ApplySwing(t+quarter) == ApplySwing(t)+quarter.
func ApplySwing(tick uint32, swing int) uint32 {
	swing = ClampSwing(swing)
	if swing == types.SwingMin {
		return tick
	}
	const s = uint32(Sixteenth)
	const period = 2 * s
	// swing percent maps linearly onto [0, half a sixteenth]
	shift := s * uint32(swing-types.SwingMin) / (2 * uint32(types.SwingMax-types.SwingMin))

	base := tick / period * period
	phase := tick % period
	if phase < s {
		// stretch the on-beat sixteenth
		return base + phase*(s+shift)/s
	}
	// compress the off-beat sixteenth back onto the grid
	return base + s + shift + (phase-s)*(s-shift)/s
}

// MeasureTicks returns the tick length of n measures, 0 when n <= 0.
func MeasureTicks(measures int) uint32 {
	if measures <= 0 {
		return 0
	}
	return uint32(measures) * types.MeasureTicks
}

// TickReached reports whether due <= now under wraparound arithmetic.
// Comparisons are only meaningful within a short horizon (about a measure).
func TickReached(now, due uint32) bool {
	return int32(now-due) >= 0
}
