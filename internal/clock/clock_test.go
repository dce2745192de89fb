package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/performer/internal/types"
)

func TestApplySwingNoSwing(t *testing.T) {
	for tick := uint32(0); tick < 4*types.MasterPPQN; tick++ {
		assert.Equal(t, tick, ApplySwing(tick, types.SwingMin))
	}
}

func TestApplySwingMonotonic(t *testing.T) {
	for _, swing := range []int{55, 60, 66, 75} {
		prev := ApplySwing(0, swing)
		for tick := uint32(1); tick < 8*types.MasterPPQN; tick++ {
			cur := ApplySwing(tick, swing)
			assert.GreaterOrEqual(t, cur, prev, "swing=%d tick=%d", swing, tick)
			prev = cur
		}
	}
}

func TestApplySwingQuarterPeriodic(t *testing.T) {
	const quarter = uint32(types.MasterPPQN)
	for _, swing := range []int{50, 58, 66, 75} {
		for tick := uint32(0); tick < 4*quarter; tick++ {
			assert.Equal(t, ApplySwing(tick, swing)+quarter, ApplySwing(tick+quarter, swing),
				"swing=%d tick=%d", swing, tick)
		}
	}
}

func TestApplySwingMaxDisplacement(t *testing.T) {
	// At maximum swing the off-beat sixteenth lands half a sixteenth late.
	shifted := ApplySwing(uint32(Sixteenth), types.SwingMax)
	assert.Equal(t, uint32(Sixteenth+Sixteenth/2), shifted)

	// Grid anchors (eighth-note boundaries) never move.
	for tick := uint32(0); tick < 4*types.MasterPPQN; tick += 2 * uint32(Sixteenth) {
		assert.Equal(t, tick, ApplySwing(tick, types.SwingMax))
	}
}

func TestApplySwingClamps(t *testing.T) {
	assert.Equal(t, ApplySwing(100, types.SwingMin), ApplySwing(100, 0))
	assert.Equal(t, ApplySwing(100, types.SwingMax), ApplySwing(100, 99))
}

func TestMeasureTicks(t *testing.T) {
	assert.Equal(t, uint32(0), MeasureTicks(0))
	assert.Equal(t, uint32(0), MeasureTicks(-1))
	assert.Equal(t, uint32(types.MeasureTicks), MeasureTicks(1))
	assert.Equal(t, uint32(2*types.MeasureTicks), MeasureTicks(2))
}

func TestTickReached(t *testing.T) {
	assert.True(t, TickReached(100, 100))
	assert.True(t, TickReached(101, 100))
	assert.False(t, TickReached(99, 100))
	// wraparound: due just before wrap, now just after
	assert.True(t, TickReached(5, 0xFFFFFFF0))
	assert.False(t, TickReached(0xFFFFFFF0, 5))
}
