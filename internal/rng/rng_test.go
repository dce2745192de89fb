package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterminism(t *testing.T) {
	a := New(12345)
	b := New(12345)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestZeroSeedRemapped(t *testing.T) {
	r := New(0)
	assert.NotZero(t, r.Next())
}

func TestIntnBounds(t *testing.T) {
	r := New(777)
	for i := 0; i < 1000; i++ {
		v := r.Intn(16)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 16)
	}
	assert.Equal(t, 0, r.Intn(0))
	assert.Equal(t, 0, r.Intn(-5))
}

func TestNextRange(t *testing.T) {
	r := New(42)
	for i := 0; i < 1000; i++ {
		v := r.NextRange(-7, 7)
		assert.GreaterOrEqual(t, v, -7)
		assert.LessOrEqual(t, v, 7)
	}
	assert.Equal(t, 3, r.NextRange(3, 3))
	assert.Equal(t, 3, r.NextRange(3, 1))
}

func TestPassRateConverges(t *testing.T) {
	// Observed pass rate over N trials converges to (p+1)/space.
	const trials = 20000
	const space = 8
	for p := 0; p < space; p++ {
		r := New(uint64(1000 + p))
		passed := 0
		for i := 0; i < trials; i++ {
			if r.Pass(p, space) {
				passed++
			}
		}
		expected := float64(p+1) / float64(space)
		observed := float64(passed) / float64(trials)
		assert.InDelta(t, expected, observed, 0.02, "p=%d", p)
	}
}

func TestPassEdges(t *testing.T) {
	r := New(1)
	assert.False(t, r.Pass(-1, 8))
	for i := 0; i < 100; i++ {
		assert.True(t, r.Pass(7, 8))
	}
}
