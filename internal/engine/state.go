package engine

import (
	"github.com/schollz/performer/internal/rng"
	"github.com/schollz/performer/internal/types"
)

// SequenceState is the per-track position cursor. A step of -1 means no
// step has been played since the last reset.
type SequenceState struct {
	step      int
	prevStep  int
	iteration uint32
	direction int    // ping-pong travel direction for free advance
	advances  uint32 // free-advance counter, drives iteration for Random
}

func (s *SequenceState) Step() int         { return s.step }
func (s *SequenceState) PrevStep() int     { return s.prevStep }
func (s *SequenceState) Iteration() uint32 { return s.iteration }

// Reset rewinds the cursor to the not-yet-played state.
func (s *SequenceState) Reset() {
	s.step = -1
	s.prevStep = -1
	s.iteration = 0
	s.direction = 1
	s.advances = 0
}

// AdvanceAligned places the cursor at the position implied by the global
// step counter. Used when the track is clock-aligned: the cursor is a pure
// function of absStep for every deterministic run mode.
func (s *SequenceState) AdvanceAligned(absStep uint32, mode types.RunMode, first, last int, r *rng.Rng) {
	n := last - first + 1
	if n < 1 {
		n = 1
		last = first
	}
	s.prevStep = s.step

	switch mode {
	case types.RunModeForward:
		s.step = first + int(absStep%uint32(n))
		s.iteration = absStep / uint32(n)
	case types.RunModeBackward:
		s.step = last - int(absStep%uint32(n))
		s.iteration = absStep / uint32(n)
	case types.RunModePingPong:
		period := uint32(2*n - 2)
		if period == 0 {
			s.step = first
			s.iteration = absStep
			return
		}
		idx := int(absStep % period)
		if idx < n {
			s.step = first + idx
		} else {
			s.step = last - (idx - n + 1)
		}
		s.iteration = absStep / period
	case types.RunModePingPongRepeat:
		period := uint32(2 * n)
		idx := int(absStep % period)
		if idx < n {
			s.step = first + idx
		} else {
			s.step = last - (idx - n)
		}
		s.iteration = absStep / period
	case types.RunModeRandom:
		s.step = first + r.Intn(n)
		s.iteration = absStep / uint32(n)
	case types.RunModeRandomWalk:
		s.randomWalk(first, last, r)
		s.iteration = absStep / uint32(n)
	}
}

// AdvanceFree advances relative to the previous cursor. Used when the track
// runs independently of the global clock.
func (s *SequenceState) AdvanceFree(mode types.RunMode, first, last int, r *rng.Rng) {
	n := last - first + 1
	if n < 1 {
		n = 1
		last = first
	}
	s.prevStep = s.step
	s.advances++

	if s.step < 0 {
		// first advance after reset
		switch mode {
		case types.RunModeBackward:
			s.step = last
		case types.RunModeRandom, types.RunModeRandomWalk:
			s.step = first + r.Intn(n)
		default:
			s.step = first
		}
		s.direction = 1
		return
	}

	switch mode {
	case types.RunModeForward:
		if s.step >= last {
			s.step = first
			s.iteration++
		} else {
			s.step++
		}
	case types.RunModeBackward:
		if s.step <= first {
			s.step = last
			s.iteration++
		} else {
			s.step--
		}
	case types.RunModePingPong:
		if n == 1 {
			s.step = first
			s.iteration++
			return
		}
		if s.direction > 0 {
			if s.step >= last {
				// reverse exactly at the endpoint, no double-play
				s.direction = -1
				s.step = last - 1
				s.iteration++
			} else {
				s.step++
			}
		} else {
			if s.step <= first {
				s.direction = 1
				s.step = first + 1
			} else {
				s.step--
			}
		}
	case types.RunModePingPongRepeat:
		if n == 1 {
			s.step = first
			s.iteration++
			return
		}
		if s.direction > 0 {
			if s.step >= last {
				// endpoint plays twice: flip direction, keep the step
				s.direction = -1
				s.iteration++
			} else {
				s.step++
			}
		} else {
			if s.step <= first {
				s.direction = 1
			} else {
				s.step--
			}
		}
	case types.RunModeRandom:
		s.step = first + r.Intn(n)
		s.iteration = s.advances / uint32(n)
	case types.RunModeRandomWalk:
		s.randomWalk(first, last, r)
		s.iteration = s.advances / uint32(n)
	}

	// clamp in case the range shrank since the last advance
	if s.step < first {
		s.step = first
	}
	if s.step > last {
		s.step = last
	}
}

// randomWalk steps the cursor by one in a random direction, reflecting at
// the range edges.
func (s *SequenceState) randomWalk(first, last int, r *rng.Rng) {
	if last <= first {
		s.step = first
		return
	}
	if s.step < first || s.step > last {
		s.step = first + r.Intn(last-first+1)
		return
	}
	dir := r.Intn(2)*2 - 1
	next := s.step + dir
	if next < first {
		next = first + 1
	}
	if next > last {
		next = last - 1
	}
	s.step = next
}

// rotateStep shifts a cursor position by rotate inside [first, last],
// wrapping at the range edges. rotateStep(rotateStep(s, r), -r) == s.
func rotateStep(step, first, last, rotate int) int {
	n := last - first + 1
	if n <= 0 || step < first || step > last {
		return step
	}
	idx := (step - first + rotate) % n
	if idx < 0 {
		idx += n
	}
	return first + idx
}

// evalStepCondition decides whether a step whose gate already passed may
// fire. Every branch except Off, Pre and NotPre stores its result for the
// Pre conditions to read later.
func evalStepCondition(cond types.Condition, iteration uint32, fill bool, prevCondition *bool) bool {
	switch cond {
	case types.ConditionOff:
		return true
	case types.ConditionFill:
		*prevCondition = fill
		return *prevCondition
	case types.ConditionNotFill:
		*prevCondition = !fill
		return *prevCondition
	case types.ConditionPre:
		return *prevCondition
	case types.ConditionNotPre:
		return !*prevCondition
	case types.ConditionFirst:
		*prevCondition = iteration == 0
		return *prevCondition
	case types.ConditionNotFirst:
		*prevCondition = iteration != 0
		return *prevCondition
	}
	if base, offset := cond.Loop(); base > 0 {
		*prevCondition = iteration%uint32(base) == uint32(offset)
		return *prevCondition
	}
	return true
}
