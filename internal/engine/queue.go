package engine

import (
	"github.com/schollz/performer/internal/clock"
	"github.com/schollz/performer/internal/types"
)

// cvPayload is the payload of a scheduled CV target update. Gate queues
// carry a bare bool (the edge level).
type cvPayload struct {
	cv    float32
	slide bool
}

// eventQueue is a small bounded time-ordered queue. Entries are kept sorted
// by tick; pushing an entry with an already-queued tick replaces the
// existing payload so simultaneous edges never duplicate. When full, the
// entry furthest in the future is overwritten.
type eventQueue[T any] struct {
	ticks    [types.QueueCapacity]uint32
	payloads [types.QueueCapacity]T
	size     int
}

func (q *eventQueue[T]) Clear() {
	q.size = 0
}

func (q *eventQueue[T]) Len() int {
	return q.size
}

// PushReplace inserts payload at tick, replacing any entry with the same
// tick. Later pushes win.
func (q *eventQueue[T]) PushReplace(tick uint32, payload T) {
	// identical tick: overwrite in place
	for i := 0; i < q.size; i++ {
		if q.ticks[i] == tick {
			q.payloads[i] = payload
			return
		}
	}

	if q.size == types.QueueCapacity {
		// full: drop the furthest entry to make room, unless the new one
		// is even further out
		if clock.TickReached(tick, q.ticks[q.size-1]) {
			q.ticks[q.size-1] = tick
			q.payloads[q.size-1] = payload
			q.sortLast()
			return
		}
		q.size--
	}

	q.ticks[q.size] = tick
	q.payloads[q.size] = payload
	q.size++
	q.sortLast()
}

// sortLast bubbles the freshly appended entry into sorted position.
func (q *eventQueue[T]) sortLast() {
	for i := q.size - 1; i > 0; i-- {
		if clock.TickReached(q.ticks[i-1], q.ticks[i]) && q.ticks[i-1] != q.ticks[i] {
			q.ticks[i-1], q.ticks[i] = q.ticks[i], q.ticks[i-1]
			q.payloads[i-1], q.payloads[i] = q.payloads[i], q.payloads[i-1]
		} else {
			break
		}
	}
}

// PopDue removes and returns the front entry if its tick is due at now.
func (q *eventQueue[T]) PopDue(now uint32) (T, bool) {
	var zero T
	if q.size == 0 || !clock.TickReached(now, q.ticks[0]) {
		return zero, false
	}
	payload := q.payloads[0]
	copy(q.ticks[:], q.ticks[1:q.size])
	copy(q.payloads[:], q.payloads[1:q.size])
	q.size--
	return payload, true
}

// PeekTick returns the front entry's tick without removing it.
func (q *eventQueue[T]) PeekTick() (uint32, bool) {
	if q.size == 0 {
		return 0, false
	}
	return q.ticks[0], true
}
