package notifier

import "sync/atomic"

// IDSequence hands out process-wide notification ids.
// Params: none.
// Returns: strictly increasing ids that are never reused.
type IDSequence interface {
	// Next returns the next id and advances the sequence.
	Next() uint64
	// Peek returns the id Next would return without advancing.
	Peek() uint64
	// Restore moves the sequence forward to next; it never moves backwards.
	Restore(next uint64)
}

// Sequence is the atomic IDSequence shared by every notifier of one process.
type Sequence struct {
	next atomic.Uint64
}

// NewSequence creates sequence starting at 1.
// Params: none.
// Returns: initialized sequence.
func NewSequence() *Sequence {
	return NewSequenceFrom(1)
}

// NewSequenceFrom creates sequence starting at given id.
// Params: first id to hand out (0 is promoted to 1).
// Returns: initialized sequence.
func NewSequenceFrom(start uint64) *Sequence {
	if start == 0 {
		start = 1
	}
	sequence := &Sequence{}
	sequence.next.Store(start)
	return sequence
}

// Next returns current id and advances sequence.
func (s *Sequence) Next() uint64 {
	return s.next.Add(1) - 1
}

// Peek returns upcoming id.
func (s *Sequence) Peek() uint64 {
	return s.next.Load()
}

// Restore advances sequence to next when next is ahead.
// Params: id restored from retention.
// Returns: none.
func (s *Sequence) Restore(next uint64) {
	for {
		current := s.next.Load()
		if next <= current {
			return
		}
		if s.next.CompareAndSwap(current, next) {
			return
		}
	}
}
