package resilience

import "context"

// Semaphore is a fixed-capacity counting semaphore with fair (FIFO) ordering,
// implemented as a buffered channel of tokens — acquire order is the order in
// which Acquire was called, matching spec.md §4.11's fairness requirement.
//
// Every caller MUST release the acquired slot on every exit path, including
// cancellation; Acquire returns a release func for exactly that purpose.
type Semaphore struct {
	tokens chan struct{}
}

// NewSemaphore builds a semaphore with the given capacity.
func NewSemaphore(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	s := &Semaphore{tokens: make(chan struct{}, capacity)}
	for i := 0; i < capacity; i++ {
		s.tokens <- struct{}{}
	}
	return s
}

// Acquire blocks until a slot is free or ctx is cancelled. On success it
// returns a release function that must be called exactly once.
func (s *Semaphore) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case <-s.tokens:
		released := false
		return func() {
			if released {
				return
			}
			released = true
			s.tokens <- struct{}{}
		}, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	}
}

// Capacity returns the configured capacity.
func (s *Semaphore) Capacity() int { return cap(s.tokens) }

// Available returns the current number of free slots (best-effort, racy by
// nature — used only for observability, never for correctness decisions).
func (s *Semaphore) Available() int { return len(s.tokens) }
