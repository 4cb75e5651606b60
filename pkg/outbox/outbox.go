// Package outbox implements the durable outbox dispatcher: a poll loop that
// claims pending events with SELECT ... FOR UPDATE SKIP LOCKED, hands each to
// a registered Handler, and retries transient failures with exponential
// backoff and jitter before dead-lettering (SPEC_FULL.md §4.1).
package outbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

// Handler processes one outbox event's payload. A TransientError return
// schedules a retry, and so does any unclassified error; a PermanentError
// sends the event straight to dead_letter.
type Handler func(ctx context.Context, ev domain.OutboxEvent) error

// Registry maps event types to their Handler, grounded on the teacher's
// pkg/config mcp-server registry: a mutex-guarded map with defensive reads.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.EventType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.EventType]Handler)}
}

// Register binds a Handler to an event type. Later calls with the same type
// replace the previous handler.
func (r *Registry) Register(eventType domain.EventType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = h
}

func (r *Registry) lookup(eventType domain.EventType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[eventType]
	return h, ok
}

// ErrNoHandler describes an event whose type has no registered Handler. The
// dispatcher does not return it: it dead-letters such an event directly.
type ErrNoHandler struct {
	EventType domain.EventType
}

func (e *ErrNoHandler) Error() string {
	return fmt.Sprintf("outbox: no handler registered for event type %q", e.EventType)
}
