package outbox

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register(domain.EventTypeProtocolUploaded, func(context.Context, domain.OutboxEvent) error {
		called = true
		return nil
	})

	h, ok := r.lookup(domain.EventTypeProtocolUploaded)
	if !ok {
		t.Fatal("expected handler to be registered")
	}
	if err := h(context.Background(), domain.OutboxEvent{}); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !called {
		t.Fatal("expected the registered handler to run")
	}
}

func TestRegistry_LookupMissingType(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.lookup(domain.EventType("unknown")); ok {
		t.Fatal("expected lookup of an unregistered type to report ok=false")
	}
}

func TestRegistry_LaterRegisterReplacesHandler(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.EventTypeProtocolUploaded, func(context.Context, domain.OutboxEvent) error { return nil })

	secondRan := false
	r.Register(domain.EventTypeProtocolUploaded, func(context.Context, domain.OutboxEvent) error {
		secondRan = true
		return nil
	})

	h, _ := r.lookup(domain.EventTypeProtocolUploaded)
	h(context.Background(), domain.OutboxEvent{})
	if !secondRan {
		t.Fatal("expected the second Register call to replace the first handler")
	}
}

func TestErrNoHandler_Error(t *testing.T) {
	err := &ErrNoHandler{EventType: domain.EventTypeProtocolUploaded}
	if err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}
