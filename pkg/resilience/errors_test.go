package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewTransient_NilErrIsNil(t *testing.T) {
	if err := NewTransient("op", nil); err != nil {
		t.Fatalf("NewTransient(op, nil) = %v, want nil", err)
	}
}

func TestNewPermanent_NilErrIsNil(t *testing.T) {
	if err := NewPermanent("op", nil); err != nil {
		t.Fatalf("NewPermanent(op, nil) = %v, want nil", err)
	}
}

func TestIsTransient(t *testing.T) {
	base := errors.New("connection reset")
	transient := NewTransient("fetch", base)
	permanent := NewPermanent("fetch", base)

	if !IsTransient(transient) {
		t.Error("IsTransient(transient) = false, want true")
	}
	if IsTransient(permanent) {
		t.Error("IsTransient(permanent) = true, want false")
	}
	if IsTransient(base) {
		t.Error("IsTransient(unclassified) = true, want false")
	}
}

func TestIsPermanent(t *testing.T) {
	base := errors.New("invalid schema")
	permanent := NewPermanent("parse", base)
	transient := NewTransient("parse", base)

	if !IsPermanent(permanent) {
		t.Error("IsPermanent(permanent) = false, want true")
	}
	if IsPermanent(transient) {
		t.Error("IsPermanent(transient) = true, want false")
	}
}

func TestIsTransient_UnwrapsThroughFmtErrorf(t *testing.T) {
	transient := NewTransient("fetch", errors.New("timeout"))
	wrapped := fmt.Errorf("calling provider: %w", transient)

	if !IsTransient(wrapped) {
		t.Error("IsTransient should see through fmt.Errorf wrapping via errors.As")
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	base := errors.New("boom")
	err := NewTransient("op", base)
	if !errors.Is(err, base) {
		t.Error("errors.Is should find the wrapped base error")
	}
}
