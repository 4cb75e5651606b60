package pipeline

import (
	"errors"
	"testing"
)

func TestNewFatal_NilIsNil(t *testing.T) {
	if err := NewFatal("ingest", nil); err != nil {
		t.Fatalf("NewFatal(ingest, nil) = %v, want nil", err)
	}
}

func TestNewFatal_WrapsAndUnwraps(t *testing.T) {
	base := errors.New("disk full")
	err := NewFatal("ingest", base)
	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to find the wrapped base error")
	}
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatal("expected errors.As to find a *FatalError")
	}
	if fe.Node != "ingest" {
		t.Fatalf("Node = %q, want ingest", fe.Node)
	}
}

func TestNewPartial_NilIsNil(t *testing.T) {
	if err := NewPartial("entity-1", nil); err != nil {
		t.Fatalf("NewPartial(entity-1, nil) = %v, want nil", err)
	}
}

func TestNewPartial_WrapsAndUnwraps(t *testing.T) {
	base := errors.New("no match found")
	err := NewPartial("entity-1", base)
	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to find the wrapped base error")
	}
	var pf *PartialFailure
	if !errors.As(err, &pf) {
		t.Fatal("expected errors.As to find a *PartialFailure")
	}
	if pf.Item != "entity-1" {
		t.Fatalf("Item = %q, want entity-1", pf.Item)
	}
}
