package transport

import (
	"context"
	"testing"
)

func TestInFlightCancel(t *testing.T) {
	reg := NewInFlightRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	reg.Register("qry_1", cancel)

	if !reg.Cancel("qry_1") {
		t.Fatal("expected Cancel to find qry_1")
	}
	select {
	case <-ctx.Done():
	default:
		t.Error("context not cancelled")
	}

	// Second cancel misses: the entry is gone.
	if reg.Cancel("qry_1") {
		t.Error("expected second Cancel to miss")
	}
}

func TestInFlightRemoveWithoutCancel(t *testing.T) {
	reg := NewInFlightRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg.Register("qry_2", cancel)
	reg.Remove("qry_2")

	if reg.Cancel("qry_2") {
		t.Error("removed entry must not be cancellable")
	}
	select {
	case <-ctx.Done():
		t.Error("Remove must not cancel the context")
	default:
	}
}

func TestInFlightCancelUnknown(t *testing.T) {
	reg := NewInFlightRegistry()
	if reg.Cancel("qry_missing") {
		t.Error("expected Cancel to return false for unknown ID")
	}
}
