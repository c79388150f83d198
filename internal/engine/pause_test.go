package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPauseGateOpenByDefault(t *testing.T) {
	g := NewPauseGate()
	if g.Paused() {
		t.Fatal("new gate reports paused")
	}
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait on open gate: %v", err)
	}
}

func TestPauseGateIdempotent(t *testing.T) {
	g := NewPauseGate()

	// Resume on an open gate is a no-op, not a panic.
	g.Resume()

	g.Pause()
	g.Pause()
	if !g.Paused() {
		t.Fatal("gate not paused after Pause")
	}

	g.Resume()
	g.Resume()
	if g.Paused() {
		t.Fatal("gate still paused after Resume")
	}
}

func TestPauseGateWaitUnblocksOnResume(t *testing.T) {
	g := NewPauseGate()
	g.Pause()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait(context.Background())
	}()

	select {
	case err := <-done:
		t.Fatalf("Wait returned while paused: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	g.Resume()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait after Resume: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Resume")
	}
}

func TestPauseGateWaitHonorsContext(t *testing.T) {
	g := NewPauseGate()
	g.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- g.Wait(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock on context cancel")
	}

	// Gate state is unchanged by an abandoned wait.
	if !g.Paused() {
		t.Error("abandoned Wait altered gate state")
	}
}
