package engine

import (
	"context"
	"sync"
)

// PauseGate blocks step boundaries while a task is paused. Wait parks on a
// channel instead of polling, and a step never starts while the gate is
// closed. Pause and Resume may be called from any goroutine.
type PauseGate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{} // created on Pause, closed on Resume
}

// NewPauseGate returns an open gate.
func NewPauseGate() *PauseGate {
	return &PauseGate{}
}

// Pause closes the gate. Idempotent.
func (g *PauseGate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	g.resume = make(chan struct{})
}

// Resume opens the gate and releases every waiter. Idempotent.
func (g *PauseGate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	close(g.resume)
}

// Paused reports the current gate state.
func (g *PauseGate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks until the gate is open or the context ends. It re-checks after
// waking in case the gate was closed again before the waiter ran.
func (g *PauseGate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if !g.paused {
			g.mu.Unlock()
			return nil
		}
		ch := g.resume
		g.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
