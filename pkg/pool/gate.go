package pool

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Gate.Wait once the gate is stopped.
var ErrStopped = errors.New("batch: stopped")

// State is the scheduling state of a Gate.
type State int

const (
	Running State = iota
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Gate decides whether new work may start. The zero value is a running gate.
type Gate struct {
	mu      sync.Mutex
	state   State
	changed chan struct{}
}

// NewGate creates a running gate.
func NewGate() *Gate {
	return &Gate{changed: make(chan struct{})}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pause stops new work from starting. It has no effect on a stopped gate.
func (g *Gate) Pause() bool {
	return g.transition(Running, Paused)
}

// Resume lets new work start again after Pause.
func (g *Gate) Resume() bool {
	return g.transition(Paused, Running)
}

// Stop permanently refuses new work until Reset.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setLocked(Stopped)
}

// Reset returns the gate to Running from any state.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setLocked(Running)
}

// Wait blocks while the gate is paused. It returns nil when running,
// ErrStopped when stopped, or the context error.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		state := g.state
		ch := g.changedLocked()
		g.mu.Unlock()

		switch state {
		case Running:
			return nil
		case Stopped:
			return ErrStopped
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (g *Gate) transition(from, to State) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != from {
		return false
	}
	g.setLocked(to)
	return true
}

func (g *Gate) setLocked(s State) {
	if g.state == s {
		return
	}
	g.state = s
	close(g.changedLocked())
	g.changed = make(chan struct{})
}

func (g *Gate) changedLocked() chan struct{} {
	if g.changed == nil {
		g.changed = make(chan struct{})
	}
	return g.changed
}
