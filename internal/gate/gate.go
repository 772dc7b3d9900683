// Package gate couples frame production to viewer demand.
//
// A Gate counts active sessions. The first session opens it, which releases
// a producer blocked in Wait; the last session closing shuts it again and
// runs the idle hooks (statistics reset) before DropSession returns.
package gate

import (
	"context"
	"sync"
)

// Gate is safe for concurrent use. The open signal is a channel that is
// closed on the 0->1 transition, so everything done before AddSession
// happens-before a producer returning from Wait.
type Gate struct {
	mu       sync.Mutex
	sessions int
	release  chan struct{}
	forced   bool

	idleHooks  []func()
	countHooks []func(sessions int)
	observer   func(open bool, sessions int)
}

// Option configures a Gate.
type Option func(*Gate)

// WithIdleHook runs fn on every 1->0 transition while the gate lock is
// held. fn must not call back into the Gate.
func WithIdleHook(fn func()) Option {
	return func(g *Gate) {
		g.idleHooks = append(g.idleHooks, fn)
	}
}

// WithCountHook runs fn with the new count after every AddSession and
// DropSession that changes it, while the gate lock is held. Hooks therefore
// see counts in the order they happened. fn must not call back into the Gate.
func WithCountHook(fn func(sessions int)) Option {
	return func(g *Gate) {
		g.countHooks = append(g.countHooks, fn)
	}
}

// WithObserver is called after every open/close transition, outside the lock.
func WithObserver(fn func(open bool, sessions int)) Option {
	return func(g *Gate) {
		g.observer = fn
	}
}

// New returns a closed gate with no sessions.
func New(opts ...Option) *Gate {
	g := &Gate{release: make(chan struct{})}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddSession registers a session and returns the new count.
func (g *Gate) AddSession() int {
	g.mu.Lock()
	g.sessions++
	n := g.sessions
	opened := n == 1
	if opened && !g.forced {
		close(g.release)
	}
	g.countChanged(n)
	g.mu.Unlock()

	if opened {
		g.notify(true, n)
	}
	return n
}

// DropSession unregisters a session and returns the new count. The count
// never goes below zero.
func (g *Gate) DropSession() int {
	g.mu.Lock()
	if g.sessions == 0 {
		g.mu.Unlock()
		return 0
	}
	g.sessions--
	n := g.sessions
	closed := n == 0
	if closed {
		if !g.forced {
			g.release = make(chan struct{})
		}
		for _, hook := range g.idleHooks {
			hook()
		}
	}
	g.countChanged(n)
	g.mu.Unlock()

	if closed {
		g.notify(false, 0)
	}
	return n
}

// Sessions returns the number of active sessions.
func (g *Gate) Sessions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessions
}

// IsOpen reports whether at least one session is active.
func (g *Gate) IsOpen() bool {
	return g.Sessions() > 0
}

// Wait blocks until the gate opens, ForceUnlock is called, or ctx ends.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	release := g.release
	g.mu.Unlock()

	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ForceUnlock permanently releases every current and future Wait call.
// Used on shutdown so a producer is never left parked on a gate nobody
// will open again. Session counting keeps working afterwards.
func (g *Gate) ForceUnlock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.forced {
		return
	}
	g.forced = true
	if g.sessions == 0 {
		close(g.release)
	}
}

// Forced reports whether ForceUnlock has been called.
func (g *Gate) Forced() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.forced
}

func (g *Gate) countChanged(n int) {
	for _, hook := range g.countHooks {
		hook(n)
	}
}

func (g *Gate) notify(open bool, sessions int) {
	if g.observer != nil {
		g.observer(open, sessions)
	}
}
