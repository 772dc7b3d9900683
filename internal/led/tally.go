package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/camstream/internal/events"
)

// Tally follows encoder gate events: the LED is solid while the gate is
// open and blinks while it is closed.
type Tally struct {
	ctrl   Controller
	bus    *events.Bus
	logger *slog.Logger

	mu          sync.Mutex
	pattern     string
	unsubscribe func()
}

// NewTally creates a tally for ctrl. Call Start to begin following the bus.
func NewTally(ctrl Controller, bus *events.Bus, logger *slog.Logger) *Tally {
	return &Tally{ctrl: ctrl, bus: bus, logger: logger}
}

// Start shows the idle pattern and subscribes to gate changes.
func (t *Tally) Start() {
	t.set(PatternBlink)
	unsubscribe := events.Subscribe(t.bus, func(e events.GateChangedEvent) {
		if e.Open {
			t.set(PatternSolid)
		} else {
			t.set(PatternBlink)
		}
	})

	t.mu.Lock()
	t.unsubscribe = unsubscribe
	t.mu.Unlock()
	t.logger.Info("Tally LED started", "led", t.ctrl.Name())
}

// Stop unsubscribes and switches the LED off.
func (t *Tally) Stop() {
	t.mu.Lock()
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	t.set(PatternOff)
}

// Pattern returns the last pattern written.
func (t *Tally) Pattern() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pattern
}

func (t *Tally) set(pattern string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pattern == t.pattern {
		return
	}
	if err := t.ctrl.Set(pattern); err != nil {
		t.logger.Warn("Failed to set tally LED", "led", t.ctrl.Name(), "pattern", pattern, "error", err)
		return
	}
	t.logger.Debug("Tally LED changed", "led", t.ctrl.Name(), "pattern", pattern)
	t.pattern = pattern
}
