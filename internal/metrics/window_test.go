package metrics

import (
	"math"
	"testing"
	"time"
)

func TestWindowRoll(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		frames  int
		elapsed time.Duration
		want    float64
		rolled  bool
	}{
		{"before window ends", 40, 4 * time.Second, 0, false},
		{"exact window", 50, 5 * time.Second, 10, true},
		{"late window still divides by five", 50, 7 * time.Second, 10, true},
		{"no frames", 0, 5 * time.Second, 0, true},
		{"fractional", 12, 5*time.Second + time.Millisecond, 2.4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow(start)
			for range tt.frames {
				w.Frame()
			}
			got, rolled := w.Roll(start.Add(tt.elapsed))
			if rolled != tt.rolled {
				t.Fatalf("rolled = %v, want %v", rolled, tt.rolled)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("fps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWindowRestartsAfterRoll(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := NewWindow(start)
	for range 25 {
		w.Frame()
	}
	if _, ok := w.Roll(start.Add(6 * time.Second)); !ok {
		t.Fatal("first window did not roll")
	}

	w.Frame()
	if _, ok := w.Roll(start.Add(10 * time.Second)); ok {
		t.Fatal("second window measured from the first window's start")
	}
	fps, ok := w.Roll(start.Add(11 * time.Second))
	if !ok || fps != 0.2 {
		t.Errorf("second window = %v, %v; want 0.2, true", fps, ok)
	}
}

func TestWindowLength(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := NewWindowLength(start, 100*time.Millisecond)
	for range 3 {
		w.Frame()
	}
	fps, ok := w.Roll(start.Add(150 * time.Millisecond))
	if !ok || math.Abs(fps-30) > 1e-9 {
		t.Errorf("Roll = %v, %v; want 30, true", fps, ok)
	}

	if NewWindowLength(start, 0).length != WindowLength {
		t.Error("zero length should fall back to WindowLength")
	}
}
