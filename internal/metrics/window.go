package metrics

import "time"

// WindowLength is the fixed FPS measurement interval.
const WindowLength = 5 * time.Second

// Window counts frames over fixed windows. The rate is always frames
// divided by the nominal window length, not by the measured elapsed time.
// A Window is owned by a single goroutine.
type Window struct {
	length time.Duration
	start  time.Time
	frames int
}

// NewWindow starts a WindowLength window at now.
func NewWindow(now time.Time) *Window {
	return NewWindowLength(now, WindowLength)
}

// NewWindowLength starts a window of the given length at now.
func NewWindowLength(now time.Time, length time.Duration) *Window {
	if length <= 0 {
		length = WindowLength
	}
	return &Window{length: length, start: now}
}

// Frame counts one frame in the current window.
func (w *Window) Frame() {
	w.frames++
}

// Roll closes the window if its length has elapsed since it started,
// returning its rate and restarting the count at now.
func (w *Window) Roll(now time.Time) (float64, bool) {
	if now.Sub(w.start) < w.length {
		return 0, false
	}
	fps := float64(w.frames) / w.length.Seconds()
	w.frames = 0
	w.start = now
	return fps, true
}
