// Package source produces frames into a frame.Store while the encoder gate
// is open.
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/url"
	"time"

	"github.com/smazurov/camstream/internal/gate"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/metrics"
)

// ErrUnsupported is returned by New for a source URL it cannot handle.
var ErrUnsupported = errors.New("source: unsupported source")

// Source fills a frame sink until ctx is cancelled.
type Source interface {
	Name() string
	Run(ctx context.Context) error
}

// Sink receives produced frames. *frame.Store implements it.
type Sink interface {
	Write(img image.Image)
}

// RateRecorder receives the producer's frame rate. *metrics.Tracker implements it.
type RateRecorder interface {
	SetEncodeFPS(fps float64)
}

// Config is shared by every source.
type Config struct {
	URL    string
	Width  int
	Height int
	FPS    int

	Sink   Sink
	Gate   *gate.Gate
	Rate   RateRecorder
	Logger *slog.Logger

	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 480
	}
	if c.FPS <= 0 {
		c.FPS = 15
	}
	if c.Logger == nil {
		c.Logger = logging.GetLogger("source")
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = 30 * time.Second
	}
}

// New picks a source from cfg.URL: "" or "pattern:" for the built-in test
// pattern, http(s) for an upstream MJPEG feed.
func New(cfg Config) (Source, error) {
	if cfg.Sink == nil || cfg.Gate == nil {
		return nil, errors.New("source: sink and gate are required")
	}
	cfg.applyDefaults()

	if cfg.URL == "" {
		return NewPattern(cfg), nil
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	switch u.Scheme {
	case "pattern":
		return NewPattern(cfg), nil
	case "http", "https":
		return NewMJPEG(cfg), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, u.Scheme)
}

// backoff returns retryDelay * 2^(attempt-1), capped at maxDelay.
func backoff(attempt int, retryDelay, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		return maxDelay
	}
	delay := retryDelay * time.Duration(1<<uint(attempt-1))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// active reports whether the producer should keep running after a frame.
// After ForceUnlock the gate stays released so shutdown is never blocked.
func active(g *gate.Gate) bool {
	return g.IsOpen() || g.Forced()
}

// frameDone is called after each produced frame has been counted in w. It
// reports false once the gate has closed. The encode rate is only published
// while the gate is still open, so a tracker reset by the closing gate stays
// at zero.
func frameDone(cfg Config, w *metrics.Window, now time.Time) bool {
	if !active(cfg.Gate) {
		return false
	}
	if fps, ok := w.Roll(now); ok && cfg.Rate != nil {
		cfg.Rate.SetEncodeFPS(fps)
	}
	return true
}

// waitGate parks until a viewer appears. A cancelled ctx is not an error
// for the caller; it just means stop.
func waitGate(ctx context.Context, g *gate.Gate) bool {
	return g.Wait(ctx) == nil
}
