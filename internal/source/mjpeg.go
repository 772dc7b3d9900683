package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mattn/go-mjpeg"

	"github.com/smazurov/camstream/internal/metrics"
	"github.com/smazurov/camstream/internal/version"
)

// errIdle ends a pull when the last viewer left.
var errIdle = errors.New("gate closed")

// MJPEG pulls frames from an upstream multipart/x-mixed-replace feed, such
// as an IP camera or another camstream instance. The upstream connection is
// only held while the gate is open.
type MJPEG struct {
	cfg    Config
	client *http.Client
}

// NewMJPEG creates an upstream MJPEG source for cfg.URL.
func NewMJPEG(cfg Config) *MJPEG {
	cfg.applyDefaults()
	return &MJPEG{cfg: cfg, client: &http.Client{}}
}

// Name implements Source.
func (m *MJPEG) Name() string {
	return "mjpeg " + m.cfg.URL
}

// Run connects whenever the gate opens and reconnects with exponential
// backoff on failure.
func (m *MJPEG) Run(ctx context.Context) error {
	log := m.cfg.Logger
	attempt := 0

	for {
		if !waitGate(ctx, m.cfg.Gate) {
			return nil
		}

		frames, err := m.pull(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, errIdle):
			attempt = 0
			log.Info("Upstream released, no viewers", "source", m.Name())
			continue
		}

		if frames > 0 {
			attempt = 0
		}
		attempt++
		delay := backoff(attempt, m.cfg.RetryDelay, m.cfg.MaxRetryDelay)
		log.Warn("Upstream failed, retrying", "source", m.Name(), "error", err, "attempt", attempt, "delay", delay)
		if sleep(ctx, delay) != nil {
			return nil
		}
	}
}

// pull streams frames until an error, ctx end or the gate closing. It
// returns the number of frames decoded.
func (m *MJPEG) pull(ctx context.Context) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("upstream status %s", resp.Status)
	}
	dec, err := mjpeg.NewDecoderFromResponse(resp)
	if err != nil {
		return 0, fmt.Errorf("open decoder: %w", err)
	}
	m.cfg.Logger.Info("Upstream connected", "source", m.Name())

	frames := 0
	window := metrics.NewWindow(time.Now())
	for {
		img, err := dec.Decode()
		if err != nil {
			return frames, fmt.Errorf("decode frame: %w", err)
		}
		m.cfg.Sink.Write(img)
		frames++

		window.Frame()
		if !frameDone(m.cfg, window, time.Now()) {
			return frames, errIdle
		}
	}
}
