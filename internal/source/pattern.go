package source

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/smazurov/camstream/internal/metrics"
	"github.com/smazurov/camstream/internal/render"
)

var colorBars = []color.RGBA{
	{R: 192, G: 192, B: 192, A: 255},
	{R: 192, G: 192, A: 255},
	{G: 192, B: 192, A: 255},
	{G: 192, A: 255},
	{R: 192, B: 192, A: 255},
	{R: 192, A: 255},
	{B: 192, A: 255},
}

// Pattern generates SMPTE-style colour bars with a sweeping white bar and
// a frame counter. It stands in for a camera during development and tests.
type Pattern struct {
	cfg Config
	seq uint64
	now func() time.Time
}

// NewPattern creates a pattern source. cfg.Sink and cfg.Gate must be set.
func NewPattern(cfg Config) *Pattern {
	cfg.applyDefaults()
	return &Pattern{cfg: cfg, now: time.Now}
}

// Name implements Source.
func (p *Pattern) Name() string {
	return fmt.Sprintf("pattern %dx%d@%d", p.cfg.Width, p.cfg.Height, p.cfg.FPS)
}

// Run produces frames at cfg.FPS while the gate is open.
func (p *Pattern) Run(ctx context.Context) error {
	log := p.cfg.Logger
	interval := time.Second / time.Duration(p.cfg.FPS)

	for {
		if !waitGate(ctx, p.cfg.Gate) {
			return nil
		}
		log.Info("Frame source resumed", "source", p.Name())

		if err := p.produce(ctx, interval); err != nil {
			return nil
		}
		log.Info("Frame source suspended", "source", p.Name())
	}
}

// produce ticks until the gate closes or ctx ends.
func (p *Pattern) produce(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	window := metrics.NewWindow(p.now())
	for {
		p.cfg.Sink.Write(p.Frame())
		window.Frame()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if !frameDone(p.cfg, window, p.now()) {
			return nil
		}
	}
}

// Frame renders the next pattern frame.
func (p *Pattern) Frame() *image.RGBA {
	w, h := p.cfg.Width, p.cfg.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	barWidth := (w + len(colorBars) - 1) / len(colorBars)
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, colorBars[min(x/barWidth, len(colorBars)-1)])
		}
	}

	sweep := int(p.seq % uint64(w))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for y := range h {
		for x := sweep; x < min(sweep+4, w); x++ {
			img.SetRGBA(x, y, white)
		}
	}

	p.seq++
	render.DrawLines(img, []string{fmt.Sprintf("frame %d", p.seq)})
	return img
}
