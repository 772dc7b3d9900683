// Package frame holds the most recent decoded camera frame shared between
// the producer and every HTTP reader.
package frame

import (
	"errors"
	"image"
	"image/draw"
	"sync/atomic"
	"time"
)

// ErrNotReady is returned by Read before the first frame has been written.
var ErrNotReady = errors.New("frame: no frame produced yet")

type snapshot struct {
	img     *image.RGBA
	written time.Time
	seq     uint64
}

// Store keeps the current frame. Writers publish a fully built private
// image through an atomic pointer swap, so readers never see a torn frame,
// and the published image is never mutated afterwards.
type Store struct {
	current atomic.Pointer[snapshot]
	seq     atomic.Uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Write replaces the current frame with a copy of img.
func (s *Store) Write(img image.Image) {
	if img == nil {
		return
	}
	s.current.Store(&snapshot{
		img:     toRGBA(img),
		written: time.Now(),
		seq:     s.seq.Add(1),
	})
}

// Read returns a deep copy of the current frame that the caller may mutate
// freely. It never blocks.
func (s *Store) Read() (*image.RGBA, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	return clone(snap.img), nil
}

// Ready reports whether at least one frame has been written.
func (s *Store) Ready() bool {
	return s.current.Load() != nil
}

// Seq returns the number of frames written so far.
func (s *Store) Seq() uint64 {
	return s.seq.Load()
}

// Age returns how long ago the current frame was written, or zero when empty.
func (s *Store) Age() time.Duration {
	snap := s.current.Load()
	if snap == nil {
		return 0
	}
	return time.Since(snap.written)
}

func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func clone(src *image.RGBA) *image.RGBA {
	dst := &image.RGBA{
		Pix:    make([]uint8, len(src.Pix)),
		Stride: src.Stride,
		Rect:   src.Rect,
	}
	copy(dst.Pix, src.Pix)
	return dst
}
