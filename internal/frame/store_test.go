package frame

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestReadBeforeWrite(t *testing.T) {
	s := NewStore()
	if _, err := s.Read(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Read() error = %v, want ErrNotReady", err)
	}
	if s.Ready() {
		t.Error("Ready() = true on empty store")
	}
	if s.Age() != 0 {
		t.Error("Age() should be zero on empty store")
	}
}

func TestReadReturnsIndependentCopy(t *testing.T) {
	s := NewStore()
	red := color.RGBA{R: 255, A: 255}
	s.Write(solid(4, 3, red))

	first, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if first.Bounds() != image.Rect(0, 0, 4, 3) {
		t.Fatalf("bounds = %v", first.Bounds())
	}
	if got := first.RGBAAt(2, 1); got != red {
		t.Fatalf("pixel = %v, want %v", got, red)
	}

	first.SetRGBA(2, 1, color.RGBA{B: 255, A: 255})

	second, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := second.RGBAAt(2, 1); got != red {
		t.Errorf("mutating a read copy leaked into the store: %v", got)
	}
}

func TestWriteCopiesSource(t *testing.T) {
	s := NewStore()
	src := solid(2, 2, color.RGBA{G: 255, A: 255})
	s.Write(src)

	src.SetRGBA(0, 0, color.RGBA{A: 255})

	got, _ := s.Read()
	if got.RGBAAt(0, 0).G != 255 {
		t.Error("producer mutation after Write leaked into the store")
	}
}

func TestWriteNormalizesOrigin(t *testing.T) {
	s := NewStore()
	src := image.NewGray(image.Rect(10, 10, 13, 12))
	src.SetGray(10, 10, color.Gray{Y: 200})
	s.Write(src)

	got, _ := s.Read()
	if got.Bounds() != image.Rect(0, 0, 3, 2) {
		t.Fatalf("bounds = %v, want origin-based 3x2", got.Bounds())
	}
	if got.RGBAAt(0, 0).R != 200 {
		t.Errorf("pixel = %v", got.RGBAAt(0, 0))
	}
}

func TestSeqAndNilWrite(t *testing.T) {
	s := NewStore()
	s.Write(nil)
	if s.Seq() != 0 || s.Ready() {
		t.Fatal("nil write should be ignored")
	}
	s.Write(solid(1, 1, color.White))
	s.Write(solid(1, 1, color.Black))
	if s.Seq() != 2 {
		t.Errorf("Seq() = %d, want 2", s.Seq())
	}
}

func TestConcurrentReadersNeverSeeTornFrames(t *testing.T) {
	s := NewStore()
	colors := []color.RGBA{{R: 255, A: 255}, {G: 255, A: 255}, {B: 255, A: 255}}
	s.Write(solid(32, 32, colors[0]))

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				s.Write(solid(32, 32, colors[i%len(colors)]))
			}
		}
	}()

	var readers sync.WaitGroup
	errs := make(chan string, 4)
	for range 4 {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for range 200 {
				img, err := s.Read()
				if err != nil {
					errs <- err.Error()
					return
				}
				if img.RGBAAt(31, 31) != img.RGBAAt(0, 0) {
					errs <- "torn frame"
					return
				}
				img.SetRGBA(0, 0, color.RGBA{})
			}
		}()
	}

	readers.Wait()
	close(stop)
	<-writerDone
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}
