package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"testing"
)

// gradient returns a w x h image where every pixel is unique.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	return img
}

func TestRotateRightAngles(t *testing.T) {
	const w, h = 5, 3
	src := gradient(w, h)

	tests := []struct {
		name   string
		deg    float64
		size   image.Point
		mapped func(x, y int) (int, int)
	}{
		{"90", 90, image.Pt(h, w), func(x, y int) (int, int) { return y, w - 1 - x }},
		{"180", 180, image.Pt(w, h), func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }},
		{"270", 270, image.Pt(h, w), func(x, y int) (int, int) { return h - 1 - y, x }},
		{"-90 equals 270", -90, image.Pt(h, w), func(x, y int) (int, int) { return h - 1 - y, x }},
		{"450 equals 90", 450, image.Pt(h, w), func(x, y int) (int, int) { return y, w - 1 - x }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := Rotate(src, tt.deg)
			if dst.Bounds().Size() != tt.size {
				t.Fatalf("size = %v, want %v", dst.Bounds().Size(), tt.size)
			}
			for y := range h {
				for x := range w {
					dx, dy := tt.mapped(x, y)
					if got, want := dst.RGBAAt(dx, dy), src.RGBAAt(x, y); got != want {
						t.Fatalf("src(%d,%d) -> dst(%d,%d) = %v, want %v", x, y, dx, dy, got, want)
					}
				}
			}
		})
	}
}

func TestRotateIdentity(t *testing.T) {
	src := gradient(4, 4)
	for _, deg := range []float64{NoRotation, 0, 360, -360, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := Rotate(src, deg); got != src {
			t.Errorf("Rotate(%v) should return the input unchanged", deg)
		}
	}
}

func TestRotateArbitraryExpandsCanvas(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	for i := range src.Pix {
		src.Pix[i] = 255
	}

	dst := Rotate(src, 45)
	// |100 cos45| + |50 sin45| = 106.07
	if dst.Bounds().Dx() != 107 || dst.Bounds().Dy() != 107 {
		t.Fatalf("size = %v, want 107x107", dst.Bounds().Size())
	}
	if c := dst.RGBAAt(dst.Bounds().Dx()/2, dst.Bounds().Dy()/2); c.R != 255 {
		t.Errorf("centre pixel = %v, want white", c)
	}
	if c := dst.RGBAAt(0, 0); c.A != 0 {
		t.Errorf("corner pixel = %v, want untouched", c)
	}
}

func TestDrawLines(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	DrawLines(img, []string{"10.0.0.1:5000", "", "encoder: 30.0 fps"})

	touched := func(r image.Rectangle) bool {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				if img.RGBAAt(x, y) != (color.RGBA{}) {
					return true
				}
			}
		}
		return false
	}

	if !touched(image.Rect(0, 0, 100, 20)) {
		t.Error("first line not drawn")
	}
	if !touched(image.Rect(0, 34, 140, 50)) {
		t.Error("third line not drawn")
	}
	if touched(image.Rect(150, 60, 200, 100)) {
		t.Error("overlay leaked outside the top-left anchor")
	}
}

func TestDrawLinesNoop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	DrawLines(img, nil)
	for _, p := range img.Pix {
		if p != 0 {
			t.Fatal("empty line list drew pixels")
		}
	}
}

func TestEncodeJPEG(t *testing.T) {
	src := gradient(16, 8)

	tests := []struct {
		name    string
		quality int
	}{
		{"explicit", 90},
		{"default for zero", 0},
		{"default for out of range", 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeJPEG(src, tt.quality)
			if err != nil {
				t.Fatalf("EncodeJPEG: %v", err)
			}
			if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
				t.Fatal("missing SOI marker")
			}
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if img.Bounds().Size() != src.Bounds().Size() {
				t.Errorf("decoded size = %v", img.Bounds().Size())
			}
		})
	}
}
