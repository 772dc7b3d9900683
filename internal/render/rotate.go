// Package render post-processes frames before they are sent: rotation,
// text overlay and JPEG encoding.
package render

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// NoRotation is the rotate value meaning "leave the frame as is".
const NoRotation = -1

// Rotate turns img counter-clockwise by deg degrees and returns the result.
// The canvas grows to fit the rotated frame; uncovered corners are black.
// Multiples of 90 are exact pixel remaps. deg == NoRotation or any multiple
// of 360 returns img itself, and so does a NaN or infinite deg.
func Rotate(img *image.RGBA, deg float64) *image.RGBA {
	if deg == NoRotation || math.IsNaN(deg) || math.IsInf(deg, 0) {
		return img
	}
	norm := math.Mod(deg, 360)
	if norm < 0 {
		norm += 360
	}

	switch norm {
	case 0:
		return img
	case 90:
		return rotate90(img)
	case 180:
		return rotate180(img)
	case 270:
		return rotate270(img)
	}
	return rotateArbitrary(img, norm)
}

func rotate90(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := range h {
		for x := range w {
			dst.SetRGBA(y, w-1-x, src.RGBAAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func rotate180(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			dst.SetRGBA(w-1-x, h-1-y, src.RGBAAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func rotate270(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := range h {
		for x := range w {
			dst.SetRGBA(h-1-y, x, src.RGBAAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func rotateArbitrary(src *image.RGBA, deg float64) *image.RGBA {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)

	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	dw := int(math.Ceil(math.Abs(w*cos) + math.Abs(h*sin)))
	dh := int(math.Ceil(math.Abs(w*sin) + math.Abs(h*cos)))
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	// Source centre maps onto destination centre. With y pointing down,
	// x' = cos*x + sin*y and y' = -sin*x + cos*y turns the picture CCW.
	cxs := float64(b.Min.X) + w/2
	cys := float64(b.Min.Y) + h/2
	cxd := float64(dw) / 2
	cyd := float64(dh) / 2
	s2d := f64.Aff3{
		cos, sin, cxd - (cos*cxs + sin*cys),
		-sin, cos, cyd - (-sin*cxs + cos*cys),
	}
	xdraw.BiLinear.Transform(dst, s2d, src, b, xdraw.Src, nil)
	return dst
}
