package render

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	overlayMargin  = 4
	overlayPadding = 2
)

var (
	overlayText       = image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	overlayBackground = image.NewUniform(color.RGBA{A: 160})
)

// DrawLines writes lines top-left on img, each over a dark box sized from
// the font ascent and descent. Empty lines still take up a row.
func DrawLines(img draw.Image, lines []string) {
	if len(lines) == 0 {
		return
	}
	face := basicfont.Face7x13
	m := face.Metrics()
	ascent := m.Ascent.Ceil()
	descent := m.Descent.Ceil()
	lineHeight := ascent + descent + overlayPadding

	d := &font.Drawer{Dst: img, Src: overlayText, Face: face}
	origin := img.Bounds().Min
	baseline := origin.Y + overlayMargin + ascent

	for _, line := range lines {
		if line != "" {
			width := d.MeasureString(line).Ceil()
			box := image.Rect(
				origin.X+overlayMargin-overlayPadding, baseline-ascent-overlayPadding/2,
				origin.X+overlayMargin+width+overlayPadding, baseline+descent+overlayPadding/2,
			)
			draw.Draw(img, box, overlayBackground, image.Point{}, draw.Over)

			d.Dot = fixed.P(origin.X+overlayMargin, baseline)
			d.DrawString(line)
		}
		baseline += lineHeight
	}
}
