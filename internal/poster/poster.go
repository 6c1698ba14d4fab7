// Package poster paints single frames of a sequenced layout as PNG stills,
// so a timeline can be checked without running ffmpeg.
package poster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"path"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/stitchpreview/internal/sequencer"
	"github.com/ivlev/stitchpreview/internal/system"
)

var (
	colorBackground = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorPanel      = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorBorder     = color.RGBA{0x33, 0x33, 0x33, 0xff}
	colorTitle      = color.RGBA{0x00, 0xec, 0xff, 0xff}
	colorLabel      = color.RGBA{0x88, 0x88, 0x88, 0xff}
	colorHeading    = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorViewport   = color.RGBA{0x00, 0x00, 0x00, 0xff}
	colorCard       = color.RGBA{0x1a, 0x1a, 0x1a, 0xff}
)

const (
	borderWidth = 2
	progressH   = 6
)

var face = basicfont.Face7x13

// Render paints frame of the layout. The canvas comes from the shared image
// pool; hand it back with Release when done.
func Render(layout sequencer.Layout, frame int) *image.RGBA {
	canvas := system.GetImage(image.Rect(0, 0, layout.Width, layout.Height))
	fill(canvas, canvas.Bounds(), colorBackground)

	state := layout.Frame(frame)
	drawText(canvas, state.Heading, colorHeading, image.Rect(20, 20, layout.Width-20, 80), 3, false)

	if state.Placeholder {
		drawText(canvas, state.PlaceholderText, colorLabel, canvas.Bounds(), 3, true)
		return canvas
	}

	for i, col := range layout.Columns {
		cf := state.Columns[i]
		panel := rect(col.Panel)
		fill(canvas, panel, colorPanel)
		stroke(canvas, panel, colorBorder, borderWidth)

		drawText(canvas, col.Title, colorTitle, rect(col.TitleBox), 2, true)

		view := rect(col.Viewport)
		fill(canvas, view, colorViewport)
		if cf.Active {
			paintScene(canvas, view, cf, layout.SceneDurationFrames)
		}

		drawText(canvas, col.CountLabel, colorLabel, rect(col.LabelBox), 2, true)
	}
	return canvas
}

// Release returns a canvas from Render to the pool.
func Release(img *image.RGBA) {
	system.PutImage(img)
}

// Encode renders frame as PNG into w.
func Encode(w io.Writer, layout sequencer.Layout, frame int) error {
	img := Render(layout, frame)
	defer Release(img)
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode poster: %w", err)
	}
	return nil
}

// paintScene stands in for the playing clip: a card naming the file and a
// progress bar for the position inside the scene.
func paintScene(dst *image.RGBA, view image.Rectangle, cf sequencer.ColumnFrame, d int) {
	card := view.Inset(12)
	fill(dst, card, colorCard)

	top := image.Rect(card.Min.X, card.Min.Y, card.Max.X, card.Min.Y+card.Dy()/2)
	bottom := image.Rect(card.Min.X, top.Max.Y, card.Max.X, card.Max.Y-progressH)
	drawText(dst, fmt.Sprintf("Scene %d of %d", cf.Scene.Index+1, cf.Count), colorHeading, top, 2, true)
	drawText(dst, path.Base(cf.Scene.Scene.VideoFile), colorLabel, bottom, 1, true)

	if d <= 0 {
		return
	}
	bar := image.Rect(view.Min.X, view.Max.Y-progressH, view.Max.X, view.Max.Y)
	filled := bar.Min.X + bar.Dx()*(cf.LocalFrame+1)/d
	fill(dst, image.Rect(bar.Min.X, bar.Min.Y, min(filled, bar.Max.X), bar.Max.Y), colorTitle)
}

func rect(r sequencer.Rect) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

func fill(dst *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func stroke(dst *image.RGBA, r image.Rectangle, c color.Color, w int) {
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w), c)
	fill(dst, image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y), c)
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y), c)
	fill(dst, image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// drawText renders s with the bitmap face, upscaled by an integer factor,
// either centered in box or anchored at its top-left corner. Text that does
// not fit is truncated with an ellipsis.
func drawText(dst *image.RGBA, s string, c color.Color, box image.Rectangle, scale int, center bool) {
	s = fitText(s, box.Dx()/scale)
	if s == "" {
		return
	}
	w := font.MeasureString(face, s).Ceil()
	h := face.Height

	glyphs := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(s)

	x, y := box.Min.X, box.Min.Y
	if center {
		x += (box.Dx() - w*scale) / 2
		y += (box.Dy() - h*scale) / 2
	}
	target := image.Rect(x, y, x+w*scale, y+h*scale)
	xdraw.NearestNeighbor.Scale(dst, target, glyphs, glyphs.Bounds(), xdraw.Over, nil)
}

func fitText(s string, maxW int) string {
	if font.MeasureString(face, s).Ceil() <= maxW {
		return s
	}
	runes := []rune(s)
	for n := len(runes) - 1; n > 0; n-- {
		t := string(runes[:n]) + "..."
		if font.MeasureString(face, t).Ceil() <= maxW {
			return t
		}
	}
	return ""
}
