// Package placeholder renders the image returned when generation cannot
// complete. Render never fails.
package placeholder

import (
	"bytes"
	_ "embed"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

//go:embed blank.png
var blankPNG []byte

const (
	Title = "Image Generation Failed"

	defaultSide = 512
	minSide     = 64
	maxSide     = 2048
	margin      = 40
	titleScale  = 2
	footer      = "Try a smaller size or fewer steps, or switch to CPU mode."
)

var (
	face        = basicfont.Face7x13
	textColor   = color.RGBA{0, 0, 0, 255}
	mutedColor  = color.RGBA{80, 80, 80, 255}
	errorColor  = color.RGBA{180, 0, 0, 255}
	ruleColor   = color.RGBA{180, 180, 180, 255}
	borderColor = color.RGBA{200, 200, 200, 255}
)

// Render draws a PNG describing the failed generation. Internal errors
// degrade to a blank white canvas, then to an embedded 1x1 white PNG.
func Render(prompt, errSummary string, width, height int) (out []byte) {
	width, height = clampSide(width), clampSide(height)

	defer func() {
		if r := recover(); r != nil {
			out = Blank(width, height)
		}
	}()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	drawGradient(img)

	titleWidth := font.MeasureString(face, Title).Ceil() * titleScale
	drawScaledText(img, Title, (width-titleWidth)/2, 40, titleScale, mutedColor)

	fillRect(img, image.Rect(margin, 80, width-margin, 82), ruleColor)

	lineHeight := face.Metrics().Height.Ceil() + 6
	y := 100 + face.Metrics().Ascent.Ceil()
	for _, line := range Wrap("Prompt: "+prompt, width-2*margin) {
		if y > height-80 {
			break
		}
		drawText(img, line, margin, y, textColor)
		y += lineHeight
	}

	if errSummary != "" && y < height-80 {
		y += 20
		drawText(img, "Error details:", margin, y, errorColor)
		y += lineHeight
		for _, line := range Wrap(errSummary, width-2*margin) {
			if y > height-80 {
				break
			}
			drawText(img, line, margin, y, errorColor)
			y += lineHeight
		}
	}

	footerWidth := font.MeasureString(face, footer).Ceil()
	if footerWidth < width-2*margin {
		drawText(img, footer, (width-footerWidth)/2, height-60, mutedColor)
	}

	drawBorder(img, image.Rect(10, 10, width-10, height-10), 2, borderColor)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Blank(width, height)
	}
	return buf.Bytes()
}

// Blank returns a white PNG of the given size, or the embedded 1x1 PNG
// when encoding fails.
func Blank(width, height int) (out []byte) {
	defer func() {
		if r := recover(); r != nil {
			out = blankPNG
		}
	}()
	img := image.NewRGBA(image.Rect(0, 0, clampSide(width), clampSide(height)))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return blankPNG
	}
	return buf.Bytes()
}

func clampSide(v int) int {
	switch {
	case v <= 0:
		return defaultSide
	case v < minSide:
		return minSide
	case v > maxSide:
		return maxSide
	}
	return v
}

func drawGradient(img *image.RGBA) {
	b := img.Bounds()
	h := float64(b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		t := float64(y) / h
		c := color.RGBA{
			R: uint8(240 - t*40),
			G: uint8(240 - t*20),
			B: uint8(240 - t*30),
			A: 255,
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

func drawBorder(img *image.RGBA, r image.Rectangle, thickness int, c color.Color) {
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness), c)
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y), c)
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y), c)
	fillRect(img, image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// drawText draws s with its baseline at y.
func drawText(dst draw.Image, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawScaledText draws s scaled up with its top edge at y.
func drawScaledText(dst *image.RGBA, s string, x, y, scale int, c color.Color) {
	w := font.MeasureString(face, s).Ceil()
	h := face.Metrics().Height.Ceil()
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	drawText(small, s, 0, face.Metrics().Ascent.Ceil(), c)

	target := image.Rect(x, y, x+w*scale, y+h*scale)
	xdraw.NearestNeighbor.Scale(dst, target, small, small.Bounds(), xdraw.Over, nil)
}

// Wrap splits text into lines no wider than maxWidth pixels. Words longer
// than a line are broken.
func Wrap(text string, maxWidth int) []string {
	maxChars := maxWidth / font.MeasureString(face, "M").Ceil()
	if maxChars < 1 {
		maxChars = 1
	}

	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		for len([]rune(word)) > maxChars {
			if current.Len() > 0 {
				lines = append(lines, current.String())
				current.Reset()
			}
			r := []rune(word)
			lines = append(lines, string(r[:maxChars]))
			word = string(r[maxChars:])
		}
		if current.Len() == 0 {
			current.WriteString(word)
			continue
		}
		if len([]rune(current.String()))+1+len([]rune(word)) > maxChars {
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
			continue
		}
		current.WriteString(" ")
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
