package layout

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// ErrTypefaceUnavailable reports that no usable font could be loaded.
var ErrTypefaceUnavailable = errors.New("typeface unavailable")

// Typeface measures and draws single runes. Layout and rendering both go
// through Advance, so a block never draws wider than it was measured.
type Typeface interface {
	Name() string
	Advance(r rune, sizePx float64, bold bool) float64
	Ascent(sizePx float64, bold bool) float64
	DrawGlyph(dst draw.Image, x, baseline float64, r rune, sizePx float64, bold bool)
}

// LoadTypeface loads a TrueType/OpenType font (or the first font of a
// collection) from path. An empty path selects the bundled Go fonts, which
// cover Latin text only; runes they lack are measured by East Asian cell
// width and drawn as boxes.
func LoadTypeface(path string) (Typeface, error) {
	if strings.TrimSpace(path) == "" {
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("%w: go regular: %v", ErrTypefaceUnavailable, err)
		}
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			return nil, fmt.Errorf("%w: go bold: %v", ErrTypefaceUnavailable, err)
		}
		return newOutline("Go", regular, bold)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTypefaceUnavailable, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		coll, collErr := opentype.ParseCollection(data)
		if collErr != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrTypefaceUnavailable, path, err)
		}
		if f, err = coll.Font(0); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrTypefaceUnavailable, path, err)
		}
	}
	return newOutline(path, f, nil)
}

type faceKey struct {
	size float64
	bold bool
}

// outline draws with vector fonts. Without a dedicated bold font, bold text
// is emboldened by overdrawing.
type outline struct {
	name    string
	regular *sfnt.Font
	bold    *sfnt.Font
	buf     sfnt.Buffer
	faces   map[faceKey]font.Face
}

func newOutline(name string, regular, bold *sfnt.Font) (*outline, error) {
	o := &outline{name: name, regular: regular, bold: bold, faces: make(map[faceKey]font.Face)}
	if _, err := o.face(16, false); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTypefaceUnavailable, err)
	}
	return o, nil
}

func (o *outline) Name() string { return o.name }

func (o *outline) font(bold bool) *sfnt.Font {
	if bold && o.bold != nil {
		return o.bold
	}
	return o.regular
}

func (o *outline) face(sizePx float64, bold bool) (font.Face, error) {
	key := faceKey{size: sizePx, bold: bold && o.bold != nil}
	if f, ok := o.faces[key]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(o.font(key.bold), &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	o.faces[key] = f
	return f, nil
}

func (o *outline) has(r rune, bold bool) bool {
	idx, err := o.font(bold).GlyphIndex(&o.buf, r)
	return err == nil && idx != 0
}

func (o *outline) Advance(r rune, sizePx float64, bold bool) float64 {
	if !o.has(r, bold) {
		return cellAdvance(r, sizePx)
	}
	face, err := o.face(sizePx, bold)
	if err != nil {
		return cellAdvance(r, sizePx)
	}
	adv, ok := face.GlyphAdvance(r)
	if !ok {
		return cellAdvance(r, sizePx)
	}
	return toFloat(adv)
}

func (o *outline) Ascent(sizePx float64, bold bool) float64 {
	face, err := o.face(sizePx, bold)
	if err != nil {
		return sizePx * 0.8
	}
	return toFloat(face.Metrics().Ascent)
}

func (o *outline) DrawGlyph(dst draw.Image, x, baseline float64, r rune, sizePx float64, bold bool) {
	if !o.has(r, bold) {
		drawBox(dst, x, baseline, cellAdvance(r, sizePx), sizePx)
		return
	}
	face, err := o.face(sizePx, bold)
	if err != nil {
		return
	}
	drawMask(dst, face, x, baseline, r)
	if bold && o.bold == nil {
		drawMask(dst, face, x+math.Max(sizePx*0.04, 0.5), baseline, r)
	}
}

// cellFace is the approximate fallback: widths come from East Asian cell
// counts and glyphs from a fixed bitmap font.
type cellFace struct{}

// CellTypeface returns the fixed-width fallback typeface. It needs no font
// files.
func CellTypeface() Typeface {
	return cellFace{}
}

func (cellFace) Name() string { return "cell" }

func (cellFace) Advance(r rune, sizePx float64, _ bool) float64 {
	return cellAdvance(r, sizePx)
}

func (cellFace) Ascent(sizePx float64, _ bool) float64 {
	return sizePx * 0.8
}

func (cellFace) DrawGlyph(dst draw.Image, x, baseline float64, r rune, sizePx float64, _ bool) {
	if r < 0x20 || r > 0x7e {
		drawBox(dst, x, baseline, cellAdvance(r, sizePx), sizePx)
		return
	}
	drawMask(dst, basicfont.Face7x13, x, baseline, r)
}

func cellAdvance(r rune, sizePx float64) float64 {
	return float64(runewidth.RuneWidth(r)) * sizePx / 2
}

func drawMask(dst draw.Image, face font.Face, x, baseline float64, r rune) {
	dot := fixed.Point26_6{X: fromFloat(x), Y: fromFloat(baseline)}
	dr, mask, maskp, _, ok := face.Glyph(dot, r)
	if !ok {
		return
	}
	draw.DrawMask(dst, dr, image.Black, image.Point{}, mask, maskp, draw.Over)
}

// drawBox outlines the cell of a rune the typeface cannot draw.
func drawBox(dst draw.Image, x, baseline, width, sizePx float64) {
	if width < 2 {
		return
	}
	x0 := int(math.Round(x + 1))
	x1 := int(math.Round(x + width - 1))
	y0 := int(math.Round(baseline - sizePx*0.7))
	y1 := int(math.Round(baseline))
	ink := color.Gray{Y: 0}
	for px := x0; px <= x1; px++ {
		dst.Set(px, y0, ink)
		dst.Set(px, y1, ink)
	}
	for py := y0; py <= y1; py++ {
		dst.Set(x0, py, ink)
		dst.Set(x1, py, ink)
	}
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func fromFloat(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
