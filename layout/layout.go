// Package layout measures, wraps and rasterizes text blocks for fixed-page
// documents. A Block is computed once and then used both to size table rows
// and to draw them.
package layout

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
)

// Defaults reproduce the reference page layout. Scale converts document
// millimetres to raster pixels (96 DPI).
const (
	DefaultScale         = 3.779527559
	DefaultSafetyFactor  = 0.95
	DefaultLineSpacing   = 1.95
	DefaultTopPadding    = 0.3
	DefaultBottomPadding = 0.45
	DefaultSidePadding   = 0.5
)

// Engine wraps text greedily, one rune at a time, against a width budget.
type Engine struct {
	typeface      Typeface
	scale         float64
	safety        float64
	lineSpacing   float64
	topPadding    float64
	bottomPadding float64
	sidePadding   float64
}

type Option func(*Engine)

// WithScale sets the pixels per document unit.
func WithScale(pxPerUnit float64) Option {
	return func(e *Engine) {
		if pxPerUnit > 0 {
			e.scale = pxPerUnit
		}
	}
}

// WithSafetyFactor sets the fraction of the max width a line may fill.
func WithSafetyFactor(f float64) Option {
	return func(e *Engine) {
		if f > 0 && f <= 1 {
			e.safety = f
		}
	}
}

// New returns an Engine drawing with tf. A nil tf selects CellTypeface.
func New(tf Typeface, opts ...Option) *Engine {
	if tf == nil {
		tf = CellTypeface()
	}
	e := &Engine{
		typeface:      tf,
		scale:         DefaultScale,
		safety:        DefaultSafetyFactor,
		lineSpacing:   DefaultLineSpacing,
		topPadding:    DefaultTopPadding,
		bottomPadding: DefaultBottomPadding,
		sidePadding:   DefaultSidePadding,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Typeface returns the typeface used for measuring and drawing.
func (e *Engine) Typeface() Typeface {
	return e.typeface
}

// Block is a laid-out piece of text. Pixel fields are in raster space;
// the methods convert back to document units.
type Block struct {
	Lines  []string
	Widths []float64

	FontSize float64
	Bold     bool
	Scale    float64

	EmPx          float64
	MaxLinePx     float64
	LineSpacingPx float64
	TopPaddingPx  float64
	BottomPadPx   float64
	SidePaddingPx float64
}

// HeightPx is lineCount*lineSpacing + topPadding + bottomPadding.
func (b Block) HeightPx() float64 {
	return float64(len(b.Lines))*b.LineSpacingPx + b.TopPaddingPx + b.BottomPadPx
}

// Height is the block height in document units.
func (b Block) Height() float64 {
	return b.HeightPx() / b.Scale
}

// LineHeight is the advance of one wrapped line in document units.
func (b Block) LineHeight() float64 {
	return b.LineSpacingPx / b.Scale
}

// CanvasSize is the raster size Render produces.
func (b Block) CanvasSize() (int, int) {
	w := int(math.Ceil(b.MaxLinePx + b.EmPx*2))
	h := int(math.Max(math.Ceil(b.HeightPx()), b.EmPx*2))
	return w, h
}

// ImageSize is the placed size of the rendered raster in document units.
func (b Block) ImageSize() (float64, float64) {
	w, _ := b.CanvasSize()
	return (float64(w) - b.SidePaddingPx*2) / b.Scale, b.Height()
}

// Empty reports whether the block has no visible text.
func (b Block) Empty() bool {
	return len(b.Lines) == 0
}

// Layout wraps text into lines no wider than maxWidth*safetyFactor. fontSize
// and maxWidth are in document units.
func (e *Engine) Layout(text string, fontSize float64, bold bool, maxWidth float64) Block {
	em := fontSize * e.scale
	b := Block{
		FontSize:      fontSize,
		Bold:          bold,
		Scale:         e.scale,
		EmPx:          em,
		MaxLinePx:     math.Max(maxWidth, 0) * e.safety * e.scale,
		LineSpacingPx: em * e.lineSpacing,
		TopPaddingPx:  em * e.topPadding,
		BottomPadPx:   em * e.bottomPadding,
		SidePaddingPx: em * e.sidePadding,
	}

	var (
		line  []rune
		width float64
	)
	push := func() {
		b.Lines = append(b.Lines, string(line))
		b.Widths = append(b.Widths, width)
		line = line[:0]
		width = 0
	}

	for _, r := range text {
		if r == '\n' {
			push()
			continue
		}
		adv := e.typeface.Advance(r, em, bold)
		if width+adv > b.MaxLinePx && len(line) > 0 {
			push()
		}
		line = append(line, r)
		width += adv
	}
	if len(line) > 0 {
		push()
	}
	return b
}

// Render draws a block onto a white grayscale canvas of b.CanvasSize().
func (e *Engine) Render(b Block) *image.Gray {
	w, h := b.CanvasSize()
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	ascent := e.typeface.Ascent(b.EmPx, b.Bold)
	for i, line := range b.Lines {
		baseline := float64(i)*b.LineSpacingPx + b.TopPaddingPx + ascent
		x := b.SidePaddingPx
		for _, r := range line {
			e.typeface.DrawGlyph(img, x, baseline, r, b.EmPx, b.Bold)
			x += e.typeface.Advance(r, b.EmPx, b.Bold)
		}
	}
	return img
}

// RenderPNG renders b and encodes it as PNG.
func (e *Engine) RenderPNG(b Block) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, e.Render(b)); err != nil {
		return nil, fmt.Errorf("encode block png: %w", err)
	}
	return buf.Bytes(), nil
}
