package layout

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fontSize = 4.5

func TestLayout_CharacterWrapping(t *testing.T) {
	e := New(CellTypeface())

	tests := []struct {
		name  string
		text  string
		width float64
		want  []string
	}{
		{name: "hangul two per line", text: "가나다라마", width: 10, want: []string{"가나", "다라", "마"}},
		{name: "latin four per line", text: "abcdefghij", width: 10, want: []string{"abcd", "efgh", "ij"}},
		{name: "words are split mid-word", text: "ab cdef", width: 10, want: []string{"ab c", "def"}},
		{name: "fits on one line", text: "abc", width: 100, want: []string{"abc"}},
		{name: "oversized rune still placed", text: "가가", width: 1, want: []string{"가", "가"}},
		{name: "empty", text: "", width: 10, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := e.Layout(tt.text, fontSize, false, tt.width)
			assert.Equal(t, tt.want, b.Lines)
			assert.Equal(t, tt.text, strings.Join(b.Lines, ""))
			for i, w := range b.Widths {
				if len([]rune(b.Lines[i])) > 1 {
					assert.LessOrEqual(t, w, b.MaxLinePx)
				}
			}
		})
	}
}

func TestLayout_BlockHeight(t *testing.T) {
	e := New(CellTypeface())

	for lines := 1; lines <= 4; lines++ {
		b := e.Layout(strings.Repeat("가나", lines), fontSize, false, 10)
		require.Len(t, b.Lines, lines)

		wantPx := float64(lines)*b.EmPx*DefaultLineSpacing + b.EmPx*DefaultTopPadding + b.EmPx*DefaultBottomPadding
		assert.InDelta(t, wantPx, b.HeightPx(), 1e-9)
		assert.InDelta(t, wantPx/DefaultScale, b.Height(), 1e-9)
		assert.InDelta(t, fontSize*DefaultLineSpacing, b.LineHeight(), 1e-9)
	}
}

func TestLayout_HardLineBreak(t *testing.T) {
	b := New(CellTypeface()).Layout("ab\ncd", fontSize, false, 100)
	assert.Equal(t, []string{"ab", "cd"}, b.Lines)
}

func TestRender_CanvasMatchesLayout(t *testing.T) {
	e := New(CellTypeface())
	b := e.Layout("가나다라마바사", fontSize, true, 20)

	img := e.Render(b)
	w, h := b.CanvasSize()
	assert.Equal(t, w, img.Bounds().Dx())
	assert.Equal(t, h, img.Bounds().Dy())
	assert.GreaterOrEqual(t, float64(h), b.HeightPx())

	data, err := e.RenderPNG(b)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(data[:4]))
}

// Ink drawn for a line must stay within the width measured for it.
func TestRender_InkStaysInsideMeasuredWidth(t *testing.T) {
	tf, err := LoadTypeface("")
	require.NoError(t, err)
	e := New(tf)

	b := e.Layout("The quick brown fox jumps over the lazy dog 0123456789", fontSize, false, 30)
	require.Greater(t, len(b.Lines), 1)

	img := e.Render(b)
	bounds := img.Bounds()
	for i := range b.Lines {
		top := int(float64(i)*b.LineSpacingPx + b.TopPaddingPx)
		bottom := int(float64(i+1)*b.LineSpacingPx + b.TopPaddingPx)
		limit := int(math.Ceil(b.SidePaddingPx + b.Widths[i] + b.EmPx*0.25))
		for y := top; y < bottom && y < bounds.Max.Y; y++ {
			for x := limit; x < bounds.Max.X; x++ {
				require.Equal(t, uint8(0xff), img.GrayAt(x, y).Y, "line %d inked at x=%d beyond measured width", i, x)
			}
		}
	}
}

func TestOutline_MissingGlyphsUseCellWidth(t *testing.T) {
	tf, err := LoadTypeface("")
	require.NoError(t, err)

	em := fontSize * DefaultScale
	assert.InDelta(t, em, tf.Advance('가', em, false), 1e-9)
	assert.Greater(t, tf.Advance('W', em, true), 0.0)
}

func TestLoadTypeface_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadTypeface(filepath.Join(dir, "missing.ttf"))
	assert.ErrorIs(t, err, ErrTypefaceUnavailable)

	garbage := filepath.Join(dir, "garbage.ttf")
	require.NoError(t, os.WriteFile(garbage, []byte("not a font"), 0o644))
	_, err = LoadTypeface(garbage)
	assert.ErrorIs(t, err, ErrTypefaceUnavailable)
}

func BenchmarkLayout(b *testing.B) {
	e := New(CellTypeface())
	text := strings.Repeat("카카오톡 대화 내보내기 테스트 ", 20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Layout(text, fontSize, false, 150)
	}
}

func TestNew_Options(t *testing.T) {
	e := New(nil, WithScale(2), WithSafetyFactor(0.5))
	assert.Equal(t, "cell", e.Typeface().Name())

	b := e.Layout("가", 4.5, false, 100)
	assert.InDelta(t, 2, b.Scale, 1e-9)
	assert.InDelta(t, 100*2*0.5, b.MaxLinePx, 1e-9)

	// Out-of-range values keep the defaults.
	b = New(nil, WithScale(0), WithSafetyFactor(1.5)).Layout("가", 4.5, false, 100)
	assert.InDelta(t, DefaultScale, b.Scale, 1e-9)
	assert.InDelta(t, 100*DefaultScale*DefaultSafetyFactor, b.MaxLinePx, 1e-9)
}
