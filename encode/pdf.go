package encode

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/dhcgn/kakaotalk-to-doc/layout"
	"github.com/dhcgn/kakaotalk-to-doc/projection"
)

// PageLayout holds the geometry of a paginated export in millimetres. Scale
// is raster pixels per millimetre and SafetyFactor the share of a cell width
// a wrapped line may fill.
type PageLayout struct {
	Margin         float64
	HeaderOffset   float64
	ColumnWidth    float64
	FontSize       float64
	BaseLineHeight float64
	BottomReserve  float64
	HeaderSpacing  float64
	HeaderRule     float64
	HeaderGap      float64
	HeaderInset    float64
	CellInset      float64
	RowScale       float64
	RowGap         float64
	TextLift       float64
	Scale          float64
	SafetyFactor   float64
}

// DefaultPageLayout is an A4 landscape table with a wide content column.
func DefaultPageLayout() PageLayout {
	return PageLayout{
		Margin:         10,
		HeaderOffset:   10,
		ColumnWidth:    35,
		FontSize:       4.5,
		BaseLineHeight: 3.75,
		BottomReserve:  15,
		HeaderSpacing:  1.5,
		HeaderRule:     0.5,
		HeaderGap:      4,
		HeaderInset:    1,
		CellInset:      2,
		RowScale:       1.5 * 0.8,
		RowGap:         1.5 * 0.8,
		TextLift:       0.7,
		Scale:          layout.DefaultScale,
		SafetyFactor:   layout.DefaultSafetyFactor,
	}
}

// EngineOptions configures a layout engine to match this page geometry.
func (l PageLayout) EngineOptions() []layout.Option {
	return []layout.Option{layout.WithScale(l.Scale), layout.WithSafetyFactor(l.SafetyFactor)}
}

// LineBlockHeight is the height of a single-line cell block.
func (l PageLayout) LineBlockHeight(engine *layout.Engine) float64 {
	return engine.Layout("가", l.FontSize, false, l.ColumnWidth).Height()
}

// RowAdvance is the vertical distance consumed by a row whose tallest cell
// block is height units high and wraps to lines lines. It never falls below
// lines single-line blocks stacked, so wrapped text cannot overlap the next
// row.
func (l PageLayout) RowAdvance(height float64, lines int, lineBlock float64) float64 {
	scaled := math.Max(height, l.BaseLineHeight)*l.RowScale + l.RowGap
	return math.Max(scaled, float64(lines)*lineBlock)
}

// ColumnWidths gives every selected column a fixed width and the content
// column whatever remains of the printable width.
func (l PageLayout) ColumnWidths(cols []projection.Column, pageWidth float64) []float64 {
	widths := make([]float64, len(cols))
	rest := pageWidth - 2*l.Margin - l.ColumnWidth*float64(len(cols)-1)
	for i, c := range cols {
		if c == projection.ColumnContent {
			widths[i] = math.Max(rest, l.ColumnWidth)
			continue
		}
		widths[i] = l.ColumnWidth
	}
	return widths
}

// PaginatedEncoder draws the table onto A4 landscape pages. Every cell is
// laid out by the layout engine and placed as a raster image, so the PDF
// needs no embedded font for Hangul or emoji.
type PaginatedEncoder struct {
	engine   *layout.Engine
	page     PageLayout
	verify   bool
	progress ProgressFunc
	logger   *slog.Logger
}

// NewPaginated returns a PDF encoder drawing with engine.
func NewPaginated(engine *layout.Engine, page PageLayout, opts Options) *PaginatedEncoder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PaginatedEncoder{
		engine:   engine,
		page:     page,
		verify:   opts.Verify,
		progress: opts.Progress,
		logger:   logger,
	}
}

func (e *PaginatedEncoder) Format() Format { return FormatPDF }

func (e *PaginatedEncoder) Encode(table projection.Table, stem string) (Artifact, error) {
	if err := emptyCheck(table, FormatPDF); err != nil {
		return Artifact{}, err
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(e.page.Margin, e.page.Margin, e.page.Margin)
	pdf.SetCreator("kakaotalk-to-doc", true)
	pdf.SetTitle(stem, true)

	pageW, pageH := pdf.GetPageSize()
	d := &pdfDoc{
		pdf:     pdf,
		engine:  e.engine,
		page:    e.page,
		pageW:   pageW,
		headers: table.Headers(),
		widths:  e.page.ColumnWidths(table.Columns, pageW),
	}
	d.lineBlock = e.page.LineBlockHeight(e.engine)

	if err := d.newPage(); err != nil {
		return Artifact{}, err
	}
	for i, row := range table.Rows {
		if d.y+e.page.Margin+e.page.BottomReserve > pageH {
			if err := d.newPage(); err != nil {
				return Artifact{}, err
			}
		}
		if err := d.row(row); err != nil {
			return Artifact{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		report(e.progress, i+1, table.Len())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Artifact{}, fmt.Errorf("write pdf: %w", err)
	}
	e.logger.Debug("pdf encoded", "rows", table.Len(), "pages", d.pages, "images", len(d.placed), "bytes", buf.Len())

	if e.verify {
		info, err := InspectPDF(bytes.NewReader(buf.Bytes()))
		if err != nil {
			return Artifact{}, err
		}
		if info.Pages != d.pages {
			return Artifact{}, fmt.Errorf("%w: expected %d pages, found %d", ErrInvalidPDF, d.pages, info.Pages)
		}
	}

	return Artifact{
		Filename:    FinalizeFilename(stem, FormatPDF),
		ContentType: FormatPDF.ContentType(),
		Data:        buf.Bytes(),
		Rows:        table.Len(),
	}, nil
}

type pdfDoc struct {
	pdf     *fpdf.Fpdf
	engine  *layout.Engine
	page    PageLayout
	pageW   float64
	headers []string
	widths  []float64

	lineBlock float64

	y      float64
	pages  int
	placed map[string]struct{}
}

func (d *pdfDoc) newPage() error {
	d.pdf.AddPage()
	d.pages++
	d.y = d.page.Margin + d.page.HeaderOffset

	x := d.page.Margin
	for i, label := range d.headers {
		b := d.engine.Layout(label, d.page.FontSize, true, d.widths[i]-d.page.HeaderInset)
		if err := d.place(b, x); err != nil {
			return fmt.Errorf("header: %w", err)
		}
		x += d.widths[i]
	}
	d.y += d.page.BaseLineHeight * d.page.HeaderSpacing

	d.pdf.SetLineWidth(d.page.HeaderRule)
	d.pdf.Line(d.page.Margin, d.y, d.pageW-d.page.Margin, d.y)
	d.y += d.page.HeaderGap
	return d.pdf.Error()
}

func (d *pdfDoc) row(cells []string) error {
	blocks := make([]layout.Block, len(cells))
	height, lines := 0.0, 0
	for i, text := range cells {
		blocks[i] = d.engine.Layout(text, d.page.FontSize, false, d.widths[i]-d.page.CellInset)
		height = math.Max(height, blocks[i].Height())
		lines = max(lines, len(blocks[i].Lines))
	}

	x := d.page.Margin
	for i, b := range blocks {
		if err := d.place(b, x); err != nil {
			return err
		}
		x += d.widths[i]
	}
	d.y += d.page.RowAdvance(height, lines, d.lineBlock)
	return d.pdf.Error()
}

// place draws b with its top-left corner slightly above the cursor. Identical
// blocks are rasterized and embedded once.
func (d *pdfDoc) place(b layout.Block, x float64) error {
	if b.Empty() {
		return nil
	}
	name := imageName(b)
	if d.placed == nil {
		d.placed = make(map[string]struct{})
	}
	if _, ok := d.placed[name]; !ok {
		data, err := d.engine.RenderPNG(b)
		if err != nil {
			return &RenderingEnvironmentError{Err: err}
		}
		d.pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(data))
		if err := d.pdf.Error(); err != nil {
			return fmt.Errorf("embed image: %w", err)
		}
		d.placed[name] = struct{}{}
	}

	w, h := b.ImageSize()
	d.pdf.ImageOptions(name, x, d.y-d.page.FontSize*d.page.TextLift, w, h, false,
		fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	return nil
}

func imageName(b layout.Block) string {
	h := sha1.New()
	h.Write([]byte(strings.Join(b.Lines, "\n")))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(b.Bold)))
	h.Write([]byte(strconv.FormatFloat(b.FontSize, 'f', -1, 64)))
	h.Write([]byte(strconv.FormatFloat(b.MaxLinePx, 'f', 3, 64)))
	return "cell-" + hex.EncodeToString(h.Sum(nil))[:20]
}
