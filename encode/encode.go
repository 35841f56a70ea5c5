package encode

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dhcgn/kakaotalk-to-doc/layout"
	"github.com/dhcgn/kakaotalk-to-doc/projection"
)

// DefaultUploadName is assumed when the original filename is unknown.
const DefaultUploadName = "kakaotalk-converted.txt"

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

// ParseFormat resolves a format name such as "pdf" or ".PDF".
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	switch f {
	case FormatXLSX, FormatCSV, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownFormat)
}

// Extension returns the filename extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type of the encoded payload.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv;charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Artifact is an encoded document ready to be written or downloaded.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ProgressFunc is called after each data row is encoded.
type ProgressFunc func(done, total int)

// Encoder turns a projected table into a named payload. Encoders fail with
// *EmptyInputError for a table without rows and never return a partial
// artifact.
type Encoder interface {
	Format() Format
	Encode(table projection.Table, stem string) (Artifact, error)
}

// Options configures encoder construction.
type Options struct {
	// Engine lays out paginated text. When nil, one is built from FontPath.
	Engine *layout.Engine
	// FontPath selects a TrueType/OpenType font; empty uses the bundled one.
	FontPath string
	// FontFallback switches to the fixed-width cell heuristic when the font
	// cannot be loaded instead of failing.
	FontFallback bool
	// Verify reads generated PDFs back and checks their structure.
	Verify   bool
	Progress ProgressFunc
	Logger   *slog.Logger
}

// New returns the encoder for format.
func New(format Format, opts Options) (Encoder, error) {
	switch format {
	case FormatXLSX:
		return &TabularEncoder{progress: opts.Progress}, nil
	case FormatCSV:
		return &DelimitedEncoder{progress: opts.Progress}, nil
	case FormatPDF:
		engine := opts.Engine
		if engine == nil {
			var err error
			if engine, err = NewEngine(opts); err != nil {
				return nil, err
			}
		}
		return NewPaginated(engine, DefaultPageLayout(), opts), nil
	}
	return nil, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
}

// NewEngine loads the typeface at opts.FontPath and returns a layout engine
// matching DefaultPageLayout. When the font cannot be loaded it fails with a
// *RenderingEnvironmentError unless opts.FontFallback selects the
// fixed-width cell typeface instead.
func NewEngine(opts Options) (*layout.Engine, error) {
	tf, err := layout.LoadTypeface(opts.FontPath)
	if err != nil {
		if !opts.FontFallback {
			return nil, &RenderingEnvironmentError{Err: err}
		}
		if opts.Logger != nil {
			opts.Logger.Warn("font unavailable, using fixed-width fallback", "font", opts.FontPath, "err", err)
		}
		tf = layout.CellTypeface()
	}
	return layout.New(tf, DefaultPageLayout().EngineOptions()...), nil
}

// StemFromUpload derives the output filename stem from the uploaded file
// name by dropping the directory and a trailing .txt extension.
func StemFromUpload(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultUploadName
	}
	base := filepath.Base(name)
	if strings.HasSuffix(strings.ToLower(base), ".txt") {
		base = base[:len(base)-len(".txt")]
	}
	if base == "" || base == "." {
		base = strings.TrimSuffix(DefaultUploadName, ".txt")
	}
	return base
}

// FinalizeFilename appends the format extension unless stem already ends
// with it.
func FinalizeFilename(stem string, format Format) string {
	ext := format.Extension()
	if strings.HasSuffix(strings.ToLower(stem), ext) {
		return stem
	}
	return stem + ext
}

func emptyCheck(table projection.Table, format Format) error {
	if table.Len() == 0 {
		return &EmptyInputError{Format: format}
	}
	return nil
}

func report(fn ProgressFunc, done, total int) {
	if fn != nil {
		fn(done, total)
	}
}
