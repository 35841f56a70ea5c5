package encode

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrInvalidPDF is returned when a generated document fails validation.
var ErrInvalidPDF = errors.New("invalid pdf")

// pdfcpu writes a config directory under the user's home unless disabled.
var disableConfigDir sync.Once

// PDFInfo summarizes a validated PDF.
type PDFInfo struct {
	Pages int
}

// InspectPDF parses and validates a PDF and reports its page count.
func InspectPDF(rs io.ReadSeeker) (PDFInfo, error) {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(rs, conf)
	if err != nil {
		return PDFInfo{}, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return PDFInfo{Pages: ctx.PageCount}, nil
}
