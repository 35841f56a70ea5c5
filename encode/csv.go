package encode

import (
	"bytes"
	"strings"

	"github.com/dhcgn/kakaotalk-to-doc/projection"
)

// utf8BOM lets legacy spreadsheet applications detect UTF-8.
const utf8BOM = "\uFEFF"

// DelimitedEncoder writes comma-separated text with every field quoted and
// rows separated by a single "\n".
type DelimitedEncoder struct {
	progress ProgressFunc
}

func (e *DelimitedEncoder) Format() Format { return FormatCSV }

func (e *DelimitedEncoder) Encode(table projection.Table, stem string) (Artifact, error) {
	if err := emptyCheck(table, FormatCSV); err != nil {
		return Artifact{}, err
	}

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	writeRecord(&buf, table.Headers())
	for i, row := range table.Rows {
		buf.WriteByte('\n')
		writeRecord(&buf, row)
		report(e.progress, i+1, table.Len())
	}

	return Artifact{
		Filename:    FinalizeFilename(stem, FormatCSV),
		ContentType: FormatCSV.ContentType(),
		Data:        buf.Bytes(),
		Rows:        table.Len(),
	}, nil
}

func writeRecord(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
		buf.WriteByte('"')
	}
}
