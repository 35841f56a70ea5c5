package encode

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/dhcgn/kakaotalk-to-doc/projection"
)

// SheetName is the single worksheet of a tabular export.
const SheetName = "대화내용"

// columnWidths are in characters and do not depend on cell contents.
var columnWidths = map[projection.Column]float64{
	projection.ColumnDate:    15,
	projection.ColumnTime:    10,
	projection.ColumnSender:  10,
	projection.ColumnType:    10,
	projection.ColumnContent: 50,
}

// TabularEncoder writes an .xlsx workbook with one sheet, a bold header row
// and one row per record. Rows are streamed into the sheet.
type TabularEncoder struct {
	progress ProgressFunc
}

func (e *TabularEncoder) Format() Format { return FormatXLSX }

func (e *TabularEncoder) Encode(table projection.Table, stem string) (Artifact, error) {
	if err := emptyCheck(table, FormatXLSX); err != nil {
		return Artifact{}, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return Artifact{}, fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return Artifact{}, fmt.Errorf("stream writer: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return Artifact{}, fmt.Errorf("header style: %w", err)
	}

	for i, c := range table.Columns {
		if err := sw.SetColWidth(i+1, i+1, columnWidths[c]); err != nil {
			return Artifact{}, fmt.Errorf("column width: %w", err)
		}
	}

	header := make([]interface{}, len(table.Columns))
	for i, label := range table.Headers() {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: label}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return Artifact{}, fmt.Errorf("header row: %w", err)
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return Artifact{}, err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := sw.SetRow(cell, values); err != nil {
			return Artifact{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		report(e.progress, i+1, table.Len())
	}

	if err := sw.Flush(); err != nil {
		return Artifact{}, fmt.Errorf("flush sheet: %w", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return Artifact{}, fmt.Errorf("write workbook: %w", err)
	}

	return Artifact{
		Filename:    FinalizeFilename(stem, FormatXLSX),
		ContentType: FormatXLSX.ContentType(),
		Data:        buf.Bytes(),
		Rows:        table.Len(),
	}, nil
}
