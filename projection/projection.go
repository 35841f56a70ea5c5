package projection

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dhcgn/kakaotalk-to-doc/model"
)

// Column identifies one displayable field. The numeric order is the fixed
// output order.
type Column int

const (
	ColumnDate Column = iota
	ColumnTime
	ColumnSender
	ColumnType
	ColumnContent
	numColumns
)

var columnNames = [numColumns]string{"date", "time", "sender", "type", "content"}

var columnLabels = [numColumns]string{"날짜", "시간", "보낸사람", "타입", "내용"}

// AllColumns lists every column in output order.
func AllColumns() []Column {
	return []Column{ColumnDate, ColumnTime, ColumnSender, ColumnType, ColumnContent}
}

func (c Column) String() string {
	if c < 0 || c >= numColumns {
		return fmt.Sprintf("column(%d)", int(c))
	}
	return columnNames[c]
}

// Label is the localized header text.
func (c Column) Label() string {
	if c < 0 || c >= numColumns {
		return c.String()
	}
	return columnLabels[c]
}

// ParseColumn resolves a column name, case-insensitively.
func ParseColumn(name string) (Column, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range columnNames {
		if n == name {
			return Column(i), nil
		}
	}
	return 0, fmt.Errorf("unknown column %q", name)
}

// Selection records which columns are shown. At least one column is always
// enabled; mutations that would disable the last one are ignored.
type Selection struct {
	enabled [numColumns]bool
}

// NewSelection enables every column.
func NewSelection() Selection {
	var s Selection
	for i := range s.enabled {
		s.enabled[i] = true
	}
	return s
}

// ParseSelection builds a selection from a comma-separated list of column
// names. An empty list selects every column.
func ParseSelection(list string) (Selection, error) {
	if strings.TrimSpace(list) == "" {
		return NewSelection(), nil
	}
	var s Selection
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := ParseColumn(part)
		if err != nil {
			return Selection{}, err
		}
		s.enabled[c] = true
	}
	if s.Count() == 0 {
		return Selection{}, fmt.Errorf("no columns selected")
	}
	return s, nil
}

// Enabled reports whether c is shown.
func (s Selection) Enabled(c Column) bool {
	if c < 0 || c >= numColumns {
		return false
	}
	return s.enabled[c]
}

// Count returns the number of enabled columns.
func (s Selection) Count() int {
	n := 0
	for _, on := range s.enabled {
		if on {
			n++
		}
	}
	return n
}

// Columns returns the enabled columns in output order. A zero Selection is
// treated as all columns.
func (s Selection) Columns() []Column {
	if s.Count() == 0 {
		return AllColumns()
	}
	cols := make([]Column, 0, numColumns)
	for i, on := range s.enabled {
		if on {
			cols = append(cols, Column(i))
		}
	}
	return cols
}

// Set toggles one column and reports whether the change was applied.
func (s *Selection) Set(c Column, on bool) bool {
	if c < 0 || c >= numColumns {
		return false
	}
	if s.Count() == 0 {
		*s = NewSelection()
	}
	if !on && s.enabled[c] && s.Count() <= 1 {
		return false
	}
	s.enabled[c] = on
	return true
}

// SetAll enables every column. Disabling every column is rejected.
func (s *Selection) SetAll(on bool) bool {
	if !on {
		return false
	}
	*s = NewSelection()
	return true
}

func (s Selection) String() string {
	names := make([]string, 0, numColumns)
	for _, c := range s.Columns() {
		names = append(names, c.String())
	}
	return strings.Join(names, ",")
}

func (s Selection) MarshalJSON() ([]byte, error) {
	out := make(map[string]bool, numColumns)
	for i, name := range columnNames {
		out[name] = s.enabled[i]
	}
	return json.Marshal(out)
}

func (s *Selection) UnmarshalJSON(data []byte) error {
	var in map[string]bool
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var next Selection
	for name, on := range in {
		c, err := ParseColumn(name)
		if err != nil {
			continue
		}
		next.enabled[c] = on
	}
	if next.Count() == 0 {
		next = NewSelection()
	}
	*s = next
	return nil
}

// Field is one projected cell.
type Field struct {
	Column Column
	Label  string
	Value  string
}

// Row projects msg onto the selected columns in output order. Inline icon
// markers are stripped; system records render sender and type as empty and
// prefix their content with the bracketed type label.
func Row(msg model.Message, sel Selection) []Field {
	cols := sel.Columns()
	fields := make([]Field, 0, len(cols))
	for _, c := range cols {
		fields = append(fields, Field{Column: c, Label: c.Label(), Value: value(msg, c)})
	}
	return fields
}

func value(msg model.Message, c Column) string {
	system := msg.Type == model.TypeSystem
	switch c {
	case ColumnDate:
		return model.FormatDate(msg.Timestamp)
	case ColumnTime:
		return model.FormatTime(msg.Timestamp)
	case ColumnSender:
		if system {
			return ""
		}
		return msg.Sender
	case ColumnType:
		if system {
			return ""
		}
		return msg.Type.Label()
	case ColumnContent:
		content := msg.PlainContent()
		if system {
			return "[" + msg.Type.Label() + "] " + content
		}
		return content
	}
	return ""
}

// Table is the encoder input: the selected columns and one value row per
// record, aligned with Columns.
type Table struct {
	Columns []Column
	Rows    [][]string
}

// Project builds a Table from msgs.
func Project(msgs []model.Message, sel Selection) Table {
	t := Table{Columns: sel.Columns(), Rows: make([][]string, 0, len(msgs))}
	for _, m := range msgs {
		fields := Row(m, sel)
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = f.Value
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Headers returns the column labels.
func (t Table) Headers() []string {
	headers := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		headers[i] = c.Label()
	}
	return headers
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}
