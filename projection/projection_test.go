package projection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/kakaotalk-to-doc/model"
)

var ts = time.Date(2025, 12, 29, 18, 1, 0, 0, time.UTC)

func TestSelection_LastColumnCannotBeDisabled(t *testing.T) {
	sel := NewSelection()
	cols := AllColumns()

	for _, c := range cols[:len(cols)-1] {
		require.True(t, sel.Set(c, false))
	}
	require.Equal(t, 1, sel.Count())

	assert.False(t, sel.Set(ColumnContent, false), "disabling the last column is a no-op")
	assert.Equal(t, 1, sel.Count())
	assert.True(t, sel.Enabled(ColumnContent))
}

func TestSelection_SetAll(t *testing.T) {
	sel, err := ParseSelection("time")
	require.NoError(t, err)

	assert.False(t, sel.SetAll(false))
	assert.Equal(t, []Column{ColumnTime}, sel.Columns())

	assert.True(t, sel.SetAll(true))
	assert.Equal(t, AllColumns(), sel.Columns())
}

func TestSelection_ReenableColumn(t *testing.T) {
	sel := NewSelection()
	require.True(t, sel.Set(ColumnType, false))
	require.True(t, sel.Set(ColumnType, true))
	assert.Equal(t, 5, sel.Count())
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		want    []Column
		wantErr bool
	}{
		{name: "empty selects all", list: "", want: AllColumns()},
		{name: "output order is fixed", list: "content, DATE", want: []Column{ColumnDate, ColumnContent}},
		{name: "unknown column", list: "date,color", wantErr: true},
		{name: "only separators", list: ",,", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := ParseSelection(tt.list)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel.Columns())
		})
	}
}

func TestSelection_JSON(t *testing.T) {
	sel, err := ParseSelection("date,content")
	require.NoError(t, err)

	data, err := json.Marshal(sel)
	require.NoError(t, err)

	var back Selection
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, sel, back)

	require.NoError(t, json.Unmarshal([]byte(`{"date":false}`), &back))
	assert.Equal(t, 5, back.Count(), "a persisted empty selection falls back to every column")
}

func TestRow_RegularMessage(t *testing.T) {
	msg := model.Message{Timestamp: ts, Sender: "민수", Content: model.ImageIconMarker + "사진 3장", Type: model.TypeImage}

	fields := Row(msg, NewSelection())

	assert.Equal(t, []Field{
		{Column: ColumnDate, Label: "날짜", Value: "2025. 12. 29."},
		{Column: ColumnTime, Label: "시간", Value: "오후 6:01"},
		{Column: ColumnSender, Label: "보낸사람", Value: "민수"},
		{Column: ColumnType, Label: "타입", Value: "이미지"},
		{Column: ColumnContent, Label: "내용", Value: "사진 3장"},
	}, fields)
}

func TestRow_SystemMessage(t *testing.T) {
	msg := model.Message{Timestamp: ts, Content: "민수님이 나갔습니다.", Type: model.TypeSystem}

	sel, err := ParseSelection("sender,type,content")
	require.NoError(t, err)
	fields := Row(msg, sel)

	require.Len(t, fields, 3)
	assert.Empty(t, fields[0].Value)
	assert.Empty(t, fields[1].Value)
	assert.Equal(t, "[시스템] 민수님이 나갔습니다.", fields[2].Value)
}

func TestProject(t *testing.T) {
	msgs := []model.Message{
		{Timestamp: ts, Sender: "민수", Content: "안녕", Type: model.TypeMessage},
		{Timestamp: ts, Sender: "지영", Content: "동영상🎞", Type: model.TypeVideo},
	}
	sel, err := ParseSelection("sender,content")
	require.NoError(t, err)

	table := Project(msgs, sel)

	assert.Equal(t, []string{"보낸사람", "내용"}, table.Headers())
	assert.Equal(t, [][]string{{"민수", "안녕"}, {"지영", "동영상🎞"}}, table.Rows)
	assert.Equal(t, 2, table.Len())
}
