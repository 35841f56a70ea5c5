package runner

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/kakaotalk-to-doc/config"
	"github.com/dhcgn/kakaotalk-to-doc/encode"
	"github.com/dhcgn/kakaotalk-to-doc/projection"
	"github.com/dhcgn/kakaotalk-to-doc/state"
	"github.com/dhcgn/kakaotalk-to-doc/stats"
	"github.com/dhcgn/kakaotalk-to-doc/transcript"
)

const chat = `카카오톡 대화 내보내기
--------------- 2025년 12월 29일 월요일 ---------------
민수님이 들어왔습니다.
[민수] [오후 6:01] 안녕하세요
[지영] [오후 6:02] 반가워요
회의는 7시
[민수] [오후 6:05] 사진
--------------- 2025년 12월 30일 화요일 ---------------
[지영] [오전 9:00] 좋은 아침`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		OutputDir:    t.TempDir(),
		Format:       encode.FormatCSV,
		StateBackend: state.BackendMemory,
		MaxInputSize: transcript.DefaultMaxSize,
		Columns:      projection.NewSelection(),
		FontFallback: true,
	}
}

func newRunner(t *testing.T, cfg config.Config, store state.Store) (*Runner, *[]stats.Event) {
	t.Helper()
	r, err := New(cfg, nil, store)
	require.NoError(t, err)
	var events []stats.Event
	r.Subscribe("test", func(evt stats.Event) { events = append(events, evt) })
	return r, &events
}

func TestRunner_LoadAndView(t *testing.T) {
	r, events := newRunner(t, testConfig(t), nil)
	require.NoError(t, r.Load(state.Upload{Text: chat, Filename: "chat.txt"}))

	assert.Len(t, r.Messages(), 5)
	assert.Equal(t, []string{"민수", "지영"}, r.Participants())

	table := r.View()
	assert.Equal(t, 5, table.Len())
	assert.Equal(t, "반가워요 회의는 7시", table.Rows[2][4])

	require.Len(t, *events, 2)
	assert.Equal(t, stats.EventTypeParsed, (*events)[0].Type)
	assert.Equal(t, 5, (*events)[0].Count)
	assert.Equal(t, stats.EventTypeFiltered, (*events)[1].Type)
}

func TestRunner_Update(t *testing.T) {
	r, _ := newRunner(t, testConfig(t), nil)
	require.NoError(t, r.Load(state.Upload{Text: chat}))

	require.NoError(t, r.Update(func(st *state.AppState) {
		st.Filter.ExcludeSystem = true
		st.Filter.Senders = []string{"지영"}
		st.Columns.Set(projection.ColumnDate, false)
	}))

	table := r.View()
	require.Equal(t, 2, table.Len())
	assert.Len(t, table.Columns, 4)
	assert.Equal(t, "지영", table.Rows[0][1])

	before := r.State()
	err := r.Update(func(st *state.AppState) {
		st.Filter.Query = "ignored"
		st.Columns = projection.Selection{}
	})
	assert.ErrorIs(t, err, ErrNoColumns)
	assert.Equal(t, before, r.State(), "a rejected update leaves no trace")

	st := r.State()
	st.Filter.Senders[0] = "mutated"
	assert.Equal(t, []string{"지영"}, r.State().Filter.Senders)
}

func TestRunner_ContentPatterns(t *testing.T) {
	cfg := testConfig(t)
	cfg.ExcludeContent = []string{"^사진"}
	r, _ := newRunner(t, cfg, nil)
	require.NoError(t, r.Load(state.Upload{Text: chat}))

	for _, row := range r.View().Rows {
		assert.NotEqual(t, "사진", row[4])
	}

	cfg.IncludeContent = []string{"a"}
	_, err := New(cfg, nil, nil)
	assert.Error(t, err)
}

func TestRunner_Export(t *testing.T) {
	cfg := testConfig(t)
	r, events := newRunner(t, cfg, nil)

	_, err := r.Export(encode.FormatCSV)
	assert.ErrorIs(t, err, ErrNoTranscript)

	require.NoError(t, r.Load(state.Upload{Text: chat, Filename: "우리방.txt"}))

	for _, format := range []encode.Format{encode.FormatCSV, encode.FormatXLSX, encode.FormatPDF} {
		t.Run(string(format), func(t *testing.T) {
			a, err := r.Export(format)
			require.NoError(t, err)
			assert.Equal(t, "우리방"+format.Extension(), a.Filename)
			assert.Equal(t, 5, a.Rows)

			path, err := r.Write(a)
			require.NoError(t, err)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(a.Data, data))
		})
	}

	var rows, exports int
	for _, evt := range *events {
		switch evt.Type {
		case stats.EventTypeRowEncoded:
			rows++
		case stats.EventTypeExported:
			exports++
		}
	}
	assert.Equal(t, 15, rows)
	assert.Equal(t, 3, exports)
}

func TestRunner_ExportEmpty(t *testing.T) {
	r, events := newRunner(t, testConfig(t), nil)
	require.NoError(t, r.Load(state.Upload{Text: chat}))
	require.NoError(t, r.Update(func(st *state.AppState) { st.Filter.Query = "없는 단어" }))

	_, err := r.Export(encode.FormatXLSX)
	var emptyErr *encode.EmptyInputError
	require.True(t, errors.As(err, &emptyErr))

	last := (*events)[len(*events)-1]
	assert.Equal(t, stats.EventTypeError, last.Type)
}

func TestRunner_NameOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.Name = "report.csv"
	r, _ := newRunner(t, cfg, nil)
	require.NoError(t, r.Load(state.Upload{Text: chat, Filename: "chat.txt"}))

	a, err := r.Export(encode.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "report.csv", a.Filename)
}

func TestRunner_Session(t *testing.T) {
	store := state.NewMemoryStore()
	cfg := testConfig(t)

	r, _ := newRunner(t, cfg, store)
	assert.ErrorIs(t, r.LoadSession(), state.ErrSlotMissing)

	require.NoError(t, state.SaveUpload(store, state.Upload{Text: chat, Filename: "chat.txt"}))
	require.NoError(t, r.LoadSession())
	assert.Len(t, r.Messages(), 5)

	require.NoError(t, r.Update(func(st *state.AppState) { st.Filter.ExcludeSystem = true }))
	require.NoError(t, r.Save())

	again, _ := newRunner(t, cfg, store)
	assert.True(t, again.State().Filter.ExcludeSystem)

	noStore, _ := newRunner(t, cfg, nil)
	assert.ErrorIs(t, noStore.Save(), ErrNoStore)
	assert.ErrorIs(t, noStore.LoadSession(), ErrNoStore)
}

func TestRunner_RestoredSenderFilterIsLogged(t *testing.T) {
	store := state.NewMemoryStore()
	st := state.DefaultAppState()
	st.Filter.Senders = []string{"민수"}
	require.NoError(t, state.SaveAppState(store, st))

	var buf bytes.Buffer
	r, err := New(testConfig(t), slog.New(slog.NewTextHandler(&buf, nil)), store)
	require.NoError(t, err)
	assert.Equal(t, []string{"민수"}, r.State().Filter.Senders)
	assert.Contains(t, buf.String(), "restored saved sender filter")
	assert.Contains(t, buf.String(), "민수")

	buf.Reset()
	_, err = New(testConfig(t), slog.New(slog.NewTextHandler(&buf, nil)), state.NewMemoryStore())
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "restored saved sender filter")
}

func TestRunner_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.txt")
	require.NoError(t, os.WriteFile(path, []byte(chat), 0o644))

	cfg := testConfig(t)
	r, _ := newRunner(t, cfg, nil)
	require.NoError(t, r.LoadFile(path))
	assert.Len(t, r.Messages(), 5)

	cfg.MaxInputSize = 10
	small, _ := newRunner(t, cfg, nil)
	assert.ErrorIs(t, small.LoadFile(path), transcript.ErrInputTooLarge)
	assert.ErrorIs(t, small.Load(state.Upload{Text: strings.Repeat("x", 11)}), transcript.ErrInputTooLarge)
}
