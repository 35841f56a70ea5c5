package filter

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/kakaotalk-to-doc/model"
)

func day(d, h, m int) time.Time {
	return time.Date(2025, 12, d, h, m, 0, 0, time.UTC)
}

var sample = []model.Message{
	{Timestamp: day(28, 23, 59), Sender: "", Content: "민수님이 들어왔습니다.", Type: model.TypeSystem},
	{Timestamp: day(29, 0, 0), Sender: "민수", Content: "안녕하세요", Type: model.TypeMessage},
	{Timestamp: day(29, 18, 1), Sender: "지영", Content: "Hello World", Type: model.TypeMessage},
	{Timestamp: day(30, 12, 0), Sender: "민수", Content: model.ImageIconMarker + "사진", Type: model.TypeImage},
	{Timestamp: day(30, 23, 59), Sender: "Bob", Content: "동영상🎞", Type: model.TypeVideo},
	{Timestamp: day(31, 0, 0), Sender: "지영", Content: "새해", Type: model.TypeMessage},
}

func TestFilter_ExcludeSystem(t *testing.T) {
	got := Apply(sample, Criteria{ExcludeSystem: true})

	assert.Len(t, got, len(sample)-1)
	for _, m := range got {
		assert.NotEqual(t, model.TypeSystem, m.Type)
	}
}

func TestFilter_DateRangeInclusive(t *testing.T) {
	got := Apply(sample, Criteria{DateStart: day(29, 15, 0), DateEnd: day(30, 8, 0)})

	require.Len(t, got, 4)
	assert.Equal(t, day(29, 0, 0), got[0].Timestamp, "start day begins at midnight")
	assert.Equal(t, day(30, 23, 59), got[3].Timestamp, "end day runs through 23:59:59.999")
}

func TestFilter_EndOfDayBoundary(t *testing.T) {
	msgs := []model.Message{
		{Timestamp: time.Date(2025, 12, 30, 23, 59, 59, int(999*time.Millisecond), time.UTC)},
		{Timestamp: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
	got := Apply(msgs, Criteria{DateEnd: day(30, 0, 0)})
	assert.Len(t, got, 1)
}

func TestFilter_Senders(t *testing.T) {
	got := Apply(sample, Criteria{Senders: []string{"지영"}})

	require.Len(t, got, 2)
	for _, m := range got {
		assert.Equal(t, "지영", m.Sender)
	}
}

func TestFilter_QueryMatchesSenderOrContent(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "content case-insensitive", query: "hello", want: 1},
		{name: "sender case-insensitive", query: "bob", want: 1},
		{name: "hangul", query: "민수", want: 3},
		{name: "marker text is not searchable", query: "image_icon", want: 0},
		{name: "blank query ignored", query: "   ", want: len(sample)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Apply(sample, Criteria{Query: tt.query}), tt.want)
		})
	}
}

func TestFilter_Conjunction(t *testing.T) {
	got := Apply(sample, Criteria{
		ExcludeSystem: true,
		DateStart:     day(30, 0, 0),
		Senders:       []string{"민수", "지영"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, model.TypeImage, got[0].Type)
	assert.Equal(t, "새해", got[1].Content)
}

func TestFilter_IncludeContentPatterns(t *testing.T) {
	f, err := New(Options{IncludeContent: []string{"^사진", "World$"}})
	require.NoError(t, err)

	got := f.Apply(sample)
	require.Len(t, got, 2)
	assert.Equal(t, "Hello World", got[0].Content)
}

func TestFilter_ExcludeContentPatterns(t *testing.T) {
	f, err := New(Options{ExcludeContent: []string{"동영상"}})
	require.NoError(t, err)

	assert.Len(t, f.Apply(sample), len(sample)-1)
}

func TestFilter_MutuallyExclusive(t *testing.T) {
	_, err := New(Options{
		IncludeContent: []string{"test"},
		ExcludeContent: []string{"spam"},
	})
	if err == nil {
		t.Error("Expected error when both include and exclude are specified")
	}
}

func TestFilter_InvalidPattern(t *testing.T) {
	_, err := New(Options{IncludeContent: []string{"("}})
	assert.Error(t, err)
}

func TestFilter_NoCriteriaKeepsEverything(t *testing.T) {
	got := Apply(sample, Criteria{})
	assert.Equal(t, sample, got)
}

// Every result must be a subsequence of the input, for any criteria.
func TestFilter_SubsequenceProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	senders := []string{"민수", "지영", "Bob", ""}

	for i := 0; i < 200; i++ {
		c := Criteria{
			ExcludeSystem: rng.Intn(2) == 0,
			Query:         []string{"", "하", "o", "사진"}[rng.Intn(4)],
		}
		if rng.Intn(2) == 0 {
			c.DateStart = day(28+rng.Intn(4), 0, 0)
		}
		if rng.Intn(2) == 0 {
			c.DateEnd = day(28+rng.Intn(4), 0, 0)
		}
		if rng.Intn(2) == 0 {
			c.Senders = []string{senders[rng.Intn(len(senders))]}
		}

		before := append([]model.Message(nil), sample...)
		got := Apply(sample, c)

		require.LessOrEqual(t, len(got), len(sample))
		j := 0
		for _, m := range got {
			for j < len(sample) && sample[j] != m {
				j++
			}
			require.Less(t, j, len(sample), "result element not found in order: %+v", m)
			j++
		}
		require.Equal(t, before, sample, "input must not be mutated")
		assert.Equal(t, got, Apply(got, c), "filter must be idempotent")
	}
}

func TestParticipants(t *testing.T) {
	assert.Equal(t, []string{"Bob", "민수", "지영"}, Participants(sample))
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2025-12-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDay("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseDay("29.12.2025")
	assert.Error(t, err)
}
