package stats

import (
	"sort"
	"time"

	"github.com/dhcgn/kakaotalk-to-doc/model"
)

// Transcript aggregates a message sequence.
type Transcript struct {
	Total    int
	First    time.Time
	Last     time.Time
	ByType   map[model.Type]int
	BySender map[string]int
	ByDay    map[string]int
}

// Analyze counts msgs by type, sender and calendar day. System records
// have no sender and are only counted by type and day.
func Analyze(msgs []model.Message) Transcript {
	t := Transcript{
		Total:    len(msgs),
		ByType:   make(map[model.Type]int),
		BySender: make(map[string]int),
		ByDay:    make(map[string]int),
	}
	for _, m := range msgs {
		t.ByType[m.Type]++
		if m.Sender != "" {
			t.BySender[m.Sender]++
		}
		t.ByDay[m.Timestamp.Format(time.DateOnly)]++

		if t.First.IsZero() || m.Timestamp.Before(t.First) {
			t.First = m.Timestamp
		}
		if m.Timestamp.After(t.Last) {
			t.Last = m.Timestamp
		}
	}
	return t
}

// Pair is one counted key.
type Pair struct {
	Key   string
	Value int
}

// Top returns the limit most frequent keys, ties broken by key. A
// non-positive limit returns every key.
func Top(m map[string]int, limit int) []Pair {
	pairs := make([]Pair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, Pair{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value != pairs[j].Value {
			return pairs[i].Value > pairs[j].Value
		}
		return pairs[i].Key < pairs[j].Key
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// Days returns the per-day counts in calendar order.
func (t Transcript) Days() []Pair {
	pairs := make([]Pair, 0, len(t.ByDay))
	for k, v := range t.ByDay {
		pairs = append(pairs, Pair{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs
}

// Types returns the per-type counts keyed by display label, in the fixed
// type order.
func (t Transcript) Types() []Pair {
	order := []model.Type{model.TypeMessage, model.TypeSystem, model.TypeImage, model.TypeVideo}
	pairs := make([]Pair, 0, len(order))
	for _, typ := range order {
		if n := t.ByType[typ]; n > 0 {
			pairs = append(pairs, Pair{typ.Label(), n})
		}
	}
	return pairs
}
