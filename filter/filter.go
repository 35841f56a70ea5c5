package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dhcgn/kakaotalk-to-doc/model"
)

// Criteria is the caller-editable filter state. Zero values disable the
// corresponding predicate.
type Criteria struct {
	ExcludeSystem bool      `json:"excludeSystemMessages"`
	DateStart     time.Time `json:"dateStart,omitzero"`
	DateEnd       time.Time `json:"dateEnd,omitzero"`
	Senders       []string  `json:"selectedParticipants,omitempty"`
	Query         string    `json:"query,omitempty"`
}

// Options captures the filtering configuration.
type Options struct {
	Criteria
	IncludeContent []string
	ExcludeContent []string
}

// Filter holds the compiled predicates for one Options value.
type Filter struct {
	excludeSystem  bool
	start          time.Time
	end            time.Time
	hasStart       bool
	hasEnd         bool
	senders        map[string]struct{}
	query          string
	includeMode    bool
	excludeMode    bool
	includeContent []*regexp.Regexp
	excludeContent []*regexp.Regexp
}

// New creates a new Filter from the provided options.
func New(opts Options) (*Filter, error) {
	includeContent, err := compilePatterns(opts.IncludeContent)
	if err != nil {
		return nil, fmt.Errorf("compile include-content pattern: %w", err)
	}
	excludeContent, err := compilePatterns(opts.ExcludeContent)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-content pattern: %w", err)
	}

	includeActive := len(includeContent) > 0
	excludeActive := len(excludeContent) > 0
	if includeActive && excludeActive {
		return nil, fmt.Errorf("include and exclude filters are mutually exclusive")
	}

	return compile(opts.Criteria, includeContent, excludeContent), nil
}

// Apply filters msgs against criteria. It never fails and never mutates msgs.
func Apply(msgs []model.Message, criteria Criteria) []model.Message {
	return compile(criteria, nil, nil).Apply(msgs)
}

func compile(c Criteria, includeContent, excludeContent []*regexp.Regexp) *Filter {
	f := &Filter{
		excludeSystem:  c.ExcludeSystem,
		hasStart:       !c.DateStart.IsZero(),
		hasEnd:         !c.DateEnd.IsZero(),
		includeMode:    len(includeContent) > 0,
		excludeMode:    len(excludeContent) > 0,
		includeContent: includeContent,
		excludeContent: excludeContent,
	}
	if f.hasStart {
		f.start = StartOfDay(c.DateStart)
	}
	if f.hasEnd {
		f.end = EndOfDay(c.DateEnd)
	}
	if len(c.Senders) > 0 {
		f.senders = make(map[string]struct{}, len(c.Senders))
		for _, s := range c.Senders {
			f.senders[s] = struct{}{}
		}
	}
	if strings.TrimSpace(c.Query) != "" {
		f.query = strings.ToLower(c.Query)
	}
	return f
}

// Allows returns true if the message passes every active predicate.
func (f *Filter) Allows(msg model.Message) bool {
	if f.excludeSystem && msg.Type == model.TypeSystem {
		return false
	}
	if f.hasStart && msg.Timestamp.Before(f.start) {
		return false
	}
	if f.hasEnd && msg.Timestamp.After(f.end) {
		return false
	}
	if f.senders != nil {
		if _, ok := f.senders[msg.Sender]; !ok {
			return false
		}
	}

	content := msg.PlainContent()
	if f.query != "" {
		if !strings.Contains(strings.ToLower(msg.Sender), f.query) &&
			!strings.Contains(strings.ToLower(content), f.query) {
			return false
		}
	}

	if f.includeMode {
		return matchAny(f.includeContent, content)
	}
	if f.excludeMode && matchAny(f.excludeContent, content) {
		return false
	}

	return true
}

// Apply returns the allowed messages in their original order.
func (f *Filter) Apply(msgs []model.Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if f.Allows(m) {
			out = append(out, m)
		}
	}
	return out
}

// Participants lists the distinct non-blank senders, sorted.
func Participants(msgs []model.Message) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range msgs {
		if strings.TrimSpace(m.Sender) == "" {
			continue
		}
		if _, ok := seen[m.Sender]; ok {
			continue
		}
		seen[m.Sender] = struct{}{}
		names = append(names, m.Sender)
	}
	sort.Strings(names)
	return names
}

// StartOfDay returns 00:00:00 of the calendar day of t.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns 23:59:59.999 of the calendar day of t.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

// ParseDay parses a YYYY-MM-DD calendar day. An empty string yields the zero
// time.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	if len(patterns) == 0 {
		return false
	}
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
