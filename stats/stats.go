package stats

import (
	"log/slog"
	"sync"
	"time"
)

type Stage string

const (
	StageParse  Stage = "parse"
	StageFilter Stage = "filter"
	StageEncode Stage = "encode"
	StageState  Stage = "state"
)

type EventType string

const (
	EventTypeParsed     EventType = "parsed"
	EventTypeFiltered   EventType = "filtered"
	EventTypeRowEncoded EventType = "row_encoded"
	EventTypeExported   EventType = "exported"
	EventTypeSaved      EventType = "saved"
	EventTypeError      EventType = "error"
)

// Event is emitted by the controller as the pipeline advances. Count and
// Total carry stage specific quantities (records parsed, rows encoded).
type Event struct {
	Stage  Stage
	Type   EventType
	Count  int
	Total  int
	Detail string
	Err    error
}

type Summary struct {
	Parsed      int
	Visible     int
	RowsEncoded int
	Exports     int
	Saves       int
	Errors      int
	LastExport  string
	LastError   error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"parsed", s.Parsed,
		"visible", s.Visible,
		"rowsEncoded", s.RowsEncoded,
		"exports", s.Exports,
		"saves", s.Saves,
		"errors", s.Errors,
	}
	if s.LastExport != "" {
		attrs = append(attrs, "lastExport", s.LastExport)
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

// Observe folds one event into the summary.
func (c *Collector) Observe(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeParsed:
		c.summary.Parsed = evt.Count
		c.summary.Visible = evt.Count
	case EventTypeFiltered:
		c.summary.Visible = evt.Count
	case EventTypeRowEncoded:
		c.summary.RowsEncoded++
	case EventTypeExported:
		c.summary.Exports++
		c.summary.LastExport = evt.Detail
	case EventTypeSaved:
		c.summary.Saves++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

// EventStream delivers events to subscribers synchronously, in emission
// order.
type EventStream interface {
	Subscribe(name string, fn func(Event))
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.Subscribe("stats-reporter", reporter.collector.Observe)
	return reporter
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

// Log writes the summary at info level.
func (r *Reporter) Log() {
	if r.logger == nil {
		return
	}
	attrs := append(r.Summary().LogAttrs(), "duration", time.Since(r.started))
	r.logger.Info("stats summary", attrs...)
}
