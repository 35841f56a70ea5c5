package progress

import (
	"sync"

	"github.com/pterm/pterm"

	"github.com/dhcgn/kakaotalk-to-doc/stats"
)

// Bar shows encode progress for one export at a time.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	mu      sync.Mutex
	enabled bool
}

// New creates a progress bar. A disabled bar ignores every event.
func New(enabled bool) *Bar {
	return &Bar{enabled: enabled}
}

// Update advances the bar on row events and reports exports and errors.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeParsed:
		pterm.Info.Printf("Messages parsed: %d\n", evt.Count)
	case stats.EventTypeFiltered:
		pterm.Info.Printf("Messages selected: %d\n", evt.Count)
	case stats.EventTypeRowEncoded:
		if b.pb == nil || b.total != evt.Total {
			b.start(evt.Total)
		}
		b.pb.Increment()
		if evt.Count >= b.total {
			b.finish()
		}
	case stats.EventTypeExported:
		b.finish()
		pterm.Success.Printf("Saved %s\n", evt.Detail)
	case stats.EventTypeError:
		b.finish()
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	}
}

func (b *Bar) start(total int) {
	b.finish()
	pb, _ := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("Encoding rows").
		Start()
	b.pb = pb
	b.total = total
}

func (b *Bar) finish() {
	if b.pb == nil {
		return
	}
	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}
	_, _ = b.pb.Stop()
	b.pb = nil
}

// Stop finalizes any running bar.
func (b *Bar) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finish()
}

// PrintSummary renders a run summary as a pterm section.
func PrintSummary(s stats.Summary) {
	pterm.Println()
	pterm.DefaultSection.Println("Summary Statistics")
	pterm.Info.Printf("Parsed: %d\n", s.Parsed)
	pterm.Info.Printf("Selected: %d\n", s.Visible)
	pterm.Info.Printf("Rows encoded: %d\n", s.RowsEncoded)
	pterm.Info.Printf("Exports: %d\n", s.Exports)
	if s.Errors > 0 {
		pterm.Info.Printf("Errors: %d\n", s.Errors)
	}
	if s.LastError != nil {
		pterm.Error.Printf("Last error: %v\n", s.LastError)
	}
}
