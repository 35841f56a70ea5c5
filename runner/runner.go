package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/dhcgn/kakaotalk-to-doc/config"
	"github.com/dhcgn/kakaotalk-to-doc/encode"
	"github.com/dhcgn/kakaotalk-to-doc/filter"
	"github.com/dhcgn/kakaotalk-to-doc/layout"
	"github.com/dhcgn/kakaotalk-to-doc/model"
	"github.com/dhcgn/kakaotalk-to-doc/projection"
	"github.com/dhcgn/kakaotalk-to-doc/state"
	"github.com/dhcgn/kakaotalk-to-doc/stats"
	"github.com/dhcgn/kakaotalk-to-doc/transcript"
)

var (
	ErrNoTranscript = errors.New("no transcript loaded")
	ErrNoColumns    = errors.New("at least one column must be selected")
	ErrNoStore      = errors.New("no state store configured")
)

type subscriber struct {
	name string
	fn   func(stats.Event)
}

// Runner owns the parsed transcript and the caller-editable application
// state, and drives parse, filter, projection and encoding. Every call runs
// to completion on the caller's goroutine.
type Runner struct {
	cfg    config.Config
	logger *slog.Logger
	store  state.Store

	mu       sync.Mutex
	upload   state.Upload
	loaded   bool
	messages []model.Message
	app      state.AppState
	content  *filter.Filter
	engine   *layout.Engine

	subscribers []subscriber
}

// New creates a controller. store may be nil, in which case session
// operations fail with ErrNoStore and the state comes from cfg alone.
func New(cfg config.Config, logger *slog.Logger, store state.Store) (*Runner, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	content, err := filter.New(filter.Options{
		IncludeContent: cfg.IncludeContent,
		ExcludeContent: cfg.ExcludeContent,
	})
	if err != nil {
		return nil, fmt.Errorf("content filter: %w", err)
	}

	app := cfg.AppState()
	if store != nil {
		saved, err := state.LoadAppState(store)
		if err != nil {
			return nil, err
		}
		app = cfg.ApplyOverrides(saved)
		if len(app.Filter.Senders) > 0 {
			logger.Info("restored saved sender filter", "senders", app.Filter.Senders, "reset", `--sender ""`)
		}
	}

	return &Runner{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		app:     app,
		content: content,
	}, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

// Subscribe registers fn for every subsequent event. Subscribers run
// synchronously in registration order.
func (r *Runner) Subscribe(name string, fn func(stats.Event)) {
	r.subscribers = append(r.subscribers, subscriber{name: name, fn: fn})
}

func (r *Runner) emit(evt stats.Event) {
	for _, s := range r.subscribers {
		s.fn(evt)
	}
}

func (r *Runner) fail(stage stats.Stage, err error) error {
	r.emit(stats.Event{Stage: stage, Type: stats.EventTypeError, Err: err})
	return err
}

// LoadFile reads and parses a transcript from disk.
func (r *Runner) LoadFile(path string) error {
	text, err := transcript.ReadText(path, transcript.Options{MaxSize: r.cfg.MaxInputSize})
	if err != nil {
		return r.fail(stats.StageParse, err)
	}
	return r.Load(state.Upload{Text: text, Filename: filepath.Base(path)})
}

// LoadSession parses the transcript left in the session slots by the
// upload step.
func (r *Runner) LoadSession() error {
	if r.store == nil {
		return r.fail(stats.StageState, ErrNoStore)
	}
	u, err := state.LoadUpload(r.store)
	if err != nil {
		return r.fail(stats.StageState, err)
	}
	return r.Load(u)
}

// Load parses u and replaces the current message sequence.
func (r *Runner) Load(u state.Upload) error {
	if err := transcript.CheckSize(u.Text, r.cfg.MaxInputSize); err != nil {
		return r.fail(stats.StageParse, err)
	}

	msgs := transcript.ParseString(u.Text, transcript.Options{
		MaxSize: r.cfg.MaxInputSize,
		Logger:  r.logger,
	})

	r.mu.Lock()
	r.upload = u
	r.loaded = true
	r.messages = msgs
	r.mu.Unlock()

	r.logger.Info("transcript loaded", "file", u.Filename, "messages", len(msgs))
	r.emit(stats.Event{Stage: stats.StageParse, Type: stats.EventTypeParsed, Count: len(msgs), Detail: u.Filename})
	return nil
}

// Messages returns the parsed sequence. Callers must not modify it.
func (r *Runner) Messages() []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages
}

// Participants lists the senders available for the sender allow-list.
func (r *Runner) Participants() []string {
	return filter.Participants(r.Messages())
}

// State returns a copy of the current application state.
func (r *Runner) State() state.AppState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneState(r.app)
}

// Update applies fn to a copy of the state and publishes the copy only if
// it is valid, so no caller ever observes a partial update.
func (r *Runner) Update(fn func(*state.AppState)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := cloneState(r.app)
	fn(&next)
	if next.Columns.Count() == 0 {
		return ErrNoColumns
	}
	r.app = next
	return nil
}

// Visible returns the messages passing the current filter.
func (r *Runner) Visible() []model.Message {
	r.mu.Lock()
	msgs, app := r.messages, r.app
	r.mu.Unlock()

	visible := filter.Apply(msgs, app.Filter)
	if r.content != nil {
		visible = r.content.Apply(visible)
	}
	r.emit(stats.Event{Stage: stats.StageFilter, Type: stats.EventTypeFiltered, Count: len(visible), Total: len(msgs)})
	return visible
}

// View projects the visible messages onto the selected columns.
func (r *Runner) View() projection.Table {
	visible := r.Visible()
	return projection.Project(visible, r.State().Columns)
}

// Export encodes the current view.
func (r *Runner) Export(format encode.Format) (encode.Artifact, error) {
	r.mu.Lock()
	loaded := r.loaded
	r.mu.Unlock()
	if !loaded {
		return encode.Artifact{}, r.fail(stats.StageEncode, ErrNoTranscript)
	}

	enc, err := r.encoder(format)
	if err != nil {
		return encode.Artifact{}, r.fail(stats.StageEncode, err)
	}

	table := r.View()
	artifact, err := enc.Encode(table, r.stem())
	if err != nil {
		return encode.Artifact{}, r.fail(stats.StageEncode, err)
	}

	r.logger.Info("document encoded", "format", format, "file", artifact.Filename, "rows", artifact.Rows, "bytes", len(artifact.Data))
	return artifact, nil
}

func (r *Runner) encoder(format encode.Format) (encode.Encoder, error) {
	opts := encode.Options{
		Verify: r.cfg.Verify,
		Logger: r.logger,
		Progress: func(done, total int) {
			r.emit(stats.Event{Stage: stats.StageEncode, Type: stats.EventTypeRowEncoded, Count: done, Total: total})
		},
	}
	if format == encode.FormatPDF {
		engine, err := r.layoutEngine()
		if err != nil {
			return nil, err
		}
		opts.Engine = engine
	}
	return encode.New(format, opts)
}

func (r *Runner) layoutEngine() (*layout.Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine != nil {
		return r.engine, nil
	}

	engine, err := encode.NewEngine(encode.Options{
		FontPath:     r.cfg.FontPath,
		FontFallback: r.cfg.FontFallback,
		Logger:       r.logger,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("layout engine ready", "typeface", engine.Typeface().Name())
	r.engine = engine
	return r.engine, nil
}

func (r *Runner) stem() string {
	if r.cfg.Name != "" {
		return r.cfg.Name
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return encode.StemFromUpload(r.upload.Filename)
}

// Write stores a to the configured output directory and returns its path.
func (r *Runner) Write(a encode.Artifact) (string, error) {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return "", r.fail(stats.StageEncode, fmt.Errorf("create output directory: %w", err))
	}
	path := filepath.Join(r.cfg.OutputDir, a.Filename)
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", r.fail(stats.StageEncode, fmt.Errorf("write %s: %w", a.Filename, err))
	}
	r.emit(stats.Event{Stage: stats.StageEncode, Type: stats.EventTypeExported, Count: len(a.Data), Detail: path})
	return path, nil
}

// Save persists the application state.
func (r *Runner) Save() error {
	if r.store == nil {
		return r.fail(stats.StageState, ErrNoStore)
	}
	if err := state.SaveAppState(r.store, r.State()); err != nil {
		return r.fail(stats.StageState, err)
	}
	r.emit(stats.Event{Stage: stats.StageState, Type: stats.EventTypeSaved})
	return nil
}

func cloneState(st state.AppState) state.AppState {
	st.Filter.Senders = slices.Clone(st.Filter.Senders)
	return st
}
