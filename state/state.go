package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dhcgn/kakaotalk-to-doc/filter"
	"github.com/dhcgn/kakaotalk-to-doc/projection"
)

// Slot names shared with the upload step.
const (
	SlotUploadedFile     = "uploadedFile"
	SlotUploadedFileName = "uploadedFileName"
	SlotAppState         = "convert-options-storage"
)

// ErrSlotMissing is returned when a slot has never been written.
var ErrSlotMissing = errors.New("slot missing")

// Store holds named string slots.
type Store interface {
	PutSlot(key, value string) error
	GetSlot(key string) (string, error)
	DeleteSlot(key string) error
	Close() error
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Open returns the store for backend rooted at dir.
func Open(backend Backend, dir string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		return NewFileStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(dir)
	}
	return nil, fmt.Errorf("unknown state backend %q", backend)
}

type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]string)}
}

func (m *MemoryStore) PutSlot(key, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("slot key is empty")
	}
	m.mu.Lock()
	m.slots[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetSlot(key string) (string, error) {
	m.mu.RLock()
	v, ok := m.slots[key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%s: %w", key, ErrSlotMissing)
	}
	return v, nil
}

func (m *MemoryStore) DeleteSlot(key string) error {
	m.mu.Lock()
	delete(m.slots, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored slots.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}

func (m *MemoryStore) Close() error { return nil }

// Upload is the raw transcript handed from the upload step to conversion.
type Upload struct {
	Text     string
	Filename string
}

// SaveUpload writes both upload slots.
func SaveUpload(s Store, u Upload) error {
	if err := s.PutSlot(SlotUploadedFile, u.Text); err != nil {
		return fmt.Errorf("save uploaded text: %w", err)
	}
	if err := s.PutSlot(SlotUploadedFileName, u.Filename); err != nil {
		return fmt.Errorf("save uploaded filename: %w", err)
	}
	return nil
}

// LoadUpload reads the upload slots. A missing text slot is an error; a
// missing filename is reported as empty.
func LoadUpload(s Store) (Upload, error) {
	text, err := s.GetSlot(SlotUploadedFile)
	if err != nil {
		return Upload{}, fmt.Errorf("load uploaded text: %w", err)
	}
	name, err := s.GetSlot(SlotUploadedFileName)
	if err != nil && !errors.Is(err, ErrSlotMissing) {
		return Upload{}, fmt.Errorf("load uploaded filename: %w", err)
	}
	return Upload{Text: text, Filename: name}, nil
}

// ClearUpload removes both upload slots.
func ClearUpload(s Store) error {
	if err := s.DeleteSlot(SlotUploadedFile); err != nil {
		return err
	}
	return s.DeleteSlot(SlotUploadedFileName)
}

// AppState is the caller-editable conversion state.
type AppState struct {
	Filter  filter.Criteria      `json:"filterOptions"`
	Columns projection.Selection `json:"columnOptions"`
}

// DefaultAppState shows every record and every column.
func DefaultAppState() AppState {
	return AppState{Columns: projection.NewSelection()}
}

const appStateVersion = 1

type appStateEnvelope struct {
	State   AppState `json:"state"`
	Version int      `json:"version"`
}

// SaveAppState persists st under SlotAppState.
func SaveAppState(s Store, st AppState) error {
	data, err := json.Marshal(appStateEnvelope{State: st, Version: appStateVersion})
	if err != nil {
		return fmt.Errorf("encode app state: %w", err)
	}
	if err := s.PutSlot(SlotAppState, string(data)); err != nil {
		return fmt.Errorf("save app state: %w", err)
	}
	return nil
}

// LoadAppState restores the persisted state, or the defaults when none was
// saved.
func LoadAppState(s Store) (AppState, error) {
	raw, err := s.GetSlot(SlotAppState)
	if errors.Is(err, ErrSlotMissing) {
		return DefaultAppState(), nil
	}
	if err != nil {
		return AppState{}, fmt.Errorf("load app state: %w", err)
	}
	env := appStateEnvelope{State: DefaultAppState()}
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return AppState{}, fmt.Errorf("decode app state: %w", err)
	}
	return env.State, nil
}
