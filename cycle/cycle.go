package cycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	// Slots is the length of the posting pattern.
	Slots = 10
	// ImageSlot is the 0-indexed slot that posts an engagement question with a quote image.
	ImageSlot = Slots - 1
)

// ErrState marks an unreadable or out-of-range state file. Load recovers from it
// by starting at slot 0; it is only surfaced through logs.
var ErrState = errors.New("invalid cycle state")

// State is the persisted cycle position.
type State struct {
	Slot      int       `json:"slot_index"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// IsImageSlot reports whether slot is the engagement-plus-image slot.
func IsImageSlot(slot int) bool {
	return slot == ImageSlot
}

// Next returns the state one position further along the cycle.
func Next(s State) State {
	return State{Slot: (s.Slot + 1) % Slots}
}

func valid(slot int) bool {
	return slot >= 0 && slot < Slots
}

// Store persists State.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, s State) error
}

// FileStore keeps State as a small human-editable JSON file.
type FileStore struct {
	Path   string
	Logger *slog.Logger
	now    func() time.Time
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{Path: path, Logger: logger, now: time.Now}
}

// Load returns slot 0 when the file is missing, corrupt or out of range.
// Only I/O failures other than "not exist" are returned.
func (f *FileStore) Load(_ context.Context) (State, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		f.Logger.Info("no cycle state, starting at slot 0", "path", f.Path)
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read cycle state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		f.Logger.Warn("cycle state reset to slot 0", "path", f.Path, "error", fmt.Errorf("%w: %v", ErrState, err))
		return State{}, nil
	}
	if !valid(s.Slot) {
		f.Logger.Warn("cycle state reset to slot 0", "path", f.Path,
			"error", fmt.Errorf("%w: slot %d outside [0,%d]", ErrState, s.Slot, Slots-1))
		return State{}, nil
	}
	return s, nil
}

// Save writes the state through a temp file and rename so a crash never leaves half a file.
func (f *FileStore) Save(_ context.Context, s State) error {
	if !valid(s.Slot) {
		return fmt.Errorf("%w: slot %d", ErrState, s.Slot)
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = f.now().UTC()
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write cycle state: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cycle state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write cycle state: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return fmt.Errorf("write cycle state: %w", err)
	}
	return nil
}

// Tracker reads the slot once per invocation and advances it on request.
type Tracker struct {
	store Store
	state State
}

// NewTracker loads the current state from store.
func NewTracker(ctx context.Context, store Store) (*Tracker, error) {
	s, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Tracker{store: store, state: s}, nil
}

func (t *Tracker) CurrentSlot() int {
	return t.state.Slot
}

func (t *Tracker) IsImageSlot() bool {
	return IsImageSlot(t.state.Slot)
}

// Advance persists and returns the next slot. On a save error the in-memory
// slot is left unchanged.
func (t *Tracker) Advance(ctx context.Context) (int, error) {
	next := Next(t.state)
	if err := t.store.Save(ctx, next); err != nil {
		return t.state.Slot, err
	}
	t.state = next
	return next.Slot, nil
}
