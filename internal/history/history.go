package history

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"cattos-tracker/internal/parser"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxSnapshots is how many snapshots are kept per character.
	DefaultMaxSnapshots = 100
	// UnknownValue fills class and realm when the source has none.
	UnknownValue = "Unknown"

	dateTimeLayout = "2006-01-02 15:04:05"
)

// Snapshot is the equipment of one character at a point in time.
type Snapshot struct {
	Timestamp int64             `json:"timestamp"`
	DateTime  string            `json:"datetime"`
	Equipment map[string]uint64 `json:"equipment"`
}

// ItemCount counts slots holding an item.
func (s Snapshot) ItemCount() int {
	n := 0
	for _, id := range s.Equipment {
		if id > 0 {
			n++
		}
	}
	return n
}

// Character is the retained history of one "Name-Realm" key.
type Character struct {
	Character string     `json:"character"`
	Class     string     `json:"class"`
	Realm     string     `json:"realm"`
	Snapshots []Snapshot `json:"snapshots"`
}

// Name is the character name part of the key.
func (c *Character) Name() string {
	if name, _, ok := parser.SplitKey(c.Character); ok {
		return name
	}
	if c.Character == "" {
		return UnknownValue
	}
	return c.Character
}

// RealmName is the realm part of the key.
func (c *Character) RealmName() string {
	if _, realm, ok := parser.SplitKey(c.Character); ok {
		return realm
	}
	return UnknownValue
}

// Latest returns the newest snapshot, or nil when there is none.
func (c *Character) Latest() *Snapshot {
	if len(c.Snapshots) == 0 {
		return nil
	}
	return &c.Snapshots[len(c.Snapshots)-1]
}

func (c *Character) clone() Character {
	out := *c
	out.Snapshots = make([]Snapshot, len(c.Snapshots))
	for i, s := range c.Snapshots {
		s.Equipment = maps.Clone(s.Equipment)
		out.Snapshots[i] = s
	}
	return out
}

// Backend persists the whole character history.
type Backend interface {
	Load(ctx context.Context) (map[string]*Character, error)
	Save(ctx context.Context, characters []Character) error
	Close() error
}

// History is the in-memory source of truth for equipment snapshots,
// written through to a Backend on every change.
type History struct {
	mu           sync.RWMutex
	backend      Backend
	maxSnapshots int
	characters   map[string]*Character
}

// Open loads the backend's contents.
func Open(ctx context.Context, backend Backend, maxSnapshots int) (*History, error) {
	if maxSnapshots < 1 {
		maxSnapshots = DefaultMaxSnapshots
	}
	chars, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if chars == nil {
		chars = make(map[string]*Character)
	}

	log.Debug().Int("characters", len(chars)).Msg("Loaded equipment history")
	return &History{
		backend:      backend,
		maxSnapshots: maxSnapshots,
		characters:   chars,
	}, nil
}

// AddSnapshot records the equipment of key as seen at now. The snapshot is
// skipped when it equals the latest one. It reports whether a snapshot was
// appended. The class is updated either way. When the backend fails to
// save, the in-memory change is undone so the next call records it again.
func (h *History) AddSnapshot(ctx context.Context, key string, equipment map[string]uint64, class string, now time.Time) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	char, existed := h.characters[key]
	if !existed {
		realm := UnknownValue
		if _, r, ok := parser.SplitKey(key); ok {
			realm = r
		}
		char = &Character{Character: key, Class: class, Realm: realm}
		h.characters[key] = char
	}

	prevClass, prevSnapshots := char.Class, char.Snapshots
	rollback := func() {
		if !existed {
			delete(h.characters, key)
			return
		}
		char.Class = prevClass
		char.Snapshots = prevSnapshots
	}

	classChanged := char.Class != class
	char.Class = class

	if latest := char.Latest(); latest != nil && maps.Equal(latest.Equipment, equipment) {
		if !classChanged {
			return false, nil
		}
		if err := h.persist(ctx); err != nil {
			rollback()
			return false, err
		}
		return false, nil
	}

	eq := maps.Clone(equipment)
	if eq == nil {
		eq = make(map[string]uint64)
	}
	char.Snapshots = append(char.Snapshots, Snapshot{
		Timestamp: now.Unix(),
		DateTime:  now.Local().Format(dateTimeLayout),
		Equipment: eq,
	})
	if over := len(char.Snapshots) - h.maxSnapshots; over > 0 {
		char.Snapshots = slices.Clone(char.Snapshots[over:])
	}

	if err := h.persist(ctx); err != nil {
		rollback()
		return false, err
	}

	log.Debug().Str("character", key).Int("snapshots", len(char.Snapshots)).Msg("Recorded equipment snapshot")
	return true, nil
}

// persist must be called with h.mu held.
func (h *History) persist(ctx context.Context) error {
	if err := h.backend.Save(ctx, h.snapshotLocked()); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

func (h *History) snapshotLocked() []Character {
	out := make([]Character, 0, len(h.characters))
	for _, c := range h.characters {
		out = append(out, c.clone())
	}
	sortCharacters(out)
	return out
}

// Characters returns copies of every character ordered by realm, then name.
func (h *History) Characters() []Character {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshotLocked()
}

// Get returns a copy of one character.
func (h *History) Get(key string) (Character, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.characters[key]
	if !ok {
		return Character{}, false
	}
	return c.clone(), true
}

// Close releases the backend.
func (h *History) Close() error {
	return h.backend.Close()
}

func sortCharacters(chars []Character) {
	slices.SortFunc(chars, func(a, b Character) int {
		if r := cmp.Compare(a.RealmName(), b.RealmName()); r != 0 {
			return r
		}
		if r := cmp.Compare(a.Name(), b.Name()); r != 0 {
			return r
		}
		return cmp.Compare(a.Character, b.Character)
	})
}
