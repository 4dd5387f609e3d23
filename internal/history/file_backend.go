package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// FileBackend keeps the history in one indented JSON document keyed by
// character, the format the desktop tracker reads.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load returns an empty history when the file is missing or unreadable.
func (b *FileBackend) Load(ctx context.Context) (map[string]*Character, error) {
	chars := make(map[string]*Character)

	data, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", b.path).Msg("Cannot read history file, starting empty")
		}
		return chars, nil
	}

	if err := json.Unmarshal(data, &chars); err != nil {
		log.Warn().Err(err).Str("path", b.path).Msg("Corrupt history file, starting empty")
		return make(map[string]*Character), nil
	}
	for key, c := range chars {
		if c == nil {
			delete(chars, key)
		}
	}
	return chars, nil
}

// Save rewrites the whole file through a temp file and rename.
func (b *FileBackend) Save(ctx context.Context, characters []Character) error {
	byKey := make(map[string]Character, len(characters))
	for _, c := range characters {
		byKey[c.Character] = c
	}

	data, err := json.MarshalIndent(byKey, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}

func (b *FileBackend) Close() error { return nil }
