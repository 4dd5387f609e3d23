package parser

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cattos-tracker/internal/luatable"

	"github.com/rs/zerolog"
)

const (
	// DefaultMarker is the global the tracker addon writes at the top of its file.
	DefaultMarker = "CattosItemTracker_DB"
	// DefaultContainer is the table holding one entry per character.
	DefaultContainer = "characters"

	equipmentTable = "equipment"
)

// SavedVariablesParser extracts character records from the tracker addon's
// SavedVariables file. It holds no per-call state and is safe for
// concurrent use.
type SavedVariablesParser struct {
	marker    string
	container string
	logger    zerolog.Logger
}

// Option configures a SavedVariablesParser.
type Option func(*SavedVariablesParser)

// WithMarker overrides the producer marker.
func WithMarker(marker string) Option {
	return func(p *SavedVariablesParser) {
		if marker != "" {
			p.marker = marker
		}
	}
}

// WithContainer overrides the name of the character table.
func WithContainer(name string) Option {
	return func(p *SavedVariablesParser) {
		if name != "" {
			p.container = name
		}
	}
}

// WithLogger enables debug tracing of skipped keys and entries.
func WithLogger(l zerolog.Logger) Option {
	return func(p *SavedVariablesParser) { p.logger = l }
}

func NewSavedVariablesParser(opts ...Option) *SavedVariablesParser {
	p := &SavedVariablesParser{
		marker:    DefaultMarker,
		container: DefaultContainer,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CanParse returns true for Lua files.
func (p *SavedVariablesParser) CanParse(ext string) bool {
	return strings.EqualFold(ext, ".lua")
}

// ParseFile reads filePath and parses it.
func (p *SavedVariablesParser) ParseFile(filePath string) (Result, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filePath, errors.Join(ErrFileNotFound, err))
	}
	result, err := p.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	return result, nil
}

// Parse extracts every character entry from text. Only a missing marker is
// an error; a missing or unbalanced character table yields an empty result,
// malformed entries are skipped and malformed fields are left unset.
func (p *SavedVariablesParser) Parse(text string) (Result, error) {
	if !strings.Contains(text, p.marker) {
		return nil, fmt.Errorf("%w: missing %q", ErrUnrecognizedFormat, p.marker)
	}

	result := make(Result)

	body, ok := luatable.Table(text, p.container)
	if !ok {
		p.logger.Debug().Str("table", p.container).Msg("Character table missing or unbalanced")
		return result, nil
	}

	for _, entry := range luatable.Entries(body) {
		if !IsEntryKey(entry.Key) {
			p.logger.Debug().Str("key", entry.Key).Msg("Skipping non-character key")
			continue
		}
		if !entry.Balanced {
			p.logger.Debug().Str("key", entry.Key).Int("offset", entry.Start).Msg("Skipping unbalanced entry")
			continue
		}
		result[entry.Key] = assemble(entry.Key, entry.Body)
	}

	p.logger.Debug().Int("characters", len(result)).Msg("Parsed saved variables")
	return result, nil
}

func assemble(key, body string) *Record {
	rec := &Record{
		Key:       key,
		Equipment: make(map[string]uint64),
	}

	rec.Name = optString(body, "name")
	rec.Realm = optString(body, "realm")
	rec.Class = optString(body, "class")
	rec.LastFingerprint = optString(body, "lastFingerprint")
	rec.LastUpdate = optUint(body, "lastUpdate")
	rec.Level = optUint(body, "level")
	if v, ok := luatable.Bool(body, "needsSync"); ok {
		rec.NeedsSync = &v
	}

	if equip, ok := luatable.Table(body, equipmentTable); ok {
		rec.Equipment = luatable.UintMap(equip)
	}

	return rec
}

func optString(body, key string) *string {
	if v, ok := luatable.String(body, key); ok {
		return &v
	}
	return nil
}

func optUint(body, key string) *uint64 {
	if v, ok := luatable.Uint(body, key); ok {
		return &v
	}
	return nil
}
