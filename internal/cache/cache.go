package cache

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"cattos-tracker/internal/history"
	"cattos-tracker/internal/textutil"

	"github.com/rs/zerolog/log"
)

// Fingerprint summarises the latest equipment of every character. Two
// histories with the same latest snapshots produce the same fingerprint
// regardless of map or slice order.
func Fingerprint(characters []history.Character) string {
	sorted := slices.Clone(characters)
	slices.SortFunc(sorted, func(a, b history.Character) int {
		return strings.Compare(a.Character, b.Character)
	})

	var sb strings.Builder
	for _, c := range sorted {
		sb.WriteString(c.Character)
		sb.WriteString(":")
		if latest := c.Latest(); latest != nil {
			for _, slot := range slices.Sorted(maps.Keys(latest.Equipment)) {
				fmt.Fprintf(&sb, "%s=%d,", slot, latest.Equipment[slot])
			}
		}
		sb.WriteString(";")
	}
	return textutil.Hash(sb.String())
}

// Ledger remembers the fingerprint last delivered upstream.
type Ledger struct {
	mu   sync.RWMutex
	sent string
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Changed reports whether fp differs from the last delivered fingerprint.
func (l *Ledger) Changed(fp string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fp != l.sent
}

// Mark records fp as delivered.
func (l *Ledger) Mark(fp string) {
	l.mu.Lock()
	l.sent = fp
	l.mu.Unlock()

	log.Debug().Str("fingerprint", textutil.Truncate(fp, 12)).Msg("Marked equipment as delivered")
}

// Reset forgets the last delivery so the next check reports a change.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.sent = ""
	l.mu.Unlock()
}
