package parser

import "strings"

// KeySeparator splits a character key into name and realm.
const KeySeparator = "-"

// Record holds the fields read for one character entry.
type Record struct {
	// Key is the entry key, "Name-Realm".
	Key string `json:"key"`

	Name            *string `json:"name,omitempty"`
	Realm           *string `json:"realm,omitempty"`
	Class           *string `json:"class,omitempty"`
	LastFingerprint *string `json:"lastFingerprint,omitempty"`
	LastUpdate      *uint64 `json:"lastUpdate,omitempty"`
	Level           *uint64 `json:"level,omitempty"`
	NeedsSync       *bool   `json:"needsSync,omitempty"`

	// Equipment maps raw slot names, as written by the addon, to item ids.
	// Never nil.
	Equipment map[string]uint64 `json:"equipment"`
}

// ClassOr returns the class or fallback when the entry carried none.
func (r *Record) ClassOr(fallback string) string {
	if r.Class == nil {
		return fallback
	}
	return *r.Class
}

// Result maps entry keys to their records.
type Result map[string]*Record

// IsEntryKey reports whether key has the "Name-Realm" shape.
func IsEntryKey(key string) bool {
	return strings.Contains(key, KeySeparator)
}

// SplitKey splits "Name-Realm" on the first separator. Character names
// cannot contain the separator, realm names can.
func SplitKey(key string) (name, realm string, ok bool) {
	return strings.Cut(key, KeySeparator)
}
