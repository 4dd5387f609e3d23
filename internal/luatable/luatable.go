// Package luatable reads values out of Lua table literals as written by
// addon SavedVariables serializers.
//
// Only the serializer subset is understood: tables keyed by bracketed,
// double-quoted strings whose values are strings, non-negative integers,
// booleans or further tables. Braces inside string values are not
// special-cased.
package luatable

import (
	"regexp"
	"strconv"
)

// tableHeaderPattern matches `["key"] = {` and captures the key.
var tableHeaderPattern = regexp.MustCompile(`\["([^"]+)"\]\s*=\s*\{`)

// scalarPairPattern matches `["key"] = token` where token runs to the next separator.
var scalarPairPattern = regexp.MustCompile(`\["([^"]+)"\]\s*=\s*([^,;{}\s]+)`)

// Entry is one `["key"] = {` table found in a body.
type Entry struct {
	Key string
	// Start is the index just past the entry's opening brace.
	Start int
	// Body is the balanced content of the entry. Empty when Balanced is false.
	Body     string
	Balanced bool
}

// Pair is a `["key"] = <unsigned integer>` assignment.
type Pair struct {
	Key   string
	Value uint64
}

// Locate returns the index just past the opening brace of the first
// `["name"] = {` in text.
func Locate(text, name string) (int, bool) {
	re := regexp.MustCompile(`\["` + regexp.QuoteMeta(name) + `"\]\s*=\s*\{`)
	loc := re.FindStringIndex(text)
	if loc == nil {
		return 0, false
	}
	return loc[1], true
}

// Body returns text[start:end] where end is the index of the brace that
// closes the table opened right before start. It reports false when the
// table is never closed.
func Body(text string, start int) (string, bool) {
	end, ok := closingBrace(text, start)
	if !ok {
		return "", false
	}
	return text[start:end], true
}

// Table locates the named table in text and returns its body.
func Table(text, name string) (string, bool) {
	start, ok := Locate(text, name)
	if !ok {
		return "", false
	}
	return Body(text, start)
}

func closingBrace(text string, start int) (int, bool) {
	if start < 0 || start > len(text) {
		return 0, false
	}
	depth := 1
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// Entries lists the tables assigned in body, in document order. A balanced
// entry is consumed whole, so tables nested inside it are not listed.
// Unbalanced entries are reported with Balanced false and scanning resumes
// right after their header.
func Entries(body string) []Entry {
	var entries []Entry
	pos := 0
	for pos < len(body) {
		loc := tableHeaderPattern.FindStringSubmatchIndex(body[pos:])
		if loc == nil {
			break
		}
		key := body[pos+loc[2] : pos+loc[3]]
		start := pos + loc[1]

		entry := Entry{Key: key, Start: start}
		if end, ok := closingBrace(body, start); ok {
			entry.Body = body[start:end]
			entry.Balanced = true
			pos = end + 1
		} else {
			pos = start
		}
		entries = append(entries, entry)
	}
	return entries
}

func valuePattern(key, value string) *regexp.Regexp {
	return regexp.MustCompile(`\["` + regexp.QuoteMeta(key) + `"\]\s*=\s*` + value)
}

// String returns the first string literal assigned to key.
func String(body, key string) (string, bool) {
	m := valuePattern(key, `"([^"]*)"`).FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Uint returns the first value assigned to key when it is made only of
// decimal digits and fits in a uint64. Anything else, such as a sign, a
// fraction or trailing letters, reports false.
func Uint(body, key string) (uint64, bool) {
	m := valuePattern(key, `([^,;{}\s]+)`).FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	return parseDigits(m[1])
}

// Bool returns the first value assigned to key when it is exactly true or false.
func Bool(body, key string) (bool, bool) {
	m := valuePattern(key, `([^,;{}\s]+)`).FindStringSubmatch(body)
	if m == nil {
		return false, false
	}
	switch m[1] {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// UintPairs lists every `["key"] = <digits>` assignment in body in document
// order. Assignments with non-integer values are left out.
func UintPairs(body string) []Pair {
	var pairs []Pair
	for _, m := range scalarPairPattern.FindAllStringSubmatch(body, -1) {
		v, ok := parseDigits(m[2])
		if !ok {
			continue
		}
		pairs = append(pairs, Pair{Key: m[1], Value: v})
	}
	return pairs
}

// UintMap is UintPairs folded into a map; a repeated key keeps its last value.
func UintMap(body string) map[string]uint64 {
	out := make(map[string]uint64)
	for _, p := range UintPairs(body) {
		out[p.Key] = p.Value
	}
	return out
}

func parseDigits(tok string) (uint64, bool) {
	if tok == "" {
		return 0, false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
