package luatable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	text := `DB = { ["characters"]  =
	{ ["A-B"] = {} } }`

	start, ok := Locate(text, "characters")
	require.True(t, ok)
	assert.Equal(t, byte('{'), text[start-1])
	assert.Equal(t, ` ["A-B"] = {} } }`, text[start:])

	_, ok = Locate(text, "missing")
	assert.False(t, ok)
}

func TestLocate_FirstOccurrence(t *testing.T) {
	text := `["t"]={1},["t"]={2}`
	start, ok := Locate(text, "t")
	require.True(t, ok)
	assert.Equal(t, 7, start)
}

func TestLocate_QuotesName(t *testing.T) {
	text := `["a.b"]={x},["a+b"]={y}`
	body, ok := Table(text, "a+b")
	require.True(t, ok)
	assert.Equal(t, "y", body)
}

func TestBody(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		start  int
		want   string
		wantOK bool
	}{
		{"flat", `{abc}rest`, 1, "abc", true},
		{"nested", `{a{b{c}}d}e`, 1, "a{b{c}}d", true},
		{"empty", `{}`, 1, "", true},
		{"unbalanced", `{a{b}`, 1, "", false},
		{"start at end", `{`, 1, "", false},
		{"start out of range", `{}`, 5, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Body(tt.text, tt.start)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBody_IdempotentOnBalancedBody(t *testing.T) {
	text := `{["x"]={["y"]={1}},["z"]=2}`
	first, ok := Body(text, 1)
	require.True(t, ok)

	// Re-wrap the extracted body and extract again: no boundary drift.
	second, ok := Body("{"+first+"}", 1)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestEntries_Siblings(t *testing.T) {
	body := `["a"]={["x"]=1},["b"]={["y"]=2}`

	entries := Entries(body)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, `["x"]=1`, entries[0].Body)
	assert.Equal(t, "b", entries[1].Key)
	assert.Equal(t, `["y"]=2`, entries[1].Body)
	assert.True(t, entries[0].Balanced)
	assert.Equal(t, byte('{'), body[entries[1].Start-1])
}

func TestEntries_IgnoresNestedTables(t *testing.T) {
	body := `["a"]={["x"]={["deep"]={["deeper"]=1}}},["b"]={["y"]={}}`

	entries := Entries(body)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, `["x"]={["deep"]={["deeper"]=1}}`, entries[0].Body)
	assert.Equal(t, "b", entries[1].Key)
}

func TestEntries_UnbalancedBody(t *testing.T) {
	// The caller's extraction fails first, so there is nothing to enumerate.
	text := `["characters"]={["a"]={["x"]=1}`
	body, ok := Table(text, "characters")
	assert.False(t, ok)
	assert.Empty(t, Entries(body))
}

func TestEntries_UnbalancedEntry(t *testing.T) {
	body := `["a"]={["x"]=1`

	entries := Entries(body)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Key)
	assert.False(t, entries[0].Balanced)
	assert.Empty(t, entries[0].Body)
}

func TestEntries_DuplicatesInOrder(t *testing.T) {
	entries := Entries(`["K-R"]={["level"]=1},["K-R"]={["level"]=2}`)
	require.Len(t, entries, 2)
	assert.Equal(t, `["level"]=1`, entries[0].Body)
	assert.Equal(t, `["level"]=2`, entries[1].Body)
}

func TestString(t *testing.T) {
	body := `["class"] = "Warrior", ["realm"]="", ["level"]=60`

	v, ok := String(body, "class")
	require.True(t, ok)
	assert.Equal(t, "Warrior", v)

	v, ok = String(body, "realm")
	require.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = String(body, "level")
	assert.False(t, ok, "number is not a string")

	_, ok = String(body, "name")
	assert.False(t, ok)
}

func TestString_KeepsLiteralVerbatim(t *testing.T) {
	v, ok := String(`["name"]="Jäger\n"`, "name")
	require.True(t, ok)
	assert.Equal(t, `Jäger\n`, v)
}

func TestUint(t *testing.T) {
	tests := []struct {
		body   string
		want   uint64
		wantOK bool
	}{
		{`["level"]=60`, 60, true},
		{`["level"] = 60,`, 60, true},
		{"[\"level\"]=\n\t7}", 7, true},
		{`["level"]=0`, 0, true},
		{`["level"]=18446744073709551615`, 18446744073709551615, true},
		{`["level"]=18446744073709551616`, 0, false},
		{`["level"]=60abc`, 0, false},
		{`["level"]=-5`, 0, false},
		{`["level"]=6.5`, 0, false},
		{`["level"]="60"`, 0, false},
		{`["level"]=true`, 0, false},
		{`["other"]=1`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got, ok := Uint(tt.body, "level")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		body   string
		want   bool
		wantOK bool
	}{
		{`["needsSync"]=true`, true, true},
		{`["needsSync"] = false,`, false, true},
		{`["needsSync"]=True`, false, false},
		{`["needsSync"]=truex`, false, false},
		{`["needsSync"]=1`, false, false},
		{`["needsSync"]="true"`, false, false},
		{``, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got, ok := Bool(tt.body, "needsSync")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUintPairs(t *testing.T) {
	body := `["Head"]=12345,["Neck"]=0,["Back"]="x",["Feet"]=-1,["Head"]=999`

	pairs := UintPairs(body)
	assert.Equal(t, []Pair{
		{Key: "Head", Value: 12345},
		{Key: "Neck", Value: 0},
		{Key: "Head", Value: 999},
	}, pairs)

	assert.Equal(t, map[string]uint64{"Head": 999, "Neck": 0}, UintMap(body))
}

func TestUintMap_Empty(t *testing.T) {
	m := UintMap("")
	assert.NotNil(t, m)
	assert.Empty(t, m)
}
