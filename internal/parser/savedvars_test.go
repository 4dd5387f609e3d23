package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFile = `
CattosItemTracker_DB = {
	["version"] = {
		["major"] = 1,
	},
	["characters"] = {
		["Thrall-Orgrimmar"] = {
			["name"] = "Thrall",
			["realm"] = "Orgrimmar",
			["class"] = "Warrior",
			["lastFingerprint"] = "a1b2c3",
			["lastUpdate"] = 1718000000,
			["level"] = 60,
			["needsSync"] = true,
			["equipment"] = {
				["Head"] = 12345,
				["Neck"] = 0,
				["Finger1"] = 19384,
			},
		},
		["Jaina-Die Aldor"] = {
			["class"] = "Magier",
			["level"] = "sixty",
			["needsSync"] = maybe,
		},
		["settings"] = {
			["autoSync"] = true,
		},
	},
}
`

func TestParse_EndToEnd(t *testing.T) {
	text := `CattosItemTracker_DB = {["characters"]={["Thrall-Orgrimmar"]={["class"]="Warrior",["level"]=60,["needsSync"]=true,["equipment"]={["Head"]=12345,["Neck"]=0}}}}`

	result, err := NewSavedVariablesParser().Parse(text)
	require.NoError(t, err)
	require.Len(t, result, 1)

	rec := result["Thrall-Orgrimmar"]
	require.NotNil(t, rec)
	assert.Equal(t, "Thrall-Orgrimmar", rec.Key)
	require.NotNil(t, rec.Class)
	assert.Equal(t, "Warrior", *rec.Class)
	require.NotNil(t, rec.Level)
	assert.Equal(t, uint64(60), *rec.Level)
	require.NotNil(t, rec.NeedsSync)
	assert.True(t, *rec.NeedsSync)
	assert.Equal(t, map[string]uint64{"Head": 12345, "Neck": 0}, rec.Equipment)
	assert.Nil(t, rec.Name)
	assert.Nil(t, rec.LastUpdate)
}

func TestParse_FullFile(t *testing.T) {
	result, err := NewSavedVariablesParser().Parse(sampleFile)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.NotContains(t, result, "version")
	assert.NotContains(t, result, "settings")

	thrall := result["Thrall-Orgrimmar"]
	require.NotNil(t, thrall)
	assert.Equal(t, "Thrall", *thrall.Name)
	assert.Equal(t, "Orgrimmar", *thrall.Realm)
	assert.Equal(t, "a1b2c3", *thrall.LastFingerprint)
	assert.Equal(t, uint64(1718000000), *thrall.LastUpdate)
	assert.Equal(t, map[string]uint64{"Head": 12345, "Neck": 0, "Finger1": 19384}, thrall.Equipment)

	jaina := result["Jaina-Die Aldor"]
	require.NotNil(t, jaina)
	assert.Equal(t, "Magier", jaina.ClassOr("Unknown"))
	assert.Nil(t, jaina.Level, "non-numeric level is dropped")
	assert.Nil(t, jaina.NeedsSync, "non-boolean needsSync is dropped")
	assert.NotNil(t, jaina.Equipment)
	assert.Empty(t, jaina.Equipment)
}

func TestParse_MissingMarker(t *testing.T) {
	_, err := NewSavedVariablesParser().Parse(`OtherAddon_DB = {["characters"]={["A-B"]={}}}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)
	assert.NotErrorIs(t, err, ErrFileNotFound)
}

func TestParse_MissingCharacterTable(t *testing.T) {
	result, err := NewSavedVariablesParser().Parse(`CattosItemTracker_DB = { ["version"] = 3 }`)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestParse_UnbalancedCharacterTable(t *testing.T) {
	text := `CattosItemTracker_DB = {["characters"]={["A-B"]={["level"]=1}`
	result, err := NewSavedVariablesParser().Parse(text)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestParse_DuplicateKeyLastWins(t *testing.T) {
	text := `CattosItemTracker_DB = {["characters"]={["K-R"]={["level"]=1},["K-R"]={["level"]=2}}}`
	result, err := NewSavedVariablesParser().Parse(text)
	require.NoError(t, err)
	require.Contains(t, result, "K-R")
	assert.Equal(t, uint64(2), *result["K-R"].Level)
}

func TestParse_KeyWithoutSeparatorSkipped(t *testing.T) {
	text := `CattosItemTracker_DB = {["characters"]={["version"]={["level"]=9},["A-B"]={}}}`
	result, err := NewSavedVariablesParser().Parse(text)
	require.NoError(t, err)
	assert.NotContains(t, result, "version")
	assert.Contains(t, result, "A-B")
}

func TestParse_EmptyEntryStillEmitted(t *testing.T) {
	text := `CattosItemTracker_DB = {["characters"]={["Nobody-Nowhere"]={}}}`
	result, err := NewSavedVariablesParser().Parse(text)
	require.NoError(t, err)
	rec := result["Nobody-Nowhere"]
	require.NotNil(t, rec)
	assert.Nil(t, rec.Class)
	assert.Empty(t, rec.Equipment)
	assert.Equal(t, "Unknown", rec.ClassOr("Unknown"))
}

func TestParse_CustomMarkerAndContainer(t *testing.T) {
	p := NewSavedVariablesParser(WithMarker("IDAPI_DB"), WithContainer("chars"))
	result, err := p.Parse(`IDAPI_DB = {["chars"]={["A-B"]={["level"]=5}}}`)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), *result["A-B"].Level)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "CattosItemTracker.lua")
	require.NoError(t, os.WriteFile(path, []byte(sampleFile), 0644))

	result, err := NewSavedVariablesParser().ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestParseFile_NotFound(t *testing.T) {
	_, err := NewSavedVariablesParser().ParseFile(filepath.Join(t.TempDir(), "missing.lua"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, ErrUnrecognizedFormat)
}

func TestParseFile_WrongFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Other.lua")
	require.NoError(t, os.WriteFile(path, []byte(`Other_DB = {}`), 0644))

	_, err := NewSavedVariablesParser().ParseFile(path)
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)
	assert.NotErrorIs(t, err, ErrFileNotFound)
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key, name, realm string
		ok               bool
	}{
		{"Thrall-Orgrimmar", "Thrall", "Orgrimmar", true},
		{"Jaina-Die Aldor", "Jaina", "Die Aldor", true},
		{"Rexxar-Zul-Jin", "Rexxar", "Zul-Jin", true},
		{"version", "version", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			name, realm, ok := SplitKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.realm, realm)
			if ok {
				assert.Equal(t, tt.key, name+KeySeparator+realm)
			}
		})
	}
}

func TestCanParse(t *testing.T) {
	p := NewSavedVariablesParser()
	assert.True(t, p.CanParse(".lua"))
	assert.True(t, p.CanParse(".LUA"))
	assert.False(t, p.CanParse(".json"))
}
