package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
)

// SavedVariablesNames lists the addon files in order of preference.
var SavedVariablesNames = []string{"IDAPI.lua", "CattosItemTracker.lua"}

// executables marks a directory as a game install.
var executables = []string{"WowClassic.exe", "Wow.exe"}

const (
	accountDir        = "WTF/Account"
	savedVariablesDir = "SavedVariables"
)

// savedVariablesGlob matches every candidate addon file below the install root.
var savedVariablesGlob = accountDir + "/*/" + savedVariablesDir + "/{IDAPI,CattosItemTracker}.lua"

// Install is a game installation directory.
type Install struct {
	Root string
	fsys fs.FS
}

// CharacterInfo describes a character folder found below an account.
type CharacterInfo struct {
	Account           string `json:"account"`
	Server            string `json:"server"`
	Name              string `json:"name"`
	Key               string `json:"key"`
	Dir               string `json:"dir"`
	HasSavedVariables bool   `json:"hasSavedVariables"`
}

func NewInstall(root string) *Install {
	return &Install{Root: root, fsys: os.DirFS(root)}
}

// Valid reports whether root holds a game executable.
func (in *Install) Valid() bool {
	for _, exe := range executables {
		if info, err := fs.Stat(in.fsys, exe); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// Accounts returns the visible account folders that hold an addon file.
func (in *Install) Accounts() ([]string, error) {
	dirs, err := in.subdirs(accountDir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, name := range dirs {
		if _, ok := in.savedVariables(name); ok {
			accounts = append(accounts, name)
		}
	}
	return accounts, nil
}

// SavedVariablesPath returns the addon file of account, preferring IDAPI.lua.
func (in *Install) SavedVariablesPath(account string) (string, bool) {
	rel, ok := in.savedVariables(account)
	if !ok {
		return "", false
	}
	return filepath.Join(in.Root, filepath.FromSlash(rel)), true
}

func (in *Install) savedVariables(account string) (string, bool) {
	for _, name := range SavedVariablesNames {
		rel := path.Join(accountDir, account, savedVariablesDir, name)
		if info, err := fs.Stat(in.fsys, rel); err == nil && !info.IsDir() {
			return rel, true
		}
	}
	return "", false
}

// SavedVariablesFiles returns one addon file per account, sorted by path.
func (in *Install) SavedVariablesFiles() ([]string, error) {
	matches, err := doublestar.Glob(in.fsys, savedVariablesGlob)
	if err != nil {
		return nil, fmt.Errorf("glob saved variables: %w", err)
	}

	best := make(map[string]string)
	for _, m := range matches {
		account := strings.Split(m, "/")[2]
		if strings.HasPrefix(account, ".") {
			continue
		}
		if cur, ok := best[account]; ok && rank(path.Base(cur)) <= rank(path.Base(m)) {
			continue
		}
		best[account] = m
	}

	files := make([]string, 0, len(best))
	for _, rel := range best {
		files = append(files, filepath.Join(in.Root, filepath.FromSlash(rel)))
	}
	slices.Sort(files)

	log.Debug().Int("count", len(files)).Str("root", in.Root).Msg("Discovered saved variables")
	return files, nil
}

// Fallbacks returns the existing addon files next to file that rank below it.
func Fallbacks(file string) []string {
	dir, name := filepath.Split(file)
	i := rank(name)
	if i < 0 {
		return nil
	}

	var out []string
	for _, n := range SavedVariablesNames[i+1:] {
		p := filepath.Join(dir, n)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			out = append(out, p)
		}
	}
	return out
}

func rank(name string) int {
	return slices.Index(SavedVariablesNames, name)
}

// ScanCharacters lists WTF/Account/<account>/<server>/<character> folders.
// A missing account directory yields no characters.
func (in *Install) ScanCharacters() ([]CharacterInfo, error) {
	accounts, err := in.subdirs(accountDir)
	if err != nil {
		return nil, err
	}

	var characters []CharacterInfo
	for _, account := range accounts {
		var content string
		if rel, ok := in.savedVariables(account); ok {
			if data, err := fs.ReadFile(in.fsys, rel); err == nil {
				content = string(data)
			} else {
				log.Warn().Err(err).Str("account", account).Msg("Failed to read saved variables")
			}
		}

		servers, err := in.subdirs(path.Join(accountDir, account))
		if err != nil {
			return nil, err
		}
		for _, server := range servers {
			if server == savedVariablesDir {
				continue
			}
			names, err := in.subdirs(path.Join(accountDir, account, server))
			if err != nil {
				return nil, err
			}
			for _, name := range names {
				key := name + "-" + server
				characters = append(characters, CharacterInfo{
					Account:           account,
					Server:            server,
					Name:              name,
					Key:               key,
					Dir:               filepath.Join(in.Root, filepath.FromSlash(accountDir), account, server, name),
					HasSavedVariables: content != "" && strings.Contains(content, `"`+key+`"`),
				})
			}
		}
	}

	log.Info().Int("count", len(characters)).Str("root", in.Root).Msg("Scanned characters")
	return characters, nil
}

// subdirs returns the visible child directories of dir. A missing dir is empty.
func (in *Install) subdirs(dir string) ([]string, error) {
	entries, err := fs.ReadDir(in.fsys, dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("dir", dir).Msg("Directory not found")
			return nil, nil
		}
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
