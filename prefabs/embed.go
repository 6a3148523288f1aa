package prefabs

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed robots/*.yaml worlds/*.yaml scripts/*
var PrefabsFS embed.FS

// Dir is the on-disk prefab directory. Files found there override the
// embedded copies.
var Dir = "prefabs"

func Load(name string) ([]byte, error) {
	clean := cleanPrefabPath(name)
	if data, err := os.ReadFile(diskPrefabPath(clean)); err == nil {
		return data, nil
	}
	return PrefabsFS.ReadFile(clean)
}

// LoadScript reads a sample program from scripts/.
func LoadScript(name string) ([]byte, error) {
	return Load(cleanScriptPath(name))
}

// List returns the prefab names under dir ("robots", "worlds" or "scripts"),
// embedded and on disk, sorted.
func List(dir string) []string {
	seen := make(map[string]bool)
	if entries, err := fs.ReadDir(PrefabsFS, dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				seen[path.Join(dir, e.Name())] = true
			}
		}
	}
	if entries, err := os.ReadDir(diskPrefabPath(dir)); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				seen[path.Join(dir, e.Name())] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func cleanPrefabPath(p string) string {
	if p == "" {
		return ""
	}
	s := filepath.ToSlash(p)
	if after, ok := strings.CutPrefix(s, Dir+"/"); ok {
		return after
	}
	return s
}

// ScriptName normalises a program path to its prefab name, "scripts/<file>".
func ScriptName(p string) string {
	return cleanScriptPath(p)
}

func cleanScriptPath(p string) string {
	s := cleanPrefabPath(p)
	if after, ok := strings.CutPrefix(s, "scripts/"); ok {
		s = after
	}
	return "scripts/" + s
}

func diskPrefabPath(clean string) string {
	return filepath.Join(Dir, filepath.FromSlash(clean))
}
