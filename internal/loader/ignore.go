package loader

import (
	"os"
	"path/filepath"
	"strings"
)

// ignoreSet holds the glob patterns read from .hdtignore, plus the
// always-on "swagger-*" exclusion (spec.md §5: emitted documents are never
// themselves reloaded as descriptors).
type ignoreSet struct {
	patterns []string
}

func loadIgnore(root string) (*ignoreSet, error) {
	set := &ignoreSet{patterns: []string{"swagger-*"}}
	raw, err := os.ReadFile(filepath.Join(root, ignoreFile))
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, err
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set.patterns = append(set.patterns, line)
	}
	return set, nil
}

// Match reports whether name (a base file or directory name) matches any
// ignore pattern.
func (s *ignoreSet) Match(name string) bool {
	for _, pat := range s.patterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}
