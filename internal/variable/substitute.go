package variable

import (
	"fmt"
	"strings"
)

// substituteOnce replaces every $name or ${name} occurrence in s with its
// value from values, once. Unlike Environment.Substitute (used at runtime,
// where a missing variable is fatal), this is used during catalogue
// resolution where an as-yet-unresolved reference simply means "try again
// next pass" — Resolve's fixed-point loop handles convergence.
//
// Grounded on internal/scenario/v2/template.go's ExpandTemplates: scan for
// the next placeholder, resolve it, splice, repeat until none remain.
func substituteOnce(s string, values map[string]string) (string, error) {
	var b strings.Builder
	rest := s
	for {
		name, braced, start, end, ok := nextPlaceholder(rest)
		if !ok {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		if val, found := values[name]; found {
			b.WriteString(val)
		} else {
			// Leave unresolved placeholders in place for the next pass.
			if braced {
				b.WriteString("${" + name + "}")
			} else {
				b.WriteString("$" + name)
			}
		}
		rest = rest[end:]
	}
	return b.String(), nil
}

// nextPlaceholder finds the next $name or ${name} in s, returning the
// variable name, whether it was braced, and the byte offsets of the whole
// placeholder (for splicing).
func nextPlaceholder(s string) (name string, braced bool, start, end int, ok bool) {
	i := strings.IndexByte(s, '$')
	if i == -1 {
		return "", false, 0, 0, false
	}
	if i+1 < len(s) && s[i+1] == '{' {
		close := strings.IndexByte(s[i+2:], '}')
		if close == -1 {
			return "", false, 0, 0, false
		}
		return s[i+2 : i+2+close], true, i, i + 2 + close + 1, true
	}
	j := i + 1
	for j < len(s) && isNameByte(s[j]) {
		j++
	}
	if j == i+1 {
		// bare "$" with no following identifier: not a placeholder
		return nextPlaceholder(s[i+1:])
	}
	return s[i+1 : j], false, i, j, true
}

func isNameByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// Environment is the runtime map of variable name to resolved string value
// that flows down the plan tree. One logical environment is forked into an
// independent deep copy for each sibling subtree so writes on one branch
// never leak to another (spec.md §3, §8 "Environment isolation").
type Environment struct {
	values map[string]string
}

// NewEnvironment creates an Environment seeded with the given values.
func NewEnvironment(seed map[string]string) *Environment {
	e := &Environment{values: make(map[string]string, len(seed))}
	for k, v := range seed {
		e.values[k] = v
	}
	return e
}

// Clone returns an independent deep copy of the environment.
func (e *Environment) Clone() *Environment {
	return NewEnvironment(e.values)
}

func (e *Environment) Get(name string) (string, bool) {
	v, ok := e.values[name]
	return v, ok
}

func (e *Environment) Set(name, value string) { e.values[name] = value }

func (e *Environment) Delete(name string) { delete(e.values, name) }

// Rename moves a value from one key to another, as var_rename does.
func (e *Environment) Rename(from, to string) {
	if v, ok := e.values[from]; ok {
		e.values[to] = v
	}
	delete(e.values, from)
}

// Has reports whether name is present in the environment, regardless of
// whether it carries a resolved value yet. Per the spec's resolution of
// the predefinesVar open question, presence alone satisfies a dependency.
func (e *Environment) Has(name string) bool {
	_, ok := e.values[name]
	return ok
}

// Snapshot returns a copy of the underlying map, e.g. for logging.
func (e *Environment) Snapshot() map[string]string {
	out := make(map[string]string, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// Substitute replaces every $name/${name} occurrence in s with its runtime
// value, iterating to a fixed point (bounded at maxSubstitutionPasses). A
// variable referenced but absent from the environment is a fatal
// substitution error (spec.md §4.6, §7 "Substitution error").
func (e *Environment) Substitute(s string) (string, error) {
	current := s
	for pass := 0; pass < maxSubstitutionPasses; pass++ {
		next, missing, err := e.substitutePass(current)
		if err != nil {
			return "", err
		}
		if missing != "" {
			return "", fmt.Errorf("variable used at runtime but not defined: %q", missing)
		}
		if next == current {
			return next, nil
		}
		current = next
	}
	return "", fmt.Errorf("substitution failed to converge within %d passes", maxSubstitutionPasses)
}

func (e *Environment) substitutePass(s string) (result string, missing string, err error) {
	var b strings.Builder
	rest := s
	for {
		name, braced, start, end, ok := nextPlaceholder(rest)
		if !ok {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		val, found := e.values[name]
		if !found {
			return "", name, nil
		}
		_ = braced
		b.WriteString(val)
		rest = rest[end:]
	}
	return b.String(), "", nil
}
