// Package variable implements the Variable Environment (spec.md §3):
// a typed catalogue of variable definitions plus the runtime map of
// resolved values that flows down the plan tree, one independent copy
// per sibling branch.
package variable

import (
	"fmt"
	"strings"

	"github.com/wondertwin-ai/hdtest/internal/hdterrors"
)

// Kind distinguishes the shape of a Variable's declared value.
type Kind int

const (
	// KindNone has no declared value; it must be produced at runtime.
	KindNone Kind = iota
	// KindScalar is a single literal value.
	KindScalar
	// KindEnum is a list of candidate values the planner explodes.
	KindEnum
	// KindTemplate is a string referencing other variables via $name/${name}.
	KindTemplate
	// KindComputed is a named transform (e.g. base64) over a template.
	KindComputed
)

// Variable is one entry in the load-time catalogue.
type Variable struct {
	Name        string
	Description string
	Kind        Kind
	Scalar      string
	Enum        []string
	Template    string
	// ComputedFn names a registered transform (e.g. "base64") applied to
	// Template after substitution.
	ComputedFn string
}

// maxSubstitutionPasses bounds the fixed-point substitution loop; a cycle
// in variable references would otherwise substitute forever.
const maxSubstitutionPasses = 50

// Catalogue is the full set of declared variables, indexed by name.
type Catalogue struct {
	vars map[string]*Variable
}

func NewCatalogue() *Catalogue {
	return &Catalogue{vars: make(map[string]*Variable)}
}

func (c *Catalogue) Add(v *Variable) { c.vars[v.Name] = v }

func (c *Catalogue) Get(name string) (*Variable, bool) {
	v, ok := c.vars[name]
	return v, ok
}

func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.vars))
	for n := range c.vars {
		names = append(names, n)
	}
	return names
}

// Resolve materializes literal values for every variable in the catalogue,
// running fixed-point substitution over every value (scalar, enum and
// template alike); KindEnum variables are resolved to their first
// candidate here (the planner is responsible for exploding the rest).
// A cyclic reference is a fatal load error, both when substitution does
// not converge within maxSubstitutionPasses and when it converges with a
// value still referencing a declared variable.
func (c *Catalogue) Resolve() (map[string]string, error) {
	values := make(map[string]string, len(c.vars))
	for name, v := range c.vars {
		switch v.Kind {
		case KindScalar:
			values[name] = v.Scalar
		case KindEnum:
			if len(v.Enum) > 0 {
				values[name] = v.Enum[0]
			}
		case KindTemplate, KindComputed:
			values[name] = v.Template
		case KindNone:
			// left undefined; presence is established by the Environment
			// once something upstream produces it (see predefinesVar note
			// in DESIGN.md).
		}
	}

	for pass := 0; pass < maxSubstitutionPasses; pass++ {
		changed := false
		for name, raw := range values {
			substituted, err := substituteOnce(raw, values)
			if err != nil {
				return nil, hdterrors.Wrap(hdterrors.Load, name, err, "resolving variable %q", name)
			}
			if substituted != raw {
				values[name] = substituted
				changed = true
			}
		}
		if !changed {
			for name, raw := range values {
				rest := raw
				for {
					ref, _, _, end, ok := nextPlaceholder(rest)
					if !ok {
						break
					}
					if _, defined := values[ref]; defined {
						return nil, hdterrors.New(hdterrors.Load, name, "cyclic variable reference through %q", ref)
					}
					rest = rest[end:]
				}
			}
			for name, v := range c.vars {
				if v.Kind == KindComputed {
					out, err := applyComputed(v.ComputedFn, values[name])
					if err != nil {
						return nil, hdterrors.Wrap(hdterrors.Load, name, err, "computing variable %q", name)
					}
					values[name] = out
				}
			}
			return values, nil
		}
	}
	return nil, hdterrors.New(hdterrors.Load, "", "cyclic variable reference: substitution did not converge within %d passes", maxSubstitutionPasses)
}

// applyComputed applies a named transform to a resolved template value.
func applyComputed(fn, value string) (string, error) {
	switch fn {
	case "", "none":
		return value, nil
	case "base64":
		return base64Encode(value), nil
	default:
		return "", fmt.Errorf("unknown computed form %q", fn)
	}
}

func base64Encode(s string) string {
	const table = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	data := []byte(s)
	var b strings.Builder
	for i := 0; i < len(data); i += 3 {
		var n uint32
		rem := len(data) - i
		n = uint32(data[i]) << 16
		if rem > 1 {
			n |= uint32(data[i+1]) << 8
		}
		if rem > 2 {
			n |= uint32(data[i+2])
		}
		b.WriteByte(table[(n>>18)&0x3F])
		b.WriteByte(table[(n>>12)&0x3F])
		if rem > 1 {
			b.WriteByte(table[(n>>6)&0x3F])
		} else {
			b.WriteByte('=')
		}
		if rem > 2 {
			b.WriteByte(table[n&0x3F])
		} else {
			b.WriteByte('=')
		}
	}
	return b.String()
}
