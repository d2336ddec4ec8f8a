package descriptor

import (
	"fmt"
	"strconv"
	"strings"
)

// PathKind distinguishes a segment of a dotted action-scan path.
type PathKind int

const (
	// SegField descends into a named object property: ".x".
	SegField PathKind = iota
	// SegEvery iterates every element of an array: "[]".
	SegEvery
	// SegIndex indexes a specific array element: "[3]".
	SegIndex
)

type Segment struct {
	Kind  PathKind
	Field string // for SegField
	Index int    // for SegIndex
}

// ParsePath parses a dotted JSON path such as "a.b[].c" or "" (body root)
// into its segments. "" and "." both denote the root.
//
// Grounded on internal/scenario/v2/jsonpath.go's splitPathSegments: scan
// byte-by-byte, track bracket depth, split on '.' outside brackets.
func ParsePath(path string) ([]Segment, error) {
	if path == "" || path == "." {
		return nil, nil
	}
	raw := strings.TrimPrefix(path, ".")

	var segments []Segment
	var current strings.Builder
	depth := 0
	flush := func() error {
		s := current.String()
		current.Reset()
		if s == "" {
			return nil
		}
		for {
			idx := strings.IndexByte(s, '[')
			if idx == -1 {
				if s != "" {
					segments = append(segments, Segment{Kind: SegField, Field: s})
				}
				return nil
			}
			if idx > 0 {
				segments = append(segments, Segment{Kind: SegField, Field: s[:idx]})
			}
			close := strings.IndexByte(s[idx:], ']')
			if close == -1 {
				return fmt.Errorf("unterminated '[' in path segment %q", s)
			}
			inner := s[idx+1 : idx+close]
			if inner == "" {
				segments = append(segments, Segment{Kind: SegEvery})
			} else {
				n, err := strconv.Atoi(inner)
				if err != nil {
					return fmt.Errorf("invalid array index %q: %w", inner, err)
				}
				segments = append(segments, Segment{Kind: SegIndex, Index: n})
			}
			s = s[idx+close+1:]
		}
	}

	for _, ch := range raw {
		switch ch {
		case '[':
			depth++
			current.WriteRune(ch)
		case ']':
			depth--
			current.WriteRune(ch)
		case '.':
			if depth == 0 {
				if err := flush(); err != nil {
					return nil, err
				}
				continue
			}
			current.WriteRune(ch)
		default:
			current.WriteRune(ch)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return segments, nil
}

// String renders segments back to dotted-path form, for logging.
func String(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		switch s.Kind {
		case SegField:
			b.WriteByte('.')
			b.WriteString(s.Field)
		case SegEvery:
			b.WriteString("[]")
		case SegIndex:
			b.WriteString(fmt.Sprintf("[%d]", s.Index))
		}
	}
	return b.String()
}

// Extract walks doc following segments and returns the value(s) found. A
// SegEvery segment fans out: the remaining segments are applied to every
// element of the array at that position, and the results are flattened
// into the returned slice. An empty array indexed by a trailing "[]" with
// no further segments still yields an empty, non-error result; indexing an
// empty array is only an error when a further field is expected beneath
// it and there is no element to hold it (spec.md §9, runtime logic error).
func Extract(doc any, segments []Segment) ([]any, error) {
	if len(segments) == 0 {
		return []any{doc}, nil
	}
	seg := segments[0]
	rest := segments[1:]

	switch seg.Kind {
	case SegField:
		m, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot access field %q on %T", seg.Field, doc)
		}
		val, ok := m[seg.Field]
		if !ok {
			return nil, fmt.Errorf("field %q not found", seg.Field)
		}
		return Extract(val, rest)

	case SegIndex:
		arr, ok := doc.([]any)
		if !ok {
			return nil, fmt.Errorf("cannot index non-array %T", doc)
		}
		if seg.Index < 0 || seg.Index >= len(arr) {
			return nil, fmt.Errorf("array index %d out of bounds (len %d)", seg.Index, len(arr))
		}
		return Extract(arr[seg.Index], rest)

	case SegEvery:
		arr, ok := doc.([]any)
		if !ok {
			return nil, fmt.Errorf("cannot iterate non-array %T with []", doc)
		}
		if len(arr) == 0 && len(rest) > 0 {
			return nil, fmt.Errorf("cannot descend into empty array with [] (next segment %s)", String(rest[:1]))
		}
		var out []any
		for _, item := range arr {
			vals, err := Extract(item, rest)
			if err != nil {
				return nil, err
			}
			out = append(out, vals...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown path segment kind")
}
