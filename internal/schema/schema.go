// Package schema implements the Schema Translator (spec.md §4.5): it
// converts the friendly body-description "sketch" syntax into JSON Schema,
// used both for Swagger documentation (internal/swagger) and for response
// validation (internal/runtime).
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Schema is our in-memory JSON Schema representation. It is the
// translator's canonical output; internal/swagger converts it to
// *openapi3.Schema for document emission, and this package's own Validate
// walks it directly against a parsed response body (see doc comment on
// Validate for why we don't delegate to kin-openapi's validator here).
type Schema struct {
	Type        string // "string", "integer", "boolean", "array", "object", or "" (erased by an anyOf overlay)
	Nullable    bool
	Format      string
	Description string
	Required    bool // per-field; hoisted into the parent's RequiredFields during translation
	Ignore      bool // ign flag: validator skips this field entirely

	Properties      map[string]*Schema
	RequiredFields  []string // canonical form, populated on object schemas after hoisting
	PatternWildcard  *Schema  // set when the sketch used {"*": schema} (patternProperties)
	Items           *Schema

	AnyOf []*Schema // bodymd anyOf overlay erases Type
}

// flagMeaning is the closed set of (flags)rest prefix tokens (spec.md §4.5).
var flagMeaning = map[string]func(*Schema){
	"a":   func(s *Schema) { s.Type = "array" },
	"b":   func(s *Schema) { s.Type = "boolean" },
	"ba":  func(s *Schema) { s.Type = "array"; s.Items = &Schema{Type: "boolean"} },
	"dt":  func(s *Schema) { s.Type = "string"; s.Format = "date-time" },
	"dts": func(s *Schema) { s.Type = "string"; s.Format = "date-time" },
	"i":   func(s *Schema) { s.Type = "integer" },
	"ia":  func(s *Schema) { s.Type = "array"; s.Items = &Schema{Type: "integer"} },
	"o":   func(s *Schema) { s.Type = "object" },
	"s":   func(s *Schema) { s.Type = "string" },
	"sa":  func(s *Schema) { s.Type = "array"; s.Items = &Schema{Type: "string"} },
	"opt": func(s *Schema) { s.Required = false; s.Nullable = true },
	"req": func(s *Schema) { s.Required = true },
	"ign": func(s *Schema) { s.Ignore = true },
}

// Translate converts a sketch node into a Schema. The sketch grammar is:
//
//   - string "descr"                         -> required string field
//   - "(flags)rest" where flags is a closed,
//     comma-separated set (a,b,ba,dt,dts,i,
//     ia,o,s,opt,req,ign)                     -> typed field per flags
//   - [S] (length 1)                          -> required array of S
//   - [meta, S] (length 2)                    -> array of S with metadata
//   - map with reserved "__" key               -> object-level metadata
//   - map with single "*" key                  -> patternProperties wildcard
//   - any other map                            -> object, recurse on properties
func Translate(sketch any) (*Schema, error) {
	s, err := translate(sketch)
	if err != nil {
		return nil, err
	}
	hoistRequired(s)
	return s, nil
}

func translate(node any) (*Schema, error) {
	switch t := node.(type) {
	case string:
		return translateString(t)
	case []any:
		return translateArray(t)
	case map[string]any:
		return translateObject(t)
	case nil:
		return &Schema{Type: "string", Nullable: true}, nil
	default:
		return nil, fmt.Errorf("unsupported sketch node of type %T", node)
	}
}

func translateString(s string) (*Schema, error) {
	if !strings.HasPrefix(s, "(") {
		return &Schema{Type: "string", Description: s, Required: true}, nil
	}
	close := strings.IndexByte(s, ')')
	if close == -1 {
		return nil, fmt.Errorf("sketch string %q has unterminated flag prefix", s)
	}
	flagStr := s[1:close]
	rest := s[close+1:]

	sch := &Schema{Type: "string", Description: rest, Required: true}
	for _, flag := range strings.Split(flagStr, ",") {
		flag = strings.TrimSpace(flag)
		apply, ok := flagMeaning[flag]
		if !ok {
			return nil, fmt.Errorf("sketch string %q uses unknown flag %q", s, flag)
		}
		apply(sch)
	}
	return sch, nil
}

func translateArray(arr []any) (*Schema, error) {
	switch len(arr) {
	case 1:
		items, err := translate(arr[0])
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: items, Required: true}, nil
	case 2:
		meta, err := parseArrayMeta(arr[0])
		if err != nil {
			return nil, err
		}
		items, err := translate(arr[1])
		if err != nil {
			return nil, err
		}
		meta.Type = "array"
		meta.Items = items
		return meta, nil
	default:
		return nil, fmt.Errorf("sketch array must have length 1 or 2, got %d", len(arr))
	}
}

// parseArrayMeta translates the [meta, S] form's meta element the same way
// getDocInfo(meta,'array') would: a string becomes the description, a map
// becomes object-level metadata merged directly onto the array schema.
func parseArrayMeta(meta any) (*Schema, error) {
	switch t := meta.(type) {
	case string:
		return &Schema{Description: t, Required: true}, nil
	case map[string]any:
		return translateObjectMeta(t)
	default:
		return nil, fmt.Errorf("array metadata must be a string or object, got %T", meta)
	}
}

func translateObject(m map[string]any) (*Schema, error) {
	if wildcard, ok := wildcardValue(m); ok {
		items, err := translate(wildcard)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "object", Required: true, PatternWildcard: items}, nil
	}

	sch := &Schema{Type: "object", Required: true, Properties: map[string]*Schema{}}
	if metaRaw, ok := m["__"]; ok {
		meta, ok := metaRaw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf(`"__" metadata must be an object`)
		}
		applyObjectMeta(sch, meta)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		if k == "__" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		child, err := translate(m[k])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		sch.Properties[k] = child
	}
	return sch, nil
}

func translateObjectMeta(m map[string]any) (*Schema, error) {
	sch := &Schema{Required: true}
	applyObjectMeta(sch, m)
	return sch, nil
}

func applyObjectMeta(sch *Schema, meta map[string]any) {
	if t, ok := meta["type"].(string); ok {
		sch.Type = t
	}
	if d, ok := meta["description"].(string); ok {
		sch.Description = d
	}
	if r, ok := meta["required"].(bool); ok {
		sch.Required = r
	}
}

// wildcardValue reports whether m is the single-key {"*": schema} form.
func wildcardValue(m map[string]any) (any, bool) {
	if len(m) != 1 {
		return nil, false
	}
	v, ok := m["*"]
	return v, ok
}

// hoistRequired collects required:true flags on an object's direct
// children into a sibling RequiredFields array and clears the per-child
// flag, matching canonical JSON Schema form (spec.md §4.5, final step).
func hoistRequired(s *Schema) {
	if s == nil {
		return
	}
	if s.Type == "object" && s.Properties != nil {
		keys := make([]string, 0, len(s.Properties))
		for k := range s.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := s.Properties[k]
			if child.Required {
				s.RequiredFields = append(s.RequiredFields, k)
			}
			child.Required = false
			hoistRequired(child)
		}
	}
	if s.Items != nil {
		hoistRequired(s.Items)
	}
	if s.PatternWildcard != nil {
		hoistRequired(s.PatternWildcard)
	}
	for _, a := range s.AnyOf {
		hoistRequired(a)
	}
}

// TranslateOverlay translates sketch and then deep-merges every bodymd
// fragment onto the result, keyed by dotted path (spec.md §4.5). An empty
// bodymd is the common case and costs nothing beyond the plain Translate.
func TranslateOverlay(sketch any, bodymd map[string]map[string]any) (*Schema, error) {
	sch, err := Translate(sketch)
	if err != nil {
		return nil, err
	}
	if len(bodymd) == 0 {
		return sch, nil
	}
	paths := make([]string, 0, len(bodymd))
	for p := range bodymd {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		segments := splitOverlayPath(p)
		if err := MergeOverlay(sch, segments, bodymd[p]); err != nil {
			return nil, fmt.Errorf("bodymd overlay %q: %w", p, err)
		}
	}
	return sch, nil
}

// splitOverlayPath splits a dotted bodymd key into path segments; "" or
// "." denotes the schema root, matching internal/descriptor's ParsePath
// convention for the empty path.
func splitOverlayPath(path string) []pathSegment {
	if path == "" || path == "." {
		return nil
	}
	return strings.Split(path, ".")
}

// MergeOverlay deep-merges a bodymd fragment onto the schema node at path,
// a list of object property names ("a.b" split on "."). Only object
// properties are navigated: a key with a leading "." (as in ".a") or an
// array "[]" segment does not resolve to a node and is reported as an
// error. An "anyOf" key in the fragment erases the node's Type, per
// spec.md §4.5.
func MergeOverlay(root *Schema, path []pathSegment, fragment map[string]any) error {
	target, err := navigate(root, path)
	if err != nil {
		return err
	}
	if anyOfRaw, ok := fragment["anyOf"]; ok {
		anyOfList, ok := anyOfRaw.([]any)
		if !ok {
			return fmt.Errorf("bodymd anyOf overlay must be an array")
		}
		target.Type = ""
		target.AnyOf = nil
		for _, item := range anyOfList {
			m, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("bodymd anyOf entries must be objects")
			}
			sub, err := translateObjectMeta(m)
			if err != nil {
				return err
			}
			target.AnyOf = append(target.AnyOf, sub)
		}
		return nil
	}
	applyObjectMeta(target, fragment)
	return nil
}

type pathSegment = string

func navigate(s *Schema, path []pathSegment) (*Schema, error) {
	cur := s
	for _, seg := range path {
		if cur.Properties == nil {
			return nil, fmt.Errorf("bodymd overlay path segment %q: not an object", seg)
		}
		next, ok := cur.Properties[seg]
		if !ok {
			return nil, fmt.Errorf("bodymd overlay path segment %q: property not found", seg)
		}
		cur = next
	}
	return cur, nil
}
