package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/wondertwin-ai/hdtest/internal/descriptor"
	"github.com/wondertwin-ai/hdtest/internal/hdterrors"
	"github.com/wondertwin-ai/hdtest/internal/variable"
)

// applyActions runs a concrete API's response-time environment mutations
// in scanning order against the parsed response body (spec.md §4.4.4).
// funcs maps a var_set's fcn name to the VarFunc that computes its value
// from the body; it may be nil if no descriptor in the project uses one.
func applyActions(env *variable.Environment, actions []descriptor.Action, body any, funcs map[string]VarFunc) error {
	for _, act := range actions {
		switch {
		case act.VarSet != nil:
			if err := applyVarSet(env, act.VarSet, body, funcs); err != nil {
				return err
			}
		case act.VarNew != nil:
			if err := applyVarNewCapture(env, act.VarNew, body); err != nil {
				return err
			}
		case act.VarRename != nil:
			env.Rename(act.VarRename.From, act.VarRename.To)
		case act.VarDelete != "":
			env.Delete(act.VarDelete)
		}
	}
	return nil
}

func applyVarSet(env *variable.Environment, vs *descriptor.VarSet, body any, funcs map[string]VarFunc) error {
	if vs.Value != "" {
		resolved, err := env.Substitute(vs.Value)
		if err != nil {
			return hdterrors.Wrap(hdterrors.Substitution, vs.Name, err, "var_set %q value template", vs.Name)
		}
		env.Set(vs.Name, resolved)
		return nil
	}
	if vs.Fcn != "" {
		fn, ok := funcs[vs.Fcn]
		if !ok {
			return hdterrors.New(hdterrors.RuntimeLogic, vs.Name, "var_set %q references unregistered fcn %q", vs.Name, vs.Fcn)
		}
		resolved, err := fn(body)
		if err != nil {
			return hdterrors.Wrap(hdterrors.RuntimeLogic, vs.Name, err, "var_set %q fcn %q", vs.Name, vs.Fcn)
		}
		env.Set(vs.Name, resolved)
		return nil
	}
	value, err := extractOne(body, vs.Path)
	if err != nil {
		return hdterrors.Wrap(hdterrors.RuntimeLogic, vs.Name, err, "var_set %q at path %q", vs.Name, vs.Path)
	}
	env.Set(vs.Name, stringify(value))
	return nil
}

func applyVarNewCapture(env *variable.Environment, vn *descriptor.VarNew, body any) error {
	value, err := extractOne(body, vn.Path)
	if err != nil {
		return hdterrors.Wrap(hdterrors.RuntimeLogic, vn.Name, err, "var_new %q at path %q", vn.Name, vn.Path)
	}
	env.Set(vn.Name, stringify(value))
	return nil
}

// extractOne resolves a dotted path against body. A path containing a "[]"
// segment anywhere fans out over an array (internal/descriptor.Extract),
// and the whole matched collection is returned as-is rather than collapsed
// to its first element (spec.md §4.4.4: "[] yields the whole array"); any
// other path is expected to match exactly one value.
func extractOne(body any, path string) (any, error) {
	segments, err := descriptor.ParsePath(path)
	if err != nil {
		return nil, fmt.Errorf("parsing path %q: %w", path, err)
	}
	values, err := descriptor.Extract(body, segments)
	if err != nil {
		return nil, err
	}
	if pathFansOut(segments) {
		return values, nil
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("path %q matched no value", path)
	}
	return values[0], nil
}

func pathFansOut(segments []descriptor.Segment) bool {
	for _, s := range segments {
		if s.Kind == descriptor.SegEvery {
			return true
		}
	}
	return false
}

// stringify renders an extracted JSON value as the plain string an
// environment variable holds; numbers lose any trailing ".0" JSON
// round-tripping would otherwise introduce for integral values. A whole
// array or object (from a "[]" path, or an object-valued leaf) is
// rendered as its JSON encoding, so it round-trips through $var
// substitution back into a request body unchanged.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	case nil:
		return ""
	case []any, map[string]any:
		encoded, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", t)
	}
}
