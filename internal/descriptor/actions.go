package descriptor

import (
	"fmt"
	"sort"
)

// ScanActions walks a response body sketch (or a test object) tracking the
// dotted JSON path of each visited node ("" is the root, ".x" descends,
// "[]" means "every array element"), collecting the actions declared at
// recognized keys (spec.md §4.2): var_set, var_new, var_rename, var_delete.
//
// At most one var_new may appear across the whole scan; a second is a
// compile error.
func ScanActions(sketch any) ([]Action, error) {
	var actions []Action
	var sawVarNew bool

	var walk func(node any, path string) error
	walk = func(node any, path string) error {
		m, ok := node.(map[string]any)
		if !ok {
			if arr, ok := node.([]any); ok {
				for _, item := range arr {
					if err := walk(item, path+"[]"); err != nil {
						return err
					}
				}
			}
			return nil
		}

		if raw, ok := m["var_set"]; ok {
			vs, err := parseVarSet(raw, path)
			if err != nil {
				return err
			}
			actions = append(actions, Action{VarSet: vs})
		}
		if raw, ok := m["var_new"]; ok {
			if sawVarNew {
				return fmt.Errorf("at most one var_new is permitted per concrete API")
			}
			sawVarNew = true
			vn, err := parseVarNew(raw, path)
			if err != nil {
				return err
			}
			actions = append(actions, Action{VarNew: vn})
		}
		if raw, ok := m["var_rename"]; ok {
			vr, err := parseVarRename(raw)
			if err != nil {
				return err
			}
			actions = append(actions, Action{VarRename: vr})
		}
		if raw, ok := m["var_delete"]; ok {
			name, ok := raw.(string)
			if !ok {
				return fmt.Errorf("var_delete at %q must be a string", path)
			}
			actions = append(actions, Action{VarDelete: name})
		}

		// Recurse into every other key so nested sketch nodes are scanned too.
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch k {
			case "var_set", "var_new", "var_rename", "var_delete", "__":
				continue
			}
			if err := walk(m[k], path+"."+k); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(sketch, ""); err != nil {
		return nil, err
	}
	return actions, nil
}

func asStringMap(raw any) (map[string]any, bool) {
	m, ok := raw.(map[string]any)
	return m, ok
}

func parseVarSet(raw any, scanPath string) (*VarSet, error) {
	m, ok := asStringMap(raw)
	if !ok {
		return nil, fmt.Errorf("var_set at %q must be an object", scanPath)
	}
	name, _ := m["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("var_set at %q missing required %q", scanPath, "name")
	}
	vs := &VarSet{Name: name, Path: scanPath}
	if p, ok := m["path"].(string); ok && p != "" {
		vs.Path = p
	}
	if f, ok := m["fcn"].(string); ok {
		vs.Fcn = f
	}
	if v, ok := m["value"].(string); ok {
		vs.Value = v
	}
	return vs, nil
}

func parseVarNew(raw any, scanPath string) (*VarNew, error) {
	m, ok := asStringMap(raw)
	if !ok {
		return nil, fmt.Errorf("var_new at %q must be an object", scanPath)
	}
	name, _ := m["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("var_new at %q missing required %q", scanPath, "name")
	}
	get, _ := m["get"].(string)
	del, _ := m["delete"].(string)
	if get == "" || del == "" {
		return nil, fmt.Errorf("var_new %q at %q requires both get and delete", name, scanPath)
	}
	vn := &VarNew{Name: name, Path: scanPath, Get: get, Delete: del}
	if rawSV, ok := m["serial_vars"].([]any); ok {
		vn.SerialVarsExplicit = true
		for _, s := range rawSV {
			if str, ok := s.(string); ok {
				vn.SerialVars = append(vn.SerialVars, str)
			}
		}
	}
	return vn, nil
}

func parseVarRename(raw any) (*VarRename, error) {
	m, ok := asStringMap(raw)
	if !ok {
		return nil, fmt.Errorf("var_rename must be an object")
	}
	from, _ := m["from"].(string)
	to, _ := m["to"].(string)
	if from == "" || to == "" {
		return nil, fmt.Errorf("var_rename requires both from and to")
	}
	return &VarRename{From: from, To: to}, nil
}

// ApplyProducesDeletes folds a list of actions into the produces/deletes
// sets of a Concrete API under construction (spec.md §4.2).
func ApplyProducesDeletes(actions []Action, produces, deletes map[string]bool) {
	for _, a := range actions {
		switch {
		case a.VarSet != nil:
			produces[a.VarSet.Name] = true
		case a.VarNew != nil:
			produces[a.VarNew.Name] = true
		case a.VarRename != nil:
			produces[a.VarRename.To] = true
			deletes[a.VarRename.From] = true
		case a.VarDelete != "":
			deletes[a.VarDelete] = true
		}
	}
}
