package variable

// SubstituteTree applies Substitute to every string found in a JSON-shaped
// tree (map[string]any / []any / string / other scalars), recursing into
// nested maps and slices and substituting both keys and values of maps.
// Used by the runtime to resolve a concrete API's symbolic request
// template against the current environment (spec.md §4.6).
func (e *Environment) SubstituteTree(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return e.Substitute(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			newKey, err := e.Substitute(k)
			if err != nil {
				return nil, err
			}
			newVal, err := e.SubstituteTree(val)
			if err != nil {
				return nil, err
			}
			out[newKey] = newVal
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			newItem, err := e.SubstituteTree(item)
			if err != nil {
				return nil, err
			}
			out[i] = newItem
		}
		return out, nil
	default:
		return v, nil
	}
}
