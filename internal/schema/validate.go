package schema

import "fmt"

// ValidationError names the JSON path at which a schema violation occurred.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Path, e.Message) }

// Validate checks body against schema and returns every violation found
// (strict multi-error validation, spec.md §4.4.3), rather than stopping at
// the first. We walk our own Schema tree instead of delegating to
// kin-openapi's openapi3.Schema.VisitJSON because the sketch grammar's
// patternProperties wildcard (spec.md §4.5) has no first-class equivalent
// in OpenAPI 3's schema object (ToOpenAPI3 only approximates it);
// internal/swagger still uses kin-openapi to emit the translated schema as
// documentation.
func Validate(s *Schema, value any, path string) []ValidationError {
	if s == nil {
		return nil
	}
	if s.Ignore {
		return nil
	}
	if value == nil {
		if s.Nullable || !s.Required {
			return nil
		}
		return []ValidationError{{Path: path, Message: "required field is missing or null"}}
	}

	var errs []ValidationError
	switch s.Type {
	case "string":
		if _, ok := value.(string); !ok {
			errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf("expected string, got %T", value)})
		}
	case "integer":
		if !isIntegerValue(value) {
			errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf("expected integer, got %T", value)})
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf("expected boolean, got %T", value)})
		}
	case "array":
		arr, ok := value.([]any)
		if !ok {
			errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf("expected array, got %T", value)})
			break
		}
		for i, item := range arr {
			errs = append(errs, Validate(s.Items, item, fmt.Sprintf("%s[%d]", path, i))...)
		}
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf("expected object, got %T", value)})
			break
		}
		if s.PatternWildcard != nil {
			for k, v := range obj {
				errs = append(errs, Validate(s.PatternWildcard, v, path+"."+k)...)
			}
			break
		}
		for _, name := range s.RequiredFields {
			if _, ok := obj[name]; !ok {
				errs = append(errs, ValidationError{Path: path + "." + name, Message: "required field is missing"})
			}
		}
		for name, child := range s.Properties {
			v, present := obj[name]
			if !present {
				continue // required-ness already checked above
			}
			errs = append(errs, Validate(child, v, path+"."+name)...)
		}
	case "":
		if len(s.AnyOf) > 0 {
			for _, alt := range s.AnyOf {
				if len(Validate(alt, value, path)) == 0 {
					return nil
				}
			}
			errs = append(errs, ValidationError{Path: path, Message: "value did not match any alternative in anyOf"})
		}
	}
	return errs
}

func isIntegerValue(v any) bool {
	switch n := v.(type) {
	case float64:
		return n == float64(int64(n))
	case int, int32, int64:
		return true
	default:
		return false
	}
}
