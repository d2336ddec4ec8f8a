package schema

import "github.com/getkin/kin-openapi/openapi3"

// ToOpenAPI3 converts a translated Schema into a *openapi3.Schema for
// embedding in the emitted Swagger document (internal/swagger). The
// patternProperties wildcard form has no first-class OpenAPI 3 equivalent;
// it is approximated with AdditionalProperties, which is the closest
// documented shape a Swagger UI can render.
func ToOpenAPI3(s *Schema) *openapi3.Schema {
	if s == nil {
		return nil
	}
	out := &openapi3.Schema{
		Type:        s.Type,
		Format:      s.Format,
		Description: s.Description,
		Nullable:    s.Nullable,
	}

	switch {
	case s.Items != nil:
		out.Items = openapi3.NewSchemaRef("", ToOpenAPI3(s.Items))
	case s.PatternWildcard != nil:
		out.AdditionalProperties = openapi3.AdditionalProperties{
			Schema: openapi3.NewSchemaRef("", ToOpenAPI3(s.PatternWildcard)),
		}
	case len(s.Properties) > 0:
		out.Properties = make(openapi3.Schemas, len(s.Properties))
		for name, child := range s.Properties {
			out.Properties[name] = openapi3.NewSchemaRef("", ToOpenAPI3(child))
		}
		out.Required = append([]string(nil), s.RequiredFields...)
	}

	for _, alt := range s.AnyOf {
		out.AnyOf = append(out.AnyOf, openapi3.NewSchemaRef("", ToOpenAPI3(alt)))
	}

	return out
}
