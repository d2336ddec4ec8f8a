// Package swagger implements the OpenAPI2 (Swagger) document emitter
// (spec.md §5): one document per virtual host, built from its descriptors'
// request/response shapes and the schema translator's output.
//
// There is no teacher precedent for document emission (WonderTwin never
// produces API documentation, only runs against live mock servers), so
// this package is grounded directly on the domain-stack dependency
// selected for it in DESIGN.md: github.com/getkin/kin-openapi/openapi2,
// the same library Ama5ter-swagger2mcp uses to walk Swagger 2.0 documents,
// used here in the opposite direction (construction, not parsing).
package swagger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/wondertwin-ai/hdtest/internal/descriptor"
	"github.com/wondertwin-ai/hdtest/internal/schema"
	"github.com/wondertwin-ai/hdtest/internal/vhost"
)

// Build assembles one openapi2.T document for a single virtual host from
// every (non-private) descriptor that belongs to it.
func Build(host vhost.VHost, descriptors []*descriptor.Descriptor) (*openapi2.T, error) {
	doc := &openapi2.T{
		Swagger: "2.0",
		Info: openapi3.Info{
			Title:       firstNonEmpty(host.Title, host.Name),
			Description: host.Description,
			Version:     firstNonEmpty(host.Version, "0.0.0"),
		},
		BasePath: host.BasePath,
		Paths:    map[string]*openapi2.PathItem{},
	}

	sorted := make([]*descriptor.Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Private {
			continue
		}
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, d := range sorted {
		if err := addPath(doc, host, d); err != nil {
			return nil, fmt.Errorf("swagger: descriptor %q: %w", d.Name, err)
		}
	}
	return doc, nil
}

// addPath translates one descriptor's request template and declared
// responses into a path item + operation on doc.
func addPath(doc *openapi2.T, host vhost.VHost, d *descriptor.Descriptor) error {
	path := templatePath(d.Request.Path)
	item, ok := doc.Paths[path]
	if !ok {
		item = &openapi2.PathItem{}
		doc.Paths[path] = item
	}

	op := &openapi2.Operation{
		OperationID: operationID(d.Name),
		Tags:        d.Tags,
		Consumes:    []string{"application/json"},
		Produces:    []string{"application/json"},
		Responses:   map[string]*openapi2.Response{},
	}

	params, err := pathParameters(d.Request.Path, host.HostVar)
	if err != nil {
		return err
	}
	if d.Request.Body != nil {
		bodySchema, err := schema.Translate(d.Request.Body)
		if err != nil {
			return fmt.Errorf("translating request body: %w", err)
		}
		params = append(params, &openapi2.Parameter{
			Name:     "body",
			In:       "body",
			Required: true,
			Schema:   openapi3.NewSchemaRef("", schema.ToOpenAPI3(bodySchema)),
		})
	}
	op.Parameters = params

	statuses := make([]int, 0, len(d.Responses))
	for s := range d.Responses {
		statuses = append(statuses, s)
	}
	sort.Ints(statuses)
	for _, status := range statuses {
		resp := d.Responses[status]
		opResp := &openapi2.Response{Description: firstNonEmpty(resp.Description, fmt.Sprintf("status %d", status))}
		if !resp.IgnoreBody && resp.BodySketch != nil {
			sch, err := schema.TranslateOverlay(resp.BodySketch, resp.BodyMD)
			if err != nil {
				return fmt.Errorf("translating response body for status %d: %w", status, err)
			}
			opResp.Schema = openapi3.NewSchemaRef("", schema.ToOpenAPI3(sch))
		}
		op.Responses[fmt.Sprintf("%d", status)] = opResp
	}

	switch strings.ToUpper(d.Request.Method) {
	case "GET":
		item.Get = op
	case "POST":
		item.Post = op
	case "PUT":
		item.Put = op
	case "DELETE":
		item.Delete = op
	case "PATCH":
		item.Patch = op
	case "OPTIONS":
		item.Options = op
	case "HEAD":
		item.Head = op
	default:
		return fmt.Errorf("unsupported method %q", d.Request.Method)
	}
	return nil
}

// templatePath rewrites $var/${var} placeholders into Swagger's {var}
// path-parameter form.
func templatePath(p string) string {
	var b strings.Builder
	rest := p
	for {
		i := strings.IndexByte(rest, '$')
		if i == -1 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		name, braced, _, end, ok := peekPlaceholder(rest[i:])
		if !ok {
			b.WriteByte('$')
			rest = rest[i+1:]
			continue
		}
		b.WriteByte('{')
		b.WriteString(name)
		b.WriteByte('}')
		_ = braced
		rest = rest[i+end:]
	}
	return b.String()
}

func peekPlaceholder(s string) (name string, braced bool, start, end int, ok bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false, 0, 0, false
	}
	if s[1] == '{' {
		close := strings.IndexByte(s, '}')
		if close == -1 {
			return "", false, 0, 0, false
		}
		return s[2:close], true, 0, close + 1, true
	}
	j := 1
	for j < len(s) && isNameByte(s[j]) {
		j++
	}
	if j == 1 {
		return "", false, 0, 0, false
	}
	return s[1:j], false, 0, j, true
}

func isNameByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// pathParameters declares one Swagger path parameter per {var} found in
// the rewritten path, typed as string; the virtual host's own host_variable
// is skipped since it is captured by the document's host/basePath instead
// of a path segment.
func pathParameters(rawPath, hostVar string) ([]*openapi2.Parameter, error) {
	rewritten := templatePath(rawPath)
	var params []*openapi2.Parameter
	rest := rewritten
	for {
		start := strings.IndexByte(rest, '{')
		if start == -1 {
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end == -1 {
			return nil, fmt.Errorf("unterminated path parameter in %q", rawPath)
		}
		name := rest[start+1 : start+end]
		if name != hostVar {
			params = append(params, &openapi2.Parameter{
				Name:     name,
				In:       "path",
				Required: true,
				Type:     "string",
			})
		}
		rest = rest[start+end+1:]
	}
	return params, nil
}

func operationID(descriptorName string) string {
	return strings.ReplaceAll(descriptorName, "/", "_")
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
