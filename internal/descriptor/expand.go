package descriptor

import (
	"fmt"
	"regexp"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Catalogue is the subset of the load-time variable catalogue the
// expander needs: which names carry an enumeration, and what its
// candidate values are. internal/variable.Catalogue satisfies this via
// a small adapter in the loader.
type Catalogue interface {
	Enum(name string) ([]string, bool)
}

var varRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// findVarRefs returns the set of variable names referenced via $name or
// ${name} anywhere in a request template's strings.
func findVarRefs(req Request) map[string]bool {
	refs := make(map[string]bool)
	scan := func(s string) {
		for _, m := range varRefPattern.FindAllStringSubmatch(s, -1) {
			if m[1] != "" {
				refs[m[1]] = true
			} else if m[2] != "" {
				refs[m[2]] = true
			}
		}
	}
	scan(req.Method)
	scan(req.Path)
	for k, v := range req.Headers {
		scan(k)
		scan(v)
	}
	if req.Auth != nil {
		scan(req.Auth.Username)
		scan(req.Auth.Password)
	}
	scanTree(req.Body, scan)
	return refs
}

func scanTree(v any, scan func(string)) {
	switch t := v.(type) {
	case string:
		scan(t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			scan(k)
			scanTree(t[k], scan)
		}
	case []any:
		for _, item := range t {
			scanTree(item, scan)
		}
	}
}

// applyTestVars overlays a test's variable overrides onto a request
// template by rewriting any $name/${name} occurrence whose name is
// overridden into the literal override value. Free (non-overridden)
// references remain symbolic for runtime substitution.
func applyTestVars(req Request, vars map[string]string) Request {
	if len(vars) == 0 {
		return req
	}
	replace := func(s string) string {
		return varRefPattern.ReplaceAllStringFunc(s, func(m string) string {
			sub := varRefPattern.FindStringSubmatch(m)
			name := sub[1]
			if name == "" {
				name = sub[2]
			}
			if v, ok := vars[name]; ok {
				return v
			}
			return m
		})
	}
	out := req
	out.Method = replace(req.Method)
	out.Path = replace(req.Path)
	if req.Headers != nil {
		out.Headers = make(map[string]string, len(req.Headers))
		for k, v := range req.Headers {
			out.Headers[replace(k)] = replace(v)
		}
	}
	out.Body = replaceTree(req.Body, replace)
	return out
}

func replaceTree(v any, replace func(string) string) any {
	switch t := v.(type) {
	case string:
		return replace(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[replace(k)] = replaceTree(val, replace)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = replaceTree(item, replace)
		}
		return out
	default:
		return v
	}
}

// combination is one assignment of enum variable -> candidate value.
type combination map[string]string

// cartesian computes the Cartesian product of candidate values for the
// given enum variables, in deterministic order (sorted variable names,
// then the declared candidate order within each).
func cartesian(cat Catalogue, names []string) []combination {
	sort.Strings(names)
	combos := []combination{{}}
	for _, name := range names {
		values, _ := cat.Enum(name)
		var next []combination
		for _, c := range combos {
			for _, v := range values {
				nc := make(combination, len(c)+1)
				for k, vv := range c {
					nc[k] = vv
				}
				nc[name] = v
				next = append(next, nc)
			}
		}
		combos = next
	}
	return combos
}

// Expand explodes a multi-response Descriptor into one Concrete API per
// (response, test, variable-combination) triple (spec.md §4.1).
func Expand(d *Descriptor, cat Catalogue) ([]*ConcreteAPI, error) {
	statuses := make([]int, 0, len(d.Responses))
	for s := range d.Responses {
		statuses = append(statuses, s)
	}
	sort.Ints(statuses)

	type job struct {
		status int
		resp   *Response
	}
	jobs := make([]job, 0, len(statuses))
	for _, s := range statuses {
		jobs = append(jobs, job{status: s, resp: d.Responses[s]})
	}

	results := make([][]*ConcreteAPI, len(jobs))
	g := new(errgroup.Group)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			apis, err := expandResponse(d, j.status, j.resp, cat)
			if err != nil {
				return fmt.Errorf("descriptor %q status %d: %w", d.Name, j.status, err)
			}
			results[i] = apis
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*ConcreteAPI
	for _, apis := range results {
		all = append(all, apis...)
	}
	return all, nil
}

func expandResponse(d *Descriptor, status int, resp *Response, cat Catalogue) ([]*ConcreteAPI, error) {
	tests := resp.Tests
	if len(tests) == 0 {
		tests = []Test{{Name: ""}}
	}

	var out []*ConcreteAPI
	for _, test := range tests {
		req := applyTestVars(d.Request, test.Vars)

		refs := findVarRefs(req)
		var enumNames []string
		for name := range refs {
			if _, ok := cat.Enum(name); ok {
				enumNames = append(enumNames, name)
			}
		}
		combos := cartesian(cat, enumNames)

		for k, combo := range combos {
			groundReq := applyTestVars(req, combo)

			name := d.Name
			if test.Name != "" {
				name = name + "/" + test.Name
			}
			if k > 0 {
				name = fmt.Sprintf("%s-%d", name, k)
			}

			actions, err := ScanActions(resp.BodySketch)
			if err != nil {
				return nil, err
			}

			consumes := newStringSet(d.ExtraConsumes...)
			for ref := range findVarRefs(groundReq) {
				consumes[ref] = true
			}
			produces := newStringSet(d.ExtraProduces...)
			deletes := make(map[string]bool)
			ApplyProducesDeletes(actions, produces, deletes)

			var varNew *VarNew
			for _, a := range actions {
				if a.VarNew != nil {
					varNew = a.VarNew
					if !varNew.SerialVarsExplicit {
						varNew.SerialVars = sortedKeys(bodyVarNames(groundReq.Body, refs))
					}
					break
				}
			}

			serialVars := resp.SerialVars
			if varNew != nil && len(varNew.SerialVars) > 0 {
				serialVars = varNew.SerialVars
			}

			out = append(out, &ConcreteAPI{
				Name:             name,
				SourceDescriptor: d.Name,
				ExpectedStatus:   status,
				Request:          groundReq,
				IgnoreBody:       resp.IgnoreBody,
				BodySketch:       resp.BodySketch,
				BodyMD:           resp.BodyMD,
				Consumes:         consumes,
				Produces:         produces,
				Deletes:          deletes,
				Actions:          actions,
				VarNew:           varNew,
				Before:           mergeHooks(resp.Before, d.Before),
				AfterAPI:         mergeHooks(resp.AfterAPI, d.AfterAPI),
				AfterAll:         mergeHooks(resp.AfterAll, d.AfterAll),
				OnBeforeRun:      firstNonEmpty(resp.OnBeforeRun, d.OnBeforeRun),
				OnAfterRun:       firstNonEmpty(resp.OnAfterRun, d.OnAfterRun),
				SerialVars:       serialVars,
			})
		}
	}
	return out, nil
}

// mergeHooks implements the "response then descriptor" ??= precedence: a
// response-declared hook chain wins outright; only an empty response chain
// falls back to the descriptor's.
func mergeHooks(respHooks, descHooks []Hook) []Hook {
	if len(respHooks) > 0 {
		return respHooks
	}
	return descHooks
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// bodyVarNames returns the variable names that appear inside the request
// body specifically (not headers/path), used to default serial_vars.
func bodyVarNames(body any, allRefs map[string]bool) map[string]bool {
	bodyRefs := make(map[string]bool)
	scanTree(body, func(s string) {
		for _, m := range varRefPattern.FindAllStringSubmatch(s, -1) {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			if allRefs[name] {
				bodyRefs[name] = true
			}
		}
	})
	return bodyRefs
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
