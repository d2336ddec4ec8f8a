// Package descriptor implements the API Descriptor, Response Descriptor,
// and Concrete API data model (spec.md §3), dotted-path scanning over body
// sketches, action scanning, and descriptor expansion (spec.md §4.1–§4.2).
package descriptor

// Request is a request template: method, path with embedded $var
// placeholders, headers, optional auth, optional body. The body may be a
// nested any-tree (the "sketch", see internal/schema) or already-resolved
// JSON; at the Descriptor stage it is still symbolic.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Auth    *BasicAuth
	Body    any
}

type BasicAuth struct {
	Username string
	Password string
}

// Hook is one entry in a before/afterApi/afterAll/onBeforeRun/onAfterRun
// chain. Exactly one of Func or APIName is populated.
type Hook struct {
	// Func is a user callback: (ctx, cb). Represented here as an opaque
	// name resolved by the caller-supplied registry at runtime; the
	// descriptor/planner layers never invoke it directly.
	Func string
	// APIName names a peer Concrete API to run as a subtree of the
	// current context.
	APIName string
	// Quit lists status codes that silently terminate the chain when
	// APIName is set (spec.md §4.4.2; §9 open question resolved as
	// presence-in-list, not indexOf-truthy).
	Quit []int
	Fatal bool
}

// VarNew is the constructor link on a Concrete API: the variable it
// produces, the getter/destructor peer names, and the keys over which
// concurrent creations must serialize.
type VarNew struct {
	Name        string
	Path        string
	Get         string
	Delete      string
	SerialVars  []string
	// SerialVarsExplicit is false when SerialVars was defaulted to the set
	// of variable names textually present in the request body (spec.md §4.2).
	SerialVarsExplicit bool
}

// VarSet captures a response value into a named variable.
type VarSet struct {
	Name string
	Path string
	Fcn  string
	// Value, if set, is a textual template resolved against the
	// environment instead of extracted from the response.
	Value string
}

// VarRename moves a value from one variable name to another.
type VarRename struct {
	From, To string
}

// Action is one response-time mutation of the environment, in scanning
// order (spec.md §4.2, §4.4.4).
type Action struct {
	VarSet    *VarSet
	VarNew    *VarNew
	VarRename *VarRename
	VarDelete string // non-empty for a var_delete action
}

// Response is one status-coded branch of a multi-response descriptor.
type Response struct {
	Status      int
	Description string
	// BodySketch is the friendly body-description syntax (see
	// internal/schema).
	BodySketch any
	// BodyMD is the bodymd overlay (spec.md §4.5): fragments deep-merged
	// onto the translated schema, keyed by a dot-separated property path
	// (see internal/schema.TranslateOverlay for the accepted key form).
	BodyMD     map[string]map[string]any
	IgnoreBody bool
	Actions    []Action
	Tests      []Test
	SerialVars []string

	Before     []Hook
	AfterAPI   []Hook
	AfterAll   []Hook
	OnBeforeRun string
	OnAfterRun  string
}

// Test overrides request variables to force a particular response status.
type Test struct {
	Name string
	Vars map[string]string
}

// Descriptor is the load-time, multi-response API descriptor (spec.md §3).
type Descriptor struct {
	// Name is the qualified name: "virtual-host/path".
	Name      string
	VHost     string
	Private   bool
	Request   Request
	Responses map[int]*Response
	Tags      []string
	Groups    []string
	ExtraConsumes []string
	ExtraProduces []string

	Before      []Hook
	AfterAPI    []Hook
	AfterAll    []Hook
	OnBeforeRun string
	OnAfterRun  string
}

// ConcreteAPI is the planner's unit of scheduling: one (response, test
// variant, variable combination) triple (spec.md §3, §4.1).
type ConcreteAPI struct {
	Name            string
	SourceDescriptor string
	ExpectedStatus  int
	Request         Request
	IgnoreBody      bool
	BodySketch      any
	BodyMD          map[string]map[string]any

	Consumes map[string]bool
	Produces map[string]bool
	Deletes  map[string]bool

	Actions []Action
	VarNew  *VarNew

	Before      []Hook
	AfterAPI    []Hook
	AfterAll    []Hook
	OnBeforeRun string
	OnAfterRun  string

	SerialVars []string

	// Referenced is true when some other API's var_new.get/delete or hook
	// names this one as its target (set by MarkReferenced during
	// expansion). A referenced API is never insertable at the top level of
	// the plan tree (spec.md §4.2, §8 "Referenced API"): it only runs as a
	// pre/post satellite or inside the hook chain that names it.
	Referenced bool
}

// MarkReferenced scans every concrete API's var_new getter/destructor
// links and hook chains, and flags Referenced on every concrete API whose
// SourceDescriptor is named as one of those targets. Matching is done on
// SourceDescriptor rather than Name because Name carries the per-test and
// per-combination suffixes (§4.1) that a var_new.get/delete or hook string
// never includes.
func MarkReferenced(apis []*ConcreteAPI) {
	referenced := referencedSourceNames(apis)
	for _, a := range apis {
		if referenced[a.SourceDescriptor] {
			a.Referenced = true
		}
	}
}

func referencedSourceNames(apis []*ConcreteAPI) map[string]bool {
	fromVarNew := map[string]bool{}
	fromHooks := map[string]bool{}
	for _, a := range apis {
		if a.VarNew != nil {
			if a.VarNew.Get != "" {
				fromVarNew[a.VarNew.Get] = true
			}
			if a.VarNew.Delete != "" {
				fromVarNew[a.VarNew.Delete] = true
			}
		}
		for _, h := range hookChains(a) {
			if h.APIName != "" {
				fromHooks[h.APIName] = true
			}
		}
	}
	return union(fromVarNew, fromHooks)
}

// hookChains returns every hook declared on a, across before/afterApi/afterAll.
func hookChains(a *ConcreteAPI) []Hook {
	all := make([]Hook, 0, len(a.Before)+len(a.AfterAPI)+len(a.AfterAll))
	all = append(all, a.Before...)
	all = append(all, a.AfterAPI...)
	all = append(all, a.AfterAll...)
	return all
}

func newStringSet(items ...string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		if s != "" {
			set[s] = true
		}
	}
	return set
}

func union(sets ...map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for _, s := range sets {
		for k := range s {
			out[k] = true
		}
	}
	return out
}
