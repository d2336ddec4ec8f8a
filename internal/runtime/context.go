// Package runtime implements the nine-stage waterfall executor (spec.md
// §4.4): for each node in the plan tree it runs preRun, onBeforeRun,
// before hooks, the main request, afterApi hooks, children (concurrently,
// each on an isolated environment fork), afterAll hooks, onAfterRun, and
// finally postRun.
//
// Grounded on internal/scenario/v2/runner.go's Run method, which drives
// the same kind of request/capture/assert loop for a single scenario step;
// this package generalizes it to a tree of steps with concurrent siblings
// and constructor/destructor satellites.
package runtime

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wondertwin-ai/hdtest/internal/descriptor"
	"github.com/wondertwin-ai/hdtest/internal/hdterrors"
	"github.com/wondertwin-ai/hdtest/internal/httpclient"
	"github.com/wondertwin-ai/hdtest/internal/planner"
	"github.com/wondertwin-ai/hdtest/internal/variable"
)

// HookFunc is the adaptation of the descriptor package's opaque Func hook
// into something Go can call directly: the callback form noted in
// descriptor.Hook's doc comment ("(ctx, cb)") becomes a synchronous,
// error-returning function taking a HookContext, with the callback's
// completion signal expressed as Go's ordinary error return.
type HookFunc func(ctx context.Context, hc *HookContext) error

// VarFunc computes a var_set value directly from the parsed response body,
// the "fcn" alternative to a dotted path (spec.md §4.2).
type VarFunc func(body any) (string, error)

// HookContext is what a registered HookFunc receives: read/write access to
// the branch environment, the setBreak/isBreak flag that ends the
// remaining hooks in the current chain without failing or skipping the
// node (spec.md §4.4.2, distinct from a Hook.Quit status match, which ends
// the whole node), and sendRequest for ad-hoc HTTP calls routed through
// the same client the waterfall itself uses.
type HookContext struct {
	env *variable.Environment
	rc  *RunContext
	ctx context.Context
	brk bool
}

// GetVar reads a variable from the branch environment.
func (hc *HookContext) GetVar(name string) (string, bool) { return hc.env.Get(name) }

// SetVar writes a variable into the branch environment.
func (hc *HookContext) SetVar(name, value string) { hc.env.Set(name, value) }

// IsBreak reports whether a prior SetBreak(true) call in this same hook
// invocation requested early termination of the enclosing chain.
func (hc *HookContext) IsBreak() bool { return hc.brk }

// SetBreak marks the enclosing hook chain to stop after this hook runs,
// without recording an error or skipping the node (spec.md §4.4.2).
func (hc *HookContext) SetBreak(b bool) { hc.brk = b }

// SendRequest issues an ad-hoc HTTP call through the same client the
// waterfall uses for its main requests, for hooks that need a side-channel
// call (e.g. polling an async job) outside the plan tree.
func (hc *HookContext) SendRequest(req httpclient.Request) (*httpclient.Response, error) {
	return hc.rc.Client.Do(hc.ctx, req)
}

// RunContext carries everything a waterfall execution needs that isn't
// already in the plan tree or the per-branch environment: the shared HTTP
// client and cookie jar, per-virtual-host base URLs, registered hook
// functions, and the resource-level serialization locks that keep
// concurrent var_new constructions of the same key from racing.
type RunContext struct {
	Client    *httpclient.Client
	BaseURL   map[string]string
	HookFuncs map[string]HookFunc
	VarFuncs  map[string]VarFunc
	Registry  planner.Registry
	Log       *logrus.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New builds a RunContext. baseURL maps virtual host name to its base URL
// (see internal/vhost); reg resolves the concrete APIs named by a
// Hook.APIName; log may be nil, in which case a disabled logger is used
// (no output, matching the teacher's pattern of always injecting a logger
// rather than calling the package-level default).
func New(client *httpclient.Client, baseURL map[string]string, hookFuncs map[string]HookFunc, reg planner.Registry, log *logrus.Logger) *RunContext {
	if log == nil {
		log = logrus.New()
		log.SetOutput(logDiscard{})
	}
	return &RunContext{
		Client:    client,
		BaseURL:   baseURL,
		HookFuncs: hookFuncs,
		Registry:  reg,
		Log:       log,
		locks:     map[string]*sync.Mutex{},
	}
}

type logDiscard struct{}

func (logDiscard) Write(p []byte) (int, error) { return len(p), nil }

// Result is the outcome of executing one node, mirroring the plan tree
// shape so a caller can render a pass/fail summary alongside the original
// tree (spec.md §4.4, run command output).
type Result struct {
	Name     string
	Status   int
	Err      error
	Skipped  bool
	PreRun   *Result
	PostRun  *Result
	Children []*Result
}

// HasFailures reports whether res or any descendant recorded an error.
func (res *Result) HasFailures() bool {
	if res == nil {
		return false
	}
	if res.Err != nil {
		return true
	}
	if res.PreRun.HasFailures() || res.PostRun.HasFailures() {
		return true
	}
	for _, c := range res.Children {
		if c.HasFailures() {
			return true
		}
	}
	return false
}

func (rc *RunContext) vhostOf(apiName string) string {
	if i := strings.IndexByte(apiName, '/'); i >= 0 {
		return apiName[:i]
	}
	return ""
}

// lockFor returns the mutex guarding concurrent creation of the resource
// identified by serialVars' resolved values, creating it on first use.
func (rc *RunContext) lockFor(key string) *sync.Mutex {
	rc.locksMu.Lock()
	defer rc.locksMu.Unlock()
	m, ok := rc.locks[key]
	if !ok {
		m = &sync.Mutex{}
		rc.locks[key] = m
	}
	return m
}

// serialKey builds the lock key for a var_new node from the name=value
// pairs of its declared serial variables alone, sorted for determinism,
// so that "create app named X" serializes against other "create app named
// X" calls (regardless of which descriptor does the creating) but runs
// freely alongside "create app named Y". A serial variable with no value
// in env is fatal (spec.md §4.4.5): silently keying on an empty string
// would wrongly serialize unrelated creations against each other.
func serialKey(api *descriptor.ConcreteAPI, env *variable.Environment) (string, error) {
	if api.VarNew == nil || len(api.VarNew.SerialVars) == 0 {
		return "", nil
	}
	names := append([]string(nil), api.VarNew.SerialVars...)
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		v, ok := env.Get(n)
		if !ok {
			return "", hdterrors.New(hdterrors.RuntimeLogic, api.Name, "serial_vars entry %q has no value in the environment", n)
		}
		b.WriteByte('\x00')
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String(), nil
}
