package runtime

import (
	"context"
	"fmt"

	"github.com/wondertwin-ai/hdtest/internal/descriptor"
	"github.com/wondertwin-ai/hdtest/internal/hdterrors"
	"github.com/wondertwin-ai/hdtest/internal/planner"
	"github.com/wondertwin-ai/hdtest/internal/variable"
)

// chainOutcome is what running a before/afterApi/afterAll chain produced:
// whether it asked the waterfall to quit silently, a non-fatal error to
// record against the node's Result, a fatal error that must abort the
// whole run, or a setBreak(true) that ends only the remaining hooks in
// this chain (spec.md §4.4.2) without failing or skipping the node.
type chainOutcome struct {
	quit     bool
	brk      bool
	err      error
	fatalErr error
}

// runHookChain runs hooks in order and stops at the first one that quits,
// errors fatally, errors non-fatally, or calls ctx.setBreak(true).
func (rc *RunContext) runHookChain(ctx context.Context, hooks []descriptor.Hook, env *variable.Environment) chainOutcome {
	for _, h := range hooks {
		out := rc.runHook(ctx, h, env)
		if out.quit || out.err != nil || out.fatalErr != nil {
			return out
		}
		if out.brk {
			break
		}
	}
	return chainOutcome{}
}

func (rc *RunContext) runHook(ctx context.Context, h descriptor.Hook, env *variable.Environment) chainOutcome {
	switch {
	case h.Func != "":
		return rc.runHookFunc(ctx, h, env)
	case h.APIName != "":
		return rc.runHookAPI(ctx, h, env)
	default:
		return chainOutcome{err: hdterrors.New(hdterrors.Hook, "", "hook has neither func nor apiName set")}
	}
}

func (rc *RunContext) runHookFunc(ctx context.Context, h descriptor.Hook, env *variable.Environment) chainOutcome {
	fn, ok := rc.HookFuncs[h.Func]
	if !ok {
		err := hdterrors.New(hdterrors.Hook, h.Func, "no hook function registered under name %q", h.Func)
		if h.Fatal {
			return chainOutcome{fatalErr: err}
		}
		return chainOutcome{err: err}
	}
	hc := &HookContext{ctx: ctx, env: env, rc: rc}
	if err := fn(ctx, hc); err != nil {
		wrapped := hdterrors.Wrap(hdterrors.Hook, h.Func, err, "hook func %q", h.Func)
		if h.Fatal {
			return chainOutcome{fatalErr: wrapped}
		}
		return chainOutcome{err: wrapped}
	}
	return chainOutcome{brk: hc.brk}
}

// callHookFunc runs a single named hook for onBeforeRun/onAfterRun, which
// unlike before/afterApi/afterAll are not chains and carry no quit/fatal
// modifiers of their own; a failure there is always treated as fatal to
// the enclosing node, matching the teacher's treatment of setup/teardown
// callbacks as must-succeed. setBreak has no meaning outside a chain and
// is ignored here.
func (rc *RunContext) callHookFunc(ctx context.Context, name string, env *variable.Environment) error {
	fn, ok := rc.HookFuncs[name]
	if !ok {
		return hdterrors.New(hdterrors.Hook, name, "no hook function registered under name %q", name)
	}
	hc := &HookContext{ctx: ctx, env: env, rc: rc}
	if err := fn(ctx, hc); err != nil {
		return hdterrors.Wrap(hdterrors.Hook, name, err, "hook func %q", name)
	}
	return nil
}

// runHookAPI runs a peer concrete API named by h.APIName as a standalone
// subtree (outside the plan tree) and interprets its resulting status
// against h.Quit: a matching status silently ends the enclosing chain
// (spec.md §9, resolved as presence-in-list rather than indexOf-truthy).
func (rc *RunContext) runHookAPI(ctx context.Context, h descriptor.Hook, env *variable.Environment) chainOutcome {
	if rc.Registry == nil {
		return chainOutcome{err: hdterrors.New(hdterrors.Hook, h.APIName, "hook references api %q but no registry was configured", h.APIName)}
	}
	api, ok := rc.Registry.Lookup(h.APIName)
	if !ok {
		err := hdterrors.New(hdterrors.Hook, h.APIName, "hook references unknown api %q", h.APIName)
		if h.Fatal {
			return chainOutcome{fatalErr: err}
		}
		return chainOutcome{err: err}
	}

	node := planner.Standalone(api)
	res, err := rc.Execute(ctx, node, env)
	if err != nil {
		if h.Fatal {
			return chainOutcome{fatalErr: err}
		}
		return chainOutcome{err: err}
	}
	if quitOn(h.Quit, res.Status) {
		return chainOutcome{quit: true}
	}
	if res.Err != nil {
		wrapped := fmt.Errorf("hook api %q: %w", h.APIName, res.Err)
		if h.Fatal {
			return chainOutcome{fatalErr: wrapped}
		}
		return chainOutcome{err: wrapped}
	}
	return chainOutcome{}
}

// quitOn reports whether status is present in quit, per the presence-based
// reading of the quit list (not a truthy-index check).
func quitOn(quit []int, status int) bool {
	for _, s := range quit {
		if s == status {
			return true
		}
	}
	return false
}
