package runtime

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/wondertwin-ai/hdtest/internal/descriptor"
	"github.com/wondertwin-ai/hdtest/internal/hdterrors"
	"github.com/wondertwin-ai/hdtest/internal/httpclient"
	"github.com/wondertwin-ai/hdtest/internal/planner"
	"github.com/wondertwin-ai/hdtest/internal/schema"
	"github.com/wondertwin-ai/hdtest/internal/variable"
)

// Execute drives the nine-stage waterfall for node and its whole subtree.
// The returned error is non-nil only for a fatal abort (a Fatal hook
// failure, or a serial_vars entry with no value in the environment);
// ordinary contract and transport failures are recorded on the returned
// Result and do not stop sibling branches.
func (rc *RunContext) Execute(ctx context.Context, node *planner.Node, env *variable.Environment) (*Result, error) {
	if node.API == nil {
		return rc.runChildren(ctx, node, env)
	}

	res := &Result{Name: node.Name()}

	key, err := serialKey(node.API, env)
	if err != nil {
		res.Err = err
		return res, err
	}
	if key != "" {
		lock := rc.lockFor(key)
		lock.Lock()
		defer lock.Unlock()
	}

	// State progresses monotonically through the nine stages; the first
	// error encountered is remembered on res.Err (or as a fatal return),
	// but later stages still conditionally run on these progress flags, so
	// cleanup fires even after an earlier stage failed (spec.md §4.4.1):
	// before needs onBeforeRun success, main needs before success, afterApi
	// needs main success, children/afterAll need afterApi success,
	// onAfterRun needs onBeforeRun success, postRun needs before success.
	var onBeforeRunOK, beforeOK, mainOK, afterApiOK bool

	// 1. preRun: run the var_new getter satellite, if any. A preRun failure
	// is recorded on res.PreRun but never blocks the rest of this node's
	// waterfall (matching the teacher's best-effort
	// cleanup-of-leftover-state treatment).
	if node.PreRun != nil {
		preRes, preErr := rc.Execute(ctx, node.PreRun, env)
		res.PreRun = preRes
		if preErr != nil {
			return res, preErr
		}
	}

	// 2. onBeforeRun
	if node.API.OnBeforeRun == "" {
		onBeforeRunOK = true
	} else if err := rc.callHookFunc(ctx, node.API.OnBeforeRun, env); err != nil {
		res.Err = err
	} else {
		onBeforeRunOK = true
	}

	// 3. before
	if onBeforeRunOK {
		out := rc.runHookChain(ctx, node.API.Before, env)
		switch {
		case out.fatalErr != nil:
			return res, out.fatalErr
		case out.quit:
			res.Skipped = true
			return res, nil
		case out.err != nil:
			res.Err = out.err
		default:
			beforeOK = true
		}
	}

	// 4. main request
	if beforeOK {
		status, err := rc.dispatchMain(ctx, node.API, env, res)
		res.Status = status
		if err != nil {
			res.Err = err
		} else {
			mainOK = true
		}
	}

	// 5. afterApi
	if mainOK {
		out := rc.runHookChain(ctx, node.API.AfterAPI, env)
		switch {
		case out.fatalErr != nil:
			return res, out.fatalErr
		case out.quit:
			res.Skipped = true
			return res, nil
		case out.err != nil:
			res.Err = out.err
		default:
			afterApiOK = true
		}
	}

	// 6. children: need afterApi success, but a child failure does not
	// block afterAll (which only needs afterApi, not children).
	if afterApiOK {
		childrenRes, err := rc.runChildren(ctx, node, env)
		res.Children = childrenRes.Children
		if err != nil {
			return res, err
		}
	}

	// 7. afterAll
	if afterApiOK {
		out := rc.runHookChain(ctx, node.API.AfterAll, env)
		if out.fatalErr != nil {
			return res, out.fatalErr
		}
		if out.err != nil && res.Err == nil {
			res.Err = out.err
		}
	}

	// 8. onAfterRun: needs onBeforeRun success, independent of everything
	// that happened in between.
	if onBeforeRunOK && node.API.OnAfterRun != "" {
		if err := rc.callHookFunc(ctx, node.API.OnAfterRun, env); err != nil && res.Err == nil {
			res.Err = err
		}
	}

	// 9. postRun: tear down the var_new resource, if any. Needs before
	// success: the resource was at least attempted to be constructed, so
	// its destructor still needs to run even if the main request or a
	// later hook failed.
	if beforeOK && node.PostRun != nil {
		postRes, err := rc.Execute(ctx, node.PostRun, env)
		res.PostRun = postRes
		if err != nil {
			return res, err
		}
	}

	return res, nil
}

// runChildren executes node's children concurrently, each on its own
// environment fork (spec.md §8 "Environment isolation"): a write one
// sibling branch makes is invisible to any other. A single child's fatal
// error aborts the whole group via errgroup's context cancellation.
func (rc *RunContext) runChildren(ctx context.Context, node *planner.Node, env *variable.Environment) (*Result, error) {
	res := &Result{Children: make([]*Result, len(node.Children))}
	if len(node.Children) == 0 {
		return res, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, child := range node.Children {
		i, child := i, child
		g.Go(func() error {
			childRes, err := rc.Execute(gctx, child, env.Clone())
			res.Children[i] = childRes
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

// dispatchMain substitutes node's request template against env, sends it,
// checks the response status against what the concrete API expects,
// validates the body against its schema sketch, and applies the
// resulting actions to env.
func (rc *RunContext) dispatchMain(ctx context.Context, api *descriptor.ConcreteAPI, env *variable.Environment, res *Result) (int, error) {
	req, err := rc.buildRequest(env, api)
	if err != nil {
		return 0, err
	}

	httpRes, err := rc.Client.Do(ctx, *req)
	if err != nil {
		return 0, hdterrors.Wrap(hdterrors.Transport, api.Name, err, "dispatching %s %s", req.Method, req.URL)
	}

	if httpRes.Status != api.ExpectedStatus {
		return httpRes.Status, hdterrors.New(hdterrors.Contract, api.Name, "expected status %d, got %d", api.ExpectedStatus, httpRes.Status)
	}

	if !api.IgnoreBody && api.BodySketch != nil {
		sch, err := schema.TranslateOverlay(api.BodySketch, api.BodyMD)
		if err != nil {
			return httpRes.Status, hdterrors.Wrap(hdterrors.Compile, api.Name, err, "translating body sketch")
		}
		if verrs := schema.Validate(sch, httpRes.Body, ""); len(verrs) > 0 {
			return httpRes.Status, hdterrors.New(hdterrors.Contract, api.Name, "response body failed validation: %v", verrs)
		}
	}

	if err := applyActions(env, api.Actions, httpRes.Body, rc.VarFuncs); err != nil {
		return httpRes.Status, err
	}

	return httpRes.Status, nil
}

func (rc *RunContext) buildRequest(env *variable.Environment, api *descriptor.ConcreteAPI) (*httpclient.Request, error) {
	resolvedPath, err := env.Substitute(api.Request.Path)
	if err != nil {
		return nil, hdterrors.Wrap(hdterrors.Substitution, api.Name, err, "resolving request path")
	}

	headers := map[string]string{}
	for k, v := range api.Request.Headers {
		rv, err := env.Substitute(v)
		if err != nil {
			return nil, hdterrors.Wrap(hdterrors.Substitution, api.Name, err, "resolving header %q", k)
		}
		headers[k] = rv
	}

	var body any
	if api.Request.Body != nil {
		resolved, err := env.SubstituteTree(api.Request.Body)
		if err != nil {
			return nil, hdterrors.Wrap(hdterrors.Substitution, api.Name, err, "resolving request body")
		}
		body = resolved
	}

	var auth *httpclient.BasicAuth
	if api.Request.Auth != nil {
		user, err := env.Substitute(api.Request.Auth.Username)
		if err != nil {
			return nil, hdterrors.Wrap(hdterrors.Substitution, api.Name, err, "resolving basic auth username")
		}
		pass, err := env.Substitute(api.Request.Auth.Password)
		if err != nil {
			return nil, hdterrors.Wrap(hdterrors.Substitution, api.Name, err, "resolving basic auth password")
		}
		auth = &httpclient.BasicAuth{Username: user, Password: pass}
	}

	base := rc.BaseURL[rc.vhostOf(api.Name)]
	return &httpclient.Request{
		Method:  api.Request.Method,
		URL:     base + resolvedPath,
		Headers: headers,
		Auth:    auth,
		Body:    body,
	}, nil
}
