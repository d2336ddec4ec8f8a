package planner

import (
	"github.com/wondertwin-ai/hdtest/internal/descriptor"
	"github.com/wondertwin-ai/hdtest/internal/hdterrors"
)

// maxInsertDepth bounds the producer-seeding recursion; a dependency chain
// deeper than this almost certainly means an undetected cycle that the
// re-entrancy guard failed to catch because it runs through intermediate
// variables rather than direct self-reference.
const maxInsertDepth = 64

// Planner builds the execution tree one concrete API at a time.
type Planner struct {
	Root       *Node
	reg        Registry
	predefined map[string]bool
	inserting  map[string]bool
	nextID     map[string]int
}

// New creates a Planner. predefined is the set of variable names available
// from the start (spec.md's predefinesVar environment entries, resolved by
// internal/variable before planning begins); reg resolves producers when a
// concrete API needs a variable nothing placed so far supplies.
func New(reg Registry, predefined map[string]bool) *Planner {
	p := &Planner{
		Root:       NewRoot(),
		reg:        reg,
		predefined: map[string]bool{},
		inserting:  map[string]bool{},
		nextID:     map[string]int{},
	}
	for v := range predefined {
		p.predefined[v] = true
	}
	return p
}

// Insert places api in the tree, recursively seeding and inserting
// whatever producer APIs are needed first. A referenced API (one named by
// some other API's var_new.get/delete or hook chain, per
// descriptor.MarkReferenced) is never insertable at the top level: it only
// ever reaches the tree through its owning node's satellites or a hook's
// ad-hoc execution, so Insert silently no-ops for it (spec.md §4.2, §8).
func (p *Planner) Insert(api *descriptor.ConcreteAPI) error {
	if api.Referenced {
		return nil
	}
	return p.insertAt(p.Root, api, 0)
}

// insertAt runs the insertion algorithm for api starting at n, with
// re-entrancy/depth guarding against producer cycles.
func (p *Planner) insertAt(n *Node, api *descriptor.ConcreteAPI, depth int) error {
	if depth > maxInsertDepth {
		return hdterrors.New(hdterrors.RuntimeLogic, api.Name, "dependency chain exceeded depth %d inserting %q; likely a producer cycle", maxInsertDepth, api.Name)
	}
	if p.inserting[api.Name] {
		return hdterrors.New(hdterrors.RuntimeLogic, api.Name, "circular producer dependency: %q requires itself, directly or transitively", api.Name)
	}
	p.inserting[api.Name] = true
	defer delete(p.inserting, api.Name)

	inserted, err := p.tryInsert(n, api, depth)
	if err != nil {
		return err
	}
	if !inserted {
		return hdterrors.New(hdterrors.RuntimeLogic, api.Name, "api %q still not insertable after seeding its producers", api.Name)
	}
	return nil
}

// tryInsert implements spec.md §4.3's insertion algorithm for api at node n:
// append directly if everything api consumes is already available on n's
// ancestor chain; otherwise recurse into every child whose subtree
// produces something api still needs, appending in each qualifying branch
// (maximum coverage, §1/§2). If no child accepts it, seed a producer for
// the first undefined variable at n and retry. Unlike a single-placement
// search, api may end up appended at several nodes across one call.
func (p *Planner) tryInsert(n *Node, api *descriptor.ConcreteAPI, depth int) (bool, error) {
	if hasAncestorNamed(n, api.Name) {
		return false, nil
	}

	undef := p.undefinedAt(n, api)
	if len(undef) == 0 {
		p.append(n, api)
		return true, nil
	}

	var anyChildAccepted bool
	for _, child := range n.Children {
		if !intersects(child.SubTreeProduces, undef) {
			continue
		}
		ok, err := p.tryInsert(child, api, depth)
		if err != nil {
			return false, err
		}
		if ok {
			anyChildAccepted = true
		}
	}
	if anyChildAccepted {
		return true, nil
	}

	v := undef[0]
	producer, ok := p.reg.Producer(v)
	if !ok {
		return false, hdterrors.New(hdterrors.RuntimeLogic, api.Name, "no api produces variable %q, required by %q", v, api.Name)
	}
	if producer.Name == api.Name {
		return false, hdterrors.New(hdterrors.RuntimeLogic, api.Name, "api %q consumes %q but is also its only producer", api.Name, v)
	}
	if producer.Referenced {
		return false, hdterrors.New(hdterrors.RuntimeLogic, api.Name, "variable %q required by %q is only produced by %q, a referenced API that cannot stand alone in the plan", v, api.Name, producer.Name)
	}
	if err := p.insertAt(n, producer, depth+1); err != nil {
		return false, err
	}
	return p.tryInsert(n, api, depth)
}

// undefinedAt returns, in deterministic order, the variables api consumes
// that are neither predefined nor produced by n or one of n's ancestors.
func (p *Planner) undefinedAt(n *Node, api *descriptor.ConcreteAPI) []string {
	avail := map[string]bool{}
	for cur := n; cur != nil; cur = cur.Parent {
		for v := range cur.Produces {
			avail[v] = true
		}
	}
	var undef []string
	for v := range api.Consumes {
		if p.predefined[v] || avail[v] {
			continue
		}
		undef = append(undef, v)
	}
	sortStrings(undef)
	return undef
}

// intersects reports whether produces contains any of the names in undef.
func intersects(produces map[string]bool, undef []string) bool {
	for _, v := range undef {
		if produces[v] {
			return true
		}
	}
	return false
}

// append creates a new child of parent for api, wiring up its var_new
// constructor/destructor satellites if it has one, and returns the new
// node.
func (p *Planner) append(parent *Node, api *descriptor.ConcreteAPI) *Node {
	idx := len(parent.Children)
	node := newNode(childID(parent, idx), api, parent)
	parent.Children = append(parent.Children, node)

	if api.VarNew != nil {
		if getAPI, ok := p.reg.Lookup(api.VarNew.Get); ok {
			node.PreRun = newNode(node.ID+".pre", getAPI, node)
			node.PreRun.Produces[api.VarNew.Name] = true
			node.PreRun.SubTreeProduces[api.VarNew.Name] = true
		}
		if delAPI, ok := p.reg.Lookup(api.VarNew.Delete); ok {
			node.PostRun = newNode(node.ID+".post", delAPI, node)
			node.PostRun.Deletes[api.VarNew.Name] = true
			node.Deletes[api.VarNew.Name] = true
		}
	}

	recomputeSubTreeProduces(node)
	return node
}
