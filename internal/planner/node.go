// Package planner implements the Tree Builder (spec.md §4.3): it takes the
// flat set of concrete APIs produced by internal/descriptor's expansion and
// arranges them into a dependency-driven execution tree, inserting each
// concrete API under the shallowest ancestor chain that already supplies
// every variable it consumes, and recursively seeding producer APIs when
// none yet does.
package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wondertwin-ai/hdtest/internal/descriptor"
)

// Node is one position in the execution tree. For a var_new constructor,
// PreRun holds its getter satellite and PostRun its destructor satellite:
// the runtime executes PreRun before this node's own request and PostRun
// after this node's children have all finished, per the nine-stage
// waterfall.
type Node struct {
	ID       string
	API      *descriptor.ConcreteAPI
	Parent   *Node
	Children []*Node
	PreRun   *Node
	PostRun  *Node

	// Produces is the set of variables this node's own request contributes
	// (its ConcreteAPI.Produces keys, plus its var_new name if any — the
	// var_new variable is considered available starting at this node,
	// since PreRun executes before the node's main request).
	Produces map[string]bool

	// Deletes is the set of variables this node's own request, or its
	// PostRun satellite, removes from the environment once its subtree
	// completes.
	Deletes map[string]bool

	// SubTreeProduces is the union of Produces across this node and all
	// descendants, honoring deletes: a variable a descendant produces does
	// not bubble up past an ancestor that deletes it. It is recomputed
	// bottom-up after every insertion; the planner uses it to choose which
	// children to descend into when an API still has undefined variables,
	// while the final "is everything defined here" check only looks at the
	// ancestor chain's Produces.
	SubTreeProduces map[string]bool
}

func newNode(id string, api *descriptor.ConcreteAPI, parent *Node) *Node {
	n := &Node{
		ID:       id,
		API:      api,
		Parent:   parent,
		Produces: map[string]bool{},
		Deletes:  map[string]bool{},
	}
	if api != nil {
		for v := range api.Produces {
			n.Produces[v] = true
		}
		for v := range api.Deletes {
			n.Deletes[v] = true
		}
		if api.VarNew != nil && api.VarNew.Name != "" {
			n.Produces[api.VarNew.Name] = true
		}
	}
	n.SubTreeProduces = map[string]bool{}
	for v := range n.Produces {
		n.SubTreeProduces[v] = true
	}
	return n
}

// NewRoot creates the synthetic root node (no API of its own, nothing
// produced or consumed) that anchors the tree.
func NewRoot() *Node {
	return newNode("root", nil, nil)
}

// Standalone wraps a concrete API in a Node with no parent, children, or
// satellites, for callers (internal/runtime's Hook.APIName execution) that
// need to run a peer API outside the main plan tree.
func Standalone(api *descriptor.ConcreteAPI) *Node {
	return newNode(api.Name, api, nil)
}

// childID returns the dotted identifier for the child about to be appended
// at position idx under parent, e.g. parent "0.2" -> child "0.2.3".
func childID(parent *Node, idx int) string {
	if parent.ID == "root" {
		return strconv.Itoa(idx)
	}
	return parent.ID + "." + strconv.Itoa(idx)
}

// Name reports the node's API name, or "<root>" for the synthetic root.
func (n *Node) Name() string {
	if n.API == nil {
		return "<root>"
	}
	return n.API.Name
}

// hasAncestorNamed walks from n up through parents (inclusive of n) looking
// for an API with the given name; it guards against nesting an API inside
// its own ancestor chain.
func hasAncestorNamed(n *Node, name string) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.API != nil && cur.API.Name == name {
			return true
		}
	}
	return false
}

// recomputeSubTreeProduces rebuilds SubTreeProduces for n and every
// ancestor up to the root, after n gains a new child or satellite. A
// variable a child (or satellite) subtree produces bubbles up only if that
// child does not itself delete it; a node that both produces and deletes a
// variable (the var_new pattern: this node's own request constructs it,
// its Deletes records the PostRun teardown once its subtree finishes) still reports the
// variable in its own SubTreeProduces, but that fact stops at the node
// itself and never reaches its parent.
func recomputeSubTreeProduces(n *Node) {
	contribute := func(merged map[string]bool, child *Node) {
		if child == nil {
			return
		}
		for v := range child.SubTreeProduces {
			if child.Deletes[v] {
				continue
			}
			merged[v] = true
		}
	}
	for cur := n; cur != nil; cur = cur.Parent {
		merged := map[string]bool{}
		for v := range cur.Produces {
			merged[v] = true
		}
		for _, child := range cur.Children {
			contribute(merged, child)
		}
		contribute(merged, cur.PreRun)
		contribute(merged, cur.PostRun)
		cur.SubTreeProduces = merged
	}
}

// Path renders the node's ancestor chain as a slash-joined trail of API
// names, used in error messages and debug dumps.
func Path(n *Node) string {
	var names []string
	for cur := n; cur != nil && cur.API != nil; cur = cur.Parent {
		names = append([]string{cur.Name()}, names...)
	}
	return strings.Join(names, " > ")
}

func sortedVarNames(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sortStrings(out)
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// String renders a one-line debug summary of the node.
func (n *Node) String() string {
	return fmt.Sprintf("%s(id=%s, produces=%v, deletes=%v)", n.Name(), n.ID, sortedVarNames(n.Produces), sortedVarNames(n.Deletes))
}
