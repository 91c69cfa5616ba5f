// Package hierarchy maintains the physical space tree and derives, for every
// reservation unit, the set of reservation units that can conflict with it
// through shared spaces or shared resources.
package hierarchy

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDanglingParent indicates a space references a parent that does not exist.
	ErrDanglingParent = errors.New("hierarchy: dangling parent reference")
	// ErrCyclicParent indicates the space parent chain loops back on itself.
	ErrCyclicParent = errors.New("hierarchy: cyclic parent reference")
)

// Node is one space in the physical hierarchy.
type Node struct {
	ID       int64
	ParentID *int64
}

// Forest stores the space tree as a flat arena with index-based parent and
// children links, so traversal never follows pointers that could cycle.
type Forest struct {
	nodes    []Node
	index    map[int64]int
	parent   []int
	children [][]int
}

// NewForest validates the nodes and builds the arena. Dangling or cyclic
// parent references are data-integrity faults and fail construction.
func NewForest(nodes []Node) (*Forest, error) {
	f := &Forest{
		nodes:    make([]Node, len(nodes)),
		index:    make(map[int64]int, len(nodes)),
		parent:   make([]int, len(nodes)),
		children: make([][]int, len(nodes)),
	}
	copy(f.nodes, nodes)

	for i, node := range f.nodes {
		if _, dup := f.index[node.ID]; dup {
			return nil, fmt.Errorf("hierarchy: duplicate space id %d", node.ID)
		}
		f.index[node.ID] = i
	}

	for i, node := range f.nodes {
		f.parent[i] = -1
		if node.ParentID == nil {
			continue
		}
		parentIdx, ok := f.index[*node.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: space %d references parent %d", ErrDanglingParent, node.ID, *node.ParentID)
		}
		f.parent[i] = parentIdx
		f.children[parentIdx] = append(f.children[parentIdx], i)
	}

	for i := range f.nodes {
		if err := f.checkAcyclic(i); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// checkAcyclic walks the parent chain from idx. The chain is bounded by the
// arena size, so a longer walk proves a cycle.
func (f *Forest) checkAcyclic(idx int) error {
	steps := 0
	for cur := idx; cur != -1; cur = f.parent[cur] {
		steps++
		if steps > len(f.nodes) {
			return fmt.Errorf("%w: space %d", ErrCyclicParent, f.nodes[idx].ID)
		}
	}
	return nil
}

// Contains reports whether the forest knows the given space id.
func (f *Forest) Contains(id int64) bool {
	_, ok := f.index[id]
	return ok
}

// Ancestors returns the ids of all spaces above id, nearest first.
func (f *Forest) Ancestors(id int64) []int64 {
	idx, ok := f.index[id]
	if !ok {
		return nil
	}
	var out []int64
	for cur := f.parent[idx]; cur != -1; cur = f.parent[cur] {
		out = append(out, f.nodes[cur].ID)
	}
	return out
}

// Descendants returns the ids of all spaces below id.
func (f *Forest) Descendants(id int64) []int64 {
	idx, ok := f.index[id]
	if !ok {
		return nil
	}
	var out []int64
	stack := append([]int(nil), f.children[idx]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, f.nodes[cur].ID)
		stack = append(stack, f.children[cur]...)
	}
	return out
}

// Family returns id itself plus all its ancestors and descendants, sorted.
func (f *Forest) Family(id int64) []int64 {
	if !f.Contains(id) {
		return nil
	}
	out := []int64{id}
	out = append(out, f.Ancestors(id)...)
	out = append(out, f.Descendants(id)...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FamilyOfAll unions the families of all given spaces. It exists so closure
// computation issues one traversal batch per reservation unit instead of one
// per space.
func (f *Forest) FamilyOfAll(ids []int64) map[int64]struct{} {
	out := make(map[int64]struct{})
	for _, id := range ids {
		for _, member := range f.Family(id) {
			out[member] = struct{}{}
		}
	}
	return out
}
