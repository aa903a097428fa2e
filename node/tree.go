//
// Tencent is pleased to support the open source community by making tRPC available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

package node

import (
	"encoding/json"
	"fmt"
	"sort"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
)

// Tree is one node of a reconstructed execution tree.
type Tree struct {
	NodeID   string        `json:"node_id"`
	NodeName string        `json:"node_name"`
	NodeType call.Category `json:"node_type"`
	State    call.State    `json:"state"`
	Output   any           `json:"output,omitempty"`
	Children []Child       `json:"children"`
}

// Child is an element of a child list: either a single subtree or a
// parallel group of subtrees.
type Child struct {
	Node  *Tree
	Group []*Tree
}

// IsGroup reports whether c is a parallel group.
func (c Child) IsGroup() bool {
	return c.Group != nil
}

// MarshalJSON renders a group as a nested list.
func (c Child) MarshalJSON() ([]byte, error) {
	if c.IsGroup() {
		return json.Marshal(c.Group)
	}
	return json.Marshal(c.Node)
}

// Walk calls fn for t and every descendant, depth first, parent before
// children.
func (t *Tree) Walk(fn func(parent, n *Tree)) {
	walk(nil, t, fn)
}

func walk(parent, n *Tree, fn func(parent, n *Tree)) {
	fn(parent, n)
	for _, c := range n.Children {
		if c.IsGroup() {
			for _, g := range c.Group {
				walk(n, g, fn)
			}
			continue
		}
		walk(n, c.Node, fn)
	}
}

// Index is the navigable form of a trace: records sorted by creation time,
// looked up by id, with the reverse links of the persisted ones.
type Index struct {
	// Records are sorted by create time, then order, then node id.
	Records []*Record
	ByID    map[string]*Record
	// PostNodeIDs maps a node to the nodes declaring it as predecessor.
	PostNodeIDs map[string][]string
	// ChildNodeIDs maps a node to the nodes declaring it as father.
	ChildNodeIDs map[string][]string
	Root         *Record
}

// NewIndex indexes the records of one trace. It fails with a
// reconstruction error when the trace has zero or several roots or when two
// records share a node id.
func NewIndex(records []*Record) (*Index, error) {
	sorted := make([]*Record, 0, len(records))
	for _, r := range records {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return lessRecord(sorted[i], sorted[j])
	})

	idx := &Index{
		Records:      sorted,
		ByID:         make(map[string]*Record, len(sorted)),
		PostNodeIDs:  make(map[string][]string),
		ChildNodeIDs: make(map[string][]string),
	}
	for _, r := range sorted {
		if _, ok := idx.ByID[r.NodeID]; ok {
			return nil, reconstructionError(ErrDuplicateNode, r.NodeID)
		}
		idx.ByID[r.NodeID] = r
	}
	var roots []*Record
	for _, r := range sorted {
		for _, pre := range r.PreNodeIDs {
			// Dangling predecessors are ignored.
			if _, ok := idx.ByID[pre]; ok {
				idx.PostNodeIDs[pre] = append(idx.PostNodeIDs[pre], r.NodeID)
			}
		}
		if r.IsRoot() {
			roots = append(roots, r)
			continue
		}
		idx.ChildNodeIDs[r.FatherNodeID] = append(idx.ChildNodeIDs[r.FatherNodeID], r.NodeID)
	}
	switch len(roots) {
	case 0:
		return nil, reconstructionError(ErrNoRoot, "")
	case 1:
		idx.Root = roots[0]
	default:
		return nil, reconstructionError(ErrMultipleRoots, "")
	}
	return idx, nil
}

// BuildTree reconstructs the execution tree of one trace. Every record must
// end up in the tree exactly once.
func BuildTree(records []*Record) (*Tree, error) {
	idx, err := NewIndex(records)
	if err != nil {
		return nil, err
	}
	return idx.Tree()
}

// Tree builds the execution tree rooted at the trace root. It fails with
// ErrOrphanNode when a record is not reachable from the root.
func (idx *Index) Tree() (*Tree, error) {
	visited := make(map[string]bool, len(idx.Records))
	t := idx.build(idx.Root, visited)
	for _, r := range idx.Records {
		if !visited[r.NodeID] {
			return nil, reconstructionError(ErrOrphanNode,
				fmt.Sprintf("%s (father %s)", r.NodeID, r.FatherNodeID))
		}
	}
	return t, nil
}

// Superseded reports whether nodeID, or one of its ancestors, was
// dispatched by an attempt of its father that was later retried. Such nodes
// belong to abandoned work: the father's result comes from its last
// attempt.
func (idx *Index) Superseded(nodeID string) bool {
	seen := make(map[string]bool)
	r, ok := idx.ByID[nodeID]
	for ok && !r.IsRoot() && !seen[r.NodeID] {
		seen[r.NodeID] = true
		father, found := idx.ByID[r.FatherNodeID]
		if !found {
			return false
		}
		if r.FatherAttempt > 0 && r.FatherAttempt < father.Attempts() {
			return true
		}
		r = father
	}
	return false
}

func reconstructionError(err error, detail string) *call.Error {
	msg := err.Error()
	if detail != "" {
		msg += ": " + detail
	}
	return &call.Error{Type: call.ErrorTypeReconstruction, Message: msg, Err: err}
}

// Ancestors returns the records from the root down to the father of
// nodeID.
func (idx *Index) Ancestors(nodeID string) []*Record {
	var chain []*Record
	seen := make(map[string]bool)
	r, ok := idx.ByID[nodeID]
	for ok && !r.IsRoot() && !seen[r.NodeID] {
		seen[r.NodeID] = true
		r, ok = idx.ByID[r.FatherNodeID]
		if ok {
			chain = append(chain, r)
		}
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

type positioned struct {
	key   int
	child Child
}

func (idx *Index) build(r *Record, visited map[string]bool) *Tree {
	visited[r.NodeID] = true
	t := &Tree{
		NodeID:   r.NodeID,
		NodeName: r.Callee,
		NodeType: r.CalleeCategory,
		State:    r.State,
		Output:   r.Output,
	}

	var (
		items  []positioned
		groups = make(map[string]int)
	)
	for _, id := range idx.ChildNodeIDs[r.NodeID] {
		if visited[id] {
			continue
		}
		c := idx.ByID[id]
		sub := idx.build(c, visited)
		if c.ParallelID == "" {
			items = append(items, positioned{key: c.Order, child: Child{Node: sub}})
			continue
		}
		i, ok := groups[c.ParallelID]
		if !ok {
			groups[c.ParallelID] = len(items)
			items = append(items, positioned{key: c.Order, child: Child{Group: []*Tree{sub}}})
			continue
		}
		items[i].child.Group = append(items[i].child.Group, sub)
		if c.Order < items[i].key {
			items[i].key = c.Order
		}
	}
	for _, it := range items {
		if it.child.IsGroup() {
			sortGroup(it.child.Group, idx.ByID)
		}
	}
	// Stable on top of the create-time order of the children.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].key < items[j].key
	})
	t.Children = make([]Child, len(items))
	for i, it := range items {
		t.Children[i] = it.child
	}
	return t
}

func sortGroup(group []*Tree, byID map[string]*Record) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := byID[group[i].NodeID], byID[group[j].NodeID]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.NodeID < b.NodeID
	})
}

func lessRecord(a, b *Record) bool {
	if !a.CreateTime.Equal(b.CreateTime) {
		return a.CreateTime.Before(b.CreateTime)
	}
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return a.NodeID < b.NodeID
}
