// Package decisiontree indexes payloads by attribute constraint groups.
//
// Criteria are collected with InsertCriteria and compiled with RebuildTree
// into a trie that branches on one attribute per level, visiting attributes
// in name order. Each level has one branch per constrained value plus an
// unconstrained branch for criteria that do not mention the attribute;
// attributes that no criteria in a subtree constrain are skipped. A compiled
// trie is never modified: RebuildTree publishes a new one and searches keep
// using whichever trie they loaded.
package decisiontree

import (
	"sort"
	"sync"
	"sync/atomic"
)

type entry struct {
	group   map[string]string
	payload int
}

type node struct {
	attribute     string
	branches      map[string]*node
	unconstrained *node
	payloads      []int // set only on leaves
}

func (n *node) leaf() bool {
	return n.branches == nil
}

type compiled[T comparable] struct {
	root     *node
	payloads []T
}

// Tree is a two-phase attribute index. InsertCriteria and RebuildTree may be
// called concurrently with SearchTree.
type Tree[T comparable] struct {
	mu       sync.Mutex
	entries  []entry
	index    map[T]int
	payloads []T

	published atomic.Pointer[compiled[T]]
}

// New creates an empty tree. Searches return nothing until RebuildTree.
func New[T comparable]() *Tree[T] {
	return &Tree[T]{index: make(map[T]int)}
}

// InsertCriteria records that payload is reachable when every attribute in
// group has the given value. A payload may be inserted under several groups;
// it is returned once by SearchTree no matter how many groups match. An empty
// group matches every attribute map. The change becomes visible after the
// next RebuildTree.
func (t *Tree[T]) InsertCriteria(group map[string]string, payload T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.index[payload]
	if !ok {
		idx = len(t.payloads)
		t.index[payload] = idx
		t.payloads = append(t.payloads, payload)
	}

	copied := make(map[string]string, len(group))
	for k, v := range group {
		copied[k] = v
	}
	t.entries = append(t.entries, entry{group: copied, payload: idx})
}

// RebuildTree compiles every inserted criteria group and publishes the result.
func (t *Tree[T]) RebuildTree() {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make(map[string]struct{})
	for _, e := range t.entries {
		for attr := range e.group {
			names[attr] = struct{}{}
		}
	}
	attrs := make([]string, 0, len(names))
	for attr := range names {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	payloads := make([]T, len(t.payloads))
	copy(payloads, t.payloads)

	t.published.Store(&compiled[T]{
		root:     build(t.entries, attrs),
		payloads: payloads,
	})
}

func build(entries []entry, attrs []string) *node {
	for i, attr := range attrs {
		var constrained bool
		for _, e := range entries {
			if _, ok := e.group[attr]; ok {
				constrained = true
				break
			}
		}
		if !constrained {
			continue
		}

		byValue := make(map[string][]entry)
		var rest []entry
		for _, e := range entries {
			if v, ok := e.group[attr]; ok {
				byValue[v] = append(byValue[v], e)
			} else {
				rest = append(rest, e)
			}
		}

		n := &node{attribute: attr, branches: make(map[string]*node, len(byValue))}
		remaining := attrs[i+1:]
		for v, sub := range byValue {
			n.branches[v] = build(sub, remaining)
		}
		if len(rest) > 0 {
			n.unconstrained = build(rest, remaining)
		}
		return n
	}

	leaf := &node{}
	seen := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.payload]; dup {
			continue
		}
		seen[e.payload] = struct{}{}
		leaf.payloads = append(leaf.payloads, e.payload)
	}
	return leaf
}

// SearchTree returns the payloads with at least one group satisfied by attrs,
// each at most once, in the order they were first inserted.
func (t *Tree[T]) SearchTree(attrs map[string]string) []T {
	c := t.published.Load()
	if c == nil || c.root == nil {
		return nil
	}

	matched := make(map[int]struct{})
	search(c.root, attrs, matched)
	if len(matched) == 0 {
		return nil
	}

	indexes := make([]int, 0, len(matched))
	for idx := range matched {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]T, len(indexes))
	for i, idx := range indexes {
		out[i] = c.payloads[idx]
	}
	return out
}

func search(n *node, attrs map[string]string, matched map[int]struct{}) {
	if n.leaf() {
		for _, p := range n.payloads {
			matched[p] = struct{}{}
		}
		return
	}
	if v, ok := attrs[n.attribute]; ok {
		if branch, ok := n.branches[v]; ok {
			search(branch, attrs, matched)
		}
	}
	if n.unconstrained != nil {
		search(n.unconstrained, attrs, matched)
	}
}

// Len returns the number of inserted criteria groups.
func (t *Tree[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Depth returns the number of attribute levels on the longest path of the
// published trie.
func (t *Tree[T]) Depth() int {
	c := t.published.Load()
	if c == nil || c.root == nil {
		return 0
	}
	return depth(c.root)
}

func depth(n *node) int {
	if n.leaf() {
		return 0
	}
	deepest := 0
	for _, b := range n.branches {
		if d := depth(b); d > deepest {
			deepest = d
		}
	}
	if n.unconstrained != nil {
		if d := depth(n.unconstrained); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}
