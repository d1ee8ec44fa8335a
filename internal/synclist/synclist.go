// Package synclist implements the sync list: a whitelist of paths,
// relative to a tree root, that participate in synchronization. It is a
// compressed (radix) trie over path bytes so that adding an ancestor
// path collapses any descendants already present, and a path already
// covered by an ancestor entry is rejected as redundant.
package synclist

import (
	"strings"
	"sync"
)

// MatchKind classifies how a path relates to the entries in a List.
type MatchKind int

const (
	// Stranger means the path shares no entry and is not covered by one.
	Stranger MatchKind = iota
	// Self means the path is exactly an entry.
	Self
	// Child means an ancestor of the path is an entry, so the path is
	// covered by it.
	Child
	// Parent means the path is a strict ancestor of one or more entries,
	// but is not itself covered.
	Parent
)

type node struct {
	key      string
	children []*node
	parent   *node
}

// List is a sync list. The zero value is an empty, ready-to-use list.
// All paths must be slash-separated and begin with "/".
type List struct {
	mu   sync.RWMutex
	root *node
}

// New returns an empty sync list.
func New() *List {
	return &List{}
}

// searchResult is the outcome of walking the trie against a path.
type searchResult struct {
	node    *node // node where matching stopped
	keyIdx  int   // bytes of node.key matched (len(node.key) means fully matched)
	wordIdx int   // bytes of path consumed
	kind    MatchKind
}

// Add inserts path into the whitelist. It reports false if path was
// already covered by an existing entry (itself or an ancestor), in
// which case the list is unchanged. If path is an ancestor of existing
// entries, those entries are collapsed away: the ancestor path alone
// now represents the whole subtree.
func (l *List) Add(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	path = Clean(path)

	if l.root == nil {
		l.root = &node{key: "/"}
		if len(path) > 1 {
			l.root.children = append(l.root.children, &node{
				key:    path[1:],
				parent: l.root,
			})
		}
		return true
	}

	r := l.search(path)
	switch r.kind {
	case Parent:
		if r.keyIdx < len(r.node.key) {
			r.node.key = r.node.key[:r.keyIdx]
		}
		r.node.children = nil
		return true
	case Self, Child:
		return false
	default: // Stranger
		l.insertStranger(r, path)
		return true
	}
}

// insertStranger attaches the unmatched remainder of path under the node
// where search() diverged, splitting its edge if divergence happened
// partway through it.
func (l *List) insertStranger(r searchResult, path string) {
	n := r.node
	suffix := path[r.wordIdx:]

	if r.keyIdx == len(n.key) {
		// n is already fully matched: attach a fresh child for the rest.
		n.children = append(n.children, &node{key: suffix, parent: n})
		return
	}

	// Split n's edge: the matched prefix stays on n, the unmatched
	// remainder of n's old key becomes a left child carrying n's former
	// children, and the new path suffix becomes a right sibling.
	leftChild := &node{key: n.key[r.keyIdx:], children: n.children, parent: n}
	for _, c := range leftChild.children {
		c.parent = leftChild
	}
	rightChild := &node{key: suffix, parent: n}
	n.children = []*node{leftChild, rightChild}
	n.key = n.key[:r.keyIdx]
}

// Del removes the entry exactly matching path. It reports false if path
// is not an exact entry. After removal, if the parent is left with a
// single remaining child (and is not the root), the two edges merge
// back into one, undoing the split performed on Add.
func (l *List) Del(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	path = Clean(path)

	if l.root == nil {
		return false
	}
	r := l.search(path)
	if r.kind != Self {
		return false
	}
	n := r.node

	father := n.parent
	if father == nil {
		l.root = nil
		return true
	}
	father.children = removeChild(father.children, n)
	if len(father.children) == 1 && father != l.root {
		only := father.children[0]
		father.key += only.key
		father.children = only.children
		for _, c := range father.children {
			c.parent = father
		}
	} else if len(father.children) == 0 && father == l.root {
		l.root = nil
	}
	return true
}

func removeChild(children []*node, target *node) []*node {
	out := children[:0]
	for _, c := range children {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

// Find reports how path relates to the entries currently in the list.
func (l *List) Find(path string) MatchKind {
	l.mu.RLock()
	defer l.mu.RUnlock()
	path = Clean(path)
	if l.root == nil {
		return Stranger
	}
	return l.search(path).kind
}

// Covered reports whether path is inside the whitelist: either an exact
// entry or a descendant of one.
func (l *List) Covered(path string) bool {
	switch l.Find(path) {
	case Self, Child:
		return true
	default:
		return false
	}
}

// search walks the trie matching path byte-by-byte starting from the
// root, whose key is always "/".
func (l *List) search(path string) searchResult {
	n := l.root
	wordIdx := 1 // path[0] == '/', matched implicitly by the root key "/"

	for {
		if len(n.children) == 0 {
			if wordIdx == len(path) {
				return searchResult{node: n, keyIdx: len(n.key), wordIdx: wordIdx, kind: Self}
			}
			return searchResult{node: n, keyIdx: len(n.key), wordIdx: wordIdx, kind: Child}
		}
		if wordIdx == len(path) {
			return searchResult{node: n, keyIdx: len(n.key), wordIdx: wordIdx, kind: Parent}
		}

		var next *node
		for _, c := range n.children {
			if c.key[0] == path[wordIdx] {
				next = c
				break
			}
		}
		if next == nil {
			return searchResult{node: n, keyIdx: len(n.key), wordIdx: wordIdx, kind: Stranger}
		}

		keyIdx := 1
		wordIdx++
		for keyIdx < len(next.key) {
			if wordIdx == len(path) {
				return searchResult{node: next, keyIdx: keyIdx, wordIdx: wordIdx, kind: Parent}
			}
			if path[wordIdx] != next.key[keyIdx] {
				return searchResult{node: next, keyIdx: keyIdx, wordIdx: wordIdx, kind: Stranger}
			}
			keyIdx++
			wordIdx++
		}
		n = next
	}
}

// Paths returns every entry currently stored, in insertion-tree order,
// mainly for diagnostics and tests.
func (l *List) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.root == nil {
		return nil
	}
	var out []string
	var walk func(n *node, prefix string)
	walk = func(n *node, prefix string) {
		full := prefix + n.key
		if len(n.children) == 0 {
			out = append(out, full)
			return
		}
		for _, c := range n.children {
			walk(c, full)
		}
	}
	walk(l.root, "")
	return out
}

// Clean normalizes a tree-relative path into the slash-leading form this
// package expects, collapsing redundant separators.
func Clean(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
