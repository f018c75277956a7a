// Package index implements the in-memory symbol index: a character-indexed
// prefix trie mapping symbol names to the refs declared under them, with
// exact and glob-style wildcard lookup.
package index

import (
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/standardbeagle/lwi/internal/types"
)

// node is one trie node. A name terminates at exactly one node, but that
// node holds every ref added under that exact name.
type node struct {
	children map[rune]*node
	entries  []types.SymbolRef

	// hasValues is true iff some node in this subtree, inclusive, holds
	// at least one entry. Wildcard search pruning depends on this flag
	// being exact, not approximate. It is only ever raised: the index has
	// no per-name removal, Clear drops the whole root.
	hasValues bool
}

func newNode() *node {
	return &node{children: make(map[rune]*node)}
}

// SymbolIndex maps symbol names to refs. Writes happen only while an index
// is being built or rebuilt; concurrent readers are safe at all times.
// Rebuilds publish a fresh instance through a Ref so readers never observe
// a partially populated index.
type SymbolIndex struct {
	mu   sync.RWMutex
	root *node
	size int
}

// NewSymbolIndex creates an empty symbol index.
func NewSymbolIndex() *SymbolIndex {
	return &SymbolIndex{root: newNode()}
}

// Add inserts ref under the exact string name. Prior values under the same
// name are never overwritten: re-adding a name grows its entry list, so the
// stored count always equals the number of Add calls for that name.
func (idx *SymbolIndex) Add(name string, ref types.SymbolRef) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := idx.root
	n.hasValues = true
	for _, ch := range name {
		child := n.children[ch]
		if child == nil {
			child = newNode()
			n.children[ch] = child
		}
		child.hasValues = true
		n = child
	}
	n.entries = append(n.entries, ref)
	idx.size++
}

// GetExact returns the refs added under name, in insertion order, in
// O(len(name)) expected time. Unknown names yield an empty slice, not an
// error. The returned slice is a copy and safe to retain.
func (idx *SymbolIndex) GetExact(name string) []types.SymbolRef {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := idx.lookup(name)
	if n == nil || len(n.entries) == 0 {
		return nil
	}
	out := make([]types.SymbolRef, len(n.entries))
	copy(out, n.entries)
	return out
}

// lookup walks the trie for an exact name. Caller must hold at least a
// read lock.
func (idx *SymbolIndex) lookup(name string) *node {
	n := idx.root
	for _, ch := range name {
		n = n.children[ch]
		if n == nil {
			return nil
		}
	}
	return n
}

// Len returns the total number of stored refs.
func (idx *SymbolIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.size
}

// Clear resets the index to empty by dropping the root; amortized O(1).
func (idx *SymbolIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.root = newNode()
	idx.size = 0
}

// hasWildcard reports whether pattern contains glob metacharacters.
func hasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}

// Search returns a restartable sequence of refs whose names match pattern.
// `*` matches zero or more characters and `?` exactly one; the pattern is
// anchored at both ends of the name. A pattern with no metacharacters
// behaves exactly like GetExact. Each matching ref is produced once per
// iteration; ordering is unspecified.
func (idx *SymbolIndex) Search(pattern string) iter.Seq[types.SymbolRef] {
	if !hasWildcard(pattern) {
		return func(yield func(types.SymbolRef) bool) {
			for _, ref := range idx.GetExact(pattern) {
				if !yield(ref) {
					return
				}
			}
		}
	}

	pat := []rune(pattern)
	return func(yield func(types.SymbolRef) bool) {
		idx.mu.RLock()
		defer idx.mu.RUnlock()
		idx.searchLocked(pat, yield)
	}
}

// SearchAll collects Search results into a slice.
func (idx *SymbolIndex) SearchAll(pattern string) []types.SymbolRef {
	var out []types.SymbolRef
	for ref := range idx.Search(pattern) {
		out = append(out, ref)
	}
	return out
}

// frame is one pending state of the wildcard traversal: a trie node plus
// the pattern position still to be matched against that node's subtree.
type frame struct {
	n  *node
	pi int
}

// searchLocked runs the wildcard match as an explicit stack traversal.
// The trie is acyclic (every edge goes root-away), so no visited-node set
// is needed for termination. Star expansion can reach the same terminal
// node along several routes, though, so nodes are emitted at most once.
func (idx *SymbolIndex) searchLocked(pat []rune, yield func(types.SymbolRef) bool) {
	if !idx.root.hasValues {
		return
	}

	emitted := make(map[*node]struct{})
	stack := []frame{{n: idx.root, pi: 0}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.pi == len(pat) {
			if len(f.n.entries) > 0 {
				if _, done := emitted[f.n]; !done {
					emitted[f.n] = struct{}{}
					for _, ref := range f.n.entries {
						if !yield(ref) {
							return
						}
					}
				}
			}
			continue
		}

		switch ch := pat[f.pi]; ch {
		case '*':
			// Match zero characters: advance the pattern, stay put.
			stack = append(stack, frame{n: f.n, pi: f.pi + 1})
			// Consume one character, keep the star active. Subtrees with
			// no values cannot produce matches and are pruned here.
			for _, child := range f.n.children {
				if child.hasValues {
					stack = append(stack, frame{n: child, pi: f.pi})
				}
			}
		case '?':
			for _, child := range f.n.children {
				if child.hasValues {
					stack = append(stack, frame{n: child, pi: f.pi + 1})
				}
			}
		default:
			if child := f.n.children[ch]; child != nil && child.hasValues {
				stack = append(stack, frame{n: child, pi: f.pi + 1})
			}
		}
	}
}

// Names returns every distinct name holding at least one ref. Used for
// near-miss suggestions; not on the query hot path.
func (idx *SymbolIndex) Names() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var names []string
	var walk func(n *node, prefix []rune)
	walk = func(n *node, prefix []rune) {
		if len(n.entries) > 0 {
			names = append(names, string(prefix))
		}
		for ch, child := range n.children {
			if child.hasValues {
				walk(child, append(prefix, ch))
			}
		}
	}
	walk(idx.root, nil)
	return names
}

// Ref is the atomically swappable published reference to the current
// index. Rebuilds construct a fresh SymbolIndex and Swap it in, so query
// callers racing a rebuild see either the old or the new index, never a
// half-built one.
type Ref struct {
	p atomic.Pointer[SymbolIndex]
}

// NewRef creates a Ref holding an empty index.
func NewRef() *Ref {
	r := &Ref{}
	r.p.Store(NewSymbolIndex())
	return r
}

// Load returns the currently published index.
func (r *Ref) Load() *SymbolIndex {
	return r.p.Load()
}

// Swap publishes idx as the current index.
func (r *Ref) Swap(idx *SymbolIndex) {
	r.p.Store(idx)
}
