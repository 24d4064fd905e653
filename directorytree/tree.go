/*
Copyright 2026 The qsfs Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package directorytree

import (
	"log"
	"sync"

	"github.com/qsfs-go/qsfs/metaregistry"
)

// Tree is the hierarchical index of the namespace. It pairs a strong
// parent/child node graph rooted at Root with a flat pathIndex for
// O(1) lookup, and every record a Node's Entry points at is owned by
// registry.
//
// One ordinary sync.Mutex guards the node graph and both indices;
// exported methods never call each other while holding it, and
// *Locked helpers assume it is held.
type Tree struct {
	mu sync.Mutex

	registry *metaregistry.Registry

	root      *Node
	pathIndex map[string]*Node

	// parentIndex mirrors every parent->child edge in the node graph,
	// keyed by the parent's path, so FindChildren enumerates a
	// directory in O(children) without touching the subtree. Its
	// entries match the nodes' own Children maps exactly.
	parentIndex map[string]map[string]*Node
}

// NewTree constructs a Tree rooted at RootPath, using root as the
// root directory's metadata. root must describe a directory — the
// root path is always a directory — and NewTree panics otherwise.
func NewTree(registry *metaregistry.Registry, root *metaregistry.FileMetadata) *Tree {
	root.Path = RootPath
	if !root.IsDir() {
		panic("directorytree: root metadata must describe a directory")
	}
	entry, ok := registry.Add(root)
	if !ok {
		panic("directorytree: registry rejected the root record")
	}
	rootNode := newNode(entry, nil)
	return &Tree{
		registry:    registry,
		root:        rootNode,
		pathIndex:   map[string]*Node{RootPath: rootNode},
		parentIndex: make(map[string]map[string]*Node),
	}
}

// linkLocked attaches child under parent at path, keeping the node's
// Children map and the parentIndex in lockstep.
func (t *Tree) linkLocked(parent *Node, path string, child *Node) {
	parent.addChild(path, child)
	pp := parent.Path()
	m := t.parentIndex[pp]
	if m == nil {
		m = make(map[string]*Node)
		t.parentIndex[pp] = m
	}
	m[path] = child
}

// unlinkLocked detaches the child at path from parent in both the
// node's Children map and the parentIndex.
func (t *Tree) unlinkLocked(parent *Node, path string) {
	parent.removeChild(path)
	pp := parent.Path()
	if m := t.parentIndex[pp]; m != nil {
		delete(m, path)
		if len(m) == 0 {
			delete(t.parentIndex, pp)
		}
	}
}

// Find returns the node at path, or nil if absent.
func (t *Tree) Find(path string) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pathIndex[path]
}

// Has reports whether path is present in the tree.
func (t *Tree) Has(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pathIndex[path]
	return ok
}

// FindChildren returns the metadata of every direct child of dirPath,
// or nil if dirPath is absent or not a directory.
func (t *Tree) FindChildren(dirPath string) []*metaregistry.FileMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()
	dirPath = normalizeDir(dirPath)
	if _, ok := t.pathIndex[dirPath]; !ok {
		return nil
	}
	edges := t.parentIndex[dirPath]
	children := make([]*metaregistry.FileMetadata, 0, len(edges))
	for _, c := range edges {
		if m := c.Entry.Resolve(); m != nil {
			children = append(children, m)
		}
	}
	return children
}

// Grow inserts or refreshes the single record meta, returning the
// resulting node. If a node already exists at meta.Path, Grow
// replaces its record when meta is strictly newer (by Mtime); an
// incoming record that is older than an existing file record is
// logged and otherwise ignored. If meta describes a
// newly-created directory, any node already present in the tree whose
// parent directory is meta.Path is re-parented under the new node —
// such orphans arise when a directory's children are grown before the
// directory itself.
func (t *Tree) Grow(meta *metaregistry.FileMetadata) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.growLocked(meta)
}

func (t *Tree) growLocked(meta *metaregistry.FileMetadata) *Node {
	if meta.IsDir() {
		meta.Path = normalizeDir(meta.Path)
	}
	path := meta.Path

	if existing, ok := t.pathIndex[path]; ok {
		current := existing.Entry.Resolve()
		switch {
		case current == nil:
			// The record fell out of the registry; re-add unconditionally.
		case meta.Mtime.After(current.Mtime):
			// Strictly newer: replace below.
		case meta.Mtime.Before(current.Mtime) && !current.IsDir():
			log.Printf("directorytree: ignoring stale record for %s (incoming mtime %s before current %s)", path, meta.Mtime, current.Mtime)
			return existing
		default:
			return existing
		}
		entry, ok := t.registry.Add(meta)
		if !ok {
			log.Printf("directorytree: registry rejected refreshed record for %s", path)
			return existing
		}
		existing.Entry = entry
		return existing
	}

	entry, ok := t.registry.Add(meta)
	if !ok {
		log.Printf("directorytree: registry rejected new record for %s", path)
		return nil
	}

	parent := t.pathIndex[dirname(path)]
	node := newNode(entry, nil)
	t.pathIndex[path] = node
	if parent != nil {
		t.linkLocked(parent, path, node)
	}

	if meta.IsDir() {
		for candidatePath, candidate := range t.pathIndex {
			if candidate == node || dirname(candidatePath) != path {
				continue
			}
			if candidate.Parent != nil {
				t.unlinkLocked(candidate.Parent, candidatePath)
			}
			t.linkLocked(node, candidatePath, candidate)
		}
	}

	return node
}

// GrowAll folds Grow over metas in order.
func (t *Tree) GrowAll(metas []*metaregistry.FileMetadata) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range metas {
		t.growLocked(m)
	}
}

// UpdateDirectory replaces dirPath's known children with children,
// which must each describe a direct child of dirPath (records whose
// parent does not match dirPath are dropped with a warning). Children
// present in the tree but absent from children are removed; the
// directory itself is created first, with a default directory record,
// if it does not already exist.
func (t *Tree) UpdateDirectory(dirPath string, children []*metaregistry.FileMetadata) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dirPath = normalizeDir(dirPath)

	valid := make([]*metaregistry.FileMetadata, 0, len(children))
	incoming := make(map[string]bool, len(children))
	for _, m := range children {
		if dirname(m.Path) != dirPath {
			log.Printf("directorytree: dropping %s from update_directory(%s): not a direct child", m.Path, dirPath)
			continue
		}
		valid = append(valid, m)
		incoming[m.Path] = true
	}

	dir, ok := t.pathIndex[dirPath]
	if !ok {
		dir = t.growLocked(defaultDirectory(dirPath))
	}

	if dir != nil {
		for childPath := range dir.Children {
			if !incoming[childPath] {
				t.removeLocked(childPath)
			}
		}
	}

	for _, m := range valid {
		t.growLocked(m)
	}
}

func defaultDirectory(path string) *metaregistry.FileMetadata {
	return &metaregistry.FileMetadata{
		Path:      path,
		Type:      metaregistry.Directory,
		Mode:      0755,
		LinkCount: 1,
	}
}

// Rename moves the record and subtree at old to new. It rejects an
// empty or root path on either side, an absent old path, and an
// already-present new path. Renaming a directory recursively rewrites
// every descendant's path in both the registry and the tree's
// indices; the subtree's internal structure is otherwise unchanged.
func (t *Tree) Rename(old, new string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old == "" || old == RootPath || new == "" || new == RootPath {
		return false
	}
	node, ok := t.pathIndex[old]
	if !ok {
		return false
	}
	isDir := node.IsDirectory()
	if isDir {
		old, new = normalizeDir(old), normalizeDir(new)
	}
	if _, exists := t.pathIndex[new]; exists {
		return false
	}

	if !t.renameOneLocked(node, old, new) {
		return false
	}
	// unlink clears node.Parent, so hold on to it across the re-link.
	if parent := node.Parent; parent != nil {
		t.unlinkLocked(parent, old)
		t.linkLocked(parent, new, node)
	}

	// Descendant paths are collected up front: renaming entries in
	// pathIndex while iterating it is unsafe.
	type pathPair struct {
		n                *Node
		oldPath, newPath string
	}
	var descendants []pathPair
	for path, n := range t.pathIndex {
		if isDir && isDescendant(old, path) {
			descendants = append(descendants, pathPair{n, path, new + path[len(old):]})
		}
	}
	for i := range descendants {
		d := &descendants[i]
		if !t.renameOneLocked(d.n, d.oldPath, d.newPath) {
			log.Printf("directorytree: registry lost %s mid-rename; keeping its old path", d.oldPath)
			d.newPath = d.oldPath
		}
	}
	// Re-key every parent->children edge inside the subtree, then
	// rebuild the subtree's slice of the parentIndex to match.
	for _, d := range descendants {
		if p := d.n.Parent; p != nil && d.newPath != d.oldPath {
			delete(p.Children, d.oldPath)
			p.Children[d.newPath] = d.n
		}
	}
	for pp := range t.parentIndex {
		if isDir && (pp == old || isDescendant(old, pp)) {
			delete(t.parentIndex, pp)
		}
	}
	t.reindexSubtreeLocked(node)

	return true
}

// reindexSubtreeLocked recreates the parentIndex entries for n and
// every directory below it from the nodes' own Children maps.
func (t *Tree) reindexSubtreeLocked(n *Node) {
	if len(n.Children) == 0 {
		return
	}
	m := make(map[string]*Node, len(n.Children))
	for cp, c := range n.Children {
		m[cp] = c
	}
	t.parentIndex[n.Path()] = m
	for _, c := range n.Children {
		t.reindexSubtreeLocked(c)
	}
}

func (t *Tree) renameOneLocked(n *Node, old, new string) bool {
	entry, ok := t.registry.Rename(old, new)
	if !ok {
		return false
	}
	n.Entry = entry
	delete(t.pathIndex, old)
	t.pathIndex[new] = n
	return true
}

// Remove detaches path, and its entire subtree if it is a directory,
// from the tree and the underlying registry. It rejects the root
// path. Descent only ever follows each visited node's own Children
// map, never a flag captured from the node Remove was called with.
func (t *Tree) Remove(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if path == RootPath || path == "" {
		return false
	}
	return t.removeLocked(path)
}

func (t *Tree) removeLocked(path string) bool {
	node, ok := t.pathIndex[path]
	if !ok {
		return false
	}
	if node.Parent != nil {
		t.unlinkLocked(node.Parent, path)
	}

	// Breadth-first drain keyed by the children-map paths, so a node
	// whose record was evicted out of the registry can still be erased
	// from the indices by the path its parent knew it under.
	type visit struct {
		path string
		n    *Node
	}
	queue := []visit{{path, node}}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]

		delete(t.pathIndex, v.path)
		t.registry.Erase(v.path)
		delete(t.parentIndex, v.path)

		// Descend through each visited node's own children map — a
		// file owns none, and a directory whose record was evicted
		// still has its map, so the subtree is always fully drained.
		for cp, c := range v.n.Children {
			queue = append(queue, visit{cp, c})
		}
	}
	return true
}

// Len reports the number of nodes currently indexed, including the
// root.
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pathIndex)
}
