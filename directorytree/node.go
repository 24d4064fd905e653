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

// Package directorytree implements the concurrent hierarchical index
// over metaregistry records: parent/child links, rename, recursive
// delete and directory refresh. Children are keyed by absolute path,
// and a node's Entry may stop resolving at any point once the
// registry evicts its record.
package directorytree

import "github.com/qsfs-go/qsfs/metaregistry"

// Node is a position in the directory tree. A node strongly owns its
// children; a child's Parent pointer identifies the unique owning
// node. Parent does not need to be weak: Go's tracing garbage
// collector does not leak on reference cycles, so the only reason a
// Parent pointer is ever cleared is an explicit Remove.
type Node struct {
	Entry         metaregistry.Entry
	Parent        *Node
	SymlinkTarget string
	Hardlink      bool
	Children      map[string]*Node // absolute child path -> child node
}

func newNode(entry metaregistry.Entry, parent *Node) *Node {
	return &Node{Entry: entry, Parent: parent}
}

// Path returns the node's path by resolving its Entry, or "" if the
// Entry is no longer operable.
func (n *Node) Path() string {
	m := n.Entry.Resolve()
	if m == nil {
		return ""
	}
	return m.Path
}

// IsDirectory reports whether the node's resolved metadata says it is
// a directory. It returns false for an inoperable node.
func (n *Node) IsDirectory() bool {
	m := n.Entry.Resolve()
	return m != nil && m.IsDir()
}

// addChild inserts child into n's children map, detaching any prior
// occupant of the same path first.
func (n *Node) addChild(path string, child *Node) {
	if n.Children == nil {
		n.Children = make(map[string]*Node)
	}
	if old, ok := n.Children[path]; ok && old != child {
		old.Parent = nil
	}
	n.Children[path] = child
	child.Parent = n
}

// removeChild detaches the child at path, if present.
func (n *Node) removeChild(path string) {
	if n.Children == nil {
		return
	}
	if c, ok := n.Children[path]; ok {
		c.Parent = nil
		delete(n.Children, path)
	}
}
