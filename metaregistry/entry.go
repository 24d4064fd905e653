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

package metaregistry

import "weak"

// Entry is a thin handle holding a weak reference to a metadata
// record owned by a Registry. It is operable iff the weak reference
// still resolves and the resolved path is non-empty. The registry
// evicts, so "is this record still alive" is a real question every
// holder must ask; weak.Pointer answers it without a manually
// nulled-out back-reference.
type Entry struct {
	ref weak.Pointer[FileMetadata]
}

// newEntry wraps a strong pointer owned elsewhere (the Registry) in a
// weak Entry handle.
func newEntry(m *FileMetadata) Entry {
	return Entry{ref: weak.Make(m)}
}

// Resolve returns the metadata record if the weak reference still
// resolves to a live value with a non-empty path, or nil otherwise.
func (e Entry) Resolve() *FileMetadata {
	m := e.ref.Value()
	if m == nil || m.Path == "" {
		return nil
	}
	return m
}

// Operable reports whether Resolve would succeed.
func (e Entry) Operable() bool {
	return e.Resolve() != nil
}
