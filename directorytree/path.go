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

import "strings"

// RootPath is the path of the tree's root directory.
const RootPath = "/"

// normalizeDir ensures directory paths end with "/".
func normalizeDir(path string) string {
	if !strings.HasSuffix(path, "/") {
		return path + "/"
	}
	return path
}

// dirname returns the parent directory path of path, in the
// trailing-slash-for-directories convention this tree uses
// throughout. dirname("/a/b/") == "/a/", dirname("/a/b/file") == "/a/b/".
func dirname(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return RootPath
	}
	return trimmed[:i+1]
}

// isDescendant reports whether child is path-wise nested under dir,
// where dir is expected to be a normalized directory path.
func isDescendant(dir, child string) bool {
	return dir != child && strings.HasPrefix(child, dir)
}
