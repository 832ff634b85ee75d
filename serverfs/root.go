// Package serverfs implements the server-side host file operations (spec.md
// §6's registered RPC procedures) against a single persist directory,
// guarded by the access arbitrator (spec.md §4.2).
package serverfs

// Root is the PersistDirectory: the root directory holding all real file
// bytes, immutable after startup. Every logical path is resolved by
// concatenation onto this root, matching FileUtil::getAbsolutePath in the
// original implementation.
type Root string

// Resolve maps a logical path to its real location under the persist
// directory.
func (r Root) Resolve(path string) string {
	return string(r) + path
}
