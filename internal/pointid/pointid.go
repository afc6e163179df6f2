// Package pointid derives deterministic vector store point IDs from document paths.
package pointid

import (
	"path"
	"path/filepath"

	"github.com/google/uuid"
)

// namespace scopes generated IDs to this application. Changing it changes
// every ID and orphans existing collections.
var namespace = uuid.MustParse("456e5ac6-a384-48d5-8308-1272031b4f4a")

// FromPath returns a stable point ID for the given vault-relative path.
// Same path always yields the same ID, distinct paths yield distinct IDs,
// and the result is a UUID string the vector store accepts natively.
func FromPath(p string) string {
	return uuid.NewSHA1(namespace, []byte(canonical(p))).String()
}

// canonical normalizes separators and redundant elements so equivalent
// spellings of one document map to one ID.
func canonical(p string) string {
	return path.Clean(filepath.ToSlash(p))
}
