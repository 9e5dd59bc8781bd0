package index

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const docIDPrefix = "doc:"

// DocID returns a stable document ID for the given absolute path.
// Same path always yields the same ID, so re-indexing a file replaces
// the previous document rather than duplicating it.
func DocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return docIDPrefix + hex.EncodeToString(hash[:])
}
