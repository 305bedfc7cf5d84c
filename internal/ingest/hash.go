package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SourceHash computes a stable content hash for a document so unchanged
// documents can be skipped on re-ingest. Title and body are trimmed and
// joined with a NUL separator to keep the component boundary unambiguous.
func SourceHash(title, body string) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(title)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(body)))
	return hex.EncodeToString(h.Sum(nil))
}
