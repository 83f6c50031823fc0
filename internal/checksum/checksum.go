// Package checksum computes the content digests stored on registry entities.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Algorithm is recorded in the registry metadata.
const Algorithm = "sha256"

// Sum returns the algorithm-prefixed hex SHA-256 digest of data, e.g. "sha256:ab12...".
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return Algorithm + ":" + hex.EncodeToString(h[:])
}
