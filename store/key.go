package store

import (
	"encoding/hex"

	sha256 "github.com/minio/sha256-simd"
)

// KeyHash returns the fixed-width identifier SQL drivers index entries by.
// Request keys embed full URLs and can be arbitrarily long.
func KeyHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
