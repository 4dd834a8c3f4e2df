package testsupport

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes size bytes of evidence payload to path, creating parent
// directories. The byte pattern is seeded from the file name so two fixtures
// with different names never share a digest. A size <= 0 writes one byte.
func WriteFile(t testing.TB, path string, size int64) string {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	seed := fnv.New32a()
	_, _ = seed.Write([]byte(filepath.Base(path)))
	state := seed.Sum32()

	data := make([]byte, size)
	for i := range data {
		state = state*1664525 + 1013904223
		data[i] = byte(state >> 24)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
