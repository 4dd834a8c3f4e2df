// Package fileutil provides crash-safe file writes for the payload spool.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Written describes the bytes committed by WriteAtomic.
type Written struct {
	Size   int64
	SHA256 string
}

// WriteAtomic streams r into dst through a temporary file in the same
// directory, fsyncs it, and renames it into place. Readers never observe a
// partially written dst. On failure the temporary file is removed and dst is
// left untouched.
func WriteAtomic(dst string, r io.Reader, mode os.FileMode) (Written, error) {
	if r == nil {
		return Written{}, errors.New("write atomic: nil reader")
	}
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return Written{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		return Written{}, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return Written{}, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return Written{}, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Written{}, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return Written{}, fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	syncDir(dir)

	return Written{Size: written, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// HashFile returns the size and hex SHA256 of the file at path.
func HashFile(path string) (Written, error) {
	f, err := os.Open(path)
	if err != nil {
		return Written{}, err
	}
	defer f.Close()
	hasher := sha256.New()
	n, err := io.Copy(hasher, f)
	if err != nil {
		return Written{}, err
	}
	return Written{Size: n, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
