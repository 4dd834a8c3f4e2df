package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "payload")
	content := "hello world"

	got, err := WriteAtomic(dst, strings.NewReader(content), 0o600)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte(content))
	if got.Size != int64(len(content)) || got.SHA256 != hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected result %+v", got)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != content {
		t.Fatalf("content mismatch: got %q", data)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected mode %v", info.Mode().Perm())
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestWriteAtomicLeavesNoTempOnFailure(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "payload")

	if _, err := WriteAtomic(dst, failingReader{}, 0o600); err == nil {
		t.Fatal("expected error")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, found %d entries", len(entries))
	}
}

func TestWriteAtomicReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "payload")
	if err := os.WriteFile(dst, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteAtomic(dst, strings.NewReader("new"), 0o600); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "new" {
		t.Fatalf("expected replacement, got %q", data)
	}
}

func TestHashFileMatchesWriteAtomic(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "payload")
	written, err := WriteAtomic(dst, strings.NewReader("abc"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	hashed, err := HashFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if hashed != written {
		t.Fatalf("hash mismatch: %+v vs %+v", hashed, written)
	}
}

func TestWriteAtomicNilReader(t *testing.T) {
	if _, err := WriteAtomic(filepath.Join(t.TempDir(), "x"), nil, 0o600); err == nil {
		t.Fatal("expected nil reader error")
	}
}
