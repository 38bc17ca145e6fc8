package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "alpha")
	writeFile(t, filepath.Join(src, "nested", "b.txt"), "beta")

	data, files, err := Pack(src, []string{"a.txt", "nested"}, 6, false)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if files != 2 {
		t.Fatalf("want 2 files packed, got %d", files)
	}

	dest := t.TempDir()
	n, err := Unpack(data, dest)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 files unpacked, got %d", n)
	}
	got, err := os.ReadFile(filepath.Join(dest, "nested", "b.txt"))
	if err != nil {
		t.Fatalf("read restored file: %v", err)
	}
	if string(got) != "beta" {
		t.Fatalf("content mismatch: %q", got)
	}
}

func TestPackSkipsHiddenUnlessAsked(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "dir", "visible.txt"), "v")
	writeFile(t, filepath.Join(src, "dir", ".secret"), "s")
	writeFile(t, filepath.Join(src, "dir", ".hidden", "inner.txt"), "i")

	_, files, err := Pack(src, []string{"dir"}, 1, false)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if files != 1 {
		t.Fatalf("want hidden entries skipped, packed %d files", files)
	}

	_, files, err = Pack(src, []string{"dir"}, 1, true)
	if err != nil {
		t.Fatalf("pack with hidden: %v", err)
	}
	if files != 3 {
		t.Fatalf("want 3 files with hidden included, got %d", files)
	}
}

func TestPackMissingAndEmpty(t *testing.T) {
	src := t.TempDir()
	data, files, err := Pack(src, []string{"does-not-exist"}, 6, false)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if files != 0 || data != nil {
		t.Fatalf("want empty result, got %d files", files)
	}
}

func TestPackRejectsBadLevel(t *testing.T) {
	if _, _, err := Pack(t.TempDir(), []string{"x"}, 42, false); err == nil {
		t.Fatal("want error for invalid compression level")
	}
}

func TestUnpackRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	content := []byte("evil")
	if err := tw.WriteHeader(&tar.Header{
		Name:     "../evil.txt",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(content)),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := Unpack(buf.Bytes(), t.TempDir()); err == nil {
		t.Fatal("want error for traversal member")
	}
}
