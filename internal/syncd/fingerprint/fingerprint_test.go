package fingerprint

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestBytesKnownVector(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Bytes([]byte("abc")); got != want {
		t.Fatalf("expect %s, got %s", want, got)
	}
}

func TestBytesEmpty(t *testing.T) {
	// sha256("")
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Bytes(nil); got != want {
		t.Fatalf("expect %s, got %s", want, got)
	}
}

func TestReaderMatchesBytes(t *testing.T) {
	data := []byte("stream me")
	got, err := Reader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if got != Bytes(data) {
		t.Fatal("reader and bytes digests differ")
	}
}

func TestFileMatchesBytes(t *testing.T) {
	data := []byte("file contents")
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := File(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != Bytes(data) {
		t.Fatal("file and bytes digests differ")
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expect error for missing file")
	}
}
