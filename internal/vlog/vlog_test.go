package vlog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func tempLog(t *testing.T) (*Log, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.vlog")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, path
}

func TestAppendAndRead(t *testing.T) {
	l, _ := tempLog(t)

	off, err := l.Append(42, []byte("hello"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if off != 0 {
		t.Fatalf("expected first record at offset 0, got %d", off)
	}

	got, err := l.Read(off, 5)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestAppendMultipleOrdering(t *testing.T) {
	l, _ := tempLog(t)

	off1, _ := l.Append(1, []byte("a"))
	off2, _ := l.Append(2, []byte("bb"))

	if off2 <= off1 {
		t.Fatalf("offsets should increase: %d then %d", off1, off2)
	}

	v1, _ := l.Read(off1, 1)
	v2, _ := l.Read(off2, 2)
	if string(v1) != "a" || string(v2) != "bb" {
		t.Fatalf("got %q %q", v1, v2)
	}
}

func TestRecoveryAfterReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.vlog")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	off, err := l.Append(7, []byte("value7"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()

	if l2.EndOffset() != off+PrefixSize+6 {
		t.Fatalf("head mismatch after reopen: got %d", l2.EndOffset())
	}

	got, err := l2.Read(off, 6)
	if err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if string(got) != "value7" {
		t.Fatalf("got %q", got)
	}
}

func TestRecoverySkipsTrailingCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.vlog")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	off1, _ := l.Append(1, []byte("alive"))
	if _, err := l.Append(2, []byte("torn!")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Corrupt the last 5 bytes (the trailing record's value), simulating a
	// torn write.
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("open for corruption: %v", err)
	}
	info, _ := f.Stat()
	size := info.Size()
	garbage := bytes.Repeat([]byte{0xAB}, 5)
	if _, err := f.WriteAt(garbage, size-5); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	f.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen over corruption: %v", err)
	}
	defer l2.Close()

	got, err := l2.Read(off1, 5)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "alive" {
		t.Fatalf("got %q", got)
	}
}

func TestAdvanceTail(t *testing.T) {
	l, _ := tempLog(t)

	off1, _ := l.Append(1, []byte("aaaa"))
	off2, _ := l.Append(2, []byte("bbbb"))
	_ = off1

	if l.Tail() != 0 {
		t.Fatalf("expected initial tail 0, got %d", l.Tail())
	}

	reclaim := off2 - l.Tail()
	if err := l.AdvanceTail(reclaim); err != nil {
		t.Fatalf("AdvanceTail: %v", err)
	}
	if l.Tail() != off2 {
		t.Fatalf("expected tail %d, got %d", off2, l.Tail())
	}
}
