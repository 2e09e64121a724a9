package memtable

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/Priyanshu23/FlashLogGo/internal/bloom"
	"github.com/Priyanshu23/FlashLogGo/internal/vlog"
)

func init() {
	rand.Seed(1)
}

func TestEmptyMemtable(t *testing.T) {
	s := New()
	if s.NumEntries() != 0 {
		t.Fatalf("expected 0 entries, got %d", s.NumEntries())
	}
	if _, ok := s.Get(1); ok {
		t.Fatalf("expected not found in empty memtable")
	}
}

func TestPutAndGet(t *testing.T) {
	s := New()
	s.Put(10, Value{Bytes: []byte("ten")})

	v, ok := s.Get(10)
	if !ok || string(v.Bytes) != "ten" || v.Tombstone {
		t.Fatalf("Get(10) = %+v, %v", v, ok)
	}
}

func TestOverwrite(t *testing.T) {
	s := New()
	s.Put(1, Value{Bytes: []byte("a")})
	s.Put(1, Value{Bytes: []byte("b")})

	v, ok := s.Get(1)
	if !ok || string(v.Bytes) != "b" {
		t.Fatalf("Get(1) after overwrite = %+v", v)
	}
	if s.NumEntries() != 1 {
		t.Fatalf("expected 1 entry after overwrite, got %d", s.NumEntries())
	}
}

func TestDeleteInsertsTombstone(t *testing.T) {
	s := New()
	s.Put(1, Value{Bytes: []byte("a")})
	s.Del(1)

	v, ok := s.Get(1)
	if !ok || !v.Tombstone {
		t.Fatalf("expected tombstone after Del, got %+v found=%v", v, ok)
	}
}

func TestScanOrderingAndInclusivity(t *testing.T) {
	s := New()
	s.Put(1, Value{Bytes: []byte("a")})
	s.Put(3, Value{Bytes: []byte("c")})
	s.Put(5, Value{Bytes: []byte("e")})
	s.Put(4, Value{Bytes: []byte("d")})

	recs := s.Scan(2, 4)
	if len(recs) != 2 || recs[0].Key != 3 || recs[1].Key != 4 {
		t.Fatalf("unexpected scan result: %+v", recs)
	}
}

func TestSizeBytesGrowsWithEntries(t *testing.T) {
	s := New()
	base := s.SizeBytes()
	s.Put(1, Value{Bytes: []byte("a")})
	if s.SizeBytes() != base+20 {
		t.Fatalf("SizeBytes after 1 insert = %d, want %d", s.SizeBytes(), base+20)
	}
}

func TestFlushIntoSSTOrderingAndOffsets(t *testing.T) {
	dir := t.TempDir()
	vl, err := vlog.Open(filepath.Join(dir, "test.vlog"))
	if err != nil {
		t.Fatalf("vlog.Open: %v", err)
	}
	defer vl.Close()

	s := New()
	s.Put(5, Value{Bytes: []byte("five")})
	s.Put(1, Value{Bytes: []byte("one")})
	s.Del(3)
	s.Put(2, Value{Bytes: []byte("two")})

	tbl, err := FlushIntoSST(s, vl, dir, 0, 0, 1, bloom.DefaultK)
	if err != nil {
		t.Fatalf("FlushIntoSST: %v", err)
	}
	if tbl.NumKV() != 4 {
		t.Fatalf("expected 4 entries, got %d", tbl.NumKV())
	}
	if tbl.MinKey() != 1 || tbl.MaxKey() != 5 {
		t.Fatalf("min/max = %d/%d, want 1/5", tbl.MinKey(), tbl.MaxKey())
	}

	v, found, tomb, err := tbl.Get(1, vl)
	if err != nil || !found || tomb || string(v) != "one" {
		t.Fatalf("Get(1) = %q %v %v %v", v, found, tomb, err)
	}

	_, found, tomb, err = tbl.Get(3, vl)
	if err != nil || !found || !tomb {
		t.Fatalf("Get(3) = found=%v tomb=%v err=%v, want tombstone", found, tomb, err)
	}
}

func TestFlushEmptyMemtableReturnsNil(t *testing.T) {
	dir := t.TempDir()
	vl, err := vlog.Open(filepath.Join(dir, "test.vlog"))
	if err != nil {
		t.Fatalf("vlog.Open: %v", err)
	}
	defer vl.Close()

	s := New()
	tbl, err := FlushIntoSST(s, vl, dir, 0, 0, 1, bloom.DefaultK)
	if err != nil {
		t.Fatalf("FlushIntoSST on empty memtable: %v", err)
	}
	if tbl != nil {
		t.Fatalf("expected nil table for empty memtable")
	}
}
