package sst

import (
	"path/filepath"
	"testing"

	"github.com/Priyanshu23/FlashLogGo/internal/bloom"
	"github.com/Priyanshu23/FlashLogGo/internal/vlog"
)

func buildTestTable(t *testing.T, dir string, vl *vlog.Log) *Table {
	t.Helper()
	entries := make([]Entry, 0, 4)
	for _, k := range []uint64{10, 20, 30, 40} {
		off, err := vl.Append(k, []byte{byte(k)})
		if err != nil {
			t.Fatalf("vlog append: %v", err)
		}
		entries = append(entries, Entry{Key: k, Offset: off, ValueLen: 1})
	}
	// key 25 is a tombstone with a placeholder offset.
	entries = append(entries, Entry{Key: 25, Offset: vl.EndOffset(), ValueLen: 0})
	sortEntries(entries)

	tbl, err := New(dir, 0, 0, 1, bloom.DefaultK, entries)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tbl
}

func sortEntries(e []Entry) {
	for i := 1; i < len(e); i++ {
		for j := i; j > 0 && e[j].Key < e[j-1].Key; j-- {
			e[j], e[j-1] = e[j-1], e[j]
		}
	}
}

func TestNewAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	vl, err := vlog.Open(filepath.Join(dir, "test.vlog"))
	if err != nil {
		t.Fatalf("vlog.Open: %v", err)
	}
	defer vl.Close()

	tbl := buildTestTable(t, dir, vl)

	loaded, err := Load(dir, tbl.Level(), tbl.ID())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Seq() != tbl.Seq() || loaded.NumKV() != tbl.NumKV() {
		t.Fatalf("header mismatch: seq %d/%d numkv %d/%d", loaded.Seq(), tbl.Seq(), loaded.NumKV(), tbl.NumKV())
	}
	if loaded.MinKey() != 10 || loaded.MaxKey() != 40 {
		t.Fatalf("min/max mismatch: %d/%d", loaded.MinKey(), loaded.MaxKey())
	}

	v, found, tomb, err := loaded.Get(20, vl)
	if err != nil || !found || tomb || string(v) != string([]byte{20}) {
		t.Fatalf("Get(20) = %v %v %v %v", v, found, tomb, err)
	}
}

func TestGetTombstone(t *testing.T) {
	dir := t.TempDir()
	vl, err := vlog.Open(filepath.Join(dir, "test.vlog"))
	if err != nil {
		t.Fatalf("vlog.Open: %v", err)
	}
	defer vl.Close()

	tbl := buildTestTable(t, dir, vl)

	_, found, tomb, err := tbl.Get(25, vl)
	if err != nil || !found || !tomb {
		t.Fatalf("Get(25) = found=%v tomb=%v err=%v, want found tombstone", found, tomb, err)
	}
}

func TestGetAbsent(t *testing.T) {
	dir := t.TempDir()
	vl, err := vlog.Open(filepath.Join(dir, "test.vlog"))
	if err != nil {
		t.Fatalf("vlog.Open: %v", err)
	}
	defer vl.Close()

	tbl := buildTestTable(t, dir, vl)

	_, found, _, err := tbl.Get(999, vl)
	if err != nil || found {
		t.Fatalf("Get(999) = found=%v err=%v, want not found", found, err)
	}
}

func TestScanInclusiveRange(t *testing.T) {
	dir := t.TempDir()
	vl, err := vlog.Open(filepath.Join(dir, "test.vlog"))
	if err != nil {
		t.Fatalf("vlog.Open: %v", err)
	}
	defer vl.Close()

	tbl := buildTestTable(t, dir, vl)

	pairs, err := tbl.Scan(20, 30, vl)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs (20,25-tombstone,30), got %d", len(pairs))
	}
	if pairs[0].Key != 20 || pairs[1].Key != 25 || !pairs[1].Tombstone || pairs[2].Key != 30 {
		t.Fatalf("unexpected scan contents: %+v", pairs)
	}
}

func TestOffsetOf(t *testing.T) {
	dir := t.TempDir()
	vl, err := vlog.Open(filepath.Join(dir, "test.vlog"))
	if err != nil {
		t.Fatalf("vlog.Open: %v", err)
	}
	defer vl.Close()

	tbl := buildTestTable(t, dir, vl)

	switch loc := tbl.OffsetOf(20).(type) {
	case LiveAt:
		// expected
	default:
		t.Fatalf("OffsetOf(20) = %T, want LiveAt", loc)
	}

	if _, ok := tbl.OffsetOf(25).(Tombstone); !ok {
		t.Fatalf("OffsetOf(25) should be Tombstone")
	}

	if _, ok := tbl.OffsetOf(999).(NotPresent); !ok {
		t.Fatalf("OffsetOf(999) should be NotPresent")
	}
}

func TestBloomQueryNoFalseNegatives(t *testing.T) {
	dir := t.TempDir()
	vl, err := vlog.Open(filepath.Join(dir, "test.vlog"))
	if err != nil {
		t.Fatalf("vlog.Open: %v", err)
	}
	defer vl.Close()

	tbl := buildTestTable(t, dir, vl)
	for _, k := range []uint64{10, 20, 25, 30, 40} {
		if !tbl.Query(k) {
			t.Fatalf("bloom false negative for key %d", k)
		}
	}
}

func TestRenameAndDelete(t *testing.T) {
	dir := t.TempDir()
	vl, err := vlog.Open(filepath.Join(dir, "test.vlog"))
	if err != nil {
		t.Fatalf("vlog.Open: %v", err)
	}
	defer vl.Close()

	tbl := buildTestTable(t, dir, vl)
	if err := tbl.RenameID(5); err != nil {
		t.Fatalf("RenameID: %v", err)
	}
	if tbl.ID() != 5 {
		t.Fatalf("ID() = %d, want 5", tbl.ID())
	}
	if _, err := Load(dir, 0, 5); err != nil {
		t.Fatalf("Load after rename: %v", err)
	}

	if err := tbl.DeleteDisk(); err != nil {
		t.Fatalf("DeleteDisk: %v", err)
	}
	if _, err := Load(dir, 0, 5); err == nil {
		t.Fatalf("expected Load to fail after delete")
	}
}

func TestParseFilename(t *testing.T) {
	level, id, ok := ParseFilename("3-12.sst")
	if !ok || level != 3 || id != 12 {
		t.Fatalf("ParseFilename(3-12.sst) = %d %d %v", level, id, ok)
	}
	if _, _, ok := ParseFilename("not-an-sst"); ok {
		t.Fatalf("expected ParseFilename to reject non-matching name")
	}
}

func TestNewRejectsUnsortedEntries(t *testing.T) {
	dir := t.TempDir()
	_, err := New(dir, 0, 0, 1, bloom.DefaultK, []Entry{{Key: 5}, {Key: 3}})
	if err == nil {
		t.Fatalf("expected error for non-ascending entries")
	}
}

func TestNewRejectsTooManyEntries(t *testing.T) {
	dir := t.TempDir()
	entries := make([]Entry, MaxEntries+1)
	for i := range entries {
		entries[i] = Entry{Key: uint64(i)}
	}
	_, err := New(dir, 0, 0, 1, bloom.DefaultK, entries)
	if err == nil {
		t.Fatalf("expected error for too many entries")
	}
}
