// Package sst implements the immutable on-disk sorted string table: a
// fixed-size header, a serialized bloom filter, and a sorted array of
// (key, vLog-offset, value-length) index entries. SSTs never store value
// bytes themselves — those live in the shared value log — so an SST's
// size is bounded purely by its entry count, which is what lets the
// format commit to a hard 16 KiB file-size ceiling.
package sst

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/Priyanshu23/FlashLogGo/internal/bloom"
	"github.com/Priyanshu23/FlashLogGo/internal/vlog"
)

const (
	HeaderSize     = 32
	BloomSize      = bloom.DefaultM
	IndexEntrySize = 20
	MaxFileSize    = 16384
	MaxEntries     = (MaxFileSize - HeaderSize - BloomSize) / IndexEntrySize
)

var filenamePattern = regexp.MustCompile(`^(\d+)-(\d+)\.sst$`)

// Entry is one index row: a key, the vLog offset of its value (or a
// placeholder offset for tombstones), and a value length (0 == tombstone).
type Entry struct {
	Key      uint64
	Offset   uint64
	ValueLen uint32
}

// Pair is one (key, value-or-tombstone) result from Scan.
type Pair struct {
	Key       uint64
	Value     []byte
	Tombstone bool
}

// Table is an immutable, loaded sorted string table. Index entries and
// the bloom filter are kept in memory for the table's lifetime; only
// value bytes are fetched from the value log on demand.
type Table struct {
	dir     string
	level   int
	id      int
	seq     uint64
	minKey  uint64
	maxKey  uint64
	entries []Entry
	filter  *bloom.Filter
}

func filename(level, id int) string {
	return fmt.Sprintf("%d-%d.sst", level, id)
}

func tablePath(dir string, level, id int) string {
	return filepath.Join(dir, filename(level, id))
}

// ParseFilename extracts (level, id) from an SST filename, returning ok
// == false if name does not match the "<level>-<id>.sst" pattern.
func ParseFilename(name string) (level, id int, ok bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false
	}
	var l, i int
	if _, err := fmt.Sscanf(m[1], "%d", &l); err != nil {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(m[2], "%d", &i); err != nil {
		return 0, 0, false
	}
	return l, i, true
}

// New builds and writes a new SST from a sorted, deduplicated slice of
// entries. Keys must be strictly ascending. minKey/maxKey are taken as
// entries[0].Key and entries[last].Key; callers that need to exclude
// tombstones from the range (none currently do — see DESIGN.md) should
// filter before calling New.
func New(dir string, level, id int, seq uint64, bloomK uint, entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("sst: cannot build an empty table")
	}
	if len(entries) > MaxEntries {
		return nil, fmt.Errorf("sst: %d entries exceeds max %d per table", len(entries), MaxEntries)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Key <= entries[i-1].Key {
			return nil, fmt.Errorf("sst: entries must be strictly ascending by key")
		}
	}

	filter := bloom.New(BloomSize, bloomK)
	for _, e := range entries {
		filter.Insert(e.Key)
	}

	t := &Table{
		dir:     dir,
		level:   level,
		id:      id,
		seq:     seq,
		minKey:  entries[0].Key,
		maxKey:  entries[len(entries)-1].Key,
		entries: append([]Entry(nil), entries...),
		filter:  filter,
	}

	if err := t.writeToDisk(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) writeToDisk() error {
	path := tablePath(t.dir, t.level, t.id)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sst: create %s: %w", path, err)
	}
	defer f.Close()

	var header [HeaderSize]byte
	binary.LittleEndian.PutUint64(header[0:8], t.seq)
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(t.entries)))
	binary.LittleEndian.PutUint64(header[16:24], t.minKey)
	binary.LittleEndian.PutUint64(header[24:32], t.maxKey)
	if _, err := f.Write(header[:]); err != nil {
		return fmt.Errorf("sst: write header: %w", err)
	}

	bloomBytes := make([]byte, BloomSize)
	if err := t.filter.SerializeInto(bloomBytes); err != nil {
		return fmt.Errorf("sst: serialize bloom: %w", err)
	}
	if _, err := f.Write(bloomBytes); err != nil {
		return fmt.Errorf("sst: write bloom: %w", err)
	}

	buf := make([]byte, IndexEntrySize*len(t.entries))
	for i, e := range t.entries {
		o := i * IndexEntrySize
		binary.LittleEndian.PutUint64(buf[o:o+8], e.Key)
		binary.LittleEndian.PutUint64(buf[o+8:o+16], e.Offset)
		binary.LittleEndian.PutUint32(buf[o+16:o+20], e.ValueLen)
	}
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("sst: write index: %w", err)
	}

	return f.Sync()
}

// Load reads an existing SST file from disk into memory.
func Load(dir string, level, id int) (*Table, error) {
	path := tablePath(dir, level, id)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sst: open %s: %w", path, err)
	}
	defer f.Close()

	var header [HeaderSize]byte
	if _, err := f.Read(header[:]); err != nil {
		return nil, fmt.Errorf("sst: read header: %w", err)
	}
	seq := binary.LittleEndian.Uint64(header[0:8])
	numKV := binary.LittleEndian.Uint64(header[8:16])
	minKey := binary.LittleEndian.Uint64(header[16:24])
	maxKey := binary.LittleEndian.Uint64(header[24:32])

	bloomBytes := make([]byte, BloomSize)
	if _, err := f.Read(bloomBytes); err != nil {
		return nil, fmt.Errorf("sst: read bloom: %w", err)
	}
	filter, err := bloom.DeserializeFrom(bloomBytes, bloom.DefaultK)
	if err != nil {
		return nil, fmt.Errorf("sst: deserialize bloom: %w", err)
	}

	buf := make([]byte, IndexEntrySize*numKV)
	if numKV > 0 {
		if _, err := f.Read(buf); err != nil {
			return nil, fmt.Errorf("sst: read index: %w", err)
		}
	}
	entries := make([]Entry, numKV)
	for i := range entries {
		o := i * IndexEntrySize
		entries[i] = Entry{
			Key:      binary.LittleEndian.Uint64(buf[o : o+8]),
			Offset:   binary.LittleEndian.Uint64(buf[o+8 : o+16]),
			ValueLen: binary.LittleEndian.Uint32(buf[o+16 : o+20]),
		}
	}

	return &Table{
		dir:     dir,
		level:   level,
		id:      id,
		seq:     seq,
		minKey:  minKey,
		maxKey:  maxKey,
		entries: entries,
		filter:  filter,
	}, nil
}

func (t *Table) Level() int      { return t.level }
func (t *Table) ID() int         { return t.id }
func (t *Table) Seq() uint64     { return t.seq }
func (t *Table) NumKV() int      { return len(t.entries) }
func (t *Table) MinKey() uint64  { return t.minKey }
func (t *Table) MaxKey() uint64  { return t.maxKey }
func (t *Table) Path() string    { return tablePath(t.dir, t.level, t.id) }
func (t *Table) Filename() string { return filename(t.level, t.id) }

// Entries returns a read-only copy of the table's index, used by
// compaction to seed its merge.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Overlaps reports whether [lo, hi] intersects this table's key range.
func (t *Table) Overlaps(lo, hi uint64) bool {
	return t.minKey <= hi && lo <= t.maxKey
}

func (t *Table) search(key uint64) (int, bool) {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Key >= key })
	if i < len(t.entries) && t.entries[i].Key == key {
		return i, true
	}
	return i, false
}

// Query consults the bloom filter only; it may return a false positive
// but never a false negative.
func (t *Table) Query(key uint64) bool {
	return t.filter.Query(key)
}

// Get performs a binary-search point lookup. found is false if the key
// is absent from the index; tombstone is true if the key is present but
// recorded as deleted.
func (t *Table) Get(key uint64, vl *vlog.Log) (value []byte, found bool, tombstone bool, err error) {
	i, ok := t.search(key)
	if !ok {
		return nil, false, false, nil
	}
	e := t.entries[i]
	if e.ValueLen == 0 {
		return nil, true, true, nil
	}
	v, err := vl.Read(e.Offset, e.ValueLen)
	if err != nil {
		return nil, true, false, fmt.Errorf("sst: get key %d: %w", key, err)
	}
	return v, true, false, nil
}

// Scan returns every index entry with key in [lo, hi], in ascending
// order, resolving live values against the value log and reporting
// tombstones inline.
func (t *Table) Scan(lo, hi uint64, vl *vlog.Log) ([]Pair, error) {
	start := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Key >= lo })
	var out []Pair
	for i := start; i < len(t.entries) && t.entries[i].Key <= hi; i++ {
		e := t.entries[i]
		if e.ValueLen == 0 {
			out = append(out, Pair{Key: e.Key, Tombstone: true})
			continue
		}
		v, err := vl.Read(e.Offset, e.ValueLen)
		if err != nil {
			return nil, fmt.Errorf("sst: scan key %d: %w", e.Key, err)
		}
		out = append(out, Pair{Key: e.Key, Value: v})
	}
	return out, nil
}

// OffsetOf reports the tagged location of key within this table's index,
// for use by GC to decide whether a vLog record is still live.
func (t *Table) OffsetOf(key uint64) Location {
	i, ok := t.search(key)
	if !ok {
		return NotPresent{}
	}
	e := t.entries[i]
	if e.ValueLen == 0 {
		return Tombstone{}
	}
	return LiveAt{Offset: e.Offset}
}

// RenameID renames the on-disk file to reflect a new id within the same
// level, used by compaction to keep ids contiguous within a level.
func (t *Table) RenameID(newID int) error {
	oldPath := tablePath(t.dir, t.level, t.id)
	newPath := tablePath(t.dir, t.level, newID)
	if oldPath == newPath {
		return nil
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("sst: rename %s to %s: %w", oldPath, newPath, err)
	}
	t.id = newID
	return nil
}

// DeleteDisk removes the table's backing file.
func (t *Table) DeleteDisk() error {
	if err := os.Remove(tablePath(t.dir, t.level, t.id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sst: delete %s: %w", tablePath(t.dir, t.level, t.id), err)
	}
	return nil
}
