// Package memtable implements the engine's in-memory write buffer: an
// ordered map over uint64 keys backed by a probabilistic multi-level
// linked list (a skip list), generalized from the teacher's generic
// skip-list memtable to the store's fixed uint64 key and tagged
// tombstone value.
package memtable

import (
	"math/rand"
	"sort"

	"github.com/Priyanshu23/FlashLogGo/internal/sst"
	"github.com/Priyanshu23/FlashLogGo/internal/vlog"
)

// maxLevel bounds the skip list's tower height. The source's generic
// skip list capped at 32; this store's memtables are bounded to at most
// 408 entries per flush (see sst.MaxEntries), so a much shorter tower
// already gives O(log n) search with room to spare.
const maxLevel = 16

// Value is a tagged memtable value: either a live byte slice, or a
// tombstone recording a deletion. This replaces the source's sentinel
// string "~DELETED~" (see SPEC_FULL.md Open Question (a)) so a legitimate
// value can never be mistaken for a deletion marker.
type Value struct {
	Bytes     []byte
	Tombstone bool
}

// Record is one (key, value) pair as yielded by Scan.
type Record struct {
	Key   uint64
	Value Value
}

type node struct {
	key     uint64
	value   Value
	forward []*node
}

// SkipList is the engine's memtable. It is not safe for concurrent use;
// the store assumes a single-threaded caller (see spec §5).
type SkipList struct {
	head   *node
	levels int // highest populated level index; -1 when empty
	size   int
}

// New returns an empty memtable.
func New() *SkipList {
	return &SkipList{
		head:   &node{forward: make([]*node, 1)},
		levels: -1,
	}
}

func randomLevel() int {
	level := 0
	for rand.Int31()&1 == 0 && level < maxLevel {
		level++
	}
	return level
}

func (s *SkipList) growHead(level int) {
	forward := make([]*node, level+1)
	copy(forward, s.head.forward)
	s.head = &node{forward: forward}
	s.levels = level
}

// Put inserts or overwrites key's value.
func (s *SkipList) Put(key uint64, value Value) {
	newLevel := randomLevel()
	if newLevel > s.levels {
		s.growHead(newLevel)
	}

	updates := make([]*node, s.levels+1)
	x := s.head
	for level := s.levels; level >= 0; level-- {
		for x.forward[level] != nil && x.forward[level].key < key {
			x = x.forward[level]
		}
		updates[level] = x
	}

	if x.forward[0] != nil && x.forward[0].key == key {
		x.forward[0].value = value
		return
	}

	n := &node{key: key, value: value, forward: make([]*node, newLevel+1)}
	for level := 0; level <= newLevel; level++ {
		n.forward[level] = updates[level].forward[level]
		updates[level].forward[level] = n
	}
	s.size++
}

// Get returns the stored value for key (possibly a tombstone) and
// whether the key is present at all.
func (s *SkipList) Get(key uint64) (Value, bool) {
	x := s.head
	for level := s.levels; level >= 0; level-- {
		for x.forward[level] != nil && x.forward[level].key < key {
			x = x.forward[level]
		}
		if x.forward[level] != nil && x.forward[level].key == key {
			return x.forward[level].value, true
		}
	}
	return Value{}, false
}

// Del inserts a tombstone for key, shadowing any on-disk version.
// Compaction carries tombstones forward at every level; it never drops
// them.
func (s *SkipList) Del(key uint64) {
	s.Put(key, Value{Tombstone: true})
}

// Scan returns every entry with key in [lo, hi], ascending, including
// tombstones (the caller decides whether to suppress them).
func (s *SkipList) Scan(lo, hi uint64) []Record {
	x := s.head
	for level := s.levels; level >= 0; level-- {
		for x.forward[level] != nil && x.forward[level].key < lo {
			x = x.forward[level]
		}
	}
	x = x.forward[0]

	var out []Record
	for x != nil && x.key <= hi {
		out = append(out, Record{Key: x.key, Value: x.value})
		x = x.forward[0]
	}
	return out
}

// NumEntries returns the number of distinct keys stored.
func (s *SkipList) NumEntries() int { return s.size }

// SizeBytes estimates the size of the SST this memtable would flush
// into: a fixed header plus a fixed bloom region plus one 20-byte index
// entry per key. This is an upper bound, not the memtable's own memory
// footprint.
func (s *SkipList) SizeBytes() int {
	return sst.HeaderSize + sst.BloomSize + s.size*sst.IndexEntrySize
}

// records returns every entry in ascending key order.
func (s *SkipList) records() []Record {
	return s.Scan(0, ^uint64(0))
}

// FlushIntoSST appends every live value to the value log (capturing each
// record's offset before the next append), builds a bloom filter over
// every key, and writes a new SST containing the resulting index.
// Tombstones are recorded with value-length 0 and a placeholder offset
// equal to the vLog's end offset at the time they are visited, per spec
// §4.4's flush ordering rule.
func FlushIntoSST(s *SkipList, vl *vlog.Log, dir string, level, id int, seq uint64, bloomK uint) (*sst.Table, error) {
	recs := s.records()
	if len(recs) == 0 {
		return nil, nil
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key })

	entries := make([]sst.Entry, 0, len(recs))
	for _, r := range recs {
		if r.Value.Tombstone {
			entries = append(entries, sst.Entry{Key: r.Key, Offset: vl.EndOffset(), ValueLen: 0})
			continue
		}
		off, err := vl.Append(r.Key, r.Value.Bytes)
		if err != nil {
			return nil, err
		}
		entries = append(entries, sst.Entry{Key: r.Key, Offset: off, ValueLen: uint32(len(r.Value.Bytes))})
	}

	if err := vl.Sync(); err != nil {
		return nil, err
	}

	return sst.New(dir, level, id, seq, bloomK, entries)
}
