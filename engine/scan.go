package engine

import (
	"container/heap"
	"fmt"

	"github.com/Priyanshu23/FlashLogGo/internal/memtable"
)

// Record is one live (key, value) pair returned by Scan.
type Record struct {
	Key   uint64
	Value []byte
}

// streamTag identifies a scan source for precedence purposes: the
// memtable dominates everything; among SSTs, a lower level dominates a
// higher one; within a level, a higher id (a newer flush, or a later
// compaction output) dominates a lower one.
type streamTag struct {
	isMem bool
	level int
	id    int
}

// higherPrecedence reports whether a has higher precedence than b, i.e.
// a's value should win when both streams hold the same key.
func higherPrecedence(a, b streamTag) bool {
	if a.isMem != b.isMem {
		return a.isMem
	}
	if a.level != b.level {
		return a.level < b.level
	}
	return a.id > b.id
}

type scanStream struct {
	recs []memtable.Record
	tag  streamTag
}

type scanItem struct {
	rec       memtable.Record
	tag       streamTag
	streamIdx int
}

type scanHeap []scanItem

func (h scanHeap) Len() int { return len(h) }
func (h scanHeap) Less(i, j int) bool {
	if h[i].rec.Key != h[j].rec.Key {
		return h[i].rec.Key < h[j].rec.Key
	}
	return higherPrecedence(h[i].tag, h[j].tag)
}
func (h scanHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *scanHeap) Push(x any)   { *h = append(*h, x.(scanItem)) }
func (h *scanHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Scan returns every live key in [lo, hi], ascending, merging the
// memtable and every SST's scan stream by precedence: for each distinct
// key, the highest-precedence entry wins; if that entry is a tombstone
// the key is suppressed entirely, even if older streams hold a live
// version of it.
func (e *Engine) Scan(lo, hi uint64) ([]Record, error) {
	if e.closed {
		return nil, ErrClosed
	}

	streams := []scanStream{{recs: e.mem.Scan(lo, hi), tag: streamTag{isMem: true}}}

	for l := 0; l < len(e.levels); l++ {
		for _, t := range e.levels[l] {
			pairs, err := t.Scan(lo, hi, e.vl)
			if err != nil {
				return nil, fmt.Errorf("engine: scan: %w", err)
			}
			recs := make([]memtable.Record, len(pairs))
			for i, p := range pairs {
				recs[i] = memtable.Record{
					Key:   p.Key,
					Value: memtable.Value{Bytes: p.Value, Tombstone: p.Tombstone},
				}
			}
			streams = append(streams, scanStream{recs: recs, tag: streamTag{level: l, id: t.ID()}})
		}
	}

	positions := make([]int, len(streams))
	h := &scanHeap{}
	heap.Init(h)
	for idx, s := range streams {
		if len(s.recs) > 0 {
			heap.Push(h, scanItem{rec: s.recs[0], tag: s.tag, streamIdx: idx})
			positions[idx] = 1
		}
	}

	var out []Record
	havePrev := false
	var prevKey uint64
	for h.Len() > 0 {
		item := heap.Pop(h).(scanItem)

		idx := item.streamIdx
		if positions[idx] < len(streams[idx].recs) {
			heap.Push(h, scanItem{rec: streams[idx].recs[positions[idx]], tag: streams[idx].tag, streamIdx: idx})
			positions[idx]++
		}

		if havePrev && item.rec.Key == prevKey {
			continue
		}
		havePrev = true
		prevKey = item.rec.Key

		if item.rec.Value.Tombstone {
			continue
		}
		out = append(out, Record{Key: item.rec.Key, Value: append([]byte(nil), item.rec.Value.Bytes...)})
	}
	return out, nil
}
