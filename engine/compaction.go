package engine

import (
	"container/heap"
	"fmt"

	"github.com/Priyanshu23/FlashLogGo/internal/sst"
)

// mergedEntry is one deduplicated, newest-wins index entry produced by a
// compaction merge, tagged with the seq of the table it came from so the
// output SST's own header seq (the max among its members) can be
// computed when the merged stream is chunked back into tables.
type mergedEntry struct {
	entry sst.Entry
	seq   uint64
}

type compactItem struct {
	entry     sst.Entry
	seq       uint64
	streamIdx int
}

type compactHeap []compactItem

func (h compactHeap) Len() int { return len(h) }
func (h compactHeap) Less(i, j int) bool {
	if h[i].entry.Key != h[j].entry.Key {
		return h[i].entry.Key < h[j].entry.Key
	}
	return h[i].seq > h[j].seq // newer (higher seq) wins ties
}
func (h compactHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *compactHeap) Push(x any)   { *h = append(*h, x.(compactItem)) }
func (h *compactHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// mergeCompactionInputs k-way-merges every input table's sorted index
// into one sorted, deduplicated stream, keeping only the newest version
// of each key. It asserts the version-ordering invariant described in
// spec §4.5.6: when two streams disagree about a key, the one already
// emitted must have come from a seq no lower than the duplicate being
// discarded, or the tables were not disjoint/ordered the way compaction
// assumes.
func mergeCompactionInputs(tables []*sst.Table) ([]mergedEntry, error) {
	type stream struct {
		entries []sst.Entry
		seq     uint64
		pos     int
	}
	streams := make([]stream, len(tables))
	for i, t := range tables {
		streams[i] = stream{entries: t.Entries(), seq: t.Seq()}
	}

	h := &compactHeap{}
	heap.Init(h)
	for idx, s := range streams {
		if len(s.entries) > 0 {
			heap.Push(h, compactItem{entry: s.entries[0], seq: s.seq, streamIdx: idx})
		}
	}

	var out []mergedEntry
	havePrev := false
	var prevKey uint64
	var prevSeq uint64

	for h.Len() > 0 {
		item := heap.Pop(h).(compactItem)

		idx := item.streamIdx
		streams[idx].pos++
		if streams[idx].pos < len(streams[idx].entries) {
			heap.Push(h, compactItem{entry: streams[idx].entries[streams[idx].pos], seq: streams[idx].seq, streamIdx: idx})
		}

		if havePrev && item.entry.Key == prevKey {
			if prevSeq < item.seq {
				return nil, fmt.Errorf("engine: compaction version ordering violated for key %d: emitted seq %d before seq %d", item.entry.Key, prevSeq, item.seq)
			}
			continue
		}
		havePrev = true
		prevKey = item.entry.Key
		prevSeq = item.seq
		out = append(out, mergedEntry{entry: item.entry, seq: item.seq})
	}
	return out, nil
}

func diffTables(all, remove []*sst.Table) []*sst.Table {
	removed := make(map[*sst.Table]bool, len(remove))
	for _, t := range remove {
		removed[t] = true
	}
	out := make([]*sst.Table, 0, len(all))
	for _, t := range all {
		if !removed[t] {
			out = append(out, t)
		}
	}
	return out
}

// compactLevel merges level l's selected SSTs with overlapping SSTs in
// level l+1, writing deduplicated, newest-wins output back into l+1 and
// renumbering the survivors of both levels to keep ids contiguous.
func (e *Engine) compactLevel(l int) error {
	e.ensureLevel(l + 1)
	lvl := e.levels[l]
	if len(lvl) == 0 {
		return nil
	}

	selected := selectCompactionInput(lvl, l)

	selMin, selMax := selected[0].MinKey(), selected[0].MaxKey()
	for _, t := range selected {
		if t.MinKey() < selMin {
			selMin = t.MinKey()
		}
		if t.MaxKey() > selMax {
			selMax = t.MaxKey()
		}
	}

	nextLvl := e.levels[l+1]
	var overlap []*sst.Table
	for _, t := range nextLvl {
		if t.Overlaps(selMin, selMax) {
			overlap = append(overlap, t)
		}
	}

	inputs := append(append([]*sst.Table(nil), selected...), overlap...)
	merged, err := mergeCompactionInputs(inputs)
	if err != nil {
		return err
	}

	keepCur := diffTables(lvl, selected)
	keepNext := diffTables(nextLvl, overlap)

	for _, t := range overlap {
		if err := t.DeleteDisk(); err != nil {
			return fmt.Errorf("engine: delete overlap table: %w", err)
		}
	}
	for _, t := range selected {
		if err := t.DeleteDisk(); err != nil {
			return fmt.Errorf("engine: delete selected table: %w", err)
		}
	}

	for i, t := range keepCur {
		if err := t.RenameID(i); err != nil {
			return fmt.Errorf("engine: renumber level %d: %w", l, err)
		}
	}
	for i, t := range keepNext {
		if err := t.RenameID(i); err != nil {
			return fmt.Errorf("engine: renumber level %d: %w", l+1, err)
		}
	}

	nextID := len(keepNext)
	newTables := make([]*sst.Table, 0, (len(merged)+sst.MaxEntries-1)/max(sst.MaxEntries, 1))
	for start := 0; start < len(merged); start += sst.MaxEntries {
		end := start + sst.MaxEntries
		if end > len(merged) {
			end = len(merged)
		}
		chunk := merged[start:end]

		entries := make([]sst.Entry, len(chunk))
		var seq uint64
		for i, m := range chunk {
			entries[i] = m.entry
			if m.seq > seq {
				seq = m.seq
			}
		}

		tbl, err := sst.New(e.dir, l+1, nextID, seq, e.opts.BloomK, entries)
		if err != nil {
			return fmt.Errorf("engine: write compaction output: %w", err)
		}
		newTables = append(newTables, tbl)
		nextID++
	}

	e.levels[l] = keepCur
	e.levels[l+1] = append(keepNext, newTables...)

	e.opts.Logger.Printf("compaction complete: level=%d selected=%d overlap=%d output=%d",
		l, len(selected), len(overlap), len(newTables))

	return nil
}

// selectCompactionInput picks the subset of level l to compact: all of
// level 0, or the older half of a deeper level extended forward while
// the next table's seq doesn't exceed the running max, so a consistent
// version frontier is preserved (a later table with an equal-or-lower
// seq than an already-selected one must be pulled in too, or the merge's
// version-ordering invariant could be violated).
func selectCompactionInput(lvl []*sst.Table, level int) []*sst.Table {
	if level == 0 {
		return append([]*sst.Table(nil), lvl...)
	}

	n := len(lvl) / 2
	if n == 0 {
		n = 1
	}
	selected := append([]*sst.Table(nil), lvl[:n]...)

	maxSeq := selected[0].Seq()
	for _, t := range selected {
		if t.Seq() > maxSeq {
			maxSeq = t.Seq()
		}
	}

	i := len(selected)
	for i < len(lvl) && lvl[i].Seq() <= maxSeq {
		selected = append(selected, lvl[i])
		if lvl[i].Seq() > maxSeq {
			maxSeq = lvl[i].Seq()
		}
		i++
	}
	return selected
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
