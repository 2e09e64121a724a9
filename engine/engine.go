// Package engine implements the top-level LSM coordinator: it owns the
// memtable and the leveled vector of SSTs, and drives put, get, scan,
// del, gc, reset, and crash-recovery on open. The four leaf subsystems
// (hash/checksum, bloom filter, value log, SST) live under internal/ and
// never reference the engine back — levels own SSTs linearly, and SSTs
// reference the shared value log only by path, so there are no cyclic
// structures for the engine to worry about at shutdown.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Priyanshu23/FlashLogGo/internal/memtable"
	"github.com/Priyanshu23/FlashLogGo/internal/sst"
	"github.com/Priyanshu23/FlashLogGo/internal/vlog"
)

// Engine is the store's single entry point. It assumes exclusive,
// single-threaded access (see spec §5); no internal locking is done.
type Engine struct {
	opts     Options
	dir      string
	vlogPath string

	mem     *memtable.SkipList
	levels  [][]*sst.Table
	nextSeq uint64

	vl     *vlog.Log
	closed bool
}

// Open opens or creates the store rooted at dir, with its value log at
// vlogPath, recovering both the vLog's live region and every on-disk SST.
func Open(dir, vlogPath string, options ...Option) (*Engine, error) {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: mkdir %s: %w", dir, err)
	}

	vl, err := vlog.Open(vlogPath)
	if err != nil {
		return nil, fmt.Errorf("engine: open vlog: %w", err)
	}

	e := &Engine{
		opts:     opts,
		dir:      dir,
		vlogPath: vlogPath,
		mem:      memtable.New(),
		vl:       vl,
	}

	if err := e.recoverSSTs(); err != nil {
		vl.Close()
		return nil, err
	}

	opts.Logger.Printf("engine opened: dir=%s vlog_tail=%d vlog_head=%d next_seq=%d",
		dir, vl.Tail(), vl.EndOffset(), e.nextSeq)

	return e, nil
}

// recoverSSTs scans dir for "<level>-<id>.sst" files, loads each, groups
// them by level sorted by id ascending, and derives nextSeq as one past
// the highest seq observed across every table.
func (e *Engine) recoverSSTs() error {
	dirEntries, err := os.ReadDir(e.dir)
	if err != nil {
		return fmt.Errorf("engine: read dir %s: %w", e.dir, err)
	}

	type found struct {
		level, id int
		tbl       *sst.Table
	}
	var all []found
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		level, id, ok := sst.ParseFilename(de.Name())
		if !ok {
			continue
		}
		tbl, err := sst.Load(e.dir, level, id)
		if err != nil {
			return fmt.Errorf("engine: load %s: %w", de.Name(), err)
		}
		all = append(all, found{level, id, tbl})
	}

	maxLevel := -1
	for _, f := range all {
		if f.level > maxLevel {
			maxLevel = f.level
		}
	}
	if maxLevel >= 0 {
		e.levels = make([][]*sst.Table, maxLevel+1)
	}
	for _, f := range all {
		e.levels[f.level] = append(e.levels[f.level], f.tbl)
	}

	var maxSeq uint64
	anySST := false
	for _, lvl := range e.levels {
		sort.Slice(lvl, func(i, j int) bool { return lvl[i].ID() < lvl[j].ID() })
		for _, t := range lvl {
			if !anySST || t.Seq() > maxSeq {
				maxSeq = t.Seq()
			}
			anySST = true
		}
	}
	if anySST {
		e.nextSeq = maxSeq + 1
	} else {
		e.nextSeq = 0
	}
	return nil
}

func (e *Engine) ensureLevel(l int) {
	for len(e.levels) <= l {
		e.levels = append(e.levels, nil)
	}
}

// Put writes key→value, flushing the memtable first if it has grown past
// the configured limit, and triggering any compactions that flush left
// overdue.
func (e *Engine) Put(key uint64, value []byte) error {
	return e.putValue(key, memtable.Value{Bytes: append([]byte(nil), value...)})
}

func (e *Engine) putValue(key uint64, v memtable.Value) error {
	if e.closed {
		return ErrClosed
	}
	if e.mem.SizeBytes() >= e.opts.SSTableLimit {
		if err := e.flush(); err != nil {
			return err
		}
	}
	if err := e.maybeCompact(); err != nil {
		return err
	}
	e.mem.Put(key, v)
	return nil
}

// flush freezes the current memtable into a new level-0 SST and starts a
// fresh empty memtable. It is a no-op if the memtable is empty.
func (e *Engine) flush() error {
	if e.mem.NumEntries() == 0 {
		return nil
	}

	e.ensureLevel(0)
	id := len(e.levels[0])
	seq := e.nextSeq

	tbl, err := memtable.FlushIntoSST(e.mem, e.vl, e.dir, 0, id, seq, e.opts.BloomK)
	if err != nil {
		return fmt.Errorf("engine: flush: %w", err)
	}
	if tbl == nil {
		return nil
	}

	e.nextSeq++
	e.levels[0] = append(e.levels[0], tbl)
	e.mem = memtable.New()

	e.opts.Logger.Printf("flushed memtable: level=0 id=%d seq=%d entries=%d", id, seq, tbl.NumKV())

	return nil
}

// maybeCompact runs a compaction on every level whose table count has
// exceeded its capacity, cascading: compacting level L can push level
// L+1 over its own cap, and since the loop re-reads len(e.levels) on
// every iteration, a newly-created deeper level is checked in the same
// call.
func (e *Engine) maybeCompact() error {
	for l := 0; l < len(e.levels); l++ {
		if len(e.levels[l]) > levelCapacity(l) {
			if err := e.compactLevel(l); err != nil {
				return fmt.Errorf("engine: compact level %d: %w", l, err)
			}
		}
	}
	return nil
}

// levelCapacity is 2^(L+2). The shift amount is parenthesised
// explicitly: in Go, "1 << level + 2" would parse as (1 << level) + 2.
func levelCapacity(level int) int {
	return 1 << uint(level+2)
}

// Get returns key's value, or a nil slice if key is absent or deleted.
func (e *Engine) Get(key uint64) ([]byte, error) {
	if e.closed {
		return nil, ErrClosed
	}

	if v, ok := e.mem.Get(key); ok {
		if v.Tombstone {
			return nil, nil
		}
		return append([]byte(nil), v.Bytes...), nil
	}

	for l := 0; l < len(e.levels); l++ {
		lvl := e.levels[l]
		for i := len(lvl) - 1; i >= 0; i-- {
			t := lvl[i]
			if !t.Query(key) {
				continue
			}
			v, found, tomb, err := t.Get(key, e.vl)
			if err != nil {
				return nil, fmt.Errorf("engine: get key %d: %w", key, err)
			}
			if !found {
				continue
			}
			if tomb {
				return nil, nil
			}
			return v, nil
		}
	}
	return nil, nil
}

// Del marks key as deleted, returning false if key was not live.
func (e *Engine) Del(key uint64) (bool, error) {
	if e.closed {
		return false, ErrClosed
	}
	v, err := e.Get(key)
	if err != nil {
		return false, err
	}
	if len(v) == 0 {
		return false, nil
	}
	if err := e.putValue(key, memtable.Value{Tombstone: true}); err != nil {
		return false, err
	}
	return true, nil
}

// Reset deletes every SST and the value log, and starts the store over
// with a fresh empty memtable and next_seq reset to 0 (per spec §9's
// Design Note on reset's sequence-number behavior).
func (e *Engine) Reset() error {
	if e.closed {
		return ErrClosed
	}

	for _, lvl := range e.levels {
		for _, t := range lvl {
			if err := t.DeleteDisk(); err != nil {
				return fmt.Errorf("engine: reset: %w", err)
			}
		}
	}

	if err := e.vl.Close(); err != nil {
		return fmt.Errorf("engine: reset: close vlog: %w", err)
	}

	if dirEntries, err := os.ReadDir(e.dir); err == nil {
		for _, de := range dirEntries {
			_ = os.Remove(filepath.Join(e.dir, de.Name()))
		}
	}
	if err := os.Remove(e.vlogPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("engine: reset: remove vlog: %w", err)
	}

	vl, err := vlog.Open(e.vlogPath)
	if err != nil {
		return fmt.Errorf("engine: reset: reopen vlog: %w", err)
	}

	e.vl = vl
	e.levels = nil
	e.mem = memtable.New()
	e.nextSeq = 0

	e.opts.Logger.Printf("engine reset")
	return nil
}

// Close flushes any residual memtable entries to a final level-0 SST so
// no acknowledged write is lost, then releases the value log. Close is
// idempotent.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	if err := e.flush(); err != nil {
		return err
	}
	e.closed = true
	if err := e.vl.Close(); err != nil {
		return fmt.Errorf("engine: close: %w", err)
	}
	e.opts.Logger.Printf("engine closed")
	return nil
}
