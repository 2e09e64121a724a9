package engine

import (
	"io"
	"log"

	"github.com/Priyanshu23/FlashLogGo/internal/bloom"
	"github.com/Priyanshu23/FlashLogGo/internal/sst"
)

// Options holds the engine's tunables. The zero value is never used
// directly; Open always starts from defaultOptions() and applies any
// Option overrides on top, the way segmentmanager.DiskSegmentManagerOption
// layers over DiskSegmentManager's defaults in the teacher package.
type Options struct {
	// SSTableLimit is the memtable byte-size threshold (per
	// memtable.SkipList.SizeBytes) that triggers a flush to level 0.
	// Defaults to sst.MaxFileSize (16384), matching spec §6's SSTABLE_LIMIT.
	SSTableLimit int

	// BloomK is the number of hash probes per bloom filter insert/query.
	// Defaults to bloom.DefaultK (3).
	BloomK uint

	// Logger receives diagnostic events (open/recovery, flush,
	// compaction, GC). Defaults to a logger discarding its output.
	Logger *log.Logger
}

// Option configures an Engine at Open time.
type Option func(*Options)

// WithSSTableLimit overrides the memtable flush threshold, primarily
// useful in tests that want to exercise flush/compaction without
// constructing thousands of entries.
func WithSSTableLimit(n int) Option {
	return func(o *Options) { o.SSTableLimit = n }
}

// WithBloomK overrides the number of bloom hash probes per key.
func WithBloomK(k uint) Option {
	return func(o *Options) { o.BloomK = k }
}

// WithLogger injects a logger for engine diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func defaultOptions() Options {
	return Options{
		SSTableLimit: sst.MaxFileSize,
		BloomK:       bloom.DefaultK,
		Logger:       log.New(io.Discard, "", 0),
	}
}
