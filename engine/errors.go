package engine

import "errors"

// Sentinel errors for the taxonomy described in spec §7. I/O failures
// from the underlying packages are propagated wrapped (%w), so callers
// can still errors.Is against os.ErrNotExist etc.; these three name the
// engine-level failure modes that aren't simple I/O errors. Only ErrClosed
// is returned by engine operations; the other two are declared but no
// engine code path returns them.
var (
	// ErrClosed is returned by any operation attempted after Close.
	ErrClosed = errors.New("engine: closed")

	// ErrCorruptVLogRecord names a magic or checksum mismatch found
	// outside of open-time recovery. Get and Scan do not return it: such
	// a mismatch reaches the caller as a wrapped vlog.ErrCorruptRecord,
	// fatal to the calling operation and not retried.
	ErrCorruptVLogRecord = errors.New("engine: corrupt vlog record")

	// ErrInconsistentIndex names the case where an SST's binary search
	// reports a key present but the referenced vLog read fails or
	// mismatches. Get and Scan do not return it: they return the wrapped
	// vLog read error instead.
	ErrInconsistentIndex = errors.New("engine: sst index inconsistent with vlog")
)
