// Package vlog implements the value log: an append-only file of framed
// records holding (checksum, key, value-length, value-bytes). Keys and
// index metadata live in SSTs; only values live here, so SSTs stay small
// and merges never have to copy value bytes (the WiscKey separation).
package vlog

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/Priyanshu23/FlashLogGo/internal/xhash"
)

const (
	// Magic marks the start of every record; recovery scans for it
	// byte-by-byte when the checksum at a candidate offset doesn't
	// check out.
	Magic = 0xFF

	// PrefixSize is magic(1) + checksum(2) + key(8) + valueLen(4).
	PrefixSize = 15
)

// Log is the append-only value log file. It tracks head (the logical end
// of the file) and tail (the first live byte) so callers can compute how
// much of the file is reclaimable.
type Log struct {
	f    *os.File
	path string
	head uint64
	tail uint64
}

// Open opens (creating if necessary) the value log at path and recovers
// head/tail by scanning from the first allocated block forward to the
// first record whose checksum validates. Bytes below the recovered tail
// are considered garbage left over from a prior GC hole-punch or a torn
// write and are never trusted.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("vlog: open %s: %w", path, err)
	}

	l := &Log{f: f, path: path}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("vlog: stat %s: %w", path, err)
	}
	l.head = uint64(info.Size())

	tail, err := seekFirstLive(f, l.head)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("vlog: seek first live: %w", err)
	}

	tail, err = l.recoverTail(tail)
	if err != nil {
		f.Close()
		return nil, err
	}
	l.tail = tail

	return l, nil
}

// recoverTail scans forward from candidate, skipping bytes until it finds
// a magic byte whose record checksum validates, or reaches head. This is
// the torn-write/hole-punch recovery described in the spec: GC punches
// holes on block boundaries, so the true live prefix may start mid-block
// with arbitrary garbage that must be skipped deterministically.
func (l *Log) recoverTail(candidate uint64) (uint64, error) {
	buf := make([]byte, PrefixSize)
	for candidate < l.head {
		n, err := l.f.ReadAt(buf, int64(candidate))
		if err != nil && err != io.EOF {
			return 0, fmt.Errorf("vlog: recovery read at %d: %w", candidate, err)
		}
		if n < 1 {
			return l.head, nil
		}
		if buf[0] != Magic {
			candidate++
			continue
		}
		if uint64(n) < PrefixSize {
			// Truncated prefix: cannot be a valid record.
			candidate++
			continue
		}

		key := binary.LittleEndian.Uint64(buf[3:11])
		valueLen := binary.LittleEndian.Uint32(buf[11:15])
		recordLen := uint64(PrefixSize) + uint64(valueLen)
		if candidate+recordLen > l.head {
			candidate++
			continue
		}

		value := make([]byte, valueLen)
		if valueLen > 0 {
			if _, err := l.f.ReadAt(value, int64(candidate)+PrefixSize); err != nil {
				return 0, fmt.Errorf("vlog: recovery read value at %d: %w", candidate, err)
			}
		}

		storedChecksum := binary.LittleEndian.Uint16(buf[1:3])
		if xhash.Checksum16(key, valueLen, value) == storedChecksum {
			return candidate, nil
		}

		candidate++
	}
	return l.head, nil
}

// Append writes one framed record at the current end of the log and
// returns its starting offset (the offset of its magic byte).
func (l *Log) Append(key uint64, value []byte) (uint64, error) {
	valueLen := uint32(len(value))
	record := make([]byte, PrefixSize+len(value))
	record[0] = Magic
	binary.LittleEndian.PutUint16(record[1:3], xhash.Checksum16(key, valueLen, value))
	binary.LittleEndian.PutUint64(record[3:11], key)
	binary.LittleEndian.PutUint32(record[11:15], valueLen)
	copy(record[PrefixSize:], value)

	offset := l.head
	n, err := l.f.WriteAt(record, int64(offset))
	if err != nil {
		return 0, fmt.Errorf("vlog: append at %d: %w", offset, err)
	}
	if n != len(record) {
		return 0, fmt.Errorf("vlog: short write at %d: wrote %d of %d bytes", offset, n, len(record))
	}
	l.head += uint64(len(record))
	return offset, nil
}

// Sync fsyncs the value log file. Callers should sync the vLog before
// writing the SST that references its new records, so a crash never
// leaves an SST pointing at an offset that was never durably written.
func (l *Log) Sync() error {
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("vlog: sync: %w", err)
	}
	return nil
}

// Read returns the value bytes of the record starting at offset, given
// its value length (as recorded in the referencing SST's index entry).
func (l *Log) Read(offset uint64, valueLen uint32) ([]byte, error) {
	buf := make([]byte, PrefixSize+int(valueLen))
	if _, err := l.f.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("vlog: read at %d: %w", offset, err)
	}
	if buf[0] != Magic {
		return nil, fmt.Errorf("vlog: record at %d: %w", offset, ErrCorruptRecord)
	}
	key := binary.LittleEndian.Uint64(buf[3:11])
	gotLen := binary.LittleEndian.Uint32(buf[11:15])
	if gotLen != valueLen {
		return nil, fmt.Errorf("vlog: record at %d: value length mismatch: index says %d, record says %d", offset, valueLen, gotLen)
	}
	value := buf[PrefixSize:]
	storedChecksum := binary.LittleEndian.Uint16(buf[1:3])
	if xhash.Checksum16(key, valueLen, value) != storedChecksum {
		return nil, fmt.Errorf("vlog: record at %d: %w", offset, ErrCorruptRecord)
	}
	return append([]byte(nil), value...), nil
}

// ReadMagicAt reads the single byte at offset, so a caller can check for
// the start of a record without reading a whole prefix speculatively.
func (l *Log) ReadMagicAt(offset uint64) (byte, error) {
	var b [1]byte
	if _, err := l.f.ReadAt(b[:], int64(offset)); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadRecordAt reads a full record (prefix + value) at offset, returning
// the key, value, and total record length. Used by GC, which must parse
// records sequentially from the tail without already knowing valueLen.
func (l *Log) ReadRecordAt(offset uint64) (key uint64, value []byte, recordLen uint64, err error) {
	var prefix [PrefixSize]byte
	if _, err = l.f.ReadAt(prefix[:], int64(offset)); err != nil {
		return 0, nil, 0, fmt.Errorf("vlog: GC read prefix at %d: %w", offset, err)
	}
	if prefix[0] != Magic {
		return 0, nil, 0, fmt.Errorf("vlog: GC record at %d: %w", offset, ErrCorruptRecord)
	}
	key = binary.LittleEndian.Uint64(prefix[3:11])
	valueLen := binary.LittleEndian.Uint32(prefix[11:15])
	value = make([]byte, valueLen)
	if valueLen > 0 {
		if _, err = l.f.ReadAt(value, int64(offset)+PrefixSize); err != nil {
			return 0, nil, 0, fmt.Errorf("vlog: GC read value at %d: %w", offset, err)
		}
	}
	storedChecksum := binary.LittleEndian.Uint16(prefix[1:3])
	if xhash.Checksum16(key, valueLen, value) != storedChecksum {
		return 0, nil, 0, fmt.Errorf("vlog: GC record at %d: %w", offset, ErrCorruptRecord)
	}
	return key, value, uint64(PrefixSize) + uint64(valueLen), nil
}

// EndOffset returns the current logical head (end of file).
func (l *Log) EndOffset() uint64 { return l.head }

// Tail returns the first live byte offset.
func (l *Log) Tail() uint64 { return l.tail }

// AdvanceTail moves the tail forward by n bytes and punches a hole
// covering the reclaimed prefix [oldTail, oldTail+n).
func (l *Log) AdvanceTail(n uint64) error {
	if n == 0 {
		return nil
	}
	if err := punchHole(l.f, int64(l.tail), int64(n)); err != nil {
		return fmt.Errorf("vlog: punch hole [%d, %d): %w", l.tail, l.tail+n, err)
	}
	l.tail += n
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	return l.f.Close()
}

// ErrCorruptRecord indicates a magic or checksum mismatch encountered
// outside of recovery, which should not occur when the engine is the
// sole writer. The engine's Get and Scan return it (wrapped) as a fatal
// error; GC instead treats it as the end of the region it walks.
var ErrCorruptRecord = fmt.Errorf("vlog: corrupt record")
