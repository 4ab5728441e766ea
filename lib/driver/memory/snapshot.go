package memory

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/ValentinKolb/qKV/lib/driver/memory/internal"
)

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

const (
	magicNum        = "QKVMEM\x00\x00" // File format identifier
	snapshotVersion = 1                // Snapshot format version

	maxEntryHint = 1 << 16 // upper bound for preallocating entries from the stored count
)

type snapshotEntry struct {
	key   string
	entry internal.Entry
}

// Save writes all live entries to w.
//
// Format (little endian): magic, version (uint8), entry count (uint64), then
// per entry: key length (uint32), key, mtime (int64), expire at (int64),
// value length (uint32), value.
//
// Thread-safety: Writes may run during Save. The snapshot is fuzzy, it does not
// represent a consistent cut of the driver.
func (d *MemoryDriver) Save(w io.Writer) error {
	if d.disposed.Load() {
		return driver.ErrDisposed
	}

	// collect a copy of every live entry first, so that writing does not hold up the shards
	now := d.now()
	var entries []snapshotEntry
	for _, shard := range d.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			if entry.Expired(now) {
				return true
			}
			value := make([]byte, len(entry.Value))
			copy(value, entry.Value)
			entries = append(entries, snapshotEntry{key: key, entry: internal.Entry{
				Value:    value,
				MTime:    entry.MTime,
				ExpireAt: entry.ExpireAt,
			}})
			return true
		})
	}

	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, item := range entries {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(item.key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.entry.MTime); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.entry.ExpireAt); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.entry.Value))); err != nil {
			return err
		}
		if _, err := bw.Write(item.entry.Value); err != nil {
			return err
		}
	}

	Logger.Infof("saved snapshot with %d entries", len(entries))
	return bw.Flush()
}

// Load replaces the content of the driver with a snapshot written by Save.
// Entries that expired since the snapshot was taken are skipped. Watchers are
// not notified.
//
// Thread-safety: This method must not run concurrently with writes.
func (d *MemoryDriver) Load(r io.Reader) error {
	if d.disposed.Load() {
		return driver.ErrDisposed
	}

	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != snapshotVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, snapshotVersion)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// decode everything before touching the shards, a broken snapshot leaves the driver unchanged
	entries := make([]snapshotEntry, 0, min(count, maxEntryHint))
	for i := uint64(0); i < count; i++ {
		key, err := readChunk(br)
		if err != nil {
			return fmt.Errorf("entry %d: key: %w", i, err)
		}

		var entry internal.Entry
		if err := binary.Read(br, binary.LittleEndian, &entry.MTime); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if err := binary.Read(br, binary.LittleEndian, &entry.ExpireAt); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}

		if entry.Value, err = readChunk(br); err != nil {
			return fmt.Errorf("entry %d: value: %w", i, err)
		}

		entries = append(entries, snapshotEntry{key: string(key), entry: entry})
	}

	for _, shard := range d.shards {
		shard.Data.Clear()
	}

	now := d.now()
	loaded := 0
	for _, item := range entries {
		if item.entry.Expired(now) {
			continue
		}
		shard := d.shard(item.key)
		shard.Data.Store(item.key, item.entry)
		if item.entry.ExpireAt != 0 {
			shard.Events.Push(&internal.Event{Type: internal.EventTWrite, Key: item.key})
		}
		loaded++
	}

	Logger.Infof("loaded snapshot with %d entries (%d expired)", loaded, len(entries)-loaded)
	return nil
}

// readChunk reads a uint32 length followed by that many bytes. The buffer grows
// with the data actually read, a bogus length ends in io.ErrUnexpectedEOF.
func readChunk(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}
