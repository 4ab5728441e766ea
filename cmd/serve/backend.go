package serve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/ValentinKolb/qKV/lib/driver/lru"
	"github.com/ValentinKolb/qKV/lib/driver/memory"
	"github.com/ValentinKolb/qKV/lib/driver/pebble"
	"github.com/ValentinKolb/qKV/lib/driver/queue"
	"github.com/ValentinKolb/qKV/rpc/common"
)

// backend is the driver stack a server runs on
type backend struct {
	driver   driver.Driver       // outermost driver (the queue if enabled)
	queue    *queue.Queue        // nil if the queue is disabled
	memory   *memory.MemoryDriver // nil unless the memory backend is used
	snapshot string
}

// openBackend creates the backend driver of conf and wraps it in a queue if enabled.
// A memory backend is restored from the snapshot file if one exists.
func openBackend(conf *common.ServerConfig) (*backend, error) {
	b := &backend{}

	var d driver.Driver
	switch conf.Backend {
	case common.BackendMemory:
		b.memory = memory.NewMemoryDriver(nil)
		b.snapshot = conf.SnapshotFile
		if err := b.loadSnapshot(); err != nil {
			_ = b.memory.Dispose()
			return nil, err
		}
		d = b.memory
	case common.BackendPebble:
		p, err := pebble.NewPebbleDriver(pebble.Options{Dir: conf.DataDir})
		if err != nil {
			return nil, err
		}
		d = p
	case common.BackendLRU:
		l, err := lru.NewLRUDriver(conf.LRUSize)
		if err != nil {
			return nil, err
		}
		d = l
	default:
		return nil, fmt.Errorf("invalid driver: %s (expected one of: memory, pebble, lru)", conf.Backend)
	}

	b.driver = d
	if conf.Queue.Enabled {
		b.queue = queue.New(d, &queue.Options{
			BatchSize:     conf.Queue.BatchSize,
			FlushInterval: conf.Queue.FlushInterval(),
			MaxQueueSize:  conf.Queue.MaxQueueSize,
			MergeUpdates:  conf.Queue.MergeUpdates,
		})
		b.driver = b.queue
	}
	return b, nil
}

// loadSnapshot restores the memory backend from the snapshot file. A missing file is not an error.
func (b *backend) loadSnapshot() error {
	if b.memory == nil || b.snapshot == "" {
		return nil
	}
	f, err := os.Open(b.snapshot)
	if errors.Is(err, os.ErrNotExist) {
		Logger.Infof("no snapshot found at %s, starting empty", b.snapshot)
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := b.memory.Load(f); err != nil {
		return fmt.Errorf("failed to load snapshot %s: %w", b.snapshot, err)
	}
	Logger.Infof("restored %d keys from %s", b.memory.Len(), b.snapshot)
	return nil
}

// close delivers all queued writes, saves the snapshot and disposes the stack
func (b *backend) close() error {
	var flushErr, saveErr error
	if b.queue != nil {
		flushErr = b.queue.Flush()
	}
	saveErr = b.saveSnapshot()
	return driver.JoinErrors(flushErr, saveErr, b.driver.Dispose())
}

// saveSnapshot writes the memory backend to a temporary file next to the
// snapshot and renames it into place.
func (b *backend) saveSnapshot() error {
	if b.memory == nil || b.snapshot == "" {
		return nil
	}
	f, err := os.CreateTemp(filepath.Dir(b.snapshot), filepath.Base(b.snapshot)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := b.memory.Save(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(f.Name(), b.snapshot); err != nil {
		return err
	}
	Logger.Infof("saved %d keys to %s", b.memory.Len(), b.snapshot)
	return nil
}
