package memory

import (
	"github.com/ValentinKolb/qKV/lib/driver"
)

// notice is a change waiting to be delivered to the watchers.
type notice struct {
	event driver.WatchEvent
	key   string
}

// Watch registers cb for every update and remove of a key. Callbacks run on a
// single dispatcher goroutine in the order the changes happened and must not
// block for long.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (d *MemoryDriver) Watch(cb driver.WatchCallback) (driver.Unwatch, error) {
	if d.disposed.Load() {
		return nil, driver.ErrDisposed
	}
	id := d.watcherSeq.Add(1)
	d.watchers.Store(id, cb)

	return func() error {
		d.watchers.Delete(id)
		return nil
	}, nil
}

// notify queues a change for the watchers. Writes never wait for callbacks.
func (d *MemoryDriver) notify(event driver.WatchEvent, key string) {
	if d.watchers.Size() == 0 {
		return
	}
	d.notices.Push(&notice{event: event, key: key})
}

// dispatchNotices delivers queued changes until the notice queue is closed.
func (d *MemoryDriver) dispatchNotices() {
	defer d.noticeDone.Done()
	for n := range d.notices.Recv() {
		d.watchers.Range(func(_ uint64, cb driver.WatchCallback) bool {
			cb(n.event, n.key)
			return true
		})
	}
}
