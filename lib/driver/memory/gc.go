package memory

import (
	"fmt"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/ValentinKolb/qKV/lib/driver/memory/internal"
)

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

// startGC starts one garbage collector goroutine per shard.
// If the GC is already running, this function does nothing.
func (d *MemoryDriver) startGC() {
	if !d.gcRunning.CompareAndSwap(false, true) {
		return
	}
	d.gcDone.Add(len(d.shards))
	for _, shard := range d.shards {
		go d.garbageCollector(shard)
	}
}

// stopGC stops the garbage collector and waits for all shard goroutines.
// The gc can't be started again after it has been stopped!
func (d *MemoryDriver) stopGC() {
	if d.gcRunning.CompareAndSwap(true, false) {
		for _, shard := range d.shards {
			shard.Events.Close()
		}
		d.gcDone.Wait()
	}
}

// garbageCollector is the gc loop of a single shard.
// WARNING: this method should never be called directly! Use startGC() and stopGC()
//
// The expire heap of the shard is only touched by this goroutine. Writers
// report changed entries through the event queue of the shard, so the heap
// needs no lock.
func (d *MemoryDriver) garbageCollector(shard *internal.Shard) {
	defer d.gcDone.Done()

	gcTimer := d.clock.Timer(d.gcInterval)
	defer gcTimer.Stop()

	for {
		select {
		case event, ok := <-shard.Events.Recv():
			if !ok {
				return
			}

			switch event.Type {
			case internal.EventTWrite:
				if entry, ok := shard.Data.Load(event.Key); ok && entry.ExpireAt != 0 {
					shard.ExpireHeap.AddItem(event.Key, uint64(entry.ExpireAt))
				} else {
					shard.ExpireHeap.RemoveByKey(event.Key)
				}
			case internal.EventTDelete:
				shard.ExpireHeap.RemoveByKey(event.Key)
			default:
				panic(fmt.Sprintf("unknown event %s", event))
			}

		case <-gcTimer.C:
			d.collect(shard)
			gcTimer.Reset(d.gcInterval)
		}
	}
}

// collect removes all expired entries of shard.
func (d *MemoryDriver) collect(shard *internal.Shard) {
	/*
		Note: now is read once per cycle so that entries expiring during the
		cycle do not keep the loop busy.
	*/
	now := d.now()

	for {
		item, exists := shard.ExpireHeap.Peek()
		if !exists || int64(item.Priority) > now {
			break
		}

		var removed bool
		shard.Data.Compute(item.Key, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
			if !loaded {
				return e, true
			}
			// the entry could have been rewritten in the meantime
			if !e.Expired(now) {
				return e, false
			}
			removed = true
			return internal.Entry{}, true
		})

		/*
			Note: the item is removed from the heap even if the entry was not
			deleted, otherwise it would be reprocessed forever. A rewritten entry
			has sent a new write event and is tracked again from there.
		*/
		shard.ExpireHeap.RemoveByKey(item.Key)

		if removed {
			Logger.Debugf("key %s expired", item.Key)
			d.notify(driver.WatchRemove, item.Key)
		}
	}
}
