package queue

import (
	"time"

	"github.com/ValentinKolb/qKV/lib/driver"
	"golang.org/x/sync/errgroup"
)

// --------------------------------------------------------------------------
// Flush Executor
// --------------------------------------------------------------------------

// flush drains the pending table into the backend.
// It is a no-op if a flush is already running, the table is empty or the queue
// is disposed. Operations are removed from the table before the backend is
// called, so a failed flush loses them.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Queue) flush() error {
	q.mu.Lock()
	if q.state == stateFlushing || q.disposed || q.table.len() == 0 {
		q.mu.Unlock()
		return nil
	}
	ops := q.beginFlushLocked()
	q.mu.Unlock()

	defer q.endFlush()
	return q.deliver(ops)
}

// forceFlush waits for a running flush to finish and then drains the table.
// Unlike flush it does not skip when another flush is in progress.
func (q *Queue) forceFlush() error {
	q.mu.Lock()
	for q.state == stateFlushing {
		q.idle.Wait()
	}
	if q.table.len() == 0 {
		q.mu.Unlock()
		return nil
	}
	ops := q.beginFlushLocked()
	q.mu.Unlock()

	defer q.endFlush()
	return q.deliver(ops)
}

// beginFlushLocked moves the queue into the flushing state and sweeps the table.
// The swept operations stay readable until endFlush.
//
// Thread-safety: q.mu must be held.
func (q *Queue) beginFlushLocked() []*Operation {
	q.cancelTimerLocked()
	q.state = stateFlushing

	ops := q.table.drain()
	q.inflight = make(map[string]*Operation, len(ops))
	for _, op := range ops {
		q.inflight[op.Key] = op
	}
	return ops
}

// endFlush leaves the flushing state and re-arms the timer for writes that
// arrived during the flush.
func (q *Queue) endFlush() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.state = stateIdle
	q.inflight = nil
	if q.table.len() > 0 && !q.disposed {
		q.armTimerLocked()
	}
	q.idle.Broadcast()
}

// deliver sends the drained operations to the backend. Sets are delivered
// before removes. The first backend error aborts the delivery.
func (q *Queue) deliver(ops []*Operation) (err error) {
	start := time.Now()
	defer func() {
		q.metrics.flushes.Inc()
		q.metrics.duration.UpdateDuration(start)
		if err != nil {
			q.metrics.flushErrors.Inc()
		} else {
			q.metrics.flushedOps.Add(len(ops))
		}
	}()

	sets, removes := partition(ops)
	Logger.Debugf("flushing %d sets and %d removes to %s", len(sets), len(removes), q.backend.Name())

	if len(sets) > 0 {
		if err := q.deliverSets(sets); err != nil {
			return err
		}
	}
	if len(removes) > 0 {
		if err := q.deliverRemoves(removes); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) deliverSets(sets []*Operation) error {
	// one bulk call if the backend can take it and no raw value needs its own entry point
	if q.caps.SetMany && len(sets) > 1 && !containsRaw(sets) {
		items := make([]driver.Item, len(sets))
		for i, op := range sets {
			items[i] = driver.Item{Key: op.Key, Value: op.Value, Options: op.Options}
		}
		return q.backend.SetMany(items, nil)
	}

	var g errgroup.Group
	for _, op := range sets {
		switch {
		case op.IsRaw && q.caps.SetRaw:
			g.Go(func() error { return q.backend.SetRaw(op.Key, op.Value, op.Options) })
		case q.caps.Set:
			g.Go(func() error { return q.backend.Set(op.Key, op.Value, op.Options) })
		default:
			// backend can not write this shape, skip silently
		}
	}
	return g.Wait()
}

func (q *Queue) deliverRemoves(removes []*Operation) error {
	if !q.caps.Remove {
		return nil
	}

	var g errgroup.Group
	for _, op := range removes {
		g.Go(func() error { return q.backend.Remove(op.Key, op.Options) })
	}
	return g.Wait()
}

func containsRaw(ops []*Operation) bool {
	for _, op := range ops {
		if op.IsRaw {
			return true
		}
	}
	return false
}
