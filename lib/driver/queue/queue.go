package queue

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("queue")

const driverName = "queue"

// Queue is a driver that buffers writes and removes in memory and flushes them
// to the wrapped backend in batches. Reads are answered from the pending
// operations first and fall through to the backend for all other keys.
type Queue struct {
	backend driver.Driver
	caps    driver.Capabilities
	opts    Options
	metrics *queueMetrics
	seq     atomic.Uint64 // source of Operation.EnqueuedAt

	mu       sync.Mutex
	idle     *sync.Cond // broadcast whenever a flush ends
	table    *pendingTable
	inflight map[string]*Operation // operations of the running flush, still visible to reads
	state    state
	timer    *clock.Timer
	timerGen uint64
	disposed bool
}

// New creates a queue driver in front of backend with the specified options (optional).
// The capabilities of the backend are resolved once here.
//
// Usage:
//
//	q := queue.New(memory.NewMemoryDriver(nil), &queue.Options{
//		BatchSize:     50,
//		FlushInterval: 200 * time.Millisecond,
//		MaxQueueSize:  500,
//		MergeUpdates:  true,
//	})
//	defer q.Dispose()
func New(backend driver.Driver, opts *Options) *Queue {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := opts.normalize()

	q := &Queue{
		backend: backend,
		caps:    driver.CapabilitiesOf(backend),
		opts:    o,
		table:   newPendingTable(o.mergePolicy()),
	}
	q.idle = sync.NewCond(&q.mu)
	q.metrics = newQueueMetrics(backend.Name(), func() float64 {
		return float64(q.Pending())
	})

	Logger.Infof("queue created for %s (batch size %d, flush interval %s, max queue size %d, merge updates %t)",
		backend.Name(), o.BatchSize, o.FlushInterval, o.MaxQueueSize, o.MergeUpdates)
	return q
}

// Backend returns the wrapped driver.
func (q *Queue) Backend() driver.Driver {
	return q.backend
}

// Pending returns the number of keys waiting to be flushed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.table.len()
}

// Flush delivers all pending operations now and returns the backend error, if any.
// A flush that is already running is waited for first.
func (q *Queue) Flush() error {
	return q.forceFlush()
}

// enqueue adds op to the pending table and evaluates the flush triggers.
// After Dispose operations are silently dropped.
func (q *Queue) enqueue(op *Operation) {
	if op.Kind == OpSet && op.Value == nil {
		op.Value = []byte{}
	}

	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return
	}
	op.EnqueuedAt = q.seq.Add(1)
	if q.table.put(op) {
		q.metrics.enqueued.Inc()
	} else {
		q.metrics.dropped.Inc()
	}
	flushNow := q.afterEnqueueLocked()
	q.mu.Unlock()

	if flushNow {
		go q.backgroundFlush("threshold")
	}
}

// pending returns the queued operation for key.
func (q *Queue) pending(key string) (*Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lookupLocked(key)
}

// lookupLocked finds the latest operation for key in the table or in the
// running flush.
//
// Thread-safety: q.mu must be held.
func (q *Queue) lookupLocked(key string) (*Operation, bool) {
	if op, ok := q.table.lookup(key); ok {
		return op, true
	}
	op, ok := q.inflight[key]
	return op, ok
}

// pendingKeys returns the queued keys below base, split by operation kind.
// Operations of a running flush are included unless the table holds a newer one.
func (q *Queue) pendingKeys(base string) (sets, removes []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sets, removes = q.table.keysUnder(base)
	for key, op := range q.inflight {
		if _, newer := q.table.lookup(key); newer || !driver.PrefixMatch(key, base) {
			continue
		}
		switch op.Kind {
		case OpSet:
			sets = append(sets, key)
		case OpRemove:
			removes = append(removes, key)
		}
	}
	sort.Strings(sets)
	return sets, removes
}

// resolve answers a read from a pending operation.
func resolve(op *Operation) ([]byte, bool) {
	if op.Kind != OpSet {
		return nil, false
	}
	value := make([]byte, len(op.Value))
	copy(value, op.Value)
	return value, true
}

// --------------------------------------------------------------------------
// Interface Methods (docu see driver.Driver)
// --------------------------------------------------------------------------

func (q *Queue) Name() string {
	return driverName
}

func (q *Queue) Flags() driver.Flags {
	return q.backend.Flags()
}

func (q *Queue) SupportsFeature(feature driver.Feature) bool {
	return q.backend.SupportsFeature(feature)
}

func (q *Queue) Has(key string, opts driver.Options) (bool, error) {
	if op, ok := q.pending(key); ok {
		return op.Kind == OpSet, nil
	}
	return q.backend.Has(key, opts)
}

func (q *Queue) Get(key string, opts driver.Options) ([]byte, bool, error) {
	if op, ok := q.pending(key); ok {
		value, found := resolve(op)
		return value, found, nil
	}
	return q.backend.Get(key, opts)
}

func (q *Queue) GetRaw(key string, opts driver.Options) ([]byte, bool, error) {
	if op, ok := q.pending(key); ok {
		value, found := resolve(op)
		return value, found, nil
	}
	if q.caps.GetRaw {
		return q.backend.GetRaw(key, opts)
	}
	return q.backend.Get(key, opts)
}

// GetMany resolves queued keys locally and fetches the others from the backend.
// The result has the order of reqs.
func (q *Queue) GetMany(reqs []driver.GetRequest, common driver.Options) ([]driver.Item, error) {
	items := make([]driver.Item, len(reqs))
	var missing []int

	q.mu.Lock()
	for i, req := range reqs {
		items[i].Key = req.Key
		if op, ok := q.lookupLocked(req.Key); ok {
			items[i].Value, _ = resolve(op)
		} else {
			missing = append(missing, i)
		}
	}
	q.mu.Unlock()

	if len(missing) == 0 {
		return items, nil
	}

	if q.caps.GetMany {
		backendReqs := make([]driver.GetRequest, len(missing))
		for j, i := range missing {
			backendReqs[j] = reqs[i]
		}
		found, err := q.backend.GetMany(backendReqs, common)
		if err != nil {
			return nil, err
		}
		values := make(map[string][]byte, len(found))
		for _, it := range found {
			values[it.Key] = it.Value
		}
		for _, i := range missing {
			items[i].Value = values[reqs[i].Key]
		}
		return items, nil
	}

	var g errgroup.Group
	for _, i := range missing {
		g.Go(func() error {
			value, found, err := q.backend.Get(reqs[i].Key, common.Merge(reqs[i].Options))
			if err != nil {
				return err
			}
			if found {
				items[i].Value = value
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// GetMeta is passed through, metadata of queued writes is not synthesized.
func (q *Queue) GetMeta(key string, opts driver.Options) (driver.Meta, bool, error) {
	if !q.caps.GetMeta {
		return driver.Meta{}, false, nil
	}
	return q.backend.GetMeta(key, opts)
}

// GetKeys returns the backend keys below base plus the queued writes below
// base, without the keys that have a queued remove.
func (q *Queue) GetKeys(base string, opts driver.Options) ([]string, error) {
	// pending first, a flush finishing during the backend call must not hide its keys
	sets, removes := q.pendingKeys(base)

	backendKeys, err := q.backend.GetKeys(base, opts)
	if err != nil {
		return nil, err
	}

	removed := make(map[string]struct{}, len(removes))
	for _, k := range removes {
		removed[k] = struct{}{}
	}

	// queued keys are depth filtered only when the backend filters its own
	depth := 0
	if q.backend.Flags().MaxDepth {
		depth, _ = opts.Int(driver.OptMaxDepth)
	}
	seen := make(map[string]struct{}, len(backendKeys)+len(sets))
	keys := make([]string, 0, len(backendKeys)+len(sets))
	add := func(k string) {
		if _, gone := removed[k]; gone {
			return
		}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for _, k := range backendKeys {
		add(k)
	}
	for _, k := range sets {
		if driver.WithinDepth(k, base, depth) {
			add(k)
		}
	}
	return keys, nil
}

func (q *Queue) Set(key string, value []byte, opts driver.Options) error {
	if !q.caps.Set {
		return nil
	}
	q.enqueue(&Operation{Kind: OpSet, Key: key, Value: copyBytes(value), Options: opts})
	return nil
}

func (q *Queue) SetMany(items []driver.Item, common driver.Options) error {
	if !q.caps.Set {
		return nil
	}
	for _, it := range items {
		q.enqueue(&Operation{Kind: OpSet, Key: it.Key, Value: copyBytes(it.Value), Options: common.Merge(it.Options)})
	}
	return nil
}

func (q *Queue) SetRaw(key string, value []byte, opts driver.Options) error {
	if !q.caps.Set && !q.caps.SetRaw {
		return nil
	}
	q.enqueue(&Operation{Kind: OpSet, Key: key, Value: copyBytes(value), Options: opts, IsRaw: true})
	return nil
}

func (q *Queue) Remove(key string, opts driver.Options) error {
	if !q.caps.Remove {
		return nil
	}
	q.enqueue(&Operation{Kind: OpRemove, Key: key, Options: opts})
	return nil
}

// Clear flushes the pending operations first, so that no queued write lands
// after the clear, and then clears the backend. Backends without a native
// clear get every key below base removed one by one.
func (q *Queue) Clear(base string, opts driver.Options) error {
	if err := q.forceFlush(); err != nil {
		return err
	}

	if q.caps.Clear {
		return q.backend.Clear(base, opts)
	}

	if !q.caps.Remove || !q.caps.GetKeys {
		return nil
	}
	keys, err := q.backend.GetKeys(base, opts)
	if err != nil {
		return err
	}

	// every key is attempted, failures are collected
	var g multierror.Group
	for _, k := range keys {
		g.Go(func() error {
			return q.backend.Remove(k, opts)
		})
	}
	return g.Wait().ErrorOrNil()
}

// Watch is passed through to the backend.
func (q *Queue) Watch(cb driver.WatchCallback) (driver.Unwatch, error) {
	if !q.caps.Watch {
		return driver.NoopUnwatch, nil
	}
	return q.backend.Watch(cb)
}

// Dispose cancels the debounce timer, waits for a running flush, delivers the
// remaining operations and disposes the backend. Writes arriving after Dispose
// started are ignored. The backend is disposed even if the final flush failed,
// both errors are returned.
func (q *Queue) Dispose() error {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return nil
	}
	q.disposed = true
	q.cancelTimerLocked()
	for q.state == stateFlushing {
		q.idle.Wait()
	}
	var ops []*Operation
	if q.table.len() > 0 {
		ops = q.beginFlushLocked()
	}
	q.mu.Unlock()

	var flushErr error
	if ops != nil {
		flushErr = q.deliver(ops)
		q.endFlush()
	}

	Logger.Infof("queue for %s disposed", q.backend.Name())
	return driver.JoinErrors(flushErr, q.backend.Dispose())
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
