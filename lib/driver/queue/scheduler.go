package queue

// --------------------------------------------------------------------------
// Flush Scheduler
// --------------------------------------------------------------------------

// state is the scheduler state of a queue.
//
// Transitions:
//
//	Idle       -> TimerArmed  debounce timer armed after an enqueue
//	Idle       -> Flushing    batch size or hard cap reached
//	TimerArmed -> Flushing    timer fired or threshold reached (the timer is cancelled)
//	TimerArmed -> Idle        timer cancelled without a flush (Dispose)
//	Flushing   -> Idle        drain finished, table empty
//	Flushing   -> TimerArmed  drain finished, writes arrived in the meantime
type state uint8

const (
	stateIdle state = iota
	stateTimerArmed
	stateFlushing
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateTimerArmed:
		return "timer-armed"
	case stateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// afterEnqueueLocked evaluates the flush triggers after the table changed.
// It returns true if the caller has to start a flush once the lock is released.
//
// Thread-safety: q.mu must be held.
func (q *Queue) afterEnqueueLocked() (flushNow bool) {
	size := q.table.len()

	if size >= q.opts.BatchSize {
		q.cancelTimerLocked()
		flushNow = true
	} else {
		q.armTimerLocked()
	}

	// safety valve against unbounded growth, the flush guard serializes it with other triggers
	if size >= q.opts.MaxQueueSize {
		flushNow = true
	}
	return flushNow
}

// armTimerLocked arms the debounce timer if the queue is idle.
//
// Thread-safety: q.mu must be held.
func (q *Queue) armTimerLocked() {
	if q.state != stateIdle || q.disposed {
		return
	}

	q.timerGen++
	gen := q.timerGen
	q.timer = q.opts.Clock.AfterFunc(q.opts.FlushInterval, func() {
		q.onTimer(gen)
	})
	q.state = stateTimerArmed
}

// cancelTimerLocked stops an armed timer.
//
// Thread-safety: q.mu must be held.
func (q *Queue) cancelTimerLocked() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	// invalidates a callback that already fired but has not acquired the lock yet
	q.timerGen++
	if q.state == stateTimerArmed {
		q.state = stateIdle
	}
}

// onTimer is the callback of the debounce timer.
func (q *Queue) onTimer(gen uint64) {
	q.mu.Lock()
	if gen != q.timerGen || q.state != stateTimerArmed {
		q.mu.Unlock()
		return
	}
	q.timer = nil
	q.state = stateIdle
	q.mu.Unlock()

	q.backgroundFlush("timer")
}

// backgroundFlush runs a flush nobody waits for. Errors can only be logged.
func (q *Queue) backgroundFlush(trigger string) {
	if err := q.flush(); err != nil {
		Logger.Warningf("%s flush of %s failed, pending operations are lost: %v", trigger, q.backend.Name(), err)
	}
}
