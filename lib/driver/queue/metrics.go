package queue

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// queueMetrics holds the per instance metrics of a queue driver. Each queue
// owns its own metrics.Set so that several queues can live in one process.
type queueMetrics struct {
	set         *metrics.Set
	enqueued    *metrics.Counter
	dropped     *metrics.Counter
	flushes     *metrics.Counter
	flushErrors *metrics.Counter
	flushedOps  *metrics.Counter
	duration    *metrics.Histogram
}

func newQueueMetrics(backend string, pending func() float64) *queueMetrics {
	set := metrics.NewSet()
	name := func(metric string) string {
		return fmt.Sprintf(`qkv_queue_%s{driver=%q}`, metric, backend)
	}

	m := &queueMetrics{
		set:         set,
		enqueued:    set.NewCounter(name("enqueued_total")),
		dropped:     set.NewCounter(name("dropped_total")),
		flushes:     set.NewCounter(name("flushes_total")),
		flushErrors: set.NewCounter(name("flush_errors_total")),
		flushedOps:  set.NewCounter(name("flushed_ops_total")),
		duration:    set.NewHistogram(name("flush_duration_seconds")),
	}
	set.NewGauge(name("pending"), pending)
	return m
}

// WritePrometheus writes the metrics of the queue in Prometheus text format.
func (q *Queue) WritePrometheus(w io.Writer) {
	q.metrics.set.WritePrometheus(w)
}
