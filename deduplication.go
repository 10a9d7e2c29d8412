package fetchkit

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// RequestFunc is an arbitrary fetch closure: it produces a value or an error.
// The layer imposes no shape on success values.
type RequestFunc func() (interface{}, error)

// Deduplicator collapses concurrent calls sharing a key into one underlying
// invocation. Every caller joining an in-flight key observes the same
// settlement, value or error. The registration is dropped the moment the
// underlying call settles, so a failure never poisons the key for later,
// distinct calls. Safe for concurrent use.
type Deduplicator struct {
	group singleflight.Group

	mu       sync.Mutex
	inflight map[string]int

	metrics *MetricsCollector
	logger  Logger
}

// DeduplicatorOption configures a Deduplicator.
type DeduplicatorOption func(*Deduplicator)

// WithDeduplicatorMetrics wires a metrics collector into the deduplicator.
func WithDeduplicatorMetrics(mc *MetricsCollector) DeduplicatorOption {
	return func(d *Deduplicator) {
		d.metrics = mc
	}
}

// WithDeduplicatorLogger sets a logger for deduplication events.
func WithDeduplicatorLogger(logger Logger) DeduplicatorOption {
	return func(d *Deduplicator) {
		d.logger = logger
	}
}

// NewDeduplicator creates an in-memory request deduplicator.
func NewDeduplicator(options ...DeduplicatorOption) *Deduplicator {
	d := &Deduplicator{
		inflight: make(map[string]int),
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Do executes fn under key, joining an already in-flight invocation if one
// exists. At most one underlying fn runs per key at a time; the number of
// callers joining it is unbounded. ctx only bounds this caller's wait, it
// does not cancel the underlying call.
func (d *Deduplicator) Do(ctx context.Context, key string, fn RequestFunc) (interface{}, error) {
	d.mu.Lock()
	d.inflight[key]++
	d.mu.Unlock()
	defer d.release(key)

	ch := d.group.DoChan(key, fn)

	select {
	case res := <-ch:
		if res.Shared {
			if d.metrics != nil {
				d.metrics.RecordDeduplicationHit(key)
			}
			if d.logger != nil {
				d.logger.Debug("Deduplication hit", "key", key)
			}
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending returns the number of keys with an in-flight invocation.
func (d *Deduplicator) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

// Clear drops all pending registrations. In-flight calls keep running and
// settle their existing callers; Clear only stops future Do calls from
// joining them.
func (d *Deduplicator) Clear() {
	d.mu.Lock()
	keys := make([]string, 0, len(d.inflight))
	for key := range d.inflight {
		keys = append(keys, key)
	}
	d.mu.Unlock()

	for _, key := range keys {
		d.group.Forget(key)
	}
}

func (d *Deduplicator) release(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.inflight[key]--
	if d.inflight[key] <= 0 {
		delete(d.inflight, key)
	}
}
