package fetchkit

import (
	"context"
	"sync"
	"time"
)

// DefaultBatchWindow is the delay between a batch opening and executing.
const DefaultBatchWindow = 50 * time.Millisecond

type batchResult struct {
	value interface{}
	err   error
}

type batchRequest struct {
	key  string
	fn   RequestFunc
	done chan batchResult
}

type batch struct {
	requests []*batchRequest
	timer    *time.Timer
}

// BatchManager groups requests issued within a short time window under a
// batch key and executes them together. The first call for an idle batch key
// opens a batch and arms the window timer; every call arriving before it
// fires joins the same batch. When the window elapses the batch is retired
// and every queued fetch runs concurrently, settling its own caller
// independently. The manager only aligns timing; merging several logical
// requests into one wire-level call is up to the supplied closures.
// Safe for concurrent use.
type BatchManager struct {
	mu      sync.Mutex
	batches map[string]*batch
	window  time.Duration

	metrics *MetricsCollector
	logger  Logger
}

// BatchOption configures a BatchManager.
type BatchOption func(*BatchManager)

// WithBatchWindow sets the accumulation window (default 50ms).
func WithBatchWindow(d time.Duration) BatchOption {
	return func(m *BatchManager) {
		if d > 0 {
			m.window = d
		}
	}
}

// WithBatchMetrics wires a metrics collector into the manager.
func WithBatchMetrics(mc *MetricsCollector) BatchOption {
	return func(m *BatchManager) {
		m.metrics = mc
	}
}

// WithBatchLogger sets a logger for batch events.
func WithBatchLogger(logger Logger) BatchOption {
	return func(m *BatchManager) {
		m.logger = logger
	}
}

// NewBatchManager creates a manager with the default window.
func NewBatchManager(options ...BatchOption) *BatchManager {
	m := &BatchManager{
		batches: make(map[string]*batch),
		window:  DefaultBatchWindow,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Batch queues fn under batchKey and blocks until the window fires and fn
// settles. Two calls with the same requestKey inside one window both queue
// and both execute; compose with a Deduplicator when that is not desired.
// ctx bounds the wait only, it does not cancel an executing fetch.
func (m *BatchManager) Batch(ctx context.Context, batchKey, requestKey string, fn RequestFunc) (interface{}, error) {
	r := &batchRequest{
		key:  requestKey,
		fn:   fn,
		done: make(chan batchResult, 1),
	}

	m.mu.Lock()
	b, ok := m.batches[batchKey]
	if !ok {
		b = &batch{}
		m.batches[batchKey] = b
		b.timer = time.AfterFunc(m.window, func() {
			m.flush(batchKey)
		})
		if m.logger != nil {
			m.logger.Debug("Batch opened", "batchKey", batchKey, "window", m.window)
		}
	}
	b.requests = append(b.requests, r)
	m.mu.Unlock()

	select {
	case res := <-r.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Flush executes a pending batch immediately instead of waiting for its
// window to elapse. No-op when no batch is open for batchKey.
func (m *BatchManager) Flush(batchKey string) {
	m.mu.Lock()
	b, ok := m.batches[batchKey]
	if ok && b.timer != nil {
		b.timer.Stop()
	}
	m.mu.Unlock()

	if ok {
		m.flush(batchKey)
	}
}

// Pending returns the number of requests queued for batchKey in the current
// window.
func (m *BatchManager) Pending(batchKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.batches[batchKey]; ok {
		return len(b.requests)
	}
	return 0
}

// flush retires the batch and runs every queued fetch concurrently. One
// request's failure does not fail the others.
func (m *BatchManager) flush(batchKey string) {
	m.mu.Lock()
	b, ok := m.batches[batchKey]
	delete(m.batches, batchKey)
	m.mu.Unlock()

	if !ok {
		return
	}

	if m.metrics != nil {
		m.metrics.RecordBatchFlush(batchKey, len(b.requests))
	}
	if m.logger != nil {
		m.logger.Debug("Batch executing", "batchKey", batchKey, "size", len(b.requests))
	}

	for _, r := range b.requests {
		go func(r *batchRequest) {
			value, err := r.fn()
			r.done <- batchResult{value: value, err: err}
		}(r)
	}
}
