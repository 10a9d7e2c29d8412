package fetchkit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBatchGroupsCallsInsideWindow(t *testing.T) {
	m := NewBatchManager(WithBatchWindow(40 * time.Millisecond))

	var started int32
	fn := func() (interface{}, error) {
		return atomic.AddInt32(&started, 1), nil
	}

	var wg sync.WaitGroup
	begin := time.Now()
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := m.Batch(context.Background(), "b", "req", fn); err != nil {
				t.Errorf("Request %d failed: %v", i, err)
			}
		}(i)
	}

	// Both calls land well inside the 40ms window.
	time.Sleep(10 * time.Millisecond)
	if pending := m.Pending("b"); pending != 2 {
		t.Errorf("Expected 2 queued requests before the window fires, got %d", pending)
	}

	wg.Wait()
	elapsed := time.Since(begin)

	if elapsed < 40*time.Millisecond {
		t.Errorf("Batch executed before the window elapsed (%v)", elapsed)
	}
	if atomic.LoadInt32(&started) != 2 {
		t.Errorf("Both queued requests should execute, got %d", started)
	}
	if m.Pending("b") != 0 {
		t.Error("Batch should be retired after execution")
	}
}

func TestBatchSeparateWindowsSeparateBatches(t *testing.T) {
	m := NewBatchManager(WithBatchWindow(20 * time.Millisecond))

	run := func() (interface{}, error) { return nil, nil }

	if _, err := m.Batch(context.Background(), "b", "first", run); err != nil {
		t.Fatal(err)
	}

	// Issued after the first window elapsed: a fresh batch under the same key.
	begin := time.Now()
	if _, err := m.Batch(context.Background(), "b", "second", run); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(begin); elapsed < 20*time.Millisecond {
		t.Errorf("Second call should wait out its own window, returned after %v", elapsed)
	}
}

func TestBatchRequestsExecuteConcurrently(t *testing.T) {
	m := NewBatchManager(WithBatchWindow(10 * time.Millisecond))

	var started int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Batch(context.Background(), "b", "r", func() (interface{}, error) {
				atomic.AddInt32(&started, 1)
				<-release
				return nil, nil
			})
			if err != nil {
				t.Errorf("Request %d failed: %v", i, err)
			}
		}(i)
	}

	// If execution were sequential the second fn could not start while the
	// first is blocked on release.
	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&started) != 2 {
		t.Errorf("Both requests should have started before either finished, got %d", started)
	}
	close(release)
	wg.Wait()
}

func TestBatchFailuresAreIndependent(t *testing.T) {
	m := NewBatchManager(WithBatchWindow(10 * time.Millisecond))

	boom := errors.New("one bad apple")

	var wg sync.WaitGroup
	var goodValue interface{}
	var goodErr, badErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		goodValue, goodErr = m.Batch(context.Background(), "b", "good", func() (interface{}, error) {
			return "ok", nil
		})
	}()
	go func() {
		defer wg.Done()
		_, badErr = m.Batch(context.Background(), "b", "bad", func() (interface{}, error) {
			return nil, boom
		})
	}()
	wg.Wait()

	if goodErr != nil || goodValue != "ok" {
		t.Errorf("Healthy request affected by peer failure: (%v, %v)", goodValue, goodErr)
	}
	if !errors.Is(badErr, boom) {
		t.Errorf("Failing request should surface its own error, got %v", badErr)
	}
}

func TestBatchDuplicateRequestKeysBothExecute(t *testing.T) {
	m := NewBatchManager(WithBatchWindow(10 * time.Millisecond))

	var invocations int32
	fn := func() (interface{}, error) {
		return atomic.AddInt32(&invocations, 1), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Batch(context.Background(), "b", "same-key", fn); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if invocations != 2 {
		t.Errorf("The batch manager does not deduplicate; expected 2 executions, got %d", invocations)
	}
}

func TestBatchFlushExecutesEarly(t *testing.T) {
	m := NewBatchManager(WithBatchWindow(10 * time.Second))

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := m.Batch(context.Background(), "b", "r", func() (interface{}, error) {
			return nil, nil
		}); err != nil {
			t.Error(err)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	m.Flush("b")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Flush should execute the batch without waiting for its window")
	}
}

func TestBatchContextCancelsWaitOnly(t *testing.T) {
	m := NewBatchManager(WithBatchWindow(50 * time.Millisecond))

	var executed int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Batch(ctx, "b", "r", func() (interface{}, error) {
		atomic.AddInt32(&executed, 1)
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	// The queued request still executes when the window fires.
	time.Sleep(80 * time.Millisecond)
	if atomic.LoadInt32(&executed) != 1 {
		t.Error("Cancelled caller should not stop the queued request from executing")
	}
}
