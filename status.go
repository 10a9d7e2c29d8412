package fetchkit

import "sync"

// NetworkStatus is a snapshot of the connectivity and retry state shared by
// every request going through a Client.
type NetworkStatus struct {
	Online     bool
	Retrying   bool
	RetryCount int
	LastError  string
}

// StatusListener receives a status snapshot on every status-changing event.
type StatusListener func(NetworkStatus)

// StatusMonitor holds the process-wide network status. The Client mutates it
// on retry starts, successes and final failures; the embedding application
// feeds runtime connectivity transitions through SetOnline. Any number of
// subscribers may listen. Safe for concurrent use.
type StatusMonitor struct {
	mu        sync.Mutex
	status    NetworkStatus
	nextID    int
	listeners map[int]StatusListener
}

// NewStatusMonitor creates a monitor that starts online with a clean status.
func NewStatusMonitor() *StatusMonitor {
	return &StatusMonitor{
		status:    NetworkStatus{Online: true},
		listeners: make(map[int]StatusListener),
	}
}

// Subscribe registers a listener and returns its unsubscribe func. Listeners
// are invoked synchronously on every status-changing event.
func (m *StatusMonitor) Subscribe(listener StatusListener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Snapshot returns the current status.
func (m *StatusMonitor) Snapshot() NetworkStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Online reports the current connectivity state.
func (m *StatusMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.Online
}

// SetOnline records a runtime connectivity transition and notifies
// subscribers if the state changed. Coming back online clears a stale
// offline error.
func (m *StatusMonitor) SetOnline(online bool) {
	m.update(func(s *NetworkStatus) {
		s.Online = online
		if online && s.LastError == ErrOffline.Error() {
			s.LastError = ""
		}
	})
}

// markRetrying publishes a retry-in-progress transition before an attempt.
func (m *StatusMonitor) markRetrying(attempt int) {
	m.update(func(s *NetworkStatus) {
		s.Retrying = true
		s.RetryCount = attempt
	})
}

// markSuccess resets the status after a successful request.
func (m *StatusMonitor) markSuccess() {
	m.update(func(s *NetworkStatus) {
		s.Retrying = false
		s.RetryCount = 0
		s.LastError = ""
	})
}

// markFailure records a terminal failure: retries exhausted, a non-retryable
// response, or an offline fast-fail.
func (m *StatusMonitor) markFailure(errMsg string) {
	m.update(func(s *NetworkStatus) {
		s.Retrying = false
		s.RetryCount = 0
		s.LastError = errMsg
	})
}

func (m *StatusMonitor) update(mutate func(*NetworkStatus)) {
	m.mu.Lock()
	prev := m.status
	mutate(&m.status)
	changed := m.status != prev
	snapshot := m.status
	var listeners []StatusListener
	if changed {
		listeners = make([]StatusListener, 0, len(m.listeners))
		for _, l := range m.listeners {
			listeners = append(listeners, l)
		}
	}
	m.mu.Unlock()

	// Listeners run outside the lock so they may call back into the monitor.
	for _, l := range listeners {
		l(snapshot)
	}
}
