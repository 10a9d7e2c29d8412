// Package fetchkit is the request resilience layer that sits between UI/data
// hooks and their backend. It provides composable primitives:
//
//   - TTLCache: bounded in-memory store with per-entry expiry and
//     insertion-order eviction, swept lazily plus by a periodic janitor
//   - Deduplicator: merges concurrent identical in-flight requests into one
//     underlying call (all callers share the same value or error)
//   - RequestCache: cache + deduplication façade around an arbitrary fetch
//     closure, with per-call TTL / skip-cache / no-dedup overrides
//   - BatchManager: groups requests issued inside a short time window under a
//     batch key and releases them together
//   - Client: HTTP client with per-attempt timeouts, classification-aware
//     retries, exponential backoff with jitter, optional circuit breaker and
//     rate limiting, and a subscribable network status feed
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - Safe concurrent use of every component from any number of goroutines
//   - No ambient globals: construct instances once and inject them, so tests
//     can build an isolated instance per case
//   - Extensibility via pluggable Logger and Prometheus metrics
//
// Typical usage:
//
//	status := fetchkit.NewStatusMonitor()
//	client := fetchkit.New(
//	    fetchkit.WithMaxRetries(3),
//	    fetchkit.WithStatusMonitor(status),
//	)
//	cancel := status.Subscribe(func(s fetchkit.NetworkStatus) {
//	    // render connectivity / retry banners
//	})
//	defer cancel()
//	body, err := client.Get(ctx, "https://api.example.com/notes")
//
// Retryable failures (transport errors, timeouts, 408/429/5xx) consume the
// backoff budget before surfacing; other 4xx responses surface immediately
// with the response body embedded in the error.
package fetchkit
