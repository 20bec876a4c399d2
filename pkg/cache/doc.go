// Package cache provides the bounded embed-resource cache that sits in
// front of the embedding call path.
//
// The store keeps at most Capacity entries, ordered by last access:
//
// - Put refreshes or inserts an entry; when full, the least recently
//   accessed entry is evicted first
// - Get refreshes last-accessed (a read counts as use) and returns a copy
// - A self-scheduling sweep removes entries older than MaxEntryAge
// - Decorate overlays performance defaults onto an embed configuration
//   without touching the cache
//
// # Basic Usage
//
//	store := cache.New(cache.DefaultConfig())
//	defer store.Close()
//
//	store.Put("sales-q3", embedURL, token,
//		cache.WithMetadata(map[string]any{"name": "Q3 Sales"}))
//
//	entry, ok := store.Get("sales-q3")
//	if !ok {
//		// miss - fetch a fresh embed config from the backend
//	}
//
//	cfg := store.Decorate("sales-q3", map[string]any{"id": "sales-q3"})
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - embed_cache_hits_total - Cache hits
//   - embed_cache_misses_total - Cache misses
//   - embed_cache_evictions_total{reason} - Evictions by reason
//   - embed_cache_entries - Current live entries
package cache
