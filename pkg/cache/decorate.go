package cache

// performanceDefaults are overlaid onto every embed configuration handed out
// by Decorate. Non-essential panes are disabled and automatic layout is
// preferred so many concurrently visible widgets stay responsive.
func performanceDefaults() map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"layoutType": "auto",
			"panes": map[string]any{
				"filters": map[string]any{
					"visible":  false,
					"expanded": false,
				},
				"pageNavigation": map[string]any{
					"visible": false,
				},
			},
		},
	}
}

// Decorate merges the performance defaults onto base and, when an entry for
// resourceID exists, injects its cached metadata under the "metadata" key.
// The merge is pure: neither base nor the cache is mutated.
func (s *Store) Decorate(resourceID string, base map[string]any) map[string]any {
	out := deepMerge(base, performanceDefaults())

	s.mu.Lock()
	elem, ok := s.entries[resourceID]
	var metadata map[string]any
	if ok {
		// Read-only peek: Decorate never refreshes last-accessed.
		if m := elem.Value.(*Entry).Metadata; m != nil {
			metadata = make(map[string]any, len(m))
			for k, v := range m {
				metadata[k] = v
			}
		}
	}
	s.mu.Unlock()

	if metadata != nil {
		out["metadata"] = metadata
	}
	return out
}

// deepMerge returns a new map holding base with overlay applied on top.
// Nested maps are merged recursively; scalar conflicts resolve to overlay.
func deepMerge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, ov := range overlay {
		if bm, ok := out[k].(map[string]any); ok {
			if om, ok := ov.(map[string]any); ok {
				out[k] = deepMerge(bm, om)
				continue
			}
		}
		out[k] = ov
	}
	return out
}
