package cache

import (
	"time"
)

// Entry represents a cached embed resource: the URL and token needed to
// re-issue an embed call without another round trip to the backend.
type Entry struct {
	// ResourceID is the report/resource identifier (unique cache key).
	ResourceID string

	// EmbedURL is the URL the host hands to the embedding SDK.
	EmbedURL string

	// AccessToken is the opaque token authorizing the embed.
	AccessToken string

	// Payload is an optional preloaded response body (e.g. a prefetched
	// report definition), nil when nothing was preloaded.
	Payload []byte

	// Metadata is an optional free-form blob attached by the host
	// (display name, workspace, theme hints).
	Metadata map[string]any

	// LastAccessed is updated on every read and write; eviction always
	// removes the entry with the oldest value.
	LastAccessed time.Time
}

// Age returns how long ago the entry was last accessed.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.LastAccessed)
}

// clone returns a deep copy so callers can never mutate the cached value.
func (e *Entry) clone() Entry {
	out := *e
	if e.Payload != nil {
		out.Payload = make([]byte, len(e.Payload))
		copy(out.Payload, e.Payload)
	}
	if e.Metadata != nil {
		out.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
