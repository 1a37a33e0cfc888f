package models

import (
	"time"
)

// CacheEntry holds conditional-request metadata and the last-seen body for one
// URL. Created or refreshed on every 200 and 304; never deleted.
type CacheEntry struct {
	URL          string    `json:"url" badgerhold:"key"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"` // Verbatim header value, replayed in If-Modified-Since
	ContentHash  string    `json:"content_hash"`            // SHA-256 hex of Content
	Timestamp    time.Time `json:"timestamp"`
	Content      string    `json:"content"`
}
