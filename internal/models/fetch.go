package models

// FetchResult carries the outcome of one tiered fetch. Status 0 means the
// request never produced an HTTP response; callers treat any non-200 as a
// terminal failure for the URL in the current pass.
type FetchResult struct {
	URL        string `json:"url"`
	Content    string `json:"-"`
	Status     int    `json:"status"`
	Screenshot []byte `json:"-"`

	Rendered   bool  `json:"rendered"`    // Tier-2 browser render was used
	Unchanged  bool  `json:"unchanged"`   // Content hash matched the cached entry
	FromCache  bool  `json:"from_cache"`  // Body substituted from cache after a 304
	SavedBytes int64 `json:"saved_bytes"` // max(0, decoded-wire), tier-1 only
}

// OK reports whether the fetch yielded a usable page.
func (r *FetchResult) OK() bool {
	return r.Status == 200
}
