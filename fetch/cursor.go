// Package fetch implements cursor-based pagination over chain query
// APIs that return inclusive windows. It trims the cursor echo, filters
// items already delivered, and caches assembled pages.
package fetch

import "fmt"

// Cursor identifies the last item of the previous page. A zero Cursor
// requests the first page.
type Cursor struct {
	Author   string
	Permlink string
	// Offset is used by streams paginated by index rather than by
	// author/permlink, such as reconstructed notification feeds.
	Offset int
}

// Zero reports whether this cursor requests the first page.
func (c Cursor) Zero() bool {
	return c.Author == "" && c.Permlink == "" && c.Offset == 0
}

// Identity is the comparable form used to detect the cursor echo at the
// head of a raw result window.
func (c Cursor) Identity() string {
	if c.Author != "" || c.Permlink != "" {
		return c.Author + "/" + c.Permlink
	}
	return fmt.Sprintf("#%d", c.Offset)
}

// Page is one assembled page of results.
type Page[T any] struct {
	Items []T `json:"items"`
	// Next is the cursor to pass for the following page. Meaningless
	// when HasMore is false.
	Next Cursor `json:"next"`
	// HasMore is false when the stream is exhausted. A full final page
	// may still report true; the next fetch then comes back empty.
	HasMore bool `json:"has_more"`
}
