package jobsearch

// Cursor tracks the offset of one occupation-field run.
//
// A run ends on an empty page, on a short page (fewer hits than Limit), or
// when the next offset would pass MaxOffset. The API's total count is never
// consulted.
type Cursor struct {
	Offset    int
	Limit     int
	MaxOffset int
}

// InBounds reports whether a page may be fetched at the current offset.
func (c Cursor) InBounds() bool { return c.Offset <= c.MaxOffset }

// Next returns the cursor for the page after one that returned n hits, and
// false when the run is over.
func (c Cursor) Next(n int) (Cursor, bool) {
	if n == 0 || n < c.Limit {
		return c, false
	}
	next := c
	next.Offset += c.Limit
	if !next.InBounds() {
		return c, false
	}
	return next, true
}
