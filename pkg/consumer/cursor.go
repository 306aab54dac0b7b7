package consumer

// Cursor is the next offset to read on one partition. It only moves forward.
// A Cursor is owned by a single loop and is not safe for concurrent use.
type Cursor struct {
	next uint64
}

func NewCursor(start uint64) *Cursor {
	return &Cursor{next: start}
}

func (c *Cursor) Next() uint64 {
	return c.next
}

// Advance moves the cursor past n consumed messages.
func (c *Cursor) Advance(n int) {
	if n > 0 {
		c.next += uint64(n)
	}
}

// MoveTo sets the cursor to next unless that would move it backward.
func (c *Cursor) MoveTo(next uint64) bool {
	if next < c.next {
		return false
	}
	c.next = next
	return true
}
