package game

// Cursor is a resumable position in a roster. Marker names the roster the
// cursor belongs to (usually a level); a new marker restarts the walk.
type Cursor struct {
	Marker   uint32 `json:"marker"`
	Position uint64 `json:"position"`
	Length   uint64 `json:"length"`
}

// Begin points the cursor at a new roster of the given length unless it is
// already walking the roster named by marker.
func (c *Cursor) Begin(marker uint32, length uint64) {
	if c.Marker == marker && c.Length == length {
		return
	}
	if c.Marker != marker {
		c.Position = 0
	}
	c.Marker = marker
	c.Length = length
}

// Extend moves the end of an unbounded roster forward; positions already
// processed stay processed.
func (c *Cursor) Extend(length uint64) {
	if length > c.Length {
		c.Length = length
	}
}

// Done reports whether every entry up to Length has been visited.
func (c *Cursor) Done() bool { return c.Position >= c.Length }

// Remaining is the number of entries left.
func (c *Cursor) Remaining() uint64 {
	if c.Done() {
		return 0
	}
	return c.Length - c.Position
}

// ProcessBatch visits up to maxItems entries of r starting at cur.Position
// and advances the cursor past each visited entry. It returns how many
// entries were visited and whether the cursor reached the end. A visit
// error stops the batch; the failing entry is not marked processed.
func ProcessBatch[T any](r *Roster[T], cur *Cursor, maxItems int, visit func(i uint64, item T) error) (int, bool, error) {
	if maxItems <= 0 {
		maxItems = 1
	}
	n := 0
	for !cur.Done() && n < maxItems {
		item, err := r.At(cur.Position)
		if err != nil {
			return n, false, err
		}
		if err := visit(cur.Position, item); err != nil {
			return n, false, err
		}
		cur.Position++
		n++
	}
	return n, cur.Done(), nil
}
