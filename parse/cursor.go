package parse

type cursorFrame struct {
	n     *node
	start int
	index int
}

// Cursor walks a tree without allocating a handle per step. It cannot move
// above the node it was created on.
type Cursor struct {
	tree  *Tree
	stack []cursorFrame
}

func newCursor(n Node) *Cursor {
	return &Cursor{tree: n.tree, stack: []cursorFrame{{n: n.n, start: n.start}}}
}

func (c *Cursor) top() *cursorFrame { return &c.stack[len(c.stack)-1] }

// Node returns the node under the cursor.
func (c *Cursor) Node() Node {
	f := c.top()
	return Node{tree: c.tree, n: f.n, start: f.start}
}

// Depth returns how many levels below its starting node the cursor is.
func (c *Cursor) Depth() int { return len(c.stack) - 1 }

// Reset moves the cursor to n, which becomes its new starting node.
func (c *Cursor) Reset(n Node) {
	c.tree = n.tree
	c.stack = append(c.stack[:0], cursorFrame{n: n.n, start: n.start})
}

// FieldName returns the field label of the current node within its parent.
func (c *Cursor) FieldName() string {
	if len(c.stack) < 2 {
		return ""
	}
	parent := c.stack[len(c.stack)-2].n
	return c.tree.lang.Tables.FieldName(parent.fieldAt(c.top().index))
}

// GotoFirstChild moves to the first child.
func (c *Cursor) GotoFirstChild() bool {
	f := c.top()
	if len(f.n.children) == 0 {
		return false
	}
	c.stack = append(c.stack, cursorFrame{n: f.n.children[0], start: f.start})
	return true
}

// GotoLastChild moves to the last child.
func (c *Cursor) GotoLastChild() bool {
	f := c.top()
	k := len(f.n.children)
	if k == 0 {
		return false
	}
	last := f.n.children[k-1]
	c.stack = append(c.stack, cursorFrame{n: last, start: f.start + f.n.size - last.size, index: k - 1})
	return true
}

// GotoNextSibling moves to the next sibling.
func (c *Cursor) GotoNextSibling() bool {
	if len(c.stack) < 2 {
		return false
	}
	f := c.top()
	parent := c.stack[len(c.stack)-2].n
	if f.index+1 >= len(parent.children) {
		return false
	}
	*f = cursorFrame{n: parent.children[f.index+1], start: f.start + f.n.size, index: f.index + 1}
	return true
}

// GotoPreviousSibling moves to the previous sibling.
func (c *Cursor) GotoPreviousSibling() bool {
	if len(c.stack) < 2 {
		return false
	}
	f := c.top()
	if f.index == 0 {
		return false
	}
	parent := c.stack[len(c.stack)-2].n
	prev := parent.children[f.index-1]
	*f = cursorFrame{n: prev, start: f.start - prev.size, index: f.index - 1}
	return true
}

// GotoFirstFieldChild moves to the first child that carries a field label.
func (c *Cursor) GotoFirstFieldChild() bool {
	if !c.GotoFirstChild() {
		return false
	}
	if c.FieldName() != "" || c.GotoNextFieldChild() {
		return true
	}
	c.GotoParent()
	return false
}

// GotoNextFieldChild moves to the next sibling that carries a field label.
// The cursor does not move when there is none.
func (c *Cursor) GotoNextFieldChild() bool {
	if len(c.stack) < 2 {
		return false
	}
	saved := *c.top()
	for c.GotoNextSibling() {
		if c.FieldName() != "" {
			return true
		}
	}
	*c.top() = saved
	return false
}

// StartByte returns the start of the node under the cursor.
func (c *Cursor) StartByte() int { return c.top().start }

// EndByte returns the end of the node under the cursor.
func (c *Cursor) EndByte() int {
	f := c.top()
	return f.start + f.n.size
}

// GotoParent moves to the parent.
func (c *Cursor) GotoParent() bool {
	if len(c.stack) < 2 {
		return false
	}
	c.stack = c.stack[:len(c.stack)-1]
	return true
}

// GotoFirstChildForByte moves to the first child that ends after offset.
func (c *Cursor) GotoFirstChildForByte(offset int) bool {
	if !c.GotoFirstChild() {
		return false
	}
	for {
		f := c.top()
		if f.start+f.n.size > offset {
			return true
		}
		if !c.GotoNextSibling() {
			c.GotoParent()
			return false
		}
	}
}
