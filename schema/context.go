package schema

import (
	"fmt"
	"strings"
)

// FieldPath locates a field relative to the document root. Sequence
// elements appear as [idx] segments.
type FieldPath struct {
	parts []string
}

// NewFieldPath starts a path at the given document root
func NewFieldPath(root string) FieldPath {
	return FieldPath{parts: []string{root}}
}

// Field returns a new path descending into the named field
func (p FieldPath) Field(name string) FieldPath {
	parts := make([]string, len(p.parts), len(p.parts)+1)
	copy(parts, p.parts)
	return FieldPath{parts: append(parts, "."+name)}
}

// Index returns a new path descending into a sequence element
func (p FieldPath) Index(i int) FieldPath {
	parts := make([]string, len(p.parts), len(p.parts)+1)
	copy(parts, p.parts)
	return FieldPath{parts: append(parts, fmt.Sprintf("[%d]", i))}
}

// String implements fmt.Stringer
func (p FieldPath) String() string {
	return strings.Join(p.parts, "")
}

// DocContext carries per-call contextual data down through decode
// recursion: the containing document's identity and the path of the
// value being decoded. It has no ownership beyond a single call tree.
type DocContext struct {
	Path       FieldPath
	DocumentID string
	Location   string
}

// Field derives a context one field deeper. Safe on a nil receiver.
func (c *DocContext) Field(name string) *DocContext {
	if c == nil {
		return nil
	}
	return &DocContext{Path: c.Path.Field(name), DocumentID: c.DocumentID, Location: c.Location}
}

// Index derives a context one sequence element deeper. Safe on a nil receiver.
func (c *DocContext) Index(i int) *DocContext {
	if c == nil {
		return nil
	}
	return &DocContext{Path: c.Path.Index(i), DocumentID: c.DocumentID, Location: c.Location}
}

// String implements fmt.Stringer
func (c *DocContext) String() string {
	if c == nil {
		return "<no document context>"
	}
	return fmt.Sprintf("location=%s document=%s path=%s", c.Location, c.DocumentID, c.Path)
}
