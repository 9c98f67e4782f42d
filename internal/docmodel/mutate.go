package docmodel

import (
	"fmt"
	"strings"
)

// All tree mutations go through Update so the UI observes one atomic change
// per edit batch. The Tx methods return ErrNodeNotFound for stale keys; the
// caller decides whether that is fatal.

// Tx is a single mutation transaction over one document.
type Tx struct {
	doc     *Document
	mutated bool
}

// Update runs fn as one discrete transaction. The revision is bumped once,
// and only when fn returns nil and at least one mutation happened.
func (d *Document) Update(fn func(tx *Tx) error) error {
	if d == nil {
		return fmt.Errorf("nil document")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	tx := &Tx{doc: d}
	if err := fn(tx); err != nil {
		return err
	}
	if tx.mutated {
		d.Revision++
	}
	return nil
}

func (d *Document) findParagraph(key string) (*Section, int) {
	var walk func(s *Section) (*Section, int)
	walk = func(s *Section) (*Section, int) {
		for i, p := range s.Paragraphs {
			if p.NodeKey == key {
				return s, i
			}
		}
		for _, c := range s.Children {
			if sec, i := walk(c); sec != nil {
				return sec, i
			}
		}
		return nil, -1
	}
	for _, s := range d.Sections {
		if sec, i := walk(s); sec != nil {
			return sec, i
		}
	}
	return nil, -1
}

// ReplaceParagraph clears the target node's text and sets newText. With
// preserveStyle the node keeps its style and node type; otherwise both reset
// to plain paragraph. Existing marks are dropped either way (they indexed the
// old text).
func (tx *Tx) ReplaceParagraph(targetKey, newText string, preserveStyle bool) error {
	sec, i := tx.doc.findParagraph(targetKey)
	if sec == nil {
		return ErrNodeNotFound
	}
	p := sec.Paragraphs[i]
	p.Text = newText
	p.Marks = nil
	if !preserveStyle {
		p.Style = ""
		p.NodeType = NodeTypeParagraph
	}
	tx.mutated = true
	return nil
}

// InsertParagraphAfter creates a new paragraph node directly after the
// reference node and returns its key.
func (tx *Tx) InsertParagraphAfter(referenceKey, newText string) (string, error) {
	sec, i := tx.doc.findParagraph(referenceKey)
	if sec == nil {
		return "", ErrNodeNotFound
	}
	p := &Paragraph{NodeKey: NewNodeKey(), Text: newText, NodeType: NodeTypeParagraph}
	sec.Paragraphs = append(sec.Paragraphs, nil)
	copy(sec.Paragraphs[i+2:], sec.Paragraphs[i+1:])
	sec.Paragraphs[i+1] = p
	tx.mutated = true
	return p.NodeKey, nil
}

// AppendParagraph adds a paragraph at the end of the section's own content.
func (tx *Tx) AppendParagraph(sectionKey, newText, nodeType string) (string, error) {
	sec := tx.doc.FindSection(sectionKey)
	if sec == nil {
		return "", ErrSectionNotFound
	}
	if strings.TrimSpace(nodeType) == "" {
		nodeType = NodeTypeParagraph
	}
	p := &Paragraph{NodeKey: NewNodeKey(), Text: newText, NodeType: nodeType}
	sec.Paragraphs = append(sec.Paragraphs, p)
	tx.mutated = true
	return p.NodeKey, nil
}

// DeleteParagraph removes the target node.
func (tx *Tx) DeleteParagraph(targetKey string) error {
	sec, i := tx.doc.findParagraph(targetKey)
	if sec == nil {
		return ErrNodeNotFound
	}
	sec.Paragraphs = append(sec.Paragraphs[:i], sec.Paragraphs[i+1:]...)
	tx.mutated = true
	return nil
}

// ApplyMark records an inline mark on a single paragraph. Offsets are rune
// offsets into the current text; ranges reaching past the end are rejected,
// not clamped, so a stale mark never silently moves.
func (tx *Tx) ApplyMark(targetKey string, m Mark) error {
	sec, i := tx.doc.findParagraph(targetKey)
	if sec == nil {
		return ErrNodeNotFound
	}
	p := sec.Paragraphs[i]
	n := len([]rune(p.Text))
	if m.StartOffset < 0 || m.EndOffset < m.StartOffset || m.EndOffset > n {
		return fmt.Errorf("mark range [%d,%d) out of bounds for %d runes", m.StartOffset, m.EndOffset, n)
	}
	p.Marks = append(p.Marks, m)
	tx.mutated = true
	return nil
}

// AddComment attaches a comment to a section.
func (tx *Tx) AddComment(sectionKey, text string) error {
	sec := tx.doc.FindSection(sectionKey)
	if sec == nil {
		return ErrSectionNotFound
	}
	sec.Comments = append(sec.Comments, Comment{NodeKey: NewNodeKey(), Text: text})
	tx.mutated = true
	return nil
}
