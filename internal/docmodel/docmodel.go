package docmodel

// A Document is a tree of sections; each section owns an ordered list of
// paragraph nodes and a list of child sections. Every node carries a stable
// key so that edit operations computed against a snapshot can be resolved
// against the live tree later.

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrSectionNotFound = errors.New("section not found")
	ErrNodeNotFound    = errors.New("node not found")
)

const (
	NodeTypeParagraph = "paragraph"
	NodeTypeBullet    = "bullet"
)

// Mark is an inline formatting range inside a single paragraph.
type Mark struct {
	Type        string `json:"type"` // "highlight" | "bold"
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// Paragraph is one content node of a section.
type Paragraph struct {
	NodeKey  string `json:"node_key"`
	Text     string `json:"text"`
	NodeType string `json:"node_type"`
	Style    string `json:"style,omitempty"`
	Marks    []Mark `json:"marks,omitempty"`
}

// Comment is a note attached to a section, outside the content flow.
type Comment struct {
	NodeKey string `json:"node_key"`
	Text    string `json:"text"`
}

// Section is a heading with its own paragraphs and child sections.
type Section struct {
	NodeKey    string       `json:"node_key"`
	Title      string       `json:"title"`
	Level      int          `json:"level"`
	Paragraphs []*Paragraph `json:"paragraphs,omitempty"`
	Comments   []Comment    `json:"comments,omitempty"`
	Children   []*Section   `json:"children,omitempty"`
}

// Document is the root of the tree.
//
// Revision increments on every applied mutation batch so callers can detect
// that a snapshot went stale.
type Document struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Revision int64      `json:"revision"`
	Sections []*Section `json:"sections,omitempty"`

	// mu serializes Update batches on this document instance.
	mu sync.Mutex
}

// ParagraphInfo is the read-only paragraph view handed to the edit pipeline.
type ParagraphInfo struct {
	NodeKey  string `json:"node_key"`
	Text     string `json:"text"`
	NodeType string `json:"node_type"`
	Style    string `json:"style,omitempty"`
}

// SectionRef identifies a child section in a SectionContext.
type SectionRef struct {
	NodeKey string `json:"node_key"`
	Title   string `json:"title"`
	Level   int    `json:"level"`
}

// SectionContext is what the edit pipeline sees of one section.
type SectionContext struct {
	SectionKey        string          `json:"section_key"`
	Title             string          `json:"title"`
	OwnParagraphs     []ParagraphInfo `json:"own_paragraphs"`
	SubtreeParagraphs []ParagraphInfo `json:"subtree_paragraphs"`
	ChildSections     []SectionRef    `json:"child_sections"`
}

func NewNodeKey() string {
	return "nk_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SectionSpec and ParagraphSpec are the key-less input shapes used when a
// document is created from client JSON. Keys are assigned on build.
type ParagraphSpec struct {
	Text     string `json:"text"`
	NodeType string `json:"node_type,omitempty"`
	Style    string `json:"style,omitempty"`
}

type SectionSpec struct {
	Title      string          `json:"title"`
	Paragraphs []ParagraphSpec `json:"paragraphs,omitempty"`
	Children   []SectionSpec   `json:"children,omitempty"`
}

type DocumentSpec struct {
	Title    string        `json:"title"`
	Sections []SectionSpec `json:"sections,omitempty"`
}

// Build creates a Document from a spec, assigning fresh node keys throughout.
func Build(spec DocumentSpec) *Document {
	doc := &Document{
		ID:    "doc_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Title: strings.TrimSpace(spec.Title),
	}
	for _, s := range spec.Sections {
		doc.Sections = append(doc.Sections, buildSection(s, 1))
	}
	return doc
}

func buildSection(spec SectionSpec, level int) *Section {
	sec := &Section{
		NodeKey: NewNodeKey(),
		Title:   strings.TrimSpace(spec.Title),
		Level:   level,
	}
	for _, p := range spec.Paragraphs {
		nt := p.NodeType
		if strings.TrimSpace(nt) == "" {
			nt = NodeTypeParagraph
		}
		sec.Paragraphs = append(sec.Paragraphs, &Paragraph{
			NodeKey:  NewNodeKey(),
			Text:     p.Text,
			NodeType: nt,
			Style:    p.Style,
		})
	}
	for _, c := range spec.Children {
		sec.Children = append(sec.Children, buildSection(c, level+1))
	}
	return sec
}

// FindSection returns the section with the given node key, or nil.
func (d *Document) FindSection(key string) *Section {
	if d == nil {
		return nil
	}
	for _, s := range d.Sections {
		if found := findSection(s, key); found != nil {
			return found
		}
	}
	return nil
}

func findSection(s *Section, key string) *Section {
	if s == nil {
		return nil
	}
	if s.NodeKey == key {
		return s
	}
	for _, c := range s.Children {
		if found := findSection(c, key); found != nil {
			return found
		}
	}
	return nil
}

func (p *Paragraph) info() ParagraphInfo {
	return ParagraphInfo{NodeKey: p.NodeKey, Text: p.Text, NodeType: p.NodeType, Style: p.Style}
}

// ContextForSection builds the SectionContext for the given section key.
func (d *Document) ContextForSection(key string) (*SectionContext, error) {
	sec := d.FindSection(key)
	if sec == nil {
		return nil, ErrSectionNotFound
	}
	ctx := &SectionContext{
		SectionKey: sec.NodeKey,
		Title:      sec.Title,
	}
	for _, p := range sec.Paragraphs {
		ctx.OwnParagraphs = append(ctx.OwnParagraphs, p.info())
	}
	collectSubtree(sec, &ctx.SubtreeParagraphs)
	for _, c := range sec.Children {
		ctx.ChildSections = append(ctx.ChildSections, SectionRef{NodeKey: c.NodeKey, Title: c.Title, Level: c.Level})
	}
	return ctx, nil
}

func collectSubtree(s *Section, out *[]ParagraphInfo) {
	for _, p := range s.Paragraphs {
		*out = append(*out, p.info())
	}
	for _, c := range s.Children {
		collectSubtree(c, out)
	}
}

// Snapshot returns a deep copy of the document.
func (d *Document) Snapshot() *Document {
	if d == nil {
		return nil
	}
	cp := &Document{ID: d.ID, Title: d.Title, Revision: d.Revision}
	for _, s := range d.Sections {
		cp.Sections = append(cp.Sections, copySection(s))
	}
	return cp
}

func copySection(s *Section) *Section {
	cp := &Section{NodeKey: s.NodeKey, Title: s.Title, Level: s.Level}
	for _, p := range s.Paragraphs {
		pc := *p
		pc.Marks = append([]Mark(nil), p.Marks...)
		cp.Paragraphs = append(cp.Paragraphs, &pc)
	}
	cp.Comments = append([]Comment(nil), s.Comments...)
	for _, c := range s.Children {
		cp.Children = append(cp.Children, copySection(c))
	}
	return cp
}
