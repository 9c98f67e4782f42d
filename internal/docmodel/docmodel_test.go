package docmodel

import (
	"errors"
	"testing"
)

func sampleDoc() *Document {
	return Build(DocumentSpec{
		Title: "Report",
		Sections: []SectionSpec{
			{
				Title: "Intro",
				Paragraphs: []ParagraphSpec{
					{Text: "First paragraph."},
					{Text: "Second paragraph.", Style: "lead"},
				},
				Children: []SectionSpec{
					{Title: "Background", Paragraphs: []ParagraphSpec{{Text: "Nested text."}}},
				},
			},
			{Title: "Conclusion", Paragraphs: []ParagraphSpec{{Text: "The end."}}},
		},
	})
}

func TestBuild_AssignsKeysAndLevels(t *testing.T) {
	t.Parallel()

	doc := sampleDoc()
	if doc.ID == "" {
		t.Fatalf("missing document id")
	}
	seen := map[string]bool{}
	var walk func(s *Section, level int)
	walk = func(s *Section, level int) {
		if s.NodeKey == "" || seen[s.NodeKey] {
			t.Fatalf("section key empty or duplicated: %q", s.NodeKey)
		}
		seen[s.NodeKey] = true
		if s.Level != level {
			t.Fatalf("section %q level=%d, want %d", s.Title, s.Level, level)
		}
		for _, p := range s.Paragraphs {
			if p.NodeKey == "" || seen[p.NodeKey] {
				t.Fatalf("paragraph key empty or duplicated: %q", p.NodeKey)
			}
			seen[p.NodeKey] = true
			if p.NodeType == "" {
				t.Fatalf("paragraph without node type")
			}
		}
		for _, c := range s.Children {
			walk(c, level+1)
		}
	}
	for _, s := range doc.Sections {
		walk(s, 1)
	}
}

func TestContextForSection(t *testing.T) {
	t.Parallel()

	doc := sampleDoc()
	intro := doc.Sections[0]
	sc, err := doc.ContextForSection(intro.NodeKey)
	if err != nil {
		t.Fatalf("ContextForSection: %v", err)
	}
	if sc.Title != "Intro" || sc.SectionKey != intro.NodeKey {
		t.Fatalf("sc=%+v", sc)
	}
	if len(sc.OwnParagraphs) != 2 {
		t.Fatalf("own paragraphs=%d", len(sc.OwnParagraphs))
	}
	if len(sc.SubtreeParagraphs) != 3 {
		t.Fatalf("subtree paragraphs=%d", len(sc.SubtreeParagraphs))
	}
	if len(sc.ChildSections) != 1 || sc.ChildSections[0].Title != "Background" {
		t.Fatalf("children=%+v", sc.ChildSections)
	}

	if _, err := doc.ContextForSection("nk_missing"); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("err=%v, want ErrSectionNotFound", err)
	}
}

func TestUpdate_RevisionSemantics(t *testing.T) {
	t.Parallel()

	doc := sampleDoc()
	p := doc.Sections[0].Paragraphs[0]

	if err := doc.Update(func(tx *Tx) error { return nil }); err != nil {
		t.Fatalf("noop update: %v", err)
	}
	if doc.Revision != 0 {
		t.Fatalf("noop bumped revision to %d", doc.Revision)
	}

	err := doc.Update(func(tx *Tx) error {
		if err := tx.ReplaceParagraph(p.NodeKey, "Changed.", true); err != nil {
			return err
		}
		return tx.DeleteParagraph(doc.Sections[0].Paragraphs[1].NodeKey)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if doc.Revision != 1 {
		t.Fatalf("Revision=%d, want one bump per batch", doc.Revision)
	}

	failErr := errors.New("abort")
	err = doc.Update(func(tx *Tx) error { return failErr })
	if !errors.Is(err, failErr) {
		t.Fatalf("err=%v", err)
	}
	if doc.Revision != 1 {
		t.Fatalf("failed update bumped revision to %d", doc.Revision)
	}
}

func TestReplaceParagraph_StyleHandling(t *testing.T) {
	t.Parallel()

	doc := sampleDoc()
	styled := doc.Sections[0].Paragraphs[1]
	_ = doc.Update(func(tx *Tx) error {
		return tx.ApplyMark(styled.NodeKey, Mark{Type: "highlight", StartOffset: 0, EndOffset: 3})
	})

	if err := doc.Update(func(tx *Tx) error {
		return tx.ReplaceParagraph(styled.NodeKey, "New text.", true)
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if styled.Style != "lead" {
		t.Fatalf("preserveStyle lost style: %q", styled.Style)
	}
	if len(styled.Marks) != 0 {
		t.Fatalf("marks must drop on replace: %+v", styled.Marks)
	}

	if err := doc.Update(func(tx *Tx) error {
		return tx.ReplaceParagraph(styled.NodeKey, "Plain.", false)
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if styled.Style != "" || styled.NodeType != NodeTypeParagraph {
		t.Fatalf("style not reset: style=%q type=%q", styled.Style, styled.NodeType)
	}
}

func TestInsertParagraphAfter_Position(t *testing.T) {
	t.Parallel()

	doc := sampleDoc()
	sec := doc.Sections[0]
	first := sec.Paragraphs[0]

	var newKey string
	err := doc.Update(func(tx *Tx) error {
		var err error
		newKey, err = tx.InsertParagraphAfter(first.NodeKey, "Inserted.")
		return err
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(sec.Paragraphs) != 3 || sec.Paragraphs[1].NodeKey != newKey {
		t.Fatalf("paragraph order wrong after insert")
	}
	if sec.Paragraphs[1].Text != "Inserted." {
		t.Fatalf("text=%q", sec.Paragraphs[1].Text)
	}
}

func TestApplyMark_RuneOffsets(t *testing.T) {
	t.Parallel()

	doc := Build(DocumentSpec{Sections: []SectionSpec{{
		Title:      "S",
		Paragraphs: []ParagraphSpec{{Text: "héllo"}},
	}}})
	p := doc.Sections[0].Paragraphs[0]

	// 5 runes, 6 bytes: the rune-count bound must accept end=5.
	if err := doc.Update(func(tx *Tx) error {
		return tx.ApplyMark(p.NodeKey, Mark{Type: "bold", StartOffset: 0, EndOffset: 5})
	}); err != nil {
		t.Fatalf("mark at rune bound: %v", err)
	}
	err := doc.Update(func(tx *Tx) error {
		return tx.ApplyMark(p.NodeKey, Mark{Type: "bold", StartOffset: 0, EndOffset: 6})
	})
	if err == nil {
		t.Fatalf("mark past rune count must be rejected")
	}
}

func TestUpdate_ConcurrentBatchesSerialize(t *testing.T) {
	t.Parallel()

	doc := sampleDoc()
	secKey := doc.Sections[1].NodeKey

	const writers = 16
	done := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			done <- doc.Update(func(tx *Tx) error {
				_, err := tx.AppendParagraph(secKey, "appended", "")
				return err
			})
		}()
	}
	for i := 0; i < writers; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent update: %v", err)
		}
	}

	if got := len(doc.Sections[1].Paragraphs); got != 1+writers {
		t.Fatalf("paragraphs=%d, want %d", got, 1+writers)
	}
	if doc.Revision != writers {
		t.Fatalf("Revision=%d, want one bump per batch", doc.Revision)
	}
}

func TestSnapshot_IsDeep(t *testing.T) {
	t.Parallel()

	doc := sampleDoc()
	snap := doc.Snapshot()
	p := doc.Sections[0].Paragraphs[0]

	if err := doc.Update(func(tx *Tx) error {
		return tx.ReplaceParagraph(p.NodeKey, "Mutated.", true)
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if snap.Sections[0].Paragraphs[0].Text == "Mutated." {
		t.Fatalf("snapshot shares paragraph storage with live tree")
	}
}
