package docstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/docfold/docfold-agent/internal/docmodel"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "docfold.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveAndGetDocument(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()

	doc := docmodel.Build(docmodel.DocumentSpec{
		Title: "Notes",
		Sections: []docmodel.SectionSpec{
			{Title: "A", Paragraphs: []docmodel.ParagraphSpec{{Text: "hello"}}},
		},
	})
	if err := s.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got == nil || got.ID != doc.ID || got.Title != "Notes" {
		t.Fatalf("got=%+v", got)
	}
	if len(got.Sections) != 1 || got.Sections[0].Paragraphs[0].Text != "hello" {
		t.Fatalf("tree lost: %+v", got.Sections)
	}
	if got.Sections[0].NodeKey != doc.Sections[0].NodeKey {
		t.Fatalf("node keys must survive the round trip")
	}
}

func TestStore_GetDocumentAbsent(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	got, err := s.GetDocument(context.Background(), "doc_missing")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got != nil {
		t.Fatalf("got=%+v, want nil for absent doc", got)
	}
}

func TestStore_SaveDocumentUpserts(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()

	doc := docmodel.Build(docmodel.DocumentSpec{Title: "v1"})
	if err := s.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("first save: %v", err)
	}
	doc.Title = "v2"
	doc.Revision = 5
	if err := s.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("second save: %v", err)
	}

	metas, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("documents=%d, want 1 after upsert", len(metas))
	}
	if metas[0].Title != "v2" || metas[0].Revision != 5 {
		t.Fatalf("meta=%+v", metas[0])
	}
}

func TestStore_EditSessions(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()

	for i, es := range []EditSession{
		{SessionID: "es_1", DocID: "doc_a", SectionKey: "nk_1", Success: true, CompletedSteps: 2, TotalSteps: 2, CreatedAtUnixMs: 1000},
		{SessionID: "es_2", DocID: "doc_a", SectionKey: "nk_1", Success: false, Error: "llm failure", CreatedAtUnixMs: 2000},
		{SessionID: "es_3", DocID: "doc_b", SectionKey: "nk_9", Success: true, CreatedAtUnixMs: 3000},
	} {
		if err := s.InsertEditSession(ctx, es); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	all, err := s.ListEditSessions(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListEditSessions: %v", err)
	}
	if len(all) != 3 || all[0].SessionID != "es_3" {
		t.Fatalf("all=%+v, want newest first", all)
	}

	forA, err := s.ListEditSessions(ctx, "doc_a", 0)
	if err != nil {
		t.Fatalf("ListEditSessions doc_a: %v", err)
	}
	if len(forA) != 2 || forA[0].SessionID != "es_2" {
		t.Fatalf("forA=%+v", forA)
	}
	if forA[0].Success || forA[0].Error != "llm failure" {
		t.Fatalf("failure row lost detail: %+v", forA[0])
	}

	limited, err := s.ListEditSessions(ctx, "", 1)
	if err != nil {
		t.Fatalf("ListEditSessions limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited=%d", len(limited))
	}
}

func TestStore_InsertEditSessionRequiresID(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	if err := s.InsertEditSession(context.Background(), EditSession{DocID: "doc_a"}); err == nil {
		t.Fatalf("expected error for missing session id")
	}
}
