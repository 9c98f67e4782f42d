package docops

import (
	"errors"
	"testing"

	"github.com/docfold/docfold-agent/internal/schema"
)

func proposed(texts ...string) []schema.LlmParagraph {
	out := make([]schema.LlmParagraph, len(texts))
	for i, txt := range texts {
		out[i] = schema.LlmParagraph{Index: i, Text: txt}
	}
	return out
}

func TestDiff_SameCountEmitsReplacesOnly(t *testing.T) {
	t.Parallel()

	orig := paras("one", "two", "three")
	ops, err := BuildSectionDocOpsDiff(orig, proposed("ONE", "two", "THREE"), ModeRewrite)
	if err != nil {
		t.Fatalf("BuildSectionDocOpsDiff: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d ops, want 2 replaces", len(ops))
	}
	for _, op := range ops {
		if op.Kind != OpReplaceParagraph {
			t.Fatalf("kind=%q", op.Kind)
		}
		if !op.PreserveStyle {
			t.Fatalf("replace must preserve style")
		}
		if op.Stats == nil {
			t.Fatalf("replace missing change stats")
		}
	}
	if ops[0].TargetKey != orig[0].NodeKey || ops[1].TargetKey != orig[2].NodeKey {
		t.Fatalf("targets=%q,%q", ops[0].TargetKey, ops[1].TargetKey)
	}
}

func TestDiff_IdenticalContentEmitsNothing(t *testing.T) {
	t.Parallel()

	orig := paras("one", "two")
	ops, err := BuildSectionDocOpsDiff(orig, proposed("one", "two"), ModeRewrite)
	if err != nil {
		t.Fatalf("BuildSectionDocOpsDiff: %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("got %d ops, want 0", len(ops))
	}
}

func TestDiff_ShrinkEmitsDeletesDescending(t *testing.T) {
	t.Parallel()

	orig := paras("one", "two", "three", "four")
	ops, err := BuildSectionDocOpsDiff(orig, proposed("ONE", "two"), ModeSummarize)
	if err != nil {
		t.Fatalf("BuildSectionDocOpsDiff: %v", err)
	}
	// One replace, then deletes for indices 3 and 2 in that order.
	if len(ops) != 3 {
		t.Fatalf("got %d ops", len(ops))
	}
	if ops[0].Kind != OpReplaceParagraph || ops[0].Index != 0 {
		t.Fatalf("ops[0]=%+v", ops[0])
	}
	if ops[1].Kind != OpDeleteParagraph || ops[1].Index != 3 {
		t.Fatalf("ops[1]=%+v", ops[1])
	}
	if ops[2].Kind != OpDeleteParagraph || ops[2].Index != 2 {
		t.Fatalf("ops[2]=%+v", ops[2])
	}
}

func TestDiff_GrowthEmitsAnchoredInserts(t *testing.T) {
	t.Parallel()

	orig := paras("one")
	ops, err := BuildSectionDocOpsDiff(orig, proposed("one", "two", "three"), ModeExpand)
	if err != nil {
		t.Fatalf("BuildSectionDocOpsDiff: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d ops", len(ops))
	}
	for i, op := range ops {
		if op.Kind != OpInsertParagraphAfter {
			t.Fatalf("ops[%d].Kind=%q", i, op.Kind)
		}
		if op.ReferenceKey != orig[0].NodeKey {
			t.Fatalf("ops[%d] anchored to %q, want last original node", i, op.ReferenceKey)
		}
	}
	if ops[0].NewText != "two" || ops[1].NewText != "three" {
		t.Fatalf("insert texts: %q, %q", ops[0].NewText, ops[1].NewText)
	}
}

func TestDiff_GrowthRejectedInSummarize(t *testing.T) {
	t.Parallel()

	orig := paras("one")
	_, err := BuildSectionDocOpsDiff(orig, proposed("one", "two"), ModeSummarize)
	if !errors.Is(err, ErrGrowthNotAllowed) {
		t.Fatalf("err=%v, want ErrGrowthNotAllowed", err)
	}
}

func TestDiff_RejectsSparseProposed(t *testing.T) {
	t.Parallel()

	orig := paras("one", "two")
	sparse := []schema.LlmParagraph{{Index: 1, Text: "two"}}
	if _, err := BuildSectionDocOpsDiff(orig, sparse, ModeRewrite); err == nil {
		t.Fatalf("expected error for proposed entries out of position")
	}
}

func TestDiff_UnknownMode(t *testing.T) {
	t.Parallel()

	if _, err := BuildSectionDocOpsDiff(paras("one"), proposed("one"), Mode("squash")); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
